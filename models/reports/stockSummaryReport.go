package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
)

type StockSummaryRow struct {
	ProductId    int    `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductSku   string `json:"product_sku,omitempty"`
	OpeningStock int    `json:"opening_stock"`
	QtyIn        int    `json:"qty_in"`
	QtyOut       int    `json:"qty_out"`
	ClosingStock int    `json:"closing_stock"`
	CurrentStock int    `json:"current_stock"`
}

// GetStockSummaryReport rebuilds per-product stock movement for a date range
// from the inventory_transactions log. ClosingStock is derived purely from the
// log; CurrentStock is the live counter on the product row, so the two columns
// side by side expose any drift.
func GetStockSummaryReport(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString, warehouseId *int) ([]*StockSummaryRow, error) {
	start := time.Now()
	defer logSlowReport(ctx, "stock_summary_report", start, map[string]any{
		"warehouse_id": utils.DereferencePtr(warehouseId),
	})

	sqlT := `
WITH Movement AS (
    SELECT
        it.product_id,
        SUM(CASE WHEN it.created_at < @fromDate THEN it.change_quantity ELSE 0 END) AS opening_stock,
        SUM(CASE WHEN it.created_at BETWEEN @fromDate AND @toDate AND it.change_quantity > 0 THEN it.change_quantity ELSE 0 END) AS qty_in,
        SUM(CASE WHEN it.created_at BETWEEN @fromDate AND @toDate AND it.change_quantity < 0 THEN ABS(it.change_quantity) ELSE 0 END) AS qty_out
    FROM inventory_transactions it
    WHERE it.business_id = @businessId
    GROUP BY it.product_id
)
SELECT
    p.id AS product_id,
    p.name AS product_name,
    p.sku AS product_sku,
    COALESCE(m.opening_stock, 0) AS opening_stock,
    COALESCE(m.qty_in, 0) AS qty_in,
    COALESCE(m.qty_out, 0) AS qty_out,
    COALESCE(m.opening_stock, 0) + COALESCE(m.qty_in, 0) - COALESCE(m.qty_out, 0) AS closing_stock,
    p.current_stock
FROM products p
LEFT JOIN Movement m ON p.id = m.product_id
WHERE p.business_id = @businessId
  {{- if .warehouseId }} AND p.warehouse_id = @warehouseId {{- end }}
ORDER BY p.name;
`
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	business, err := models.GetBusiness(ctx)
	if err != nil {
		return nil, errors.New("business id is required")
	}
	if err := fromDate.StartOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}
	if err := toDate.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}

	if warehouseId != nil && *warehouseId > 0 {
		if err := utils.ValidateResourceId[models.Warehouse](ctx, businessId, *warehouseId); err != nil {
			return nil, errors.New("warehouse not found")
		}
	}

	var cacheKey string
	if reportCacheEnabled() {
		cacheKey = fmt.Sprintf("report:stock_summary:%s:%v:%v:%d", businessId,
			time.Time(fromDate).UTC().Format("2006-01-02"),
			time.Time(toDate).UTC().Format("2006-01-02"),
			utils.DereferencePtr(warehouseId))
		var cached []*StockSummaryRow
		if ok, err := cacheGet(cacheKey, &cached); err == nil && ok && cached != nil {
			return cached, nil
		}
	}

	// generating sql from template
	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"warehouseId": utils.DereferencePtr(warehouseId),
	})
	if err != nil {
		return nil, err
	}

	var results []*StockSummaryRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"fromDate":    fromDate,
		"toDate":      toDate,
		"businessId":  businessId,
		"warehouseId": warehouseId,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, results, reportCacheTTL())
	}
	return results, nil
}
