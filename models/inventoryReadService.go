package models

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
)

// WarehouseInventoryResponse is one product's stock position inside one
// warehouse, rebuilt from the inventory_transactions log as of a date.
// LedgerQty is the folded log; CurrentStock is the live counter on the product
// row. The two only differ when movements happened after the as-of date or
// when something bypassed the log.
type WarehouseInventoryResponse struct {
	WarehouseId      int     `json:"warehouse_id"`
	WarehouseName    *string `json:"warehouse_name,omitempty"`
	ProductId        int     `json:"product_id"`
	ProductName      string  `json:"product_name"`
	ProductSku       string  `json:"product_sku,omitempty"`
	SoldQty          int     `json:"sold_qty"`
	RestockQty       int     `json:"restock_qty"`
	CorrectionQtyIn  int     `json:"correction_qty_in"`
	CorrectionQtyOut int     `json:"correction_qty_out"`
	LedgerQty        int     `json:"ledger_qty"`
	CurrentStock     int     `json:"current_stock"`
}

// GetWarehouseInventoryLedger folds the stock log per warehouse and product.
// The warehouse comes from the product row, movements carry no warehouse of
// their own. Products without a warehouse group under warehouse_id 0 with a
// null name.
func GetWarehouseInventoryLedger(ctx context.Context, toDate MyDateString) ([]*WarehouseInventoryResponse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	business, err := GetBusiness(ctx)
	if err != nil {
		return nil, errors.New("business id is required")
	}
	if err := toDate.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}

	sql := `
SELECT
    p.warehouse_id,
    w.name AS warehouse_name,
    p.id AS product_id,
    p.name AS product_name,
    p.sku AS product_sku,
    COALESCE(SUM(CASE WHEN it.reason = 'order' THEN ABS(it.change_quantity) ELSE 0 END), 0) AS sold_qty,
    COALESCE(SUM(CASE WHEN it.reason = 'restock' THEN it.change_quantity ELSE 0 END), 0) AS restock_qty,
    COALESCE(SUM(CASE WHEN it.reason = 'correction' AND it.change_quantity > 0 THEN it.change_quantity ELSE 0 END), 0) AS correction_qty_in,
    COALESCE(SUM(CASE WHEN it.reason = 'correction' AND it.change_quantity < 0 THEN ABS(it.change_quantity) ELSE 0 END), 0) AS correction_qty_out,
    COALESCE(SUM(it.change_quantity), 0) AS ledger_qty,
    p.current_stock
FROM products p
LEFT JOIN inventory_transactions it
    ON it.product_id = p.id AND it.business_id = p.business_id AND it.created_at <= @toDate
LEFT JOIN warehouses w ON w.id = p.warehouse_id
WHERE p.business_id = @businessId
GROUP BY p.warehouse_id, w.name, p.id, p.name, p.sku, p.current_stock
ORDER BY w.name, p.name;
`

	db := config.GetDB()
	var rows []*WarehouseInventoryResponse
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId": businessId,
		"toDate":     toDate,
	}).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
