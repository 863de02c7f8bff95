package reports

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

type OutstandingDebtRow struct {
	OrderId               int             `json:"order_id"`
	OrderNumber           string          `json:"order_number"`
	CompanyId             *int            `json:"company_id"`
	CompanyName           string          `json:"company_name"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	PaymentReceivedAmount decimal.Decimal `json:"payment_received_amount"`
	RemainingDebt         decimal.Decimal `json:"remaining_debt"`
	CompletedAt           *time.Time      `json:"completed_at"`
}

type OutstandingDebtResponse struct {
	TotalOutstanding decimal.Decimal       `json:"total_outstanding"`
	Rows             []*OutstandingDebtRow `json:"rows"`
}

// GetOutstandingDebtReport lists completed orders still carrying debt. The
// remaining amount is recomputed from the order row rather than read from the
// ledger, matching what RegisterPayment uses to clear the flag.
func GetOutstandingDebtReport(ctx context.Context, companyId *int) (*OutstandingDebtResponse, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if companyId != nil && *companyId != 0 {
		if err := utils.ValidateResourceId[models.Company](ctx, businessId, *companyId); err != nil {
			return nil, errors.New("company not found")
		}
	}

	db := config.GetDB()
	var orders []*models.Order
	dbCtx := db.WithContext(ctx).
		Where("business_id = ? AND status = ? AND debt_flag = ?", businessId, models.OrderStatusCompleted, true)
	if companyId != nil && *companyId != 0 {
		dbCtx = dbCtx.Where("company_id = ?", *companyId)
	}
	if err := dbCtx.Order("completed_at").Find(&orders).Error; err != nil {
		return nil, err
	}

	companies, err := models.MapAllCompany(ctx)
	if err != nil {
		return nil, err
	}

	response := &OutstandingDebtResponse{
		TotalOutstanding: decimal.NewFromInt(0),
		Rows:             []*OutstandingDebtRow{},
	}
	for _, o := range orders {
		row := &OutstandingDebtRow{
			OrderId:               o.ID,
			OrderNumber:           o.OrderNumber,
			CompanyId:             o.CompanyId,
			CompanyName:           o.ManualCompany,
			TotalAmount:           o.TotalAmount,
			PaymentReceivedAmount: o.PaymentReceivedAmount,
			RemainingDebt:         o.TotalAmount.Sub(o.PaymentReceivedAmount),
			CompletedAt:           o.CompletedAt,
		}
		if o.CompanyId != nil {
			if c, ok := companies[*o.CompanyId]; ok {
				row.CompanyName = c.Name
			}
		}
		response.Rows = append(response.Rows, row)
		response.TotalOutstanding = response.TotalOutstanding.Add(row.RemainingDebt)
	}
	return response, nil
}
