package workflow

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type LedgerDrift struct {
	OrderId               int             `json:"order_id"`
	OrderNumber           string          `json:"order_number"`
	PaymentReceivedAmount decimal.Decimal `json:"payment_received_amount"`
	LedgerIncome          decimal.Decimal `json:"ledger_income"`
	Difference            decimal.Decimal `json:"difference"`
}

type ReconciliationReport struct {
	PendingFound int           `json:"pending_found"`
	Repaired     int           `json:"repaired"`
	Failed       int           `json:"failed"`
	Drifts       []LedgerDrift `json:"drifts"`
}

// RunReconciliationScan sweeps one business for completed orders whose
// completion entry never settled and posts it through the same idempotent
// path CompleteOrder uses, then cross-checks settled orders against the
// ledger: the income entries tagged with an order must sum to its received
// amount. A repair failure is logged and counted, the sweep keeps going.
func RunReconciliationScan(ctx context.Context) (*ReconciliationReport, error) {
	logger := config.GetLogger()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var pendingIds []int
	err := db.WithContext(ctx).Model(&models.Order{}).
		Where("business_id = ? AND status = ? AND posting_status IN ?",
			businessId, models.OrderStatusCompleted,
			[]models.PostingStatus{models.PostingStatusPending, models.PostingStatusPendingReconciliation}).
		Order("id").Pluck("id", &pendingIds).Error
	if err != nil {
		config.LogError(logger, "reconciliation.go", "RunReconciliationScan > Pluck", "Querying pending orders", businessId, err)
		return nil, err
	}

	report := ReconciliationReport{PendingFound: len(pendingIds)}
	for _, orderId := range pendingIds {
		if err := PostCompletionEntry(ctx, orderId); err != nil {
			config.LogError(logger, "reconciliation.go", "RunReconciliationScan > PostCompletionEntry", "Repairing pending posting", orderId, err)
			report.Failed++
			continue
		}
		report.Repaired++
	}

	var rows []LedgerDrift
	err = db.WithContext(ctx).Raw(`
		SELECT o.id AS order_id, o.order_number, o.payment_received_amount,
			COALESCE(SUM(CASE WHEN fe.entry_type = 'income' THEN fe.amount ELSE 0 END), 0) AS ledger_income
		FROM orders o
		LEFT JOIN finance_entries fe ON fe.related_order_id = o.id AND fe.business_id = o.business_id
		WHERE o.business_id = @businessId AND o.status = @status AND o.posting_status = @postingStatus
		GROUP BY o.id, o.order_number, o.payment_received_amount
		HAVING ledger_income <> o.payment_received_amount`,
		map[string]interface{}{
			"businessId":    businessId,
			"status":        models.OrderStatusCompleted,
			"postingStatus": models.PostingStatusPosted,
		}).Scan(&rows).Error
	if err != nil {
		config.LogError(logger, "reconciliation.go", "RunReconciliationScan > Raw", "Querying ledger drift", businessId, err)
		return nil, err
	}
	for i := range rows {
		rows[i].Difference = rows[i].PaymentReceivedAmount.Sub(rows[i].LedgerIncome)
	}
	report.Drifts = rows

	logger.WithFields(logrus.Fields{
		"businessId": businessId,
		"pending":    report.PendingFound,
		"repaired":   report.Repaired,
		"failed":     report.Failed,
		"drifts":     len(report.Drifts),
	}).Info("reconciliation scan finished")
	return &report, nil
}
