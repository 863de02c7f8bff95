package main

import (
	"context"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"bitbucket.org/mmdatafocus/backoffice_backend/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

// ReconcileWorker repairs completed orders whose ledger posting never landed.
// The scheduled Pub/Sub trigger is the primary entry point; this worker is the
// in-process fallback for environments without Cloud Scheduler.
type ReconcileWorker struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Interval time.Duration
}

func NewReconcileWorker(db *gorm.DB, logger *logrus.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		DB:       db,
		Logger:   logger,
		Interval: 5 * time.Minute,
	}
}

func shouldRunReconcileWorker() bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv("RECONCILE_WORKER")))
	if val == "true" {
		return true
	}
	if val == "false" {
		return false
	}
	// Default: run even when the scheduled trigger is configured. Posting is
	// guarded by idempotency records and per-order locks, so an extra sweep
	// is harmless.
	return true
}

func (w *ReconcileWorker) Run(ctx context.Context) {
	if w == nil || w.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.Interval):
		}
	}
}

func (w *ReconcileWorker) sweepOnce(ctx context.Context) {
	ctx, span := otel.Tracer("reconcile-worker").Start(ctx, "reconcile.sweep")
	defer span.End()

	var businessIds []string
	err := w.DB.WithContext(ctx).Model(&models.Order{}).
		Where("status = ? AND posting_status IN ?", models.OrderStatusCompleted,
			[]models.PostingStatus{models.PostingStatusPending, models.PostingStatusPendingReconciliation}).
		Distinct().
		Pluck("business_id", &businessIds).Error
	if err != nil {
		if w.Logger != nil {
			w.Logger.WithContext(ctx).WithFields(logrus.Fields{
				"field": "ReconcileWorker",
			}).Error("pending posting scan failed: " + err.Error())
		}
		return
	}

	for _, businessId := range businessIds {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sweepCtx := context.WithValue(ctx, utils.ContextKeyBusinessId, businessId)
		sweepCtx = context.WithValue(sweepCtx, utils.ContextKeyUserId, 0)
		sweepCtx = context.WithValue(sweepCtx, utils.ContextKeyUserName, "System")
		if _, err := workflow.RunReconciliationScan(sweepCtx); err != nil && w.Logger != nil {
			w.Logger.WithContext(sweepCtx).WithFields(logrus.Fields{
				"field":       "ReconcileWorker",
				"business_id": businessId,
			}).Error("reconciliation sweep failed: " + err.Error())
		}
	}
}
