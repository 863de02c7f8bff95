package workflow

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostCompletionEntry posts the one finance entry a completion owes the
// ledger: income of the received amount when payment came in, expense of the
// full total when it did not (the expense tagged with the order id is the
// debt). Runs as its own transaction and is safe to call again: a DB-backed
// idempotency row keyed by the order id guarantees at most one entry per
// completion, so both CompleteOrder and the reconcile scan share this path.
// Runs with no user identity when called from the scan, so the order flips
// happen through UpdateColumns below the hooks.
func PostCompletionEntry(ctx context.Context, orderId int) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}

	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireOrderPostingLock(tx.WithContext(ctx), businessId, orderId); err != nil {
			return err
		}
		defer ReleaseOrderPostingLock(tx.WithContext(ctx), businessId, orderId)

		var order models.Order
		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, orderId).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("order", orderId)
			}
			return err
		}
		// canceled or deleted in between; nothing left to post
		if order.Status != models.OrderStatusCompleted {
			return nil
		}
		if order.PostingStatus == models.PostingStatusPosted {
			return nil
		}

		handlerName := "OrderLedgerPosting"
		messageId := strconv.Itoa(order.ID)
		skip, err := BeginIdempotency(tx.WithContext(ctx), businessId, handlerName, messageId)
		if err != nil {
			return err
		}
		if !skip {
			entryType := models.FinanceEntryTypeExpense
			amount := order.TotalAmount
			if order.PaymentReceivedAmount.IsPositive() {
				entryType = models.FinanceEntryTypeIncome
				amount = order.PaymentReceivedAmount
			}
			_, err = models.PostFinanceEntry(ctx, tx, businessId, entryType, amount,
				order.CompanyId, nil, &order.ID, "order "+order.OrderNumber+" completion")
			if err != nil {
				_ = MarkIdempotencyFailed(tx.WithContext(ctx), businessId, handlerName, messageId, err)
				return err
			}
			if err := MarkIdempotencySucceeded(tx.WithContext(ctx), businessId, handlerName, messageId); err != nil {
				return err
			}
		}

		if err := tx.WithContext(ctx).Model(&models.Order{}).
			Where("business_id = ? AND id = ?", businessId, order.ID).
			UpdateColumn("posting_status", models.PostingStatusPosted).Error; err != nil {
			return err
		}
		if err := settleOrderOutbox(ctx, tx, businessId, order.ID); err != nil {
			return err
		}
		return models.RemoveRedisBoth(order)
	})
}

// settleOrderOutbox marks the order's unsettled outbox events processed. Only
// completion events can be outstanding for an order, everything else settles
// inside its own command transaction.
func settleOrderOutbox(ctx context.Context, tx *gorm.DB, businessId string, orderId int) error {
	now := time.Now().UTC()
	return tx.WithContext(ctx).Model(&models.FulfillmentEventRecord{}).
		Where("business_id = ? AND reference_type = ? AND reference_id = ? AND is_processed = 0",
			businessId, models.FulfillmentReferenceTypeOrder, orderId).
		Updates(map[string]interface{}{
			"is_processed":      true,
			"processed_at":      &now,
			"processing_status": models.OutboxProcessStatusSucceeded,
		}).Error
}
