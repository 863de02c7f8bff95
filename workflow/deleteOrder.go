package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeleteOrder removes an order and everything hanging off it: ledger entries,
// stock log rows, lines and attached documents, then the order itself, in one
// transaction. Legal from any state. This is bookkeeping removal, not a
// cancellation, so stock counters are left alone; cancel first when the goods
// should come back. The ledger rows only come out because the cleanup flag in
// the context opens the immutability gate for the span of this command.
func DeleteOrder(ctx context.Context, orderId int) error {
	logger := config.GetLogger()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}

	cmdLock, err := utils.ObtainOrderCommandLock(ctx, businessId, orderId, "deleteOrder.go", "DeleteOrder")
	if err != nil {
		return err
	}
	if cmdLock != nil {
		defer utils.ReleaseOrderCommandLock(ctx, cmdLock)
	}

	db := config.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireOrderPostingLock(tx.WithContext(ctx), businessId, orderId); err != nil {
			return err
		}
		defer ReleaseOrderPostingLock(tx.WithContext(ctx), businessId, orderId)

		var order models.Order
		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Lines").Preload("Documents").
			Where("business_id = ? AND id = ?", businessId, orderId).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("order", orderId)
			}
			config.LogError(logger, "deleteOrder.go", "DeleteOrder > First", "Load order", orderId, err)
			return err
		}

		cleanupCtx := utils.SetAllowLedgerCleanupInContext(ctx, true)
		if err := tx.WithContext(cleanupCtx).
			Where("business_id = ? AND related_order_id = ?", businessId, order.ID).
			Delete(&models.FinanceEntry{}).Error; err != nil {
			config.LogError(logger, "deleteOrder.go", "DeleteOrder > Delete", "Delete finance entries", order, err)
			return err
		}
		if err := tx.WithContext(cleanupCtx).
			Where("business_id = ? AND related_order_id = ?", businessId, order.ID).
			Delete(&models.InventoryTransaction{}).Error; err != nil {
			config.LogError(logger, "deleteOrder.go", "DeleteOrder > Delete", "Delete stock log rows", order, err)
			return err
		}
		// one by one so the history hooks see real line ids
		for i := range order.Lines {
			if err := tx.WithContext(ctx).Delete(&order.Lines[i]).Error; err != nil {
				config.LogError(logger, "deleteOrder.go", "DeleteOrder > Delete", "Delete order line", order.Lines[i], err)
				return err
			}
		}
		for _, document := range order.Documents {
			if err := document.Delete(tx, ctx); err != nil {
				config.LogError(logger, "deleteOrder.go", "DeleteOrder > Document.Delete", "Delete order document", document, err)
				return err
			}
		}
		if err := tx.WithContext(ctx).Delete(&order).Error; err != nil {
			config.LogError(logger, "deleteOrder.go", "DeleteOrder > Delete", "Delete order", order, err)
			return err
		}

		if err := settleOrderOutbox(ctx, tx, businessId, order.ID); err != nil {
			return err
		}
		return models.PublishFulfillmentSettled(ctx, tx, businessId, time.Now().UTC(), order.ID,
			models.FulfillmentReferenceTypeOrder, order, nil, models.PubSubMessageActionDelete)
	})
}
