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

// CancelOrder cancels an open or completed order. A completed order already
// took stock out, so every line's quantity goes back before the status flip;
// an open order deducted nothing and flips directly. The whole command is one
// transaction: a failed stock restore aborts the cancellation. Ledger entries
// posted at completion stay in place, the ledger is history, not state.
func CancelOrder(ctx context.Context, orderId int) (*models.Order, error) {
	logger := config.GetLogger()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	cmdLock, err := utils.ObtainOrderCommandLock(ctx, businessId, orderId, "cancelOrder.go", "CancelOrder")
	if err != nil {
		return nil, err
	}
	if cmdLock != nil {
		defer utils.ReleaseOrderCommandLock(ctx, cmdLock)
	}

	db := config.GetDB()
	var order models.Order
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireOrderPostingLock(tx.WithContext(ctx), businessId, orderId); err != nil {
			return err
		}
		defer ReleaseOrderPostingLock(tx.WithContext(ctx), businessId, orderId)

		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Lines").
			Where("business_id = ? AND id = ?", businessId, orderId).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("order", orderId)
			}
			config.LogError(logger, "cancelOrder.go", "CancelOrder > First", "Load order", orderId, err)
			return err
		}
		if order.Status == models.OrderStatusCanceled {
			return utils.NewValidationError("status", "order is already canceled")
		}

		if order.Status == models.OrderStatusCompleted {
			for _, line := range order.Lines {
				_, _, err := models.ApplyStockChange(ctx, tx, businessId, line.ProductId, line.Quantity,
					models.InventoryReasonCorrection, &order.ID, "order "+order.OrderNumber+" cancellation")
				if err != nil {
					config.LogError(logger, "cancelOrder.go", "CancelOrder > ApplyStockChange", "Restore line stock", line, err)
					return err
				}
			}
		}

		// an unsettled completion posting is superseded by the cancellation
		postingStatus := order.PostingStatus
		if postingStatus != models.PostingStatusPosted {
			postingStatus = models.PostingStatusNone
		}

		oldOrder := order
		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Model(&order).Updates(map[string]interface{}{
			"Status":        models.OrderStatusCanceled,
			"CompletedAt":   nil,
			"PostingStatus": postingStatus,
		}).Error; err != nil {
			config.LogError(logger, "cancelOrder.go", "CancelOrder > Updates", "Cancel order", order, err)
			return err
		}
		order.CompletedAt = nil

		if err := settleOrderOutbox(ctx, tx, businessId, order.ID); err != nil {
			return err
		}
		return models.PublishFulfillmentSettled(ctx, tx, businessId, now, order.ID,
			models.FulfillmentReferenceTypeOrder, order, oldOrder, models.PubSubMessageActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}
