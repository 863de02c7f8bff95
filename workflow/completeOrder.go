package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CompleteOrderInput struct {
	Received bool            `json:"received"`
	Amount   decimal.Decimal `json:"amount"`
	Method   string          `json:"method"`
	// Optional client key from the Idempotency-Key header; a repeated complete
	// with the same key returns the stored outcome instead of double posting.
	IdempotencyKey string `json:"-"`
}

// CompleteOrder runs the open -> completed transition in two phases.
// Phase 1, one transaction: deduct stock per line (a failed line is collected
// and skipped, the rest continue), flip the order to completed with the
// derived payment columns, append the outbox event. Phase 2, a separate
// transaction: post the single completion finance entry (income of the amount
// received, else expense of the full total). A phase 2 failure leaves the
// committed stock and order state standing, marks the order
// pending_reconciliation and surfaces an InconsistencyError, because at that
// point "nothing happened" would be a lie.
func CompleteOrder(ctx context.Context, orderId int, input *CompleteOrderInput) (*models.Order, error) {
	logger := config.GetLogger()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// reject before any write
	if input.Received {
		if !input.Amount.IsPositive() {
			return nil, utils.NewValidationError("amount", "must be positive when payment is received")
		}
		if strings.TrimSpace(input.Method) == "" {
			return nil, utils.NewValidationError("method", "is required when payment is received")
		}
	}

	cmdLock, err := utils.ObtainOrderCommandLock(ctx, businessId, orderId, "completeOrder.go", "CompleteOrder")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseOrderCommandLock(ctx, cmdLock)

	db := config.GetDB()
	var order models.Order
	var lineErrors []utils.LineError
	var alreadyDone bool

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireOrderPostingLock(tx.WithContext(ctx), businessId, orderId); err != nil {
			return err
		}
		defer ReleaseOrderPostingLock(tx.WithContext(ctx), businessId, orderId)

		if input.IdempotencyKey != "" {
			skip, err := BeginIdempotency(tx.WithContext(ctx), businessId, "CompleteOrder", input.IdempotencyKey)
			if err != nil {
				return err
			}
			if skip {
				alreadyDone = true
				return nil
			}
		}

		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Lines").
			Where("business_id = ? AND id = ?", businessId, orderId).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("order", orderId)
			}
			return err
		}
		if order.Status != models.OrderStatusOpen {
			return utils.NewValidationError("status", "only open orders can be completed")
		}
		if len(order.Lines) == 0 {
			return utils.NewValidationError("lines", "cannot complete an order with zero lines")
		}

		// stock pass: one failed line must not abort the remaining lines
		for _, line := range order.Lines {
			_, _, err := models.ApplyStockChange(ctx, tx, businessId, line.ProductId, -line.Quantity,
				models.InventoryReasonOrder, &order.ID, "order "+order.OrderNumber+" fulfillment")
			if err != nil {
				config.LogError(logger, "completeOrder.go", "CompleteOrder", "ApplyStockChange", line, err)
				lineErrors = append(lineErrors, utils.LineError{LineId: line.ID, ProductId: line.ProductId, Message: err.Error()})
			}
		}

		paymentReceived := decimal.NewFromInt(0)
		if input.Received {
			paymentReceived = input.Amount
		}
		state := DerivePayment(order.TotalAmount, paymentReceived)

		oldOrder := order
		now := time.Now().UTC()
		updates := map[string]interface{}{
			"Status":                models.OrderStatusCompleted,
			"CompletedAt":           &now,
			"PaymentStatus":         state.Status,
			"DebtFlag":              state.DebtFlag,
			"PaymentReceivedAmount": paymentReceived,
			"PostingStatus":         models.PostingStatusPending,
		}
		if input.Received {
			updates["PaymentMethod"] = input.Method
		}
		if err := tx.WithContext(ctx).Model(&order).Updates(updates).Error; err != nil {
			return err
		}

		if err := models.PublishFulfillment(ctx, tx, businessId, now, order.ID,
			models.FulfillmentReferenceTypeOrder, order, oldOrder, models.PubSubMessageActionUpdate); err != nil {
			return err
		}

		if input.IdempotencyKey != "" {
			return MarkIdempotencySucceeded(tx.WithContext(ctx), businessId, "CompleteOrder", input.IdempotencyKey)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyDone {
		return models.GetOrder(ctx, orderId)
	}

	// phase 2: stock and the order row are committed at this point
	if postErr := PostCompletionEntry(ctx, orderId); postErr != nil {
		config.LogError(logger, "completeOrder.go", "CompleteOrder", "PostCompletionEntry", orderId, postErr)
		if err := db.Model(&models.Order{}).Where("business_id = ? AND id = ?", businessId, orderId).
			UpdateColumn("posting_status", models.PostingStatusPendingReconciliation).Error; err != nil {
			config.LogError(logger, "completeOrder.go", "CompleteOrder", "MarkPendingReconciliation", orderId, err)
		}
		if err := models.RemoveRedisBoth(order); err != nil {
			config.LogError(logger, "completeOrder.go", "CompleteOrder", "RemoveRedisBoth", orderId, err)
		}
		return &order, utils.NewInconsistencyError(order.ID, "finance entry", postErr)
	}

	order.PostingStatus = models.PostingStatusPosted

	if len(lineErrors) > 0 {
		return &order, &utils.PartialWriteError{OrderId: order.ID, LineErrors: lineErrors}
	}
	return &order, nil
}
