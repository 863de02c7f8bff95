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

type RegisterPaymentInput struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`

	// set from the Idempotency-Key header, never from the body
	IdempotencyKey string `json:"-"`
}

// RegisterPayment records a later payment against a completed order: the
// received amount grows, the payment fields are rederived and one income
// entry lands in the ledger, all in one transaction. Overpayment is not
// rejected, the order just reads as paid. Orders whose completion entry has
// not settled yet refuse payments so the ledger never interleaves a payment
// under a still-pending completion.
func RegisterPayment(ctx context.Context, orderId int, input *RegisterPaymentInput) (*models.Order, error) {
	logger := config.GetLogger()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be positive")
	}
	if strings.TrimSpace(input.Method) == "" {
		return nil, utils.NewValidationError("method", "is required")
	}

	cmdLock, err := utils.ObtainOrderCommandLock(ctx, businessId, orderId, "registerPayment.go", "RegisterPayment")
	if err != nil {
		return nil, err
	}
	if cmdLock != nil {
		defer utils.ReleaseOrderCommandLock(ctx, cmdLock)
	}

	db := config.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireOrderPostingLock(tx.WithContext(ctx), businessId, orderId); err != nil {
			return err
		}
		defer ReleaseOrderPostingLock(tx.WithContext(ctx), businessId, orderId)

		if input.IdempotencyKey != "" {
			skip, err := BeginIdempotency(tx.WithContext(ctx), businessId, "RegisterPayment", input.IdempotencyKey)
			if err != nil {
				return err
			}
			if skip {
				return nil
			}
		}

		var order models.Order
		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, orderId).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("order", orderId)
			}
			config.LogError(logger, "registerPayment.go", "RegisterPayment > First", "Load order", orderId, err)
			return err
		}
		switch order.Status {
		case models.OrderStatusOpen:
			return utils.NewValidationError("status", "order is not completed yet")
		case models.OrderStatusCanceled:
			return utils.NewValidationError("status", "canceled orders cannot take payments")
		}
		if order.PostingStatus == models.PostingStatusPending ||
			order.PostingStatus == models.PostingStatusPendingReconciliation {
			return utils.NewValidationError("status", "ledger posting for this order is still pending")
		}

		newReceived := order.PaymentReceivedAmount.Add(input.Amount)
		state := DerivePayment(order.TotalAmount, newReceived)

		oldOrder := order
		if err := tx.WithContext(ctx).Model(&order).Updates(map[string]interface{}{
			"PaymentReceivedAmount": newReceived,
			"PaymentStatus":         state.Status,
			"DebtFlag":              state.DebtFlag,
			"PaymentMethod":         input.Method,
		}).Error; err != nil {
			config.LogError(logger, "registerPayment.go", "RegisterPayment > Updates", "Apply payment", order, err)
			return err
		}

		_, err := models.PostFinanceEntry(ctx, tx, businessId, models.FinanceEntryTypeIncome,
			input.Amount, order.CompanyId, nil, &order.ID, "order "+order.OrderNumber+" payment")
		if err != nil {
			config.LogError(logger, "registerPayment.go", "RegisterPayment > PostFinanceEntry", "Post payment entry", order, err)
			return err
		}

		if err := models.PublishFulfillmentSettled(ctx, tx, businessId, time.Now().UTC(), order.ID,
			models.FulfillmentReferenceTypeOrder, order, oldOrder, models.PubSubMessageActionUpdate); err != nil {
			return err
		}

		if input.IdempotencyKey != "" {
			return MarkIdempotencySucceeded(tx.WithContext(ctx), businessId, "RegisterPayment", input.IdempotencyKey)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetOrder(ctx, orderId)
}
