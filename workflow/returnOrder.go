package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReturnLine struct {
	LineId   int `json:"line_id"`
	Quantity int `json:"quantity"`
}

// ReturnItems takes back part of a completed order. Every returned quantity
// goes back into stock, the touched lines shrink or disappear, the order
// totals are recomputed from the surviving lines and one compensating expense
// entry of minus the return total lands in the ledger, all in one
// transaction. Returns against open or canceled orders are rejected, as is
// any quantity above what the line still carries. When a prior payment now
// exceeds the reduced total the order simply reads as paid; no refund entry
// is posted here.
func ReturnItems(ctx context.Context, orderId int, returns []ReturnLine) (*models.Order, error) {
	logger := config.GetLogger()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if len(returns) == 0 {
		return nil, utils.NewValidationError("lines", "at least one return line is required")
	}

	cmdLock, err := utils.ObtainOrderCommandLock(ctx, businessId, orderId, "returnOrder.go", "ReturnItems")
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

		var order models.Order
		if err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Lines").
			Where("business_id = ? AND id = ?", businessId, orderId).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("order", orderId)
			}
			config.LogError(logger, "returnOrder.go", "ReturnItems > First", "Load order", orderId, err)
			return err
		}
		if order.Status != models.OrderStatusCompleted {
			return utils.NewValidationError("status", "only completed orders can take returns")
		}
		if order.PostingStatus == models.PostingStatusPending ||
			order.PostingStatus == models.PostingStatusPendingReconciliation {
			return utils.NewValidationError("status", "ledger posting for this order is still pending")
		}

		lineIdx := map[int]int{}
		for i, line := range order.Lines {
			lineIdx[line.ID] = i
		}

		// validate everything before the first write
		returnTotal := decimal.Zero
		returnQty := map[int]int{}
		for _, ret := range returns {
			if ret.Quantity < 0 {
				return utils.NewValidationError("quantity", "return quantity cannot be negative")
			}
			if ret.Quantity == 0 {
				continue
			}
			i, found := lineIdx[ret.LineId]
			if !found {
				return utils.NewNotFoundError("order line", ret.LineId)
			}
			line := order.Lines[i]
			already := returnQty[ret.LineId]
			if already+ret.Quantity > line.Quantity {
				return utils.NewValidationError("quantity",
					fmt.Sprintf("cannot return %d of line %d, only %d remaining", already+ret.Quantity, ret.LineId, line.Quantity))
			}
			returnQty[ret.LineId] = already + ret.Quantity
			returnTotal = returnTotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(ret.Quantity))))
		}
		if len(returnQty) == 0 {
			return utils.NewValidationError("lines", "nothing to return")
		}

		deleted := map[int]bool{}
		for lineId, qty := range returnQty {
			i := lineIdx[lineId]
			line := order.Lines[i]
			newQty := line.Quantity - qty
			if newQty <= 0 {
				if err := tx.WithContext(ctx).Delete(&line).Error; err != nil {
					config.LogError(logger, "returnOrder.go", "ReturnItems > Delete", "Delete returned line", line, err)
					return err
				}
				deleted[lineId] = true
			} else {
				newLineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(newQty)))
				if err := tx.WithContext(ctx).Model(&line).Updates(map[string]interface{}{
					"Quantity":  newQty,
					"LineTotal": newLineTotal,
				}).Error; err != nil {
					config.LogError(logger, "returnOrder.go", "ReturnItems > Updates", "Shrink returned line", line, err)
					return err
				}
				order.Lines[i].Quantity = newQty
				order.Lines[i].LineTotal = newLineTotal
			}
			_, _, err := models.ApplyStockChange(ctx, tx, businessId, line.ProductId, qty,
				models.InventoryReasonCorrection, &order.ID, "order "+order.OrderNumber+" return")
			if err != nil {
				config.LogError(logger, "returnOrder.go", "ReturnItems > ApplyStockChange", "Restore returned stock", line, err)
				return err
			}
		}

		totalQuantity := 0
		totalAmount := decimal.Zero
		surviving := make([]models.OrderLine, 0, len(order.Lines))
		for _, line := range order.Lines {
			if deleted[line.ID] {
				continue
			}
			totalQuantity += line.Quantity
			totalAmount = totalAmount.Add(line.LineTotal)
			surviving = append(surviving, line)
		}
		state := DerivePayment(totalAmount, order.PaymentReceivedAmount)

		oldOrder := order
		if err := tx.WithContext(ctx).Model(&order).Updates(map[string]interface{}{
			"TotalQuantity": totalQuantity,
			"TotalAmount":   totalAmount,
			"PaymentStatus": state.Status,
			"DebtFlag":      state.DebtFlag,
		}).Error; err != nil {
			config.LogError(logger, "returnOrder.go", "ReturnItems > Updates", "Recompute order totals", order, err)
			return err
		}
		order.Lines = surviving

		_, err := models.PostFinanceEntry(ctx, tx, businessId, models.FinanceEntryTypeExpense,
			returnTotal.Neg(), order.CompanyId, nil, &order.ID, "order "+order.OrderNumber+" return")
		if err != nil {
			config.LogError(logger, "returnOrder.go", "ReturnItems > PostFinanceEntry", "Post return entry", order, err)
			return err
		}

		return models.PublishFulfillmentSettled(ctx, tx, businessId, time.Now().UTC(), order.ID,
			models.FulfillmentReferenceTypeOrder, order, oldOrder, models.PubSubMessageActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return models.GetOrder(ctx, orderId)
}
