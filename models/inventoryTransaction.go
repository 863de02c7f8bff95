package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryTransaction is the append-only stock log. Every change to
// Product.CurrentStock writes exactly one row here; the counter never moves
// on its own.
type InventoryTransaction struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"index;not null" json:"business_id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	ChangeQuantity int             `gorm:"not null" json:"change_quantity"`
	Reason         InventoryReason `gorm:"type:enum('order','restock','correction');default:'correction'" json:"reason"`
	RelatedOrderId *int            `gorm:"index" json:"related_order_id"`
	Comment        string          `gorm:"type:text" json:"comment"`
	CreatedBy      string          `gorm:"size:100" json:"created_by"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type InventoryTransactionsEdge Edge[InventoryTransaction]
type InventoryTransactionsConnection struct {
	Edges    []*InventoryTransactionsEdge `json:"edges"`
	PageInfo *PageInfo                    `json:"pageInfo"`
}

func (t InventoryTransaction) GetId() int {
	return t.ID
}

func (t InventoryTransaction) GetCursor() string {
	return t.CreatedAt.String()
}

func (t *InventoryTransaction) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable stock log: inventory_transactions cannot be updated")
}

// Deleting stock log rows is only legal while an order delete is wiping its
// dependents; the coordinator sets the allow flag on the context for that span.
func (t *InventoryTransaction) BeforeDelete(tx *gorm.DB) error {
	if allow, ok := utils.GetAllowLedgerCleanupFromContext(tx.Statement.Context); ok && allow {
		return nil
	}
	return errors.New("immutable stock log: inventory_transactions cannot be deleted")
}

// ApplyStockChange moves Product.CurrentStock by change and appends the
// matching InventoryTransaction inside the caller's transaction. The product
// row is locked for the span and the counter update is relative, so two
// commands restocking the same product cannot lose writes. A negative
// resulting stock is accepted; oversell surfaces in stock reports instead of
// blocking the sale. STRICT_STOCK_FLOOR flips that policy for order
// fulfillment and rejects the line instead.
func ApplyStockChange(ctx context.Context, tx *gorm.DB, businessId string, productId int, change int, reason InventoryReason, relatedOrderId *int, comment string) (*InventoryTransaction, int, error) {
	if change == 0 {
		return nil, 0, utils.NewValidationError("change_quantity", "must not be zero")
	}

	var product Product
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, productId).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, utils.NewNotFoundError("product", productId)
		}
		return nil, 0, err
	}

	newStock := product.CurrentStock + change
	if newStock < 0 && reason == InventoryReasonOrder && config.StrictStockFloor() {
		return nil, 0, utils.NewValidationError("change_quantity", "insufficient stock")
	}
	if err := tx.WithContext(ctx).
		Exec("UPDATE products SET current_stock = current_stock + ? WHERE id = ?", change, product.ID).Error; err != nil {
		return nil, 0, err
	}

	userName, _ := utils.GetUserNameFromContext(ctx)
	record := InventoryTransaction{
		BusinessId:     businessId,
		ProductId:      productId,
		ChangeQuantity: change,
		Reason:         reason,
		RelatedOrderId: relatedOrderId,
		Comment:        comment,
		CreatedBy:      userName,
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, 0, err
	}

	// the counter moved behind the hooks' back, drop the stale caches
	if err := RemoveRedisBoth(product); err != nil {
		return nil, 0, err
	}

	return &record, newStock, nil
}

func GetInventoryTransactions(ctx context.Context, productId *int, relatedOrderId *int, reason *InventoryReason) ([]*InventoryTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	if relatedOrderId != nil && *relatedOrderId > 0 {
		dbCtx = dbCtx.Where("related_order_id = ?", *relatedOrderId)
	}
	if reason != nil && *reason != "" {
		dbCtx = dbCtx.Where("reason = ?", *reason)
	}

	var results []*InventoryTransaction
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateInventoryTransactions(ctx context.Context, limit *int, after *string, productId *int, reason *InventoryReason) (*InventoryTransactionsConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if productId != nil && *productId > 0 {
		dbCtx.Where("product_id = ?", *productId)
	}
	if reason != nil && *reason != "" {
		dbCtx.Where("reason = ?", *reason)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[InventoryTransaction](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var connection InventoryTransactionsConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		inventoryTransactionsEdge := InventoryTransactionsEdge(edge)
		connection.Edges = append(connection.Edges, &inventoryTransactionsEdge)
	}

	return &connection, err
}
