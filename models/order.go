package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is the fulfillment aggregate. It owns its lines (cascade on delete),
// carries the derived payment columns and moves through open -> completed or
// canceled. Stock and ledger side effects never happen here: creation and
// edits only touch the order rows, the workflow package runs the commands
// that deduct stock and post finance entries.
type Order struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	BusinessId            string          `gorm:"index;not null" json:"business_id"`
	SequenceNo            decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	OrderNumber           string          `gorm:"size:20;not null" json:"order_number"`
	CompanyId             *int            `gorm:"index" json:"company_id"`
	ManualCompany         string          `gorm:"size:100" json:"manual_company"`
	Status                OrderStatus     `gorm:"type:enum('open','completed','canceled');default:'open'" json:"status"`
	PaymentStatus         PaymentStatus   `gorm:"type:enum('unpaid','partially_paid','paid');default:'unpaid'" json:"payment_status"`
	DebtFlag              bool            `gorm:"not null;default:false" json:"debt_flag"`
	TotalQuantity         int             `gorm:"not null;default:0" json:"total_quantity"`
	TotalAmount           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	PaymentReceivedAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"payment_received_amount"`
	PaymentMethod         string          `gorm:"size:100" json:"payment_method"`
	PostingStatus         PostingStatus   `gorm:"size:30;default:''" json:"posting_status"`
	Notes                 string          `gorm:"type:text" json:"notes"`
	Lines                 []OrderLine     `gorm:"foreignkey:OrderId" json:"lines"`
	Documents             []*Document     `gorm:"polymorphic:Reference" json:"documents"`
	CompletedAt           *time.Time      `json:"completed_at"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderLine snapshots the product name and unit price at order time so later
// product edits don't rewrite history. LineTotal is always quantity * unit
// price; returns shrink Quantity and recompute it.
type OrderLine struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderId     int             `gorm:"index;not null" json:"order_id"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	ProductName string          `gorm:"size:100" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrder struct {
	CompanyId     *int           `json:"company_id"`
	ManualCompany string         `json:"manual_company"`
	Notes         string         `json:"notes"`
	Lines         []NewOrderLine `json:"lines"`
	Documents     []*NewDocument `json:"documents"`
}

type NewOrderLine struct {
	HasId
	ProductId int              `json:"product_id" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type OrdersEdge Edge[Order]
type OrdersConnection struct {
	Edges    []*OrdersEdge `json:"edges"`
	PageInfo *PageInfo     `json:"pageInfo"`
}

func (o Order) GetId() int {
	return o.ID
}

func (o Order) GetCursor() string {
	return o.CreatedAt.String()
}

func (l OrderLine) GetId() int {
	return l.ID
}

func (l OrderLine) fillable() map[string]interface{} {
	return map[string]interface{}{
		"ProductId":   l.ProductId,
		"ProductName": l.ProductName,
		"Quantity":    l.Quantity,
		"UnitPrice":   l.UnitPrice,
		"LineTotal":   l.LineTotal,
	}
}

func (input *NewOrder) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Order](ctx, businessId, id); err != nil {
			return err
		}
	}
	// the counterparty is either a registered company or a free-text name,
	// never both and never neither
	hasCompany := input.CompanyId != nil && *input.CompanyId > 0
	hasManual := len(strings.TrimSpace(input.ManualCompany)) > 0
	if hasCompany && hasManual {
		return utils.NewValidationError("company_id", "company_id and manual_company cannot both be set")
	}
	if !hasCompany && !hasManual {
		return utils.NewValidationError("company_id", "either company_id or manual_company is required")
	}
	if hasCompany {
		if err := utils.ValidateResourceId[Company](ctx, businessId, *input.CompanyId); err != nil {
			return errors.New("company not found")
		}
	}
	return nil
}

// receiveOrderLines maps input lines to rows, snapshotting product name and
// price and accumulating the order totals. A missing unit_price falls back to
// the product's current price.
func receiveOrderLines(ctx context.Context, businessId string, input *NewOrder, orderId int) ([]OrderLine, int, decimal.Decimal, error) {
	lines := make([]OrderLine, 0)
	totalQuantity := 0
	totalAmount := decimal.NewFromInt(0)
	for _, l := range input.Lines {
		if l.Quantity <= 0 {
			return lines, totalQuantity, totalAmount, utils.NewValidationError("quantity", "must be a positive integer")
		}
		product, err := utils.FetchModel[Product](ctx, businessId, l.ProductId)
		if err != nil {
			return lines, totalQuantity, totalAmount, utils.NewNotFoundError("product", l.ProductId)
		}
		unitPrice := product.UnitPrice
		if l.UnitPrice != nil {
			unitPrice = *l.UnitPrice
		}
		if unitPrice.IsNegative() {
			return lines, totalQuantity, totalAmount, utils.NewValidationError("unit_price", "must not be negative")
		}
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		totalQuantity += l.Quantity
		totalAmount = totalAmount.Add(lineTotal)
		lines = append(lines, OrderLine{
			ID:          l.ID,
			OrderId:     orderId,
			ProductId:   l.ProductId,
			ProductName: product.Name,
			Quantity:    l.Quantity,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
		})
	}
	return lines, totalQuantity, totalAmount, nil
}

func upsertOrderLines(ctx context.Context, tx *gorm.DB, input []OrderLine, orderId int) error {
	return ReplaceAssociation(ctx, tx, input, "order_id = ?", orderId)
}

// CreateOrder opens a new order. Zero lines is allowed here, the completion
// command rejects empty orders before any stock moves.
func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}
	lines, totalQuantity, totalAmount, err := receiveOrderLines(ctx, businessId, input, 0)
	if err != nil {
		return nil, err
	}
	documents, err := mapNewDocuments(input.Documents, "orders", 0)
	if err != nil {
		return nil, err
	}

	order := Order{
		BusinessId:            businessId,
		CompanyId:             input.CompanyId,
		ManualCompany:         input.ManualCompany,
		Status:                OrderStatusOpen,
		PaymentStatus:         PaymentStatusUnpaid,
		TotalQuantity:         totalQuantity,
		TotalAmount:           totalAmount,
		PaymentReceivedAmount: decimal.NewFromInt(0),
		Notes:                 input.Notes,
		Lines:                 lines,
		Documents:             documents,
	}
	seqNo, err := utils.GetSequence[Order](ctx, businessId)
	if err != nil {
		return nil, err
	}
	order.SequenceNo = decimal.NewFromInt(seqNo)
	order.OrderNumber = utils.FormatSequence("ORD", seqNo)

	db := config.GetDB()
	// db action
	tx := db.Begin()
	err = tx.WithContext(ctx).Create(&order).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	err = PublishFulfillmentSettled(ctx, tx, businessId, order.CreatedAt, order.ID, FulfillmentReferenceTypeOrder, order, nil, PubSubMessageActionCreate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrder edits an open order: header fields plus a full line diff
// (insert new, update kept, delete missing). Completed and canceled orders
// only change through the fulfillment commands.
func UpdateOrder(ctx context.Context, id int, input *NewOrder) (*Order, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	order, err := utils.FetchModel[Order](ctx, businessId, id, "Lines")
	if err != nil {
		return nil, err
	}
	if order.Status != OrderStatusOpen {
		return nil, errors.New("only open orders can be edited")
	}

	lines, totalQuantity, totalAmount, err := receiveOrderLines(ctx, businessId, input, id)
	if err != nil {
		return nil, err
	}
	oldOrder := *order

	db := config.GetDB()
	// db action
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&order).Updates(map[string]interface{}{
		"CompanyId":     input.CompanyId,
		"ManualCompany": input.ManualCompany,
		"Notes":         input.Notes,
		"TotalQuantity": totalQuantity,
		"TotalAmount":   totalAmount,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := upsertOrderLines(ctx, tx, lines, id); err != nil {
		tx.Rollback()
		return nil, err
	}

	documents, err := upsertDocuments(ctx, tx, input.Documents, "orders", id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	order.Lines = lines
	order.Documents = documents
	err = PublishFulfillmentSettled(ctx, tx, businessId, order.CreatedAt, order.ID, FulfillmentReferenceTypeOrder, order, oldOrder, PubSubMessageActionUpdate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	return GetResource[Order](ctx, id, "Lines", "Documents")
}

// GetOrdersByCompany lists every order attached to a registered company,
// oldest first. Used by the bulk clear maintenance job.
func GetOrdersByCompany(ctx context.Context, companyId int) ([]*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Order
	err := db.WithContext(ctx).Preload("Lines").
		Where("business_id = ? AND company_id = ?", businessId, companyId).
		Order("id").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateOrders(ctx context.Context, limit *int, after *string, orderNumber *string, status *OrderStatus, companyId *int, fromDate *MyDateString, toDate *MyDateString) (*OrdersConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	business, err := GetBusiness(ctx)
	if err != nil {
		return nil, errors.New("business id is required")
	}
	if err := fromDate.StartOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}
	if err := toDate.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Preload("Lines").Where("business_id = ?", businessId)
	if orderNumber != nil && *orderNumber != "" {
		dbCtx.Where("order_number LIKE ?", "%"+*orderNumber+"%")
	}
	if status != nil && *status != "" {
		dbCtx.Where("status = ?", *status)
	}
	if companyId != nil && *companyId > 0 {
		dbCtx.Where("company_id = ?", *companyId)
	}
	if fromDate != nil && toDate != nil {
		dbCtx.Where("created_at BETWEEN ? AND ?", time.Time(*fromDate), time.Time(*toDate))
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Order](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var ordersConnection OrdersConnection
	ordersConnection.PageInfo = pageInfo
	for _, edge := range edges {
		ordersEdge := OrdersEdge(edge)
		ordersConnection.Edges = append(ordersConnection.Edges, &ordersEdge)
	}

	return &ordersConnection, err
}
