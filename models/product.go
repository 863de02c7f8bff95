package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// Product carries the authoritative stock counter. CurrentStock only moves
// through ApplyStockChange so the inventory_transactions log stays complete;
// fulfillment, restock and manual correction all share that path.
type Product struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	WarehouseId  int             `gorm:"index" json:"warehouse_id"`
	Name         string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Description  string          `gorm:"type:text" json:"description"`
	Sku          string          `gorm:"size:100" json:"sku"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	CurrentStock int             `gorm:"not null;default:0" json:"current_stock"`
	Images       []*Image        `gorm:"polymorphic:Reference" json:"images"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	Sku          string          `json:"sku"`
	WarehouseId  int             `json:"warehouse_id"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	OpeningStock int             `json:"opening_stock"`
	Images       []*NewImage     `json:"image_urls"`
}

type ProductsEdge Edge[Product]

type ProductsConnection struct {
	Edges    []*ProductsEdge `json:"edges"`
	PageInfo *PageInfo       `json:"pageInfo"`
}

func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetCursor() string {
	return p.CreatedAt.String()
}

func (input *NewProduct) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Product](ctx, businessId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Product](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if len(strings.TrimSpace(input.Sku)) > 0 {
		if err := utils.ValidateUnique[Product](ctx, businessId, "sku", input.Sku, id); err != nil {
			return err
		}
	}
	// exists warehouse
	if input.WarehouseId > 0 {
		if err := utils.ValidateResourceId[Warehouse](ctx, businessId, input.WarehouseId); err != nil {
			return errors.New("warehouse not found")
		}
	}
	if input.UnitPrice.IsNegative() {
		return utils.NewValidationError("unit_price", "must not be negative")
	}
	if input.OpeningStock < 0 {
		return utils.NewValidationError("opening_stock", "must not be negative")
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	// validate product
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	// construct Images
	images, err := mapNewImages(input.Images, "products", 0)
	if err != nil {
		return nil, err
	}

	product := Product{
		BusinessId:  businessId,
		WarehouseId: input.WarehouseId,
		Name:        input.Name,
		Description: input.Description,
		Sku:         input.Sku,
		UnitPrice:   input.UnitPrice,
		IsActive:    utils.NewTrue(),
		Images:      images,
	}

	db := config.GetDB()
	tx := db.Begin()

	err = tx.WithContext(ctx).Create(&product).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// opening stock goes through the stock log like any other movement
	if input.OpeningStock > 0 {
		record, newStock, err := ApplyStockChange(ctx, tx, businessId, product.ID, input.OpeningStock, InventoryReasonCorrection, nil, "opening stock")
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		err = PublishFulfillmentSettled(ctx, tx, businessId, time.Now(), record.ID, FulfillmentReferenceTypeStockCorrection, record, nil, PubSubMessageActionCreate)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		product.CurrentStock = newStock
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	return &product, nil
}

// UpdateProduct edits the catalog fields. CurrentStock is deliberately absent
// from the update map; stock moves only through RestockProduct / CorrectStock
// and the fulfillment commands.
func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"WarehouseId": input.WarehouseId,
		"Name":        input.Name,
		"Description": input.Description,
		"Sku":         input.Sku,
		"UnitPrice":   input.UnitPrice,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// updating related tables
	images, err := UpsertImages(ctx, tx, input.Images, "products", id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	product.Images = images

	if err = tx.Commit().Error; err != nil {
		return nil, err
	}

	return product, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Product](ctx, businessId, id, "Images")
	if err != nil {
		return nil, err
	}

	// a product with stock movements or order lines stays; the log is append-only
	count, err := utils.ResourceCountWhere[InventoryTransaction](ctx, businessId, "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("stock movements already exist")
	}
	count, err = utils.ResourceCountWhere[OrderLine](ctx, "", "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("order lines already exist")
	}

	db := config.GetDB()
	tx := db.Begin()

	for _, img := range result.Images {
		if err := img.Delete(tx, ctx); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// db action
	err = tx.WithContext(ctx).Delete(&result).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return result, nil
}

// RestockProduct adds qty units and logs a restock movement.
func RestockProduct(ctx context.Context, id int, qty int, comment string) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if qty <= 0 {
		return nil, utils.NewValidationError("qty", "must be positive")
	}

	db := config.GetDB()
	tx := db.Begin()

	record, _, err := ApplyStockChange(ctx, tx, businessId, id, qty, InventoryReasonRestock, nil, comment)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	err = PublishFulfillmentSettled(ctx, tx, businessId, time.Now(), record.ID, FulfillmentReferenceTypeStockCorrection, record, nil, PubSubMessageActionCreate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	return GetProduct(ctx, id)
}

// CorrectStock applies a signed manual adjustment (shrinkage, recount).
func CorrectStock(ctx context.Context, id int, delta int, comment string) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if delta == 0 {
		return nil, utils.NewValidationError("delta", "must not be zero")
	}

	db := config.GetDB()
	tx := db.Begin()

	record, _, err := ApplyStockChange(ctx, tx, businessId, id, delta, InventoryReasonCorrection, nil, comment)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	err = PublishFulfillmentSettled(ctx, tx, businessId, time.Now(), record.ID, FulfillmentReferenceTypeStockCorrection, record, nil, PubSubMessageActionCreate)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	return GetProduct(ctx, id)
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return GetResource[Product](ctx, id)
}

func GetProducts(ctx context.Context, name *string) ([]*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Product

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[Product](ctx, businessId, id, isActive)
}

func PaginateProduct(ctx context.Context, limit *int, after *string, name *string, sku *string) (*ProductsConnection, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db := config.GetDB()
	dbCtx := db.WithContext(ctxWithTimeout).Model(&Product{}).Where("business_id = ?", businessId)

	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if sku != nil && *sku != "" {
		dbCtx.Where("sku = ?", *sku)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Product](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var productConnection ProductsConnection
	productConnection.PageInfo = pageInfo
	for _, edge := range edges {
		productEdge := ProductsEdge(edge)
		productConnection.Edges = append(productConnection.Edges, &productEdge)
	}

	return &productConnection, nil
}
