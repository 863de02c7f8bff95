package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

// embedding struct will receive ID field, satisfy Identifier interface
type HasId struct {
	ID int `json:"id"`
}

func (h HasId) GetId() int {
	return h.ID
}

// get AllModelMap for lookups, redis or db
func MapAllModel[ModelT any, AllT Identifier](ctx context.Context) (map[int]*AllT, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// retrieve from redis
	key := utils.GetTypeName[AllT]() + "Map:" + businessId

	var allMap map[int]*AllT

	// retrieve from redis
	if exists, err := config.GetRedisObject(key, &allMap); err != nil {
		return nil, err
	} else if !exists {
		// if the map has not been cached yet
		// fetch resources and constrcut the map, cache the result

		allMap = make(map[int]*AllT)
		var allSlice []*AllT
		db := config.GetDB()
		var m ModelT
		dbCtx := db.WithContext(ctx).Model(&m)
		dbCtx.Where("business_id = ?", businessId)
		if err := dbCtx.Find(&allSlice).Error; err != nil {
			return nil, err
		}

		// fill the map
		for _, allModel := range allSlice {
			allMap[(*allModel).GetId()] = allModel
		}

		// store redis
		var duration time.Duration
		if err := config.SetRedisObject(key, &allMap, duration); err != nil {
			return nil, err
		}
	}

	return allMap, nil
}

type AllCompany struct {
	HasId
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	IsActive bool   `json:"is_active"`
}

type AllWarehouse struct {
	HasId
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type AllProduct struct {
	HasId
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CurrentStock int             `json:"current_stock"`
	IsActive     bool            `json:"is_active"`
}

func ListAllCompany(ctx context.Context) ([]*AllCompany, error) {
	return ListAllResource[Company, AllCompany](ctx)
}

func MapAllCompany(ctx context.Context) (map[int]*AllCompany, error) {
	return MapAllModel[Company, AllCompany](ctx)
}

func ListAllWarehouse(ctx context.Context) ([]*AllWarehouse, error) {
	return ListAllResource[Warehouse, AllWarehouse](ctx)
}

func MapAllWarehouse(ctx context.Context) (map[int]*AllWarehouse, error) {
	return MapAllModel[Warehouse, AllWarehouse](ctx)
}

func ListAllProduct(ctx context.Context) ([]*AllProduct, error) {
	return ListAllResource[Product, AllProduct](ctx)
}

func MapAllProduct(ctx context.Context) (map[int]*AllProduct, error) {
	return MapAllModel[Product, AllProduct](ctx)
}
