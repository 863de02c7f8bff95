package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
)

// Company is the counterparty registry: who an order is sold to and which
// scope a ledger entry is attributed to.
type Company struct {
	ID         int         `gorm:"primary_key" json:"id"`
	BusinessId string      `gorm:"index;not null" json:"business_id"`
	Name       string      `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      string      `gorm:"size:100" json:"email"`
	Phone      string      `gorm:"size:20" json:"phone"`
	Address    string      `gorm:"type:text" json:"address"`
	Notes      string      `gorm:"type:text" json:"notes"`
	Documents  []*Document `gorm:"polymorphic:Reference" json:"documents"`
	IsActive   *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCompany struct {
	Name      string         `json:"name" binding:"required"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Address   string         `json:"address"`
	Notes     string         `json:"notes"`
	Documents []*NewDocument `json:"documents"`
}

type CompaniesEdge Edge[Company]
type CompaniesConnection struct {
	Edges    []*CompaniesEdge `json:"edges"`
	PageInfo *PageInfo        `json:"pageInfo"`
}

func (c Company) GetId() int {
	return c.ID
}

func (c Company) GetCursor() string {
	return c.CreatedAt.String()
}

func (input *NewCompany) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Company](ctx, businessId, id); err != nil {
			return err
		}
	}
	// validate unique name
	if err := utils.ValidateUnique[Company](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	// validate email
	if input.Email != "" {
		if !utils.IsValidEmail(input.Email) {
			return errors.New("invalid email address")
		}
		if err := utils.ValidateUnique[Company](ctx, businessId, "email", input.Email, id); err != nil {
			return err
		}
	}
	// validate phone
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, "MM"); err != nil {
			return err
		}
		if err := utils.ValidateUnique[Company](ctx, businessId, "phone", input.Phone, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateCompany(ctx context.Context, input *NewCompany) (*Company, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	documents, err := mapNewDocuments(input.Documents, "companies", 0)
	if err != nil {
		return nil, err
	}

	company := Company{
		BusinessId: businessId,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		Address:    input.Address,
		Notes:      input.Notes,
		Documents:  documents,
		IsActive:   utils.NewTrue(),
	}

	tx := db.Begin()
	err = tx.WithContext(ctx).Create(&company).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err = tx.Commit().Error; err != nil {
		return nil, err
	}

	return &company, nil
}

func UpdateCompany(ctx context.Context, id int, input *NewCompany) (*Company, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	company, err := utils.FetchModel[Company](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&company).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Email":   input.Email,
		"Phone":   input.Phone,
		"Address": input.Address,
		"Notes":   input.Notes,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// updating related tables
	documents, err := upsertDocuments(ctx, tx, input.Documents, "companies", id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	company.Documents = documents

	if err = tx.Commit().Error; err != nil {
		return nil, err
	}

	return company, nil
}

func DeleteCompany(ctx context.Context, id int) (*Company, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	result, err := utils.FetchModel[Company](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// don't delete a company that orders or ledger entries still reference
	count, err := utils.ResourceCountWhere[Order](ctx, businessId, "company_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("company has orders")
	}
	count, err = utils.ResourceCountWhere[FinanceEntry](ctx, businessId, "company_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("company has ledger entries")
	}

	tx := db.Begin()
	err = tx.WithContext(ctx).Delete(&result).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err = tx.Commit().Error; err != nil {
		return nil, err
	}

	return result, nil
}

func GetCompany(ctx context.Context, id int) (*Company, error) {
	return GetResource[Company](ctx, id)
}

func ListCompanies(ctx context.Context, name *string) ([]*Company, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Company

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

func PaginateCompanies(ctx context.Context, limit *int, after *string, name *string) (*CompaniesConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Company](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var companiesConnection CompaniesConnection
	companiesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		companiesEdge := CompaniesEdge(edge)
		companiesConnection.Edges = append(companiesConnection.Edges, &companiesEdge)
	}

	return &companiesConnection, err
}

func ToggleActiveCompany(ctx context.Context, id int, isActive bool) (*Company, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return ToggleActiveModel[Company](ctx, businessId, id, isActive)
}
