package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FinanceEntry is the append-only ledger. Entries are never edited: a wrong
// posting is corrected by a compensating entry, and the only deletion path is
// a full order delete wiping its dependents. The signed amount together with
// EntryType carries the semantics: an expense tagged with a related order is
// outstanding debt, a negative expense is a return credit.
type FinanceEntry struct {
	ID             int              `gorm:"primary_key" json:"id"`
	BusinessId     string           `gorm:"index;not null" json:"business_id"`
	EntryType      FinanceEntryType `gorm:"type:enum('income','expense');not null" json:"entry_type"`
	Amount         decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"amount"`
	CompanyId      *int             `gorm:"index" json:"company_id"`
	WarehouseId    *int             `gorm:"index" json:"warehouse_id"`
	RelatedOrderId *int             `gorm:"index" json:"related_order_id"`
	Comment        string           `gorm:"type:text" json:"comment"`
	EntryDate      time.Time        `gorm:"not null;index" json:"entry_date"`
	CreatedBy      string           `gorm:"size:100" json:"created_by"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

type NewFinanceEntry struct {
	EntryType   FinanceEntryType `json:"entry_type" binding:"required"`
	Amount      decimal.Decimal  `json:"amount" binding:"required"`
	CompanyId   *int             `json:"company_id"`
	WarehouseId *int             `json:"warehouse_id"`
	Comment     string           `json:"comment"`
	EntryDate   *MyDateString    `json:"entry_date"`
}

type FinanceEntriesEdge Edge[FinanceEntry]
type FinanceEntriesConnection struct {
	Edges    []*FinanceEntriesEdge `json:"edges"`
	PageInfo *PageInfo             `json:"pageInfo"`
}

func (e FinanceEntry) GetId() int {
	return e.ID
}

func (e FinanceEntry) GetCursor() string {
	return e.EntryDate.String()
}

func (e *FinanceEntry) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: finance_entries cannot be updated")
}

// Same rule as the stock log: rows only disappear while an order delete is
// wiping its dependents.
func (e *FinanceEntry) BeforeDelete(tx *gorm.DB) error {
	if allow, ok := utils.GetAllowLedgerCleanupFromContext(tx.Statement.Context); ok && allow {
		return nil
	}
	return errors.New("immutable ledger: finance_entries cannot be deleted")
}

// PostFinanceEntry appends one ledger row inside the caller's transaction.
// No sign check here: fulfillment posts negative expense amounts for returns.
func PostFinanceEntry(ctx context.Context, tx *gorm.DB, businessId string, entryType FinanceEntryType, amount decimal.Decimal, companyId *int, warehouseId *int, relatedOrderId *int, comment string) (*FinanceEntry, error) {

	userName, _ := utils.GetUserNameFromContext(ctx)
	entry := FinanceEntry{
		BusinessId:     businessId,
		EntryType:      entryType,
		Amount:         amount,
		CompanyId:      companyId,
		WarehouseId:    warehouseId,
		RelatedOrderId: relatedOrderId,
		Comment:        comment,
		EntryDate:      time.Now().UTC(),
		CreatedBy:      userName,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (input *NewFinanceEntry) validate(ctx context.Context, businessId string) error {
	if input.EntryType != FinanceEntryTypeIncome && input.EntryType != FinanceEntryTypeExpense {
		return utils.NewValidationError("entry_type", "must be income or expense")
	}
	// manual entries are always positive, negative amounts belong to returns
	if !input.Amount.IsPositive() {
		return utils.NewValidationError("amount", "must be greater than zero")
	}
	if input.CompanyId != nil && *input.CompanyId > 0 {
		if err := utils.ValidateResourceId[Company](ctx, businessId, *input.CompanyId); err != nil {
			return errors.New("company not found")
		}
	}
	if input.WarehouseId != nil && *input.WarehouseId > 0 {
		if err := utils.ValidateResourceId[Warehouse](ctx, businessId, *input.WarehouseId); err != nil {
			return errors.New("warehouse not found")
		}
	}
	return nil
}

// CreateFinanceEntry records a manual income or expense outside any order,
// rent, utilities, a cash injection. Order-driven entries never come through
// here.
func CreateFinanceEntry(ctx context.Context, input *NewFinanceEntry) (*FinanceEntry, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.Begin()
	entry, err := PostFinanceEntry(ctx, tx, businessId, input.EntryType, input.Amount, input.CompanyId, input.WarehouseId, nil, input.Comment)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if input.EntryDate != nil {
		business, err := GetBusiness(ctx)
		if err != nil {
			return nil, errors.New("business id is required")
		}
		if err := input.EntryDate.StartOfDayUTCTime(business.Timezone); err != nil {
			tx.Rollback()
			return nil, err
		}
		// backdating a manual entry is allowed, UpdateColumn skips the
		// immutability hook
		if err := tx.WithContext(ctx).Model(&entry).
			UpdateColumn("entry_date", time.Time(*input.EntryDate)).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		entry.EntryDate = time.Time(*input.EntryDate)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func GetFinanceEntry(ctx context.Context, id int) (*FinanceEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[FinanceEntry](ctx, businessId, id)
}

func GetFinanceEntries(ctx context.Context, entryType *FinanceEntryType, companyId *int, warehouseId *int, relatedOrderId *int) ([]*FinanceEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*FinanceEntry

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if entryType != nil && *entryType != "" {
		dbCtx = dbCtx.Where("entry_type = ?", *entryType)
	}
	if companyId != nil && *companyId > 0 {
		dbCtx = dbCtx.Where("company_id = ?", *companyId)
	}
	if warehouseId != nil && *warehouseId > 0 {
		dbCtx = dbCtx.Where("warehouse_id = ?", *warehouseId)
	}
	if relatedOrderId != nil && *relatedOrderId > 0 {
		dbCtx = dbCtx.Where("related_order_id = ?", *relatedOrderId)
	}
	err := dbCtx.Order("entry_date DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateFinanceEntries(ctx context.Context, limit *int, after *string, entryType *FinanceEntryType, companyId *int, warehouseId *int, fromDate *MyDateString, toDate *MyDateString) (*FinanceEntriesConnection, error) {
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
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if entryType != nil && *entryType != "" {
		dbCtx.Where("entry_type = ?", *entryType)
	}
	if companyId != nil && *companyId > 0 {
		dbCtx.Where("company_id = ?", *companyId)
	}
	if warehouseId != nil && *warehouseId > 0 {
		dbCtx.Where("warehouse_id = ?", *warehouseId)
	}
	if fromDate != nil && toDate != nil {
		dbCtx.Where("entry_date BETWEEN ? AND ?", time.Time(*fromDate), time.Time(*toDate))
	}

	edges, pageInfo, err := FetchPageCompositeCursor[FinanceEntry](dbCtx, *limit, after, "entry_date", "<")
	if err != nil {
		return nil, err
	}
	var financeEntriesConnection FinanceEntriesConnection
	financeEntriesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		financeEntriesEdge := FinanceEntriesEdge(edge)
		financeEntriesConnection.Edges = append(financeEntriesConnection.Edges, &financeEntriesEdge)
	}

	return &financeEntriesConnection, err
}
