package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExportLedgerXlsx renders the ledger for a date range into a spreadsheet,
// one entry per row with income/expense totals at the bottom. Returns the
// file bytes and a suggested filename so both the HTTP handler and the
// export tool can share it.
func ExportLedgerXlsx(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString, companyId *int) ([]byte, string, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, "", errors.New("business id is required")
	}
	business, err := models.GetBusiness(ctx)
	if err != nil {
		return nil, "", errors.New("business id is required")
	}
	if err := fromDate.StartOfDayUTCTime(business.Timezone); err != nil {
		return nil, "", err
	}
	if err := toDate.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, "", err
	}
	if companyId != nil && *companyId != 0 {
		if err := utils.ValidateResourceId[models.Company](ctx, businessId, *companyId); err != nil {
			return nil, "", errors.New("company not found")
		}
	}

	db := config.GetDB()
	var entries []*models.FinanceEntry
	dbCtx := db.WithContext(ctx).
		Where("business_id = ? AND entry_date BETWEEN ? AND ?", businessId, fromDate, toDate)
	if companyId != nil && *companyId != 0 {
		dbCtx = dbCtx.Where("company_id = ?", *companyId)
	}
	if err := dbCtx.Order("entry_date").Find(&entries).Error; err != nil {
		return nil, "", err
	}

	companies, err := models.MapAllCompany(ctx)
	if err != nil {
		return nil, "", err
	}
	warehouses, err := models.MapAllWarehouse(ctx)
	if err != nil {
		return nil, "", err
	}

	loc, err := time.LoadLocation(business.Timezone)
	if err != nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	sheetName := "Ledger"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, "", err
	}

	// Add headers
	f.SetCellValue(sheetName, "A1", "Date")
	f.SetCellValue(sheetName, "B1", "Type")
	f.SetCellValue(sheetName, "C1", "Amount")
	f.SetCellValue(sheetName, "D1", "Company")
	f.SetCellValue(sheetName, "E1", "Warehouse")
	f.SetCellValue(sheetName, "F1", "OrderId")
	f.SetCellValue(sheetName, "G1", "Comment")
	f.SetCellValue(sheetName, "H1", "CreatedBy")

	totalIncome := decimal.NewFromInt(0)
	totalExpense := decimal.NewFromInt(0)

	// Add data
	rowNo := 2
	for _, e := range entries {
		companyName := ""
		if e.CompanyId != nil {
			if c, ok := companies[*e.CompanyId]; ok {
				companyName = c.Name
			}
		}
		warehouseName := ""
		if e.WarehouseId != nil {
			if w, ok := warehouses[*e.WarehouseId]; ok {
				warehouseName = w.Name
			}
		}

		f.SetCellValue(sheetName, "A"+fmt.Sprint(rowNo), e.EntryDate.In(loc).Format("2006-01-02 15:04"))
		f.SetCellValue(sheetName, "B"+fmt.Sprint(rowNo), string(e.EntryType))
		f.SetCellValue(sheetName, "C"+fmt.Sprint(rowNo), e.Amount)
		f.SetCellValue(sheetName, "D"+fmt.Sprint(rowNo), companyName)
		f.SetCellValue(sheetName, "E"+fmt.Sprint(rowNo), warehouseName)
		f.SetCellValue(sheetName, "F"+fmt.Sprint(rowNo), utils.DereferencePtr(e.RelatedOrderId))
		f.SetCellValue(sheetName, "G"+fmt.Sprint(rowNo), e.Comment)
		f.SetCellValue(sheetName, "H"+fmt.Sprint(rowNo), e.CreatedBy)
		rowNo++

		if e.EntryType == models.FinanceEntryTypeIncome {
			totalIncome = totalIncome.Add(e.Amount)
		} else {
			totalExpense = totalExpense.Add(e.Amount)
		}
	}

	rowNo++
	f.SetCellValue(sheetName, "B"+fmt.Sprint(rowNo), "Total Income")
	f.SetCellValue(sheetName, "C"+fmt.Sprint(rowNo), totalIncome)
	rowNo++
	f.SetCellValue(sheetName, "B"+fmt.Sprint(rowNo), "Total Expense")
	f.SetCellValue(sheetName, "C"+fmt.Sprint(rowNo), totalExpense)
	rowNo++
	f.SetCellValue(sheetName, "B"+fmt.Sprint(rowNo), "Balance")
	f.SetCellValue(sheetName, "C"+fmt.Sprint(rowNo), totalIncome.Sub(totalExpense))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("ledger_%s_%s.xlsx",
		time.Time(fromDate).In(loc).Format("2006-01-02"),
		time.Time(toDate).In(loc).Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}
