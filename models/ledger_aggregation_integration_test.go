package models_test

import (
	"bytes"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/models/reports"
	"bitbucket.org/mmdatafocus/backoffice_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func dateOf(year int, month time.Month, day int) *models.MyDateString {
	d := models.MyDateString(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
	return &d
}

func expectBalance(t *testing.T, got *reports.LedgerBalanceResponse, income, expense, balance int64) {
	t.Helper()
	if got.TotalIncome.Cmp(decimal.NewFromInt(income)) != 0 ||
		got.TotalExpense.Cmp(decimal.NewFromInt(expense)) != 0 ||
		got.Balance.Cmp(decimal.NewFromInt(balance)) != 0 {
		t.Fatalf("expected %d/%d/%d, got %s/%s/%s", income, expense, balance,
			got.TotalIncome.String(), got.TotalExpense.String(), got.Balance.String())
	}
}

func TestLedgerReportsAggregation(t *testing.T) {
	ctx, db, biz, primary := setupFulfillment(t)
	businessId := biz.ID.String()

	alpha, err := models.CreateCompany(ctx, &models.NewCompany{Name: "Alpha Traders"})
	if err != nil {
		t.Fatalf("CreateCompany(alpha): %v", err)
	}
	beta, err := models.CreateCompany(ctx, &models.NewCompany{Name: "Beta Logistics"})
	if err != nil {
		t.Fatalf("CreateCompany(beta): %v", err)
	}

	incomeType := models.FinanceEntryTypeIncome
	expenseType := models.FinanceEntryTypeExpense
	seed := []*models.NewFinanceEntry{
		{EntryType: incomeType, Amount: decimal.NewFromInt(1000), CompanyId: &alpha.ID, Comment: "alpha invoice", EntryDate: dateOf(2026, time.January, 15)},
		{EntryType: expenseType, Amount: decimal.NewFromInt(300), CompanyId: &alpha.ID, Comment: "alpha freight", EntryDate: dateOf(2026, time.January, 20)},
		{EntryType: incomeType, Amount: decimal.NewFromInt(500), CompanyId: &beta.ID, Comment: "beta invoice", EntryDate: dateOf(2026, time.February, 15)},
		{EntryType: expenseType, Amount: decimal.NewFromInt(200), Comment: "warehouse rent", EntryDate: dateOf(2026, time.March, 10)},
		{EntryType: incomeType, Amount: decimal.NewFromInt(700), Comment: "december closeout", EntryDate: dateOf(2025, time.December, 15)},
	}
	for i, input := range seed {
		if _, err := models.CreateFinanceEntry(ctx, input); err != nil {
			t.Fatalf("CreateFinanceEntry(%d): %v", i, err)
		}
	}
	if n := countRows(t, db, &models.FinanceEntry{}, "business_id = ?", businessId); n != 5 {
		t.Fatalf("expected 5 seeded entries, got %d", n)
	}

	balance, err := reports.GetLedgerBalance(ctx, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("GetLedgerBalance: %v", err)
	}
	expectBalance(t, balance, 2200, 500, 1700)

	balance, err = reports.GetLedgerBalance(ctx, &alpha.ID, nil, nil, nil)
	if err != nil {
		t.Fatalf("GetLedgerBalance(alpha): %v", err)
	}
	expectBalance(t, balance, 1000, 300, 700)

	balance, err = reports.GetLedgerBalance(ctx, nil, nil, dateOf(2026, time.January, 1), dateOf(2026, time.January, 31))
	if err != nil {
		t.Fatalf("GetLedgerBalance(january): %v", err)
	}
	expectBalance(t, balance, 1000, 300, 700)

	monthly, err := reports.GetMonthlyLedgerReport(ctx, 2026, nil)
	if err != nil {
		t.Fatalf("GetMonthlyLedgerReport: %v", err)
	}
	if len(monthly.LedgerDetails) != 12 {
		t.Fatalf("expected 12 months, got %d", len(monthly.LedgerDetails))
	}
	jan := monthly.LedgerDetails[0]
	if jan.Month != "2026-Jan" || jan.IncomeAmount.Cmp(decimal.NewFromInt(1000)) != 0 ||
		jan.ExpenseAmount.Cmp(decimal.NewFromInt(300)) != 0 || jan.Balance.Cmp(decimal.NewFromInt(700)) != 0 {
		t.Fatalf("unexpected january row: %+v", jan)
	}
	feb := monthly.LedgerDetails[1]
	if feb.Month != "2026-Feb" || feb.IncomeAmount.Cmp(decimal.NewFromInt(500)) != 0 || !feb.ExpenseAmount.IsZero() {
		t.Fatalf("unexpected february row: %+v", feb)
	}
	mar := monthly.LedgerDetails[2]
	if mar.Month != "2026-Mar" || !mar.IncomeAmount.IsZero() || mar.ExpenseAmount.Cmp(decimal.NewFromInt(200)) != 0 {
		t.Fatalf("unexpected march row: %+v", mar)
	}
	dec := monthly.LedgerDetails[11]
	if dec.Month != "2026-Dec" || !dec.IncomeAmount.IsZero() || !dec.ExpenseAmount.IsZero() {
		t.Fatalf("empty month should read zero: %+v", dec)
	}
	if monthly.TotalIncome.Cmp(decimal.NewFromInt(1500)) != 0 ||
		monthly.TotalExpense.Cmp(decimal.NewFromInt(500)) != 0 ||
		monthly.Balance.Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("unexpected monthly totals: %+v", monthly)
	}

	yearly, err := reports.GetYearlyLedgerReport(ctx)
	if err != nil {
		t.Fatalf("GetYearlyLedgerReport: %v", err)
	}
	if len(yearly) != 2 {
		t.Fatalf("expected 2 years, got %d", len(yearly))
	}
	if yearly[0].Year != 2025 || yearly[0].TotalIncome.Cmp(decimal.NewFromInt(700)) != 0 ||
		!yearly[0].TotalExpense.IsZero() || yearly[0].Balance.Cmp(decimal.NewFromInt(700)) != 0 {
		t.Fatalf("unexpected 2025 row: %+v", yearly[0])
	}
	if yearly[1].Year != 2026 || yearly[1].TotalIncome.Cmp(decimal.NewFromInt(1500)) != 0 ||
		yearly[1].TotalExpense.Cmp(decimal.NewFromInt(500)) != 0 || yearly[1].Balance.Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("unexpected 2026 row: %+v", yearly[1])
	}

	byCompany, err := reports.GetLedgerByCompany(ctx, *dateOf(2026, time.January, 1), *dateOf(2026, time.December, 31))
	if err != nil {
		t.Fatalf("GetLedgerByCompany: %v", err)
	}
	if len(byCompany) != 3 {
		t.Fatalf("expected 3 company rows, got %d", len(byCompany))
	}
	if byCompany[0].CompanyName == nil || *byCompany[0].CompanyName != "Alpha Traders" ||
		byCompany[0].TotalIncome.Cmp(decimal.NewFromInt(1000)) != 0 ||
		byCompany[0].TotalExpense.Cmp(decimal.NewFromInt(300)) != 0 {
		t.Fatalf("unexpected top row: %+v", byCompany[0])
	}
	if byCompany[1].CompanyName == nil || *byCompany[1].CompanyName != "Beta Logistics" ||
		byCompany[1].TotalIncome.Cmp(decimal.NewFromInt(500)) != 0 {
		t.Fatalf("unexpected second row: %+v", byCompany[1])
	}
	if byCompany[2].CompanyId != nil || byCompany[2].CompanyName != nil ||
		byCompany[2].TotalExpense.Cmp(decimal.NewFromInt(200)) != 0 ||
		byCompany[2].Balance.Cmp(decimal.NewFromInt(-200)) != 0 {
		t.Fatalf("unexpected unscoped row: %+v", byCompany[2])
	}

	data, filename, err := reports.ExportLedgerXlsx(ctx, *dateOf(2026, time.January, 1), *dateOf(2026, time.December, 31), nil)
	if err != nil {
		t.Fatalf("ExportLedgerXlsx: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected a non-empty workbook")
	}
	if filename != "ledger_2026-01-01_2026-12-31.xlsx" {
		t.Fatalf("unexpected filename: %q", filename)
	}
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer book.Close()
	rows, err := book.GetRows("Ledger")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) < 5 {
		t.Fatalf("expected header plus 4 entries, got %d rows", len(rows))
	}
	if rows[0][0] != "Date" || rows[0][2] != "Amount" {
		t.Fatalf("unexpected header row: %v", rows[0])
	}

	// round out the picture with a completed debt order and its stock trail
	lamp, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Desk Lamp", Sku: "LMP-100", WarehouseId: primary.ID,
		UnitPrice: decimal.NewFromInt(40), OpeningStock: 5,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	order, err := models.CreateOrder(ctx, &models.NewOrder{
		ManualCompany: "Walk-in",
		Lines:         []models.NewOrderLine{{ProductId: lamp.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := workflow.CompleteOrder(ctx, order.ID, &workflow.CompleteOrderInput{Received: false}); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}

	debt, err := reports.GetOutstandingDebtReport(ctx, nil)
	if err != nil {
		t.Fatalf("GetOutstandingDebtReport: %v", err)
	}
	if debt.TotalOutstanding.Cmp(decimal.NewFromInt(80)) != 0 || len(debt.Rows) != 1 {
		t.Fatalf("expected outstanding 80 on one order, got %s rows=%d", debt.TotalOutstanding.String(), len(debt.Rows))
	}
	if debt.Rows[0].CompanyName != "Walk-in" || debt.Rows[0].RemainingDebt.Cmp(decimal.NewFromInt(80)) != 0 {
		t.Fatalf("unexpected debt row: %+v", debt.Rows[0])
	}

	from := models.MyDateString(time.Now().UTC().Add(-24 * time.Hour))
	to := models.MyDateString(time.Now().UTC())
	summary, err := reports.GetStockSummaryReport(ctx, from, to, nil)
	if err != nil {
		t.Fatalf("GetStockSummaryReport: %v", err)
	}
	var lampRow *reports.StockSummaryRow
	for _, r := range summary {
		if r.ProductId == lamp.ID {
			lampRow = r
		}
	}
	if lampRow == nil {
		t.Fatalf("no stock summary row for lamp")
	}
	if lampRow.OpeningStock != 0 || lampRow.QtyIn != 5 || lampRow.QtyOut != 2 ||
		lampRow.ClosingStock != 3 || lampRow.CurrentStock != 3 {
		t.Fatalf("unexpected stock summary: %+v", lampRow)
	}

	inv, err := reports.GetWarehouseInventoryReport(ctx, models.MyDateString(time.Now().UTC()))
	if err != nil {
		t.Fatalf("GetWarehouseInventoryReport: %v", err)
	}
	var invRow *models.WarehouseInventoryResponse
	for _, r := range inv {
		if r.WarehouseId == primary.ID && r.ProductId == lamp.ID {
			invRow = r
		}
	}
	if invRow == nil {
		t.Fatalf("no warehouse inventory row for lamp")
	}
	if invRow.SoldQty != 2 || invRow.RestockQty != 0 || invRow.CorrectionQtyIn != 5 ||
		invRow.CorrectionQtyOut != 0 || invRow.LedgerQty != 3 || invRow.CurrentStock != 3 {
		t.Fatalf("unexpected warehouse inventory row: %+v", invRow)
	}
	if invRow.WarehouseName == nil || *invRow.WarehouseName != "Primary Warehouse" {
		t.Fatalf("expected warehouse name on the row, got %v", invRow.WarehouseName)
	}
}
