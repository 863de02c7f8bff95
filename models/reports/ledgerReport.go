package reports

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/shopspring/decimal"
)

type LedgerBalanceResponse struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`
}

type MonthlyLedgerDetail struct {
	Month         string          `json:"month"`
	IncomeAmount  decimal.Decimal `json:"income_amount"`
	ExpenseAmount decimal.Decimal `json:"expense_amount"`
	Balance       decimal.Decimal `json:"balance"`
}

type MonthlyLedgerResponse struct {
	TotalIncome   decimal.Decimal       `json:"total_income"`
	TotalExpense  decimal.Decimal       `json:"total_expense"`
	Balance       decimal.Decimal       `json:"balance"`
	LedgerDetails []MonthlyLedgerDetail `json:"ledger_details"`
}

type YearlyLedgerRow struct {
	Year         int             `json:"year"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`
}

type CompanyLedgerRow struct {
	CompanyId    *int            `json:"company_id"`
	CompanyName  *string         `json:"company_name,omitempty"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`
}

// GetLedgerBalance folds the ledger to a single income/expense pair, optionally
// scoped to a company, a warehouse or a date range. Return credits are stored
// as negative expense amounts, so a plain SUM already nets them out.
func GetLedgerBalance(ctx context.Context, companyId *int, warehouseId *int, fromDate *models.MyDateString, toDate *models.MyDateString) (*LedgerBalanceResponse, error) {

	sqlT := `
SELECT
    COALESCE(SUM(CASE WHEN entry_type = 'income' THEN amount ELSE 0 END), 0) AS total_income,
    COALESCE(SUM(CASE WHEN entry_type = 'expense' THEN amount ELSE 0 END), 0) AS total_expense
FROM
    finance_entries
WHERE
    business_id = @businessId
    {{- if .companyId }} AND company_id = @companyId {{- end }}
    {{- if .warehouseId }} AND warehouse_id = @warehouseId {{- end }}
    {{- if .hasRange }} AND entry_date BETWEEN @fromDate AND @toDate {{- end }};
`

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	business, err := models.GetBusiness(ctx)
	if err != nil {
		return nil, errors.New("business id is required")
	}
	if err := fromDate.StartOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}
	if err := toDate.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}

	if companyId != nil && *companyId != 0 {
		if err := utils.ValidateResourceId[models.Company](ctx, businessId, *companyId); err != nil {
			return nil, errors.New("company not found")
		}
	}
	if warehouseId != nil && *warehouseId != 0 {
		if err := utils.ValidateResourceId[models.Warehouse](ctx, businessId, *warehouseId); err != nil {
			return nil, errors.New("warehouse not found")
		}
	}

	// generating sql from template
	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"companyId":   utils.DereferencePtr(companyId),
		"warehouseId": utils.DereferencePtr(warehouseId),
		"hasRange":    fromDate != nil && toDate != nil,
	})
	if err != nil {
		return nil, err
	}

	var result LedgerBalanceResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId":  businessId,
		"companyId":   companyId,
		"warehouseId": warehouseId,
		"fromDate":    fromDate,
		"toDate":      toDate,
	}).Scan(&result).Error; err != nil {
		return nil, err
	}

	result.Balance = result.TotalIncome.Sub(result.TotalExpense)
	return &result, nil
}

// GetMonthlyLedgerReport breaks one calendar year into twelve rows, months
// with no entries included as zeros.
func GetMonthlyLedgerReport(ctx context.Context, year int, companyId *int) (*MonthlyLedgerResponse, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if companyId != nil && *companyId != 0 {
		if err := utils.ValidateResourceId[models.Company](ctx, businessId, *companyId); err != nil {
			return nil, errors.New("company not found")
		}
	}

	startDate, endDate := utils.GetYearRange(year)

	sqlT := `
WITH RECURSIVE MonthList AS (
    SELECT @startDate AS month_date
    UNION ALL
    SELECT DATE_ADD(month_date, INTERVAL 1 MONTH)
    FROM MonthList
    WHERE DATE_ADD(month_date, INTERVAL 1 MONTH) <= @endDate
),
MonthlyAgg AS (
    SELECT
        DATE_FORMAT(entry_date, '%Y-%m') AS month,
        COALESCE(SUM(CASE WHEN entry_type = 'income' THEN amount ELSE 0 END), 0) AS income_amount,
        COALESCE(SUM(CASE WHEN entry_type = 'expense' THEN amount ELSE 0 END), 0) AS expense_amount
    FROM finance_entries
    WHERE
        entry_date >= @startDate
        AND entry_date <= @endDate
        AND business_id = @businessId
        {{- if .companyId }} AND company_id = @companyId {{- end }}
    GROUP BY DATE_FORMAT(entry_date, '%Y-%m')
)
SELECT
    DATE_FORMAT(ml.month_date, '%Y-%m') AS month,
    COALESCE(ma.income_amount, 0) AS IncomeAmount,
    COALESCE(ma.expense_amount, 0) AS ExpenseAmount
FROM
    MonthList ml
LEFT JOIN
    MonthlyAgg ma ON DATE_FORMAT(ml.month_date, '%Y-%m') = ma.month
ORDER BY
    ml.month_date;
`

	// generating sql from template
	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"companyId": utils.DereferencePtr(companyId),
	})
	if err != nil {
		return nil, err
	}

	rows, err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"startDate":  startDate,
		"endDate":    endDate,
		"businessId": businessId,
		"companyId":  companyId,
	}).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	response := &MonthlyLedgerResponse{
		TotalIncome:   decimal.NewFromInt(0),
		TotalExpense:  decimal.NewFromInt(0),
		LedgerDetails: []MonthlyLedgerDetail{},
	}

	for rows.Next() {
		var monthStr string
		var incomeAmount, expenseAmount decimal.Decimal

		err := rows.Scan(&monthStr, &incomeAmount, &expenseAmount)
		if err != nil {
			return nil, err
		}

		// Parse month string to time.Time
		month, err := time.Parse("2006-01", monthStr)
		if err != nil {
			return nil, err
		}

		formattedMonth := month.Format("2006-Jan")

		detail := MonthlyLedgerDetail{
			Month:         formattedMonth,
			IncomeAmount:  incomeAmount,
			ExpenseAmount: expenseAmount,
			Balance:       incomeAmount.Sub(expenseAmount),
		}
		response.LedgerDetails = append(response.LedgerDetails, detail)
		response.TotalIncome = response.TotalIncome.Add(incomeAmount)
		response.TotalExpense = response.TotalExpense.Add(expenseAmount)
	}

	response.Balance = response.TotalIncome.Sub(response.TotalExpense)
	return response, nil
}

func GetYearlyLedgerReport(ctx context.Context) ([]*YearlyLedgerRow, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*YearlyLedgerRow

	query := db.WithContext(ctx).Raw(`
SELECT
    YEAR(entry_date) AS year,
    COALESCE(SUM(CASE WHEN entry_type = 'income' THEN amount ELSE 0 END), 0) AS total_income,
    COALESCE(SUM(CASE WHEN entry_type = 'expense' THEN amount ELSE 0 END), 0) AS total_expense
FROM
    finance_entries
WHERE
    business_id = ?
GROUP BY
    YEAR(entry_date)
ORDER BY
    year;
`, businessId)

	if err := query.Scan(&results).Error; err != nil {
		return nil, err
	}

	for _, r := range results {
		r.Balance = r.TotalIncome.Sub(r.TotalExpense)
	}
	return results, nil
}

// GetLedgerByCompany groups the ledger by counterparty. Entries without a
// company scope (manual-company orders, warehouse-scoped costs) fold into a
// single row with a null company.
func GetLedgerByCompany(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString) ([]*CompanyLedgerRow, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	business, err := models.GetBusiness(ctx)
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
	var results []*CompanyLedgerRow

	query := db.WithContext(ctx).Raw(`
SELECT
    fe.company_id,
    c.name AS company_name,
    COALESCE(SUM(CASE WHEN fe.entry_type = 'income' THEN fe.amount ELSE 0 END), 0) AS total_income,
    COALESCE(SUM(CASE WHEN fe.entry_type = 'expense' THEN fe.amount ELSE 0 END), 0) AS total_expense
FROM
    finance_entries AS fe
        LEFT JOIN
    companies AS c ON c.id = fe.company_id
WHERE
    fe.business_id = ?
        AND fe.entry_date BETWEEN ? AND ?
GROUP BY fe.company_id , c.name
ORDER BY total_income DESC;
`, businessId, fromDate, toDate)

	if err := query.Scan(&results).Error; err != nil {
		return nil, err
	}

	for _, r := range results {
		r.Balance = r.TotalIncome.Sub(r.TotalExpense)
	}
	return results, nil
}
