package models_test

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/models/reports"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"bitbucket.org/mmdatafocus/backoffice_backend/workflow"
	"github.com/shopspring/decimal"
)

func lineByProduct(t *testing.T, order *models.Order, productId int) *models.OrderLine {
	t.Helper()
	for i := range order.Lines {
		if order.Lines[i].ProductId == productId {
			return &order.Lines[i]
		}
	}
	t.Fatalf("no line for product %d on order %d", productId, order.ID)
	return nil
}

func sumEntries(entries []*models.FinanceEntry) (income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, e := range entries {
		if e.EntryType == models.FinanceEntryTypeIncome {
			income = income.Add(e.Amount)
		} else {
			expense = expense.Add(e.Amount)
		}
	}
	return income, expense
}

func TestOrderFulfillmentLifecycle(t *testing.T) {
	ctx, db, biz, primary := setupFulfillment(t)
	businessId := biz.ID.String()

	acme, err := models.CreateCompany(ctx, &models.NewCompany{Name: "Acme Trading"})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	widget, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:         "Widget",
		Sku:          "WID-001",
		WarehouseId:  primary.ID,
		UnitPrice:    decimal.NewFromInt(20),
		OpeningStock: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct(widget): %v", err)
	}
	gadget, err := models.CreateProduct(ctx, &models.NewProduct{
		Name:         "Gadget",
		Sku:          "GAD-001",
		WarehouseId:  primary.ID,
		UnitPrice:    decimal.NewFromInt(10),
		OpeningStock: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct(gadget): %v", err)
	}

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		CompanyId: &acme.ID,
		Lines: []models.NewOrderLine{
			{ProductId: widget.ID, Quantity: 3},
			{ProductId: gadget.ID, Quantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.OrderNumber != "ORD-000001" {
		t.Fatalf("expected order number ORD-000001, got %s", order.OrderNumber)
	}
	if order.Status != models.OrderStatusOpen {
		t.Fatalf("expected open order, got %s", order.Status)
	}
	if order.TotalAmount.Cmp(decimal.NewFromInt(110)) != 0 {
		t.Fatalf("expected total 110, got %s", order.TotalAmount.String())
	}
	if order.TotalQuantity != 8 {
		t.Fatalf("expected total quantity 8, got %d", order.TotalQuantity)
	}

	// payments and returns are completion-side commands, open orders refuse both
	if _, err := workflow.RegisterPayment(ctx, order.ID, &workflow.RegisterPaymentInput{
		Amount: decimal.NewFromInt(10), Method: "cash",
	}); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error paying an open order, got %v", err)
	}
	if _, err := workflow.ReturnItems(ctx, order.ID, []workflow.ReturnLine{
		{LineId: order.Lines[0].ID, Quantity: 1},
	}); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error returning on an open order, got %v", err)
	}

	res, err := workflow.CompleteOrder(ctx, order.ID, &workflow.CompleteOrderInput{
		Received: true,
		Amount:   decimal.NewFromInt(60),
		Method:   "cash",
	})
	if err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if res.PostingStatus != models.PostingStatusPosted {
		t.Fatalf("expected posting status posted, got %s", res.PostingStatus)
	}

	dbOrder := loadOrder(t, ctx, db, businessId, order.ID)
	if dbOrder.Status != models.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", dbOrder.Status)
	}
	if dbOrder.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}
	if dbOrder.PaymentStatus != models.PaymentStatusPartiallyPaid || !dbOrder.DebtFlag {
		t.Fatalf("expected partially_paid with debt, got %s debt=%v", dbOrder.PaymentStatus, dbOrder.DebtFlag)
	}
	if dbOrder.PaymentMethod != "cash" {
		t.Fatalf("expected payment method cash, got %q", dbOrder.PaymentMethod)
	}
	if dbOrder.PostingStatus != models.PostingStatusPosted {
		t.Fatalf("expected posted in db, got %s", dbOrder.PostingStatus)
	}

	if got := loadProduct(t, ctx, db, businessId, widget.ID).CurrentStock; got != 7 {
		t.Fatalf("expected widget stock 7, got %d", got)
	}
	if got := loadProduct(t, ctx, db, businessId, gadget.ID).CurrentStock; got != 5 {
		t.Fatalf("expected gadget stock 5, got %d", got)
	}

	orderReason := models.InventoryReasonOrder
	movements, err := models.GetInventoryTransactions(ctx, nil, &order.ID, &orderReason)
	if err != nil {
		t.Fatalf("GetInventoryTransactions: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("expected 2 fulfillment stock movements, got %d", len(movements))
	}
	changeByProduct := map[int]int{}
	for _, m := range movements {
		changeByProduct[m.ProductId] = m.ChangeQuantity
	}
	if changeByProduct[widget.ID] != -3 || changeByProduct[gadget.ID] != -5 {
		t.Fatalf("unexpected movement quantities: %v", changeByProduct)
	}

	entries, err := models.GetFinanceEntries(ctx, nil, nil, nil, &order.ID)
	if err != nil {
		t.Fatalf("GetFinanceEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 completion entry, got %d", len(entries))
	}
	if entries[0].EntryType != models.FinanceEntryTypeIncome || entries[0].Amount.Cmp(decimal.NewFromInt(60)) != 0 {
		t.Fatalf("expected income 60, got %s %s", entries[0].EntryType, entries[0].Amount.String())
	}
	if entries[0].Comment != "order ORD-000001 completion" {
		t.Fatalf("unexpected comment: %q", entries[0].Comment)
	}

	debt, err := reports.GetOutstandingDebtReport(ctx, nil)
	if err != nil {
		t.Fatalf("GetOutstandingDebtReport: %v", err)
	}
	if debt.TotalOutstanding.Cmp(decimal.NewFromInt(50)) != 0 {
		t.Fatalf("expected outstanding 50, got %s", debt.TotalOutstanding.String())
	}
	if len(debt.Rows) != 1 || debt.Rows[0].CompanyName != "Acme Trading" {
		t.Fatalf("unexpected debt rows: %+v", debt.Rows)
	}

	// completion is not repeatable without an idempotency key
	if _, err := workflow.CompleteOrder(ctx, order.ID, &workflow.CompleteOrderInput{Received: false}); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error on double completion, got %v", err)
	}

	paid, err := workflow.RegisterPayment(ctx, order.ID, &workflow.RegisterPaymentInput{
		Amount: decimal.NewFromInt(50), Method: "kbzpay",
	})
	if err != nil {
		t.Fatalf("RegisterPayment: %v", err)
	}
	if paid.PaymentStatus != models.PaymentStatusPaid || paid.DebtFlag {
		t.Fatalf("expected paid with no debt, got %s debt=%v", paid.PaymentStatus, paid.DebtFlag)
	}
	if paid.PaymentReceivedAmount.Cmp(decimal.NewFromInt(110)) != 0 {
		t.Fatalf("expected received 110, got %s", paid.PaymentReceivedAmount.String())
	}

	entries, err = models.GetFinanceEntries(ctx, nil, nil, nil, &order.ID)
	if err != nil {
		t.Fatalf("GetFinanceEntries after payment: %v", err)
	}
	income, _ := sumEntries(entries)
	if income.Cmp(decimal.NewFromInt(110)) != 0 {
		t.Fatalf("expected income sum 110, got %s", income.String())
	}

	gadgetLine := lineByProduct(t, paid, gadget.ID)
	if _, err := workflow.ReturnItems(ctx, order.ID, []workflow.ReturnLine{
		{LineId: gadgetLine.ID, Quantity: 6},
	}); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error on over-return, got %v", err)
	}

	// partial return: 2 gadgets go back, the line shrinks, one negative expense
	// entry compensates the ledger
	returned, err := workflow.ReturnItems(ctx, order.ID, []workflow.ReturnLine{
		{LineId: gadgetLine.ID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("ReturnItems: %v", err)
	}
	if returned.TotalAmount.Cmp(decimal.NewFromInt(90)) != 0 || returned.TotalQuantity != 6 {
		t.Fatalf("expected total 90 qty 6, got %s qty %d", returned.TotalAmount.String(), returned.TotalQuantity)
	}
	if got := lineByProduct(t, returned, gadget.ID); got.Quantity != 3 || got.LineTotal.Cmp(decimal.NewFromInt(30)) != 0 {
		t.Fatalf("expected gadget line 3 x 10, got qty %d total %s", got.Quantity, got.LineTotal.String())
	}
	if got := loadProduct(t, ctx, db, businessId, gadget.ID).CurrentStock; got != 7 {
		t.Fatalf("expected gadget stock 7 after return, got %d", got)
	}
	if returned.PaymentStatus != models.PaymentStatusPaid || returned.DebtFlag {
		t.Fatalf("overpaid order should read paid, got %s debt=%v", returned.PaymentStatus, returned.DebtFlag)
	}

	expenseType := models.FinanceEntryTypeExpense
	credits, err := models.GetFinanceEntries(ctx, &expenseType, nil, nil, &order.ID)
	if err != nil {
		t.Fatalf("GetFinanceEntries(expense): %v", err)
	}
	if len(credits) != 1 || credits[0].Amount.Cmp(decimal.NewFromInt(-20)) != 0 {
		t.Fatalf("expected one return credit of -20, got %+v", credits)
	}

	// full-line return deletes the line and restores the remaining widgets
	widgetLine := lineByProduct(t, returned, widget.ID)
	returned, err = workflow.ReturnItems(ctx, order.ID, []workflow.ReturnLine{
		{LineId: widgetLine.ID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("ReturnItems(full line): %v", err)
	}
	if len(returned.Lines) != 1 {
		t.Fatalf("expected 1 surviving line, got %d", len(returned.Lines))
	}
	if returned.TotalAmount.Cmp(decimal.NewFromInt(30)) != 0 || returned.TotalQuantity != 3 {
		t.Fatalf("expected total 30 qty 3, got %s qty %d", returned.TotalAmount.String(), returned.TotalQuantity)
	}
	if got := loadProduct(t, ctx, db, businessId, widget.ID).CurrentStock; got != 10 {
		t.Fatalf("expected widget stock back to 10, got %d", got)
	}

	// settled order with income matching its received amount: nothing to repair
	scan, err := workflow.RunReconciliationScan(ctx)
	if err != nil {
		t.Fatalf("RunReconciliationScan: %v", err)
	}
	if scan.PendingFound != 0 || len(scan.Drifts) != 0 {
		t.Fatalf("expected clean scan, got %+v", scan)
	}

	// an order completed without payment books the full total as expense: the debt
	order2, err := models.CreateOrder(ctx, &models.NewOrder{
		CompanyId: &acme.ID,
		Lines:     []models.NewOrderLine{{ProductId: widget.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateOrder(order2): %v", err)
	}
	if _, err := workflow.CompleteOrder(ctx, order2.ID, &workflow.CompleteOrderInput{Received: false}); err != nil {
		t.Fatalf("CompleteOrder(order2): %v", err)
	}

	dbOrder2 := loadOrder(t, ctx, db, businessId, order2.ID)
	if dbOrder2.PaymentStatus != models.PaymentStatusUnpaid || !dbOrder2.DebtFlag {
		t.Fatalf("expected unpaid with debt, got %s debt=%v", dbOrder2.PaymentStatus, dbOrder2.DebtFlag)
	}
	entries2, err := models.GetFinanceEntries(ctx, nil, nil, nil, &order2.ID)
	if err != nil {
		t.Fatalf("GetFinanceEntries(order2): %v", err)
	}
	if len(entries2) != 1 || entries2[0].EntryType != models.FinanceEntryTypeExpense ||
		entries2[0].Amount.Cmp(decimal.NewFromInt(40)) != 0 {
		t.Fatalf("expected one expense 40, got %+v", entries2)
	}
	if got := loadProduct(t, ctx, db, businessId, widget.ID).CurrentStock; got != 8 {
		t.Fatalf("expected widget stock 8, got %d", got)
	}

	debt, err = reports.GetOutstandingDebtReport(ctx, nil)
	if err != nil {
		t.Fatalf("GetOutstandingDebtReport(order2): %v", err)
	}
	if debt.TotalOutstanding.Cmp(decimal.NewFromInt(40)) != 0 || len(debt.Rows) != 1 {
		t.Fatalf("expected outstanding 40 on one order, got %s rows=%d", debt.TotalOutstanding.String(), len(debt.Rows))
	}

	// cancel restores stock but keeps the posted expense entry standing
	canceled, err := workflow.CancelOrder(ctx, order2.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if canceled.Status != models.OrderStatusCanceled {
		t.Fatalf("expected canceled, got %s", canceled.Status)
	}
	dbOrder2 = loadOrder(t, ctx, db, businessId, order2.ID)
	if dbOrder2.CompletedAt != nil {
		t.Fatalf("expected completed_at cleared on cancel")
	}
	if got := loadProduct(t, ctx, db, businessId, widget.ID).CurrentStock; got != 10 {
		t.Fatalf("expected widget stock restored to 10, got %d", got)
	}
	if n := countRows(t, db, &models.FinanceEntry{}, "business_id = ? AND related_order_id = ?", businessId, order2.ID); n != 1 {
		t.Fatalf("cancel must not touch the ledger, expected 1 entry, got %d", n)
	}

	if _, err := workflow.RegisterPayment(ctx, order2.ID, &workflow.RegisterPaymentInput{
		Amount: decimal.NewFromInt(5), Method: "cash",
	}); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error paying a canceled order, got %v", err)
	}
	if _, err := workflow.CancelOrder(ctx, order2.ID); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error on double cancel, got %v", err)
	}

	// delete wipes the order and its ledger trace, stock counters stay put
	if err := workflow.DeleteOrder(ctx, order2.ID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if n := countRows(t, db, &models.Order{}, "business_id = ? AND id = ?", businessId, order2.ID); n != 0 {
		t.Fatalf("expected order2 deleted")
	}
	if n := countRows(t, db, &models.OrderLine{}, "order_id = ?", order2.ID); n != 0 {
		t.Fatalf("expected order2 lines deleted")
	}
	if n := countRows(t, db, &models.FinanceEntry{}, "business_id = ? AND related_order_id = ?", businessId, order2.ID); n != 0 {
		t.Fatalf("expected order2 ledger entries deleted")
	}
	if n := countRows(t, db, &models.InventoryTransaction{}, "business_id = ? AND related_order_id = ?", businessId, order2.ID); n != 0 {
		t.Fatalf("expected order2 stock log deleted")
	}
	if got := loadProduct(t, ctx, db, businessId, widget.ID).CurrentStock; got != 10 {
		t.Fatalf("delete must not move stock, expected 10, got %d", got)
	}
	if n := countRows(t, db, &models.FinanceEntry{}, "business_id = ? AND related_order_id = ?", businessId, order.ID); n != 4 {
		t.Fatalf("expected order1's 4 entries intact, got %d", n)
	}

	// income 60+50, expense -20-60: returns are negative credits, so the
	// expense total nets negative and the balance grows past the income sum
	balance, err := reports.GetLedgerBalance(ctx, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("GetLedgerBalance: %v", err)
	}
	if balance.TotalIncome.Cmp(decimal.NewFromInt(110)) != 0 {
		t.Fatalf("expected income 110, got %s", balance.TotalIncome.String())
	}
	if balance.TotalExpense.Cmp(decimal.NewFromInt(-80)) != 0 {
		t.Fatalf("expected expense -80, got %s", balance.TotalExpense.String())
	}
	if balance.Balance.Cmp(decimal.NewFromInt(190)) != 0 {
		t.Fatalf("expected balance 190, got %s", balance.Balance.String())
	}
}

func TestCompleteOrderPartialLineFailure(t *testing.T) {
	ctx, db, biz, primary := setupFulfillment(t)
	businessId := biz.ID.String()

	alpha, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Alpha", Sku: "ALP-001", WarehouseId: primary.ID,
		UnitPrice: decimal.NewFromInt(5), OpeningStock: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct(alpha): %v", err)
	}
	beta, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Beta", Sku: "BET-001", WarehouseId: primary.ID,
		UnitPrice: decimal.NewFromInt(7), OpeningStock: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct(beta): %v", err)
	}

	order, err := models.CreateOrder(ctx, &models.NewOrder{
		ManualCompany: "Walk-in",
		Lines: []models.NewOrderLine{
			{ProductId: alpha.ID, Quantity: 2},
			{ProductId: beta.ID, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	betaLine := lineByProduct(t, order, beta.ID)

	// yank the product out from under the order, the raw delete bypasses the
	// model hooks that normally block it
	if err := db.Exec("DELETE FROM inventory_transactions WHERE business_id = ? AND product_id = ?", businessId, beta.ID).Error; err != nil {
		t.Fatalf("clear beta stock log: %v", err)
	}
	if err := db.Exec("DELETE FROM products WHERE business_id = ? AND id = ?", businessId, beta.ID).Error; err != nil {
		t.Fatalf("delete beta: %v", err)
	}

	_, err = workflow.CompleteOrder(ctx, order.ID, &workflow.CompleteOrderInput{Received: false})
	if !utils.IsPartialWriteError(err) {
		t.Fatalf("expected partial write error, got %v", err)
	}
	var pw *utils.PartialWriteError
	if !errors.As(err, &pw) {
		t.Fatalf("expected *PartialWriteError, got %T", err)
	}
	if len(pw.LineErrors) != 1 {
		t.Fatalf("expected 1 failed line, got %d", len(pw.LineErrors))
	}
	if pw.LineErrors[0].LineId != betaLine.ID || pw.LineErrors[0].ProductId != beta.ID {
		t.Fatalf("unexpected failed line: %+v", pw.LineErrors[0])
	}
	if !strings.Contains(pw.LineErrors[0].Message, "not found") {
		t.Fatalf("expected a not-found line error, got %q", pw.LineErrors[0].Message)
	}

	// the failed line did not abort the command: the order completed, the
	// surviving line moved stock and the full total was posted
	dbOrder := loadOrder(t, ctx, db, businessId, order.ID)
	if dbOrder.Status != models.OrderStatusCompleted || dbOrder.PostingStatus != models.PostingStatusPosted {
		t.Fatalf("expected completed and posted, got %s / %s", dbOrder.Status, dbOrder.PostingStatus)
	}
	if got := loadProduct(t, ctx, db, businessId, alpha.ID).CurrentStock; got != 8 {
		t.Fatalf("expected alpha stock 8, got %d", got)
	}
	if n := countRows(t, db, &models.InventoryTransaction{}, "business_id = ? AND related_order_id = ?", businessId, order.ID); n != 1 {
		t.Fatalf("expected 1 stock movement, got %d", n)
	}
	entries, err := models.GetFinanceEntries(ctx, nil, nil, nil, &order.ID)
	if err != nil {
		t.Fatalf("GetFinanceEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].EntryType != models.FinanceEntryTypeExpense ||
		entries[0].Amount.Cmp(decimal.NewFromInt(31)) != 0 {
		t.Fatalf("expected expense 31 despite the failed line, got %+v", entries)
	}

	// with the strict floor enabled an oversell is refused instead of recorded
	t.Setenv("STRICT_STOCK_FLOOR", "true")
	over, err := models.CreateOrder(ctx, &models.NewOrder{
		ManualCompany: "Walk-in",
		Lines:         []models.NewOrderLine{{ProductId: alpha.ID, Quantity: 20}},
	})
	if err != nil {
		t.Fatalf("CreateOrder(oversell): %v", err)
	}
	_, err = workflow.CompleteOrder(ctx, over.ID, &workflow.CompleteOrderInput{Received: false})
	if !utils.IsPartialWriteError(err) {
		t.Fatalf("expected partial write error on oversell, got %v", err)
	}
	pw = nil
	if !errors.As(err, &pw) || len(pw.LineErrors) != 1 {
		t.Fatalf("expected 1 failed oversell line, got %v", err)
	}
	if !strings.Contains(pw.LineErrors[0].Message, "insufficient stock") {
		t.Fatalf("expected insufficient stock, got %q", pw.LineErrors[0].Message)
	}
	if got := loadProduct(t, ctx, db, businessId, alpha.ID).CurrentStock; got != 8 {
		t.Fatalf("strict floor must not move stock, expected 8, got %d", got)
	}
}

func TestCompleteOrderIdempotency(t *testing.T) {
	ctx, db, biz, primary := setupFulfillment(t)
	businessId := biz.ID.String()

	pen, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Pen", Sku: "PEN-001", WarehouseId: primary.ID,
		UnitPrice: decimal.NewFromInt(5), OpeningStock: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	order, err := models.CreateOrder(ctx, &models.NewOrder{
		ManualCompany: "Walk-in",
		Lines:         []models.NewOrderLine{{ProductId: pen.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if _, err := workflow.CompleteOrder(ctx, order.ID, &workflow.CompleteOrderInput{
		Received: false, IdempotencyKey: "key-123",
	}); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if got := loadProduct(t, ctx, db, businessId, pen.ID).CurrentStock; got != 6 {
		t.Fatalf("expected stock 6, got %d", got)
	}

	// one key row per handler: the command itself plus the ledger posting
	if n := countRows(t, db, &models.IdempotencyKey{},
		"business_id = ? AND handler_name = ? AND message_id = ? AND status = ?",
		businessId, "CompleteOrder", "key-123", models.IdempotencyStatusSucceeded); n != 1 {
		t.Fatalf("expected 1 succeeded CompleteOrder key, got %d", n)
	}
	if n := countRows(t, db, &models.IdempotencyKey{},
		"business_id = ? AND handler_name = ? AND message_id = ? AND status = ?",
		businessId, "OrderLedgerPosting", strconv.Itoa(order.ID), models.IdempotencyStatusSucceeded); n != 1 {
		t.Fatalf("expected 1 succeeded OrderLedgerPosting key, got %d", n)
	}

	// same key replayed: the stored outcome comes back, nothing moves again
	replay, err := workflow.CompleteOrder(ctx, order.ID, &workflow.CompleteOrderInput{
		Received: false, IdempotencyKey: "key-123",
	})
	if err != nil {
		t.Fatalf("CompleteOrder(replay): %v", err)
	}
	if replay.Status != models.OrderStatusCompleted {
		t.Fatalf("replay should return the completed order, got %s", replay.Status)
	}
	if got := loadProduct(t, ctx, db, businessId, pen.ID).CurrentStock; got != 6 {
		t.Fatalf("replay must not deduct again, expected 6, got %d", got)
	}
	if n := countRows(t, db, &models.FinanceEntry{}, "business_id = ? AND related_order_id = ?", businessId, order.ID); n != 1 {
		t.Fatalf("replay must not double post, expected 1 entry, got %d", n)
	}

	// a different key is a genuinely new command and hits the status guard
	if _, err := workflow.CompleteOrder(ctx, order.ID, &workflow.CompleteOrderInput{
		Received: false, IdempotencyKey: "key-456",
	}); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error with a fresh key, got %v", err)
	}
	if n := countRows(t, db, &models.IdempotencyKey{},
		"business_id = ? AND handler_name = ?", businessId, "CompleteOrder"); n != 1 {
		t.Fatalf("failed attempt should roll back its key row, got %d", n)
	}
}

func TestReconciliationScanRepair(t *testing.T) {
	ctx, db, biz, primary := setupFulfillment(t)
	businessId := biz.ID.String()

	lamp, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Lamp", Sku: "LMP-001", WarehouseId: primary.ID,
		UnitPrice: decimal.NewFromInt(15), OpeningStock: 10,
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
	if _, err := workflow.CompleteOrder(ctx, order.ID, &workflow.CompleteOrderInput{
		Received: true, Amount: decimal.NewFromInt(30), Method: "cash",
	}); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}

	// stage a crash between stock write and ledger posting: the entry and its
	// idempotency receipt vanish, the order is left marked for reconciliation
	if err := db.Exec("DELETE FROM finance_entries WHERE business_id = ? AND related_order_id = ?",
		businessId, order.ID).Error; err != nil {
		t.Fatalf("delete completion entry: %v", err)
	}
	if err := db.Exec("DELETE FROM idempotency_keys WHERE business_id = ? AND handler_name = ? AND message_id = ?",
		businessId, "OrderLedgerPosting", strconv.Itoa(order.ID)).Error; err != nil {
		t.Fatalf("delete idempotency key: %v", err)
	}
	if err := db.Exec("UPDATE orders SET posting_status = ? WHERE business_id = ? AND id = ?",
		models.PostingStatusPendingReconciliation, businessId, order.ID).Error; err != nil {
		t.Fatalf("mark pending_reconciliation: %v", err)
	}

	scan, err := workflow.RunReconciliationScan(ctx)
	if err != nil {
		t.Fatalf("RunReconciliationScan: %v", err)
	}
	if scan.PendingFound != 1 || scan.Repaired != 1 || scan.Failed != 0 {
		t.Fatalf("expected 1 pending 1 repaired, got %+v", scan)
	}
	if len(scan.Drifts) != 0 {
		t.Fatalf("repaired order should not drift, got %+v", scan.Drifts)
	}

	dbOrder := loadOrder(t, ctx, db, businessId, order.ID)
	if dbOrder.PostingStatus != models.PostingStatusPosted {
		t.Fatalf("expected posted after repair, got %s", dbOrder.PostingStatus)
	}
	entries, err := models.GetFinanceEntries(ctx, nil, nil, nil, &order.ID)
	if err != nil {
		t.Fatalf("GetFinanceEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].EntryType != models.FinanceEntryTypeIncome ||
		entries[0].Amount.Cmp(decimal.NewFromInt(30)) != 0 {
		t.Fatalf("expected repaired income 30, got %+v", entries)
	}
	if entries[0].Comment != "order "+order.OrderNumber+" completion" {
		t.Fatalf("unexpected repaired comment: %q", entries[0].Comment)
	}
	if n := countRows(t, db, &models.IdempotencyKey{},
		"business_id = ? AND handler_name = ? AND message_id = ? AND status = ?",
		businessId, "OrderLedgerPosting", strconv.Itoa(order.ID), models.IdempotencyStatusSucceeded); n != 1 {
		t.Fatalf("expected a fresh succeeded posting key")
	}

	// now fake a mismatch between the order and its ledger trace
	if err := db.Exec("UPDATE orders SET payment_received_amount = 45 WHERE business_id = ? AND id = ?",
		businessId, order.ID).Error; err != nil {
		t.Fatalf("tamper received amount: %v", err)
	}

	scan, err = workflow.RunReconciliationScan(ctx)
	if err != nil {
		t.Fatalf("RunReconciliationScan(drift): %v", err)
	}
	if scan.PendingFound != 0 || scan.Repaired != 0 {
		t.Fatalf("expected nothing pending, got %+v", scan)
	}
	if len(scan.Drifts) != 1 {
		t.Fatalf("expected 1 drift, got %d", len(scan.Drifts))
	}
	drift := scan.Drifts[0]
	if drift.OrderId != order.ID || drift.OrderNumber != order.OrderNumber {
		t.Fatalf("unexpected drift target: %+v", drift)
	}
	if drift.LedgerIncome.Cmp(decimal.NewFromInt(30)) != 0 ||
		drift.PaymentReceivedAmount.Cmp(decimal.NewFromInt(45)) != 0 ||
		drift.Difference.Cmp(decimal.NewFromInt(15)) != 0 {
		t.Fatalf("unexpected drift amounts: %+v", drift)
	}
}
