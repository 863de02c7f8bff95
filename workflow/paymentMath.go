package workflow

import (
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"github.com/shopspring/decimal"
)

// PaymentState is the derived payment classification of an order. It is
// computed from the two raw amounts every time they move, never stored and
// mutated independently, so the columns cannot drift apart.
type PaymentState struct {
	Status        models.PaymentStatus
	DebtFlag      bool
	RemainingDebt decimal.Decimal
}

// DerivePayment classifies paymentReceived against totalAmount.
// Received zero is unpaid, anything short of the total is partially paid,
// covering the total (or exceeding it after a return) is paid. RemainingDebt
// never goes negative.
func DerivePayment(totalAmount, paymentReceived decimal.Decimal) PaymentState {
	remaining := totalAmount.Sub(paymentReceived)
	if remaining.IsNegative() {
		remaining = decimal.NewFromInt(0)
	}

	state := PaymentState{
		DebtFlag:      paymentReceived.LessThan(totalAmount),
		RemainingDebt: remaining,
	}
	switch {
	case paymentReceived.IsPositive() && paymentReceived.LessThan(totalAmount):
		state.Status = models.PaymentStatusPartiallyPaid
	case paymentReceived.LessThan(totalAmount):
		state.Status = models.PaymentStatusUnpaid
	default:
		state.Status = models.PaymentStatusPaid
	}
	return state
}
