package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"github.com/shopspring/decimal"
)

func TestDerivePayment(t *testing.T) {
	cases := []struct {
		name          string
		total         string
		received      string
		wantStatus    models.PaymentStatus
		wantDebt      bool
		wantRemaining string
	}{
		{"nothing received", "100", "0", models.PaymentStatusUnpaid, true, "100"},
		{"partial payment", "100", "40", models.PaymentStatusPartiallyPaid, true, "60"},
		{"exact payment", "100", "100", models.PaymentStatusPaid, false, "0"},
		{"overpaid after a return shrank the total", "30", "110", models.PaymentStatusPaid, false, "0"},
		{"zero total zero received", "0", "0", models.PaymentStatusPaid, false, "0"},
		{"a cent short", "10.50", "10.49", models.PaymentStatusPartiallyPaid, true, "0.01"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			state := DerivePayment(decimal.RequireFromString(c.total), decimal.RequireFromString(c.received))
			if state.Status != c.wantStatus {
				t.Fatalf("status: expected %s, got %s", c.wantStatus, state.Status)
			}
			if state.DebtFlag != c.wantDebt {
				t.Fatalf("debt flag: expected %v, got %v", c.wantDebt, state.DebtFlag)
			}
			if state.RemainingDebt.Cmp(decimal.RequireFromString(c.wantRemaining)) != 0 {
				t.Fatalf("remaining debt: expected %s, got %s", c.wantRemaining, state.RemainingDebt.String())
			}
		})
	}
}

func TestDerivePaymentRemainingNeverNegative(t *testing.T) {
	// Returns can push the received amount past the new total; the surplus is
	// not owed back through this path, so remaining debt clamps at zero.
	for _, received := range []int64{30, 31, 100, 100000} {
		state := DerivePayment(decimal.NewFromInt(30), decimal.NewFromInt(received))
		if state.RemainingDebt.IsNegative() {
			t.Fatalf("received=%d: remaining debt went negative: %s", received, state.RemainingDebt.String())
		}
		if state.Status != models.PaymentStatusPaid {
			t.Fatalf("received=%d: expected paid, got %s", received, state.Status)
		}
		if state.DebtFlag {
			t.Fatalf("received=%d: debt flag should be clear", received)
		}
	}
}
