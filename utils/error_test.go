package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("amount", "must be positive when payment is received")
	want := "validation failed: amount: must be positive when payment is received"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}

	bare := NewValidationError("", "nothing to return")
	if bare.Error() != "validation failed: nothing to return" {
		t.Fatalf("field-less message wrong: %q", bare.Error())
	}

	if !IsValidationError(fmt.Errorf("completing order: %w", err)) {
		t.Fatalf("IsValidationError should see through wrapping")
	}
}

func TestNotFoundErrorUnwrapsToRecordNotFound(t *testing.T) {
	err := NewNotFoundError("order", 42)
	if err.Error() != "order 42 not found" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, ErrorRecordNotFound) {
		t.Fatalf("NotFoundError should unwrap to ErrorRecordNotFound")
	}

	wrapped := fmt.Errorf("loading order: %w", err)
	if !IsNotFoundError(wrapped) {
		t.Fatalf("IsNotFoundError should see through wrapping")
	}
	// the bare sentinel counts too, callers compare against gorm misses
	if !IsNotFoundError(ErrorRecordNotFound) {
		t.Fatalf("IsNotFoundError should accept the sentinel itself")
	}
}

func TestPartialWriteErrorAggregatesLineFailures(t *testing.T) {
	err := &PartialWriteError{
		OrderId: 7,
		LineErrors: []LineError{
			{LineId: 1, ProductId: 11, Message: "product 11 not found"},
			{LineId: 2, ProductId: 12, Message: "validation failed: change_quantity: insufficient stock"},
		},
	}
	want := "order 7: 2 of the stock lines failed, remaining lines were written: " +
		"line 1 (product 11): product 11 not found; " +
		"line 2 (product 12): validation failed: change_quantity: insufficient stock"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if !IsPartialWriteError(fmt.Errorf("complete: %w", err)) {
		t.Fatalf("IsPartialWriteError should see through wrapping")
	}
}

func TestInconsistencyErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewInconsistencyError(9, "finance entry", cause)

	want := "order 9 completed but ledger entry failed at finance entry, stock and ledger may be out of sync: connection reset by peer"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("InconsistencyError should unwrap to its cause")
	}
	if !IsInconsistencyError(err) {
		t.Fatalf("IsInconsistencyError should match")
	}
}

func TestErrorKindChecksRejectOtherKinds(t *testing.T) {
	plain := errors.New("boom")
	if IsValidationError(plain) {
		t.Fatalf("plain error misread as validation error")
	}
	if IsNotFoundError(plain) {
		t.Fatalf("plain error misread as not found")
	}
	if IsPartialWriteError(plain) {
		t.Fatalf("plain error misread as partial write")
	}
	if IsInconsistencyError(plain) {
		t.Fatalf("plain error misread as inconsistency")
	}

	if IsValidationError(NewNotFoundError("order", 1)) {
		t.Fatalf("not-found misread as validation error")
	}
	if IsNotFoundError(NewValidationError("status", "only open orders can be completed")) {
		t.Fatalf("validation misread as not found")
	}
}
