package utils

import (
	"errors"
	"fmt"
	"strings"
)

var ErrorRecordNotFound = errors.New("record not found")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// ValidationError rejects a command before any write happens. The caller can
// safely retry after fixing the named field; no state changed.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a resource that vanished between read and write.
// Not retried automatically; no state changed.
type NotFoundError struct {
	Resource string `json:"resource"`
	Id       int    `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.Id)
}

func (e *NotFoundError) Unwrap() error { return ErrorRecordNotFound }

func NewNotFoundError(resource string, id int) *NotFoundError {
	return &NotFoundError{Resource: resource, Id: id}
}

// LineError is one failed line inside a multi-line stock pass.
type LineError struct {
	LineId    int    `json:"line_id"`
	ProductId int    `json:"product_id"`
	Message   string `json:"message"`
}

// PartialWriteError means some lines of a stock pass failed while the rest
// were written. Processing continued past each failure; the surviving lines
// and the order update are committed. Stock for the listed lines was NOT
// touched and needs manual correction.
type PartialWriteError struct {
	OrderId    int         `json:"order_id"`
	LineErrors []LineError `json:"line_errors"`
}

func (e *PartialWriteError) Error() string {
	parts := make([]string, 0, len(e.LineErrors))
	for _, le := range e.LineErrors {
		parts = append(parts, fmt.Sprintf("line %d (product %d): %s", le.LineId, le.ProductId, le.Message))
	}
	return fmt.Sprintf("order %d: %d of the stock lines failed, remaining lines were written: %s",
		e.OrderId, len(e.LineErrors), strings.Join(parts, "; "))
}

// InconsistencyError means stock and/or the order row already changed but the
// matching ledger posting failed. The order carries a pending_reconciliation
// marker; the reconcile scan (or an operator) must settle the ledger side.
// This is never a clean failure: state HAS changed.
type InconsistencyError struct {
	OrderId int    `json:"order_id"`
	Step    string `json:"step"`
	Cause   error  `json:"-"`
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("order %d completed but ledger entry failed at %s, stock and ledger may be out of sync: %v",
		e.OrderId, e.Step, e.Cause)
}

func (e *InconsistencyError) Unwrap() error { return e.Cause }

func NewInconsistencyError(orderId int, step string, cause error) *InconsistencyError {
	return &InconsistencyError{OrderId: orderId, Step: step, Cause: cause}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, ErrorRecordNotFound)
}

func IsPartialWriteError(err error) bool {
	var pw *PartialWriteError
	return errors.As(err, &pw)
}

func IsInconsistencyError(err error) bool {
	var ie *InconsistencyError
	return errors.As(err, &ie)
}
