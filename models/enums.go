package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// convert input to enum type
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("order status must be string")
	}

	orderStatus := map[string]OrderStatus{
		"open":      OrderStatusOpen,
		"completed": OrderStatusCompleted,
		"canceled":  OrderStatusCanceled,
	}

	var ok bool
	*s, ok = orderStatus[str]
	if !ok {
		return errors.New("invalid order status")
	}
	return nil
}

type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "unpaid"
	PaymentStatusPartiallyPaid PaymentStatus = "partially_paid"
	PaymentStatusPaid          PaymentStatus = "paid"
)

func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("payment status must be string")
	}

	paymentStatus := map[string]PaymentStatus{
		"unpaid":         PaymentStatusUnpaid,
		"partially_paid": PaymentStatusPartiallyPaid,
		"paid":           PaymentStatusPaid,
	}

	var ok bool
	*s, ok = paymentStatus[str]
	if !ok {
		return errors.New("invalid payment status")
	}
	return nil
}

type FinanceEntryType string

const (
	FinanceEntryTypeIncome  FinanceEntryType = "income"
	FinanceEntryTypeExpense FinanceEntryType = "expense"
)

func (t *FinanceEntryType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("finance entry type must be string")
	}
	switch str {
	case "income":
		*t = FinanceEntryTypeIncome
	case "expense":
		*t = FinanceEntryTypeExpense
	default:
		return errors.New("invalid finance entry type")
	}
	return nil
}

type InventoryReason string

const (
	InventoryReasonOrder      InventoryReason = "order"
	InventoryReasonRestock    InventoryReason = "restock"
	InventoryReasonCorrection InventoryReason = "correction"
)

func (r *InventoryReason) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("inventory reason must be string")
	}

	inventoryReason := map[string]InventoryReason{
		"order":      InventoryReasonOrder,
		"restock":    InventoryReasonRestock,
		"correction": InventoryReasonCorrection,
	}

	var ok bool
	*r, ok = inventoryReason[str]
	if !ok {
		return errors.New("invalid inventory reason")
	}
	return nil
}

// PostingStatus tracks the ledger-posting side of a completed order.
// Set by the coordinator and the reconciliation sweep, never by client input.
type PostingStatus string

const (
	PostingStatusNone                  PostingStatus = ""
	PostingStatusPending               PostingStatus = "pending"
	PostingStatusPosted                PostingStatus = "posted"
	PostingStatusPendingReconciliation PostingStatus = "pending_reconciliation"
)

type PubSubMessageAction string

const (
	PubSubMessageActionCreate PubSubMessageAction = "C"
	PubSubMessageActionUpdate PubSubMessageAction = "U"
	PubSubMessageActionDelete PubSubMessageAction = "D"
)

func (t *PubSubMessageAction) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("pub sub message action must be string")
	}
	switch str {
	case "C":
		*t = PubSubMessageActionCreate
	case "U":
		*t = PubSubMessageActionUpdate
	case "D":
		*t = PubSubMessageActionDelete
	default:
		return errors.New("invalid pub sub message action")
	}
	return nil
}

type FulfillmentReferenceType string

const (
	FulfillmentReferenceTypeOrder           FulfillmentReferenceType = "OR"
	FulfillmentReferenceTypeStockCorrection FulfillmentReferenceType = "SC"
)

func (t *FulfillmentReferenceType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("fulfillment reference type must be string")
	}

	fulfillmentReferenceType := map[string]FulfillmentReferenceType{
		"OR": FulfillmentReferenceTypeOrder,
		"SC": FulfillmentReferenceTypeStockCorrection,
	}

	var ok bool
	*t, ok = fulfillmentReferenceType[str]
	if !ok {
		return errors.New("invalid fulfillment reference type")
	}
	return nil
}

type UserRole string

const (
	UserRoleAdmin UserRole = "A"
	UserRoleOwner UserRole = "O"
	UserRoleClerk UserRole = "C"
)

func (p *UserRole) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("user role must be string")
	}

	userRole := map[string]UserRole{
		"A": UserRoleAdmin,
		"O": UserRoleOwner,
		"C": UserRoleClerk,
	}

	var ok bool
	*p, ok = userRole[str]
	if !ok {
		return errors.New("invalid user role")
	}
	return nil
}

type MyDateString time.Time

func (t MyDateString) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format("2006-01-02T15:04:05"))
}

// Parse the string into time.Time object
func (t *MyDateString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("MyDateString must be string")
	}

	// Parse the date string into a time.Time object
	localTime, err := time.Parse("2006-01-02T15:04:05", str)
	if err != nil {
		return errors.New("error parsing datetime")
	}
	*t = MyDateString(localTime)

	return nil
}

func (t *MyDateString) StartOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "Asia/Yangon"
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	// Convert the start of the day local time to the specified timezone
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		0, 0, 0, 0,
		location,
	)

	// Convert the time to UTC
	utcTime := localTimeInZone.In(time.UTC)
	*t = MyDateString(utcTime)

	return nil
}

func (t *MyDateString) EndOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "Asia/Yangon"
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	// Convert the end of the day local time to the specified timezone
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		23, 59, 59, 999, // Max nanoseconds
		location,
	)

	// Convert the time to UTC
	utcTime := localTimeInZone.In(time.UTC)
	*t = MyDateString(utcTime)

	return nil
}

// Value implements the driver.Valuer interface
func (t MyDateString) Value() (driver.Value, error) {
	return time.Time(t), nil
}

// Scan implements the sql.Scanner interface
func (t *MyDateString) Scan(value interface{}) error {
	if value == nil {
		*t = MyDateString(time.Time{})
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		*t = MyDateString(v)
	default:
		return fmt.Errorf("cannot convert %T to MyDateString", value)
	}
	return nil
}

func (t *MyDateString) SetDefaultNowIfNil() *MyDateString {
	if t == nil {
		now := MyDateString(time.Now())
		return &now
	}
	return t
}
