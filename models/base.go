package models

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PublishFulfillment implements a transactional outbox: it writes the event
// record inside the caller's DB transaction but does NOT publish to Pub/Sub.
// Publishing is performed asynchronously by the outbox dispatcher after commit.
// The record starts unsettled; the ledger-posting phase marks it processed.
func PublishFulfillment(ctx context.Context, db *gorm.DB, businessId string, transactionDateTime time.Time, refId int, refType FulfillmentReferenceType, obj interface{}, oldObj interface{}, msgAction PubSubMessageAction) error {
	return publishFulfillment(ctx, db, businessId, transactionDateTime, refId, refType, obj, oldObj, msgAction, false)
}

// PublishFulfillmentSettled is PublishFulfillment for commands whose ledger
// side effects already happened in the same transaction (or that have none).
// The reconcile scan skips settled records.
func PublishFulfillmentSettled(ctx context.Context, db *gorm.DB, businessId string, transactionDateTime time.Time, refId int, refType FulfillmentReferenceType, obj interface{}, oldObj interface{}, msgAction PubSubMessageAction) error {
	return publishFulfillment(ctx, db, businessId, transactionDateTime, refId, refType, obj, oldObj, msgAction, true)
}

func publishFulfillment(ctx context.Context, db *gorm.DB, businessId string, transactionDateTime time.Time, refId int, refType FulfillmentReferenceType, obj interface{}, oldObj interface{}, msgAction PubSubMessageAction, settled bool) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if msgAction == PubSubMessageActionCreate || msgAction == PubSubMessageActionUpdate {
		objInByte, err = ToJSONWithoutField(obj, "Documents")
		if err != nil {
			return err
		}
	}
	if msgAction == PubSubMessageActionUpdate || msgAction == PubSubMessageActionDelete {
		oldObjInByte, err = ToJSONWithoutField(oldObj, "Documents")
		if err != nil {
			return err
		}
	}

	record := FulfillmentEventRecord{
		BusinessId:          businessId,
		TransactionDateTime: transactionDateTime,
		ReferenceId:         refId,
		ReferenceType:       refType,
		Action:              msgAction,
		NewObj:              objInByte,
		OldObj:              oldObjInByte,
		IsProcessed:         settled,
		PublishStatus:       OutboxPublishStatusPending,
		CorrelationId:       correlationIdFromContextOrNew(ctx),
	}
	if settled {
		now := time.Now().UTC()
		record.ProcessedAt = &now
		record.ProcessingStatus = OutboxProcessStatusSucceeded
	}
	err = db.Create(&record).Error
	if err != nil {
		return err
	}
	return nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ToJSONWithoutField converts an object to JSON after temporarily removing a specified field
func ToJSONWithoutField(obj interface{}, fieldName string) ([]byte, error) {
	// Get the value of the object
	val := reflect.ValueOf(obj)

	// If the value is an interface, get the concrete value it holds
	if val.Kind() == reflect.Interface {
		val = val.Elem()
	}

	// If the value is not a pointer, create a pointer to it
	if val.Kind() != reflect.Ptr {
		valPtr := reflect.New(val.Type())
		valPtr.Elem().Set(val)
		val = valPtr
	}

	// Dereference the pointer
	val = val.Elem()

	// Ensure the value is a struct
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a struct, got %v", val.Kind())
	}

	// Find the field by name
	field := val.FieldByName(fieldName)
	var err error
	var jsonData []byte
	if field.IsValid() {
		// Store the original value of the field
		originalValue := reflect.New(field.Type()).Elem()
		originalValue.Set(field)

		// Clear the field value
		field.Set(reflect.Zero(field.Type()))

		// Convert the object to JSON
		jsonData, err = json.Marshal(val.Interface())

		// Restore the original value
		field.Set(originalValue)
	} else {
		// Convert the object to JSON
		jsonData, err = json.Marshal(val.Interface())
	}
	if err != nil {
		return nil, err
	}
	return jsonData, nil
}
