package models

import (
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
)

// FulfillmentEventRecord is the transactional outbox row written in the same
// transaction as the document change it describes. Publish to Pub/Sub happens
// after commit via the dispatcher.
type FulfillmentEventRecord struct {
	ID                  int                      `gorm:"primary_key;index:idx_outbox_dispatch,priority:3;index:idx_outbox_reconcile,priority:3" json:"id"`
	BusinessId          string                   `gorm:"size:64;not null;index;index:idx_outbox_reconcile,priority:1" json:"business_id"`
	TransactionDateTime time.Time                `gorm:"index;not null" json:"transaction_date_time"`
	ReferenceId         int                      `json:"reference_id"`
	ReferenceType       FulfillmentReferenceType `gorm:"type:enum('OR','SC')" json:"reference_type"`
	Action              PubSubMessageAction      `gorm:"type:enum('C','U','D')" json:"action"`
	OldObj              []byte                   `gorm:"type:blob" json:"old_obj"`
	NewObj              []byte                   `gorm:"type:blob" json:"new_obj"`
	IsProcessed         bool                     `gorm:"index;not null;index:idx_outbox_reconcile,priority:2" json:"is_processed"`
	// Publish metadata (producer side).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	// Processing metadata (consumer/worker side).
	ProcessingStatus     string     `gorm:"size:20;index;not null;default:'PENDING'" json:"processing_status"` // PENDING|PROCESSING|SUCCEEDED|FAILED|DEAD
	ProcessAttempts      int        `gorm:"not null;default:0" json:"process_attempts"`
	NextProcessAttemptAt *time.Time `gorm:"index" json:"next_process_attempt_at"`
	LastProcessError     *string    `gorm:"type:text" json:"last_process_error"`
	ProcessedAt          *time.Time `gorm:"index" json:"processed_at"`
	CorrelationId        string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToPubSubMessage(record FulfillmentEventRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:                  record.ID,
		BusinessId:          record.BusinessId,
		TransactionDateTime: record.TransactionDateTime,
		ReferenceId:         record.ReferenceId,
		ReferenceType:       string(record.ReferenceType),
		Action:              string(record.Action),
		OldObj:              record.OldObj,
		NewObj:              record.NewObj,
		CorrelationId:       record.CorrelationId,
	}
}
