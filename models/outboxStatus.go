package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"gorm.io/gorm"
)

// OutboxPostingStatus is the worker/processing-side status exposed to clients.
// It intentionally does not include publish states like SENT.
type OutboxPostingStatus string

const (
	OutboxPostingStatusPending    OutboxPostingStatus = "PENDING"
	OutboxPostingStatusProcessing OutboxPostingStatus = "PROCESSING"
	OutboxPostingStatusFailed     OutboxPostingStatus = "FAILED"
	OutboxPostingStatusDead       OutboxPostingStatus = "DEAD"
	OutboxPostingStatusSucceeded  OutboxPostingStatus = "SUCCEEDED"
)

// OutboxStatus is a UI-facing view of the latest outbox row for a document.
type OutboxStatus struct {
	RecordId             int                      `json:"record_id"`
	ReferenceType        FulfillmentReferenceType `json:"reference_type"`
	ReferenceId          int                      `json:"reference_id"`
	PublishStatus        string                   `json:"publish_status"`
	ProcessingStatus     OutboxPostingStatus      `json:"processing_status"`
	IsProcessed          bool                     `json:"is_processed"`
	PublishAttempts      int                      `json:"publish_attempts"`
	ProcessAttempts      int                      `json:"process_attempts"`
	NextAttemptAt        *time.Time               `json:"next_attempt_at"`
	NextProcessAttemptAt *time.Time               `json:"next_process_attempt_at"`
	LastPublishError     *string                  `json:"last_publish_error"`
	LastProcessError     *string                  `json:"last_process_error"`
	CreatedAt            time.Time                `json:"created_at"`
	PublishedAt          *time.Time               `json:"published_at"`
	ProcessedAt          *time.Time               `json:"processed_at"`
}

func GetOutboxStatus(ctx context.Context, referenceType FulfillmentReferenceType, referenceId int) (*OutboxStatus, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var rec FulfillmentEventRecord
	if err := db.WithContext(ctx).
		Where("business_id = ? AND reference_type = ? AND reference_id = ?", businessId, referenceType, referenceId).
		Order("id DESC").
		First(&rec).Error; err != nil {
		return nil, err
	}

	processing := rec.ProcessingStatus
	if processing == "" {
		if rec.IsProcessed {
			processing = OutboxProcessStatusSucceeded
		} else {
			processing = OutboxProcessStatusPending
		}
	}

	var postingStatus OutboxPostingStatus
	switch processing {
	case OutboxProcessStatusProcessing:
		postingStatus = OutboxPostingStatusProcessing
	case OutboxProcessStatusFailed:
		postingStatus = OutboxPostingStatusFailed
	case OutboxProcessStatusDead:
		postingStatus = OutboxPostingStatusDead
	case OutboxProcessStatusSucceeded:
		postingStatus = OutboxPostingStatusSucceeded
	default:
		// If the row is already processed, always show SUCCEEDED (even if older rows have legacy values).
		if rec.IsProcessed {
			postingStatus = OutboxPostingStatusSucceeded
		} else {
			postingStatus = OutboxPostingStatusPending
		}
	}

	return &OutboxStatus{
		RecordId:             rec.ID,
		ReferenceType:        rec.ReferenceType,
		ReferenceId:          rec.ReferenceId,
		PublishStatus:        rec.PublishStatus,
		ProcessingStatus:     postingStatus,
		IsProcessed:          rec.IsProcessed,
		PublishAttempts:      rec.PublishAttempts,
		ProcessAttempts:      rec.ProcessAttempts,
		NextAttemptAt:        rec.NextAttemptAt,
		NextProcessAttemptAt: rec.NextProcessAttemptAt,
		LastPublishError:     rec.LastPublishError,
		LastProcessError:     rec.LastProcessError,
		CreatedAt:            rec.CreatedAt,
		PublishedAt:          rec.PublishedAt,
		ProcessedAt:          rec.ProcessedAt,
	}, nil
}

// ReprocessOutbox resets the latest unprocessed outbox rows of a document so
// the dispatcher and the worker pick them up again.
func ReprocessOutbox(ctx context.Context, referenceType FulfillmentReferenceType, referenceId int) (*OutboxStatus, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	now := time.Now().UTC()
	db := config.GetDB()

	res := db.WithContext(ctx).
		Model(&FulfillmentEventRecord{}).
		Where("business_id = ? AND reference_type = ? AND reference_id = ? AND is_processed = 0", businessId, referenceType, referenceId).
		Updates(map[string]interface{}{
			"locked_at":               nil,
			"locked_by":               nil,
			"publish_status":          OutboxPublishStatusPending,
			"next_attempt_at":         nil,
			"processing_status":       OutboxProcessStatusPending,
			"next_process_attempt_at": &now,
			"last_process_error":      nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return GetOutboxStatus(ctx, referenceType, referenceId)
}
