package settlement

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/pkg/types"
)

// WebhookEvent records every gateway event received so replays are recognised.
type WebhookEvent struct {
	types.BaseModel

	EventID      string         `gorm:"type:varchar(255);not null;column:event_id;uniqueIndex" json:"eventId"`
	EventType    string         `gorm:"type:varchar(100);not null;column:event_type" json:"eventType"`
	IntentRef    *string        `gorm:"type:varchar(255);column:intent_ref;index" json:"intentRef,omitempty"`
	Payload      datatypes.JSON `json:"-"`
	Success      bool           `gorm:"not null" json:"success"`
	ErrorMessage *string        `gorm:"type:text;column:error_message" json:"errorMessage,omitempty"`
	ProcessedAt  *time.Time     `gorm:"column:processed_at" json:"processedAt,omitempty"`
}

// TableName overrides the default table name.
func (WebhookEvent) TableName() string { return "webhook_events" }

// recordEvent stores a newly received event. It returns the existing row and false when
// the event id was seen before.
func recordEvent(db *gorm.DB, event *WebhookEvent) (WebhookEvent, bool, error) {
	err := db.Create(event).Error
	if err == nil {
		return *event, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return WebhookEvent{}, false, err
	}

	var existing WebhookEvent
	if err := db.Where("event_id = ?", event.EventID).First(&existing).Error; err != nil {
		return WebhookEvent{}, false, err
	}
	return existing, false, nil
}

func markEvent(db *gorm.DB, id uuid.UUID, processErr error, now time.Time) error {
	updates := map[string]interface{}{
		"success":      processErr == nil,
		"processed_at": now,
	}
	if processErr != nil {
		updates["error_message"] = processErr.Error()
	} else {
		updates["error_message"] = nil
	}
	return db.Model(&WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
