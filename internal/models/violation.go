package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ViolationEvent is one proctoring violation reported by a client.
// Records are append-only; Reviewed belongs to a review workflow that
// this service does not implement.
type ViolationEvent struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	StudentID     string    `gorm:"type:text;not null;index" json:"studentId"`
	ViolationType string    `gorm:"type:text;not null" json:"violationType"`
	Timestamp     time.Time `gorm:"not null;index:idx_violation_ts,sort:desc" json:"timestamp"`
	EvidenceURL   *string   `json:"evidenceUrl"`
	Reviewed      bool      `json:"reviewed"`
}

// BeforeCreate assigns a UUID when the event has none.
func (v *ViolationEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return
}
