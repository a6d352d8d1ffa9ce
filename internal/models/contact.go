package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContactMessage is a message left through the public contact form.
type ContactMessage struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Email     string    `gorm:"type:text;not null" json:"email"`
	Phone     *string   `json:"phone"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Timestamp time.Time `gorm:"not null;index:idx_message_ts,sort:desc" json:"timestamp"`
	Read      bool      `json:"read"`
}

// BeforeCreate assigns a UUID when the message has none.
func (m *ContactMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}
