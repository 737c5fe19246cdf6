package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoginHistory records a single successful login event for a user.
type LoginHistory struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	LoginTime time.Time `gorm:"not null;index" json:"login_time"`
	IPAddress string    `json:"ip_address"`
}

func (l *LoginHistory) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
