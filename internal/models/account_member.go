package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountMember grants a user access to an account. The (account, user) pair
// is unique at the storage layer so racing writers cannot create duplicates.
type AccountMember struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string    `gorm:"type:uuid;not null;uniqueIndex:idx_account_user" json:"account_id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_account_user" json:"user_id"`
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"`
	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`

	Account *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (m *AccountMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	return nil
}
