package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User describes an application user together with the accounts they own and
// the memberships they hold.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`

	// Avatar is an opaque reference into the upload store; the application
	// never interprets it beyond handing it back to the file layer.
	Avatar string `json:"avatar"`

	OwnedAccounts []Account       `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owned_accounts,omitempty"`
	Memberships   []AccountMember `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"memberships,omitempty"`
	LoginHistory  []LoginHistory  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Sessions      []Session       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	// SentInvitations cascades with the user; received invitations are keyed
	// by email rather than by user id and carry no foreign key here.
	SentInvitations []Invitation `gorm:"foreignKey:InviterID;constraint:OnDelete:CASCADE" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
