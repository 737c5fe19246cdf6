package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invitation statuses. Pending transitions to exactly one of the terminal
// states and never back.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
)

// Invitation is an offer of account membership addressed to an email. The
// invitee is referenced by email rather than user id because they may not
// have registered yet.
type Invitation struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID    string `gorm:"type:uuid;not null;index" json:"account_id"`
	InviterID    string `gorm:"type:uuid;not null" json:"inviter_id"`
	InviteeEmail string `gorm:"not null;index" json:"invitee_email"`
	Status       string `gorm:"not null;default:pending" json:"status"`

	// PendingKey is "<account_id>|<invitee_email>" while the invitation is
	// pending and NULL once resolved. The unique index over it enforces the
	// at-most-one-pending-invitation rule at the storage layer; NULLs do not
	// collide, so any number of resolved invitations may share a pair.
	PendingKey *string `gorm:"uniqueIndex" json:"-"`

	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	RespondedAt *time.Time `json:"responded_at"`

	Account *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Inviter *User    `gorm:"foreignKey:InviterID" json:"inviter,omitempty"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Status == "" {
		i.Status = InvitationPending
	}
	if i.Status == InvitationPending && i.PendingKey == nil {
		key := PendingInvitationKey(i.AccountID, i.InviteeEmail)
		i.PendingKey = &key
	}
	return nil
}

// PendingInvitationKey builds the uniqueness key guarding pending invitations.
func PendingInvitationKey(accountID, inviteeEmail string) string {
	return accountID + "|" + inviteeEmail
}
