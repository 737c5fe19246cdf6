package models

// Account is a tenant entity owned by exactly one user and shared with zero
// or more members. The owner is set at creation and never reassigned.
type Account struct {
	BaseModel

	Name    string `gorm:"not null" json:"name"`
	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	Members     []AccountMember `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Invitations []Invitation    `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"invitations,omitempty"`
}
