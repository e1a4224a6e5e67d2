package models

import "time"

// Invite is a pending offer for a user to join an organisation. Exactly one of
// BaseRole or RoleID is set. Accepted invites are immutable except AcceptedBy.
type Invite struct {
	BaseModel

	OrgID string `gorm:"type:uuid;not null;index" json:"org_id"`
	Email string `gorm:"not null;index" json:"email"`

	BaseRole *BaseRole `json:"base_role,omitempty"`
	RoleID   *string   `gorm:"type:uuid;index" json:"role_id,omitempty"`

	AudienceID *string `gorm:"type:uuid;index" json:"audience_id,omitempty"`

	TokenHash    string  `gorm:"not null;index" json:"-"`
	JoinCodeHash *string `gorm:"index" json:"-"`

	InvitedBy string    `gorm:"type:uuid" json:"invited_by"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`

	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy *string    `gorm:"type:uuid" json:"accepted_by,omitempty"`

	BatchID *string `gorm:"type:uuid;index" json:"batch_id,omitempty"`

	Role     *Role     `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	Audience *Audience `gorm:"foreignKey:AudienceID;constraint:OnDelete:SET NULL" json:"audience,omitempty"`
}
