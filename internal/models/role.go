package models

// RoleScope limits where a custom role applies.
type RoleScope string

const (
	RoleScopeOrg  RoleScope = "org"
	RoleScopeUnit RoleScope = "unit"
)

// Role is an org-defined custom role: a named set of capability grants with a
// base role providing fallback semantics.
type Role struct {
	BaseModel

	OrgID string `gorm:"type:uuid;not null;uniqueIndex:idx_role_org_key" json:"org_id"`
	Key   string `gorm:"not null;uniqueIndex:idx_role_org_key" json:"key"`
	Name  string `gorm:"not null" json:"name"`

	Description string `json:"description,omitempty"`

	Scope      RoleScope `gorm:"not null;default:org" json:"scope"`
	ParentRole BaseRole  `gorm:"not null" json:"parent_role"`

	Capabilities []Capability `gorm:"many2many:role_capabilities;" json:"capabilities,omitempty"`
	Memberships  []Membership `gorm:"foreignKey:RoleID" json:"-"`
}
