package models

// BaseRole enumerates the built-in org-level roles. Every membership carries
// exactly one base role; a custom role supplements but never replaces it.
type BaseRole string

const (
	RoleAdmin   BaseRole = "admin"
	RoleStaff   BaseRole = "staff"
	RoleStudent BaseRole = "student"
	RoleParent  BaseRole = "parent"
)

// BaseRoles lists every valid base role.
var BaseRoles = []BaseRole{RoleAdmin, RoleStaff, RoleStudent, RoleParent}

// Valid reports whether the role is one of the known base roles.
func (r BaseRole) Valid() bool {
	for _, known := range BaseRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Membership binds a user to an organisation with a base role and an optional
// custom role. The (user, org) pair is unique.
type Membership struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_org" json:"user_id"`
	OrgID  string `gorm:"type:uuid;not null;uniqueIndex:idx_membership_user_org;index" json:"org_id"`

	BaseRole BaseRole `gorm:"not null" json:"base_role"`
	RoleID   *string  `gorm:"type:uuid;index" json:"role_id,omitempty"`

	User *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Org  *Organization `gorm:"foreignKey:OrgID" json:"-"`
	Role *Role         `gorm:"foreignKey:RoleID" json:"role,omitempty"`

	Audiences []Audience `gorm:"many2many:audience_members;" json:"audiences,omitempty"`
}
