package models

import "gorm.io/datatypes"

// OrgType enumerates the supported organisation categories.
type OrgType string

const (
	OrgTypeSchool         OrgType = "school"
	OrgTypeCoachingCenter OrgType = "coaching_center"
	OrgTypeTuitionCenter  OrgType = "tuition_center"
	OrgTypeCollege        OrgType = "college"
	OrgTypeUniversity     OrgType = "university"
	OrgTypeEdTech         OrgType = "edtech"
	OrgTypeTraining       OrgType = "training"
	OrgTypeNGO            OrgType = "ngo"
)

// OrgTypes lists every valid organisation type in declaration order.
var OrgTypes = []OrgType{
	OrgTypeSchool,
	OrgTypeCoachingCenter,
	OrgTypeTuitionCenter,
	OrgTypeCollege,
	OrgTypeUniversity,
	OrgTypeEdTech,
	OrgTypeTraining,
	OrgTypeNGO,
}

// Valid reports whether the type is one of the known organisation types.
func (t OrgType) Valid() bool {
	for _, known := range OrgTypes {
		if t == known {
			return true
		}
	}
	return false
}

// OrgStatus tracks the lifecycle state of a tenant. Organisations are never
// hard-deleted; archival is the terminal state.
type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
	OrgStatusArchived  OrgStatus = "archived"
)

// Organization is the top-level tenant: a school, coaching center, college, etc.
type Organization struct {
	BaseModel

	Name   string    `gorm:"not null" json:"name"`
	Type   OrgType   `gorm:"not null;index" json:"type"`
	Status OrgStatus `gorm:"not null;default:active;index" json:"status"`

	Description string `json:"description"`

	// Profile holds free-form onboarding metadata scoped by SchemaVersion.
	Profile       datatypes.JSON `json:"profile"`
	SchemaVersion int            `gorm:"default:1" json:"schema_version"`

	LogoURL     string `json:"logo_url"`
	AccentColor string `json:"accent_color"`

	Memberships []Membership `gorm:"foreignKey:OrgID" json:"memberships,omitempty"`
	Units       []OrgUnit    `gorm:"foreignKey:OrgID" json:"units,omitempty"`
	Audiences   []Audience   `gorm:"foreignKey:OrgID" json:"audiences,omitempty"`
}
