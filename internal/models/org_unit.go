package models

import "gorm.io/datatypes"

// UnitType enumerates the legacy organisational unit categories.
type UnitType string

const (
	UnitTypeDepartment UnitType = "department"
	UnitTypeClass      UnitType = "class"
	UnitTypeSubject    UnitType = "subject"
	UnitTypeBatch      UnitType = "batch"
	UnitTypeClub       UnitType = "club"
)

// UnitTypes lists every valid unit type in declaration order.
var UnitTypes = []UnitType{
	UnitTypeDepartment,
	UnitTypeClass,
	UnitTypeSubject,
	UnitTypeBatch,
	UnitTypeClub,
}

// Valid reports whether the type is one of the known unit types.
func (t UnitType) Valid() bool {
	for _, known := range UnitTypes {
		if t == known {
			return true
		}
	}
	return false
}

// OrgUnit is a node in the legacy organisational hierarchy. It is deprecated
// in favour of Audience but still served; its metadata must validate against
// the type-specific schema.
type OrgUnit struct {
	BaseModel

	OrgID    string   `gorm:"type:uuid;not null;index" json:"org_id"`
	Type     UnitType `gorm:"not null;index" json:"type"`
	Name     string   `gorm:"not null" json:"name"`
	ParentID *string  `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	Metadata      datatypes.JSON `json:"metadata"`
	SchemaVersion int            `gorm:"default:1" json:"schema_version"`

	Parent   *OrgUnit  `gorm:"foreignKey:ParentID" json:"-"`
	Children []OrgUnit `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}
