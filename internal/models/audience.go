package models

// AudienceType distinguishes academic groupings from activity groupings.
type AudienceType string

const (
	AudienceAcademic AudienceType = "ACADEMIC"
	AudienceActivity AudienceType = "ACTIVITY"
)

// Valid reports whether the type is one of the known audience types.
func (t AudienceType) Valid() bool {
	return t == AudienceAcademic || t == AudienceActivity
}

// Audience is a node in the current organisational hierarchy with a member
// roster. Type and IsExclusive are fixed at creation and immutable thereafter.
type Audience struct {
	BaseModel

	OrgID string       `gorm:"type:uuid;not null;index" json:"org_id"`
	Name  string       `gorm:"not null" json:"name"`
	Type  AudienceType `gorm:"not null;index" json:"type"`

	Level       int  `gorm:"default:0" json:"level"`
	IsExclusive bool `gorm:"default:false" json:"is_exclusive"`

	ParentID *string `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	Parent   *Audience  `gorm:"foreignKey:ParentID" json:"-"`
	Children []Audience `gorm:"foreignKey:ParentID" json:"children,omitempty"`

	Members []Membership `gorm:"many2many:audience_members;" json:"members,omitempty"`
}
