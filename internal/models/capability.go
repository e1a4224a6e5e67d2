package models

// Capability mirrors a registry capability definition in the database so
// custom-role grants have referential integrity. The registry remains the
// source of truth; rows are synced at boot.
type Capability struct {
	BaseModel

	Module      string `gorm:"not null;index" json:"module"`
	Description string `json:"description"`
	DependsOn   string `gorm:"type:json" json:"depends_on"`
	Implies     string `gorm:"type:json" json:"implies"`

	Roles []Role `gorm:"many2many:role_capabilities;" json:"roles,omitempty"`
}
