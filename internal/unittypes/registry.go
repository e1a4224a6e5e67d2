package unittypes

import (
	"github.com/mmutisya/shuledesk/internal/models"
)

// Feature identifies a per-unit toggleable capability surfaced as widgets.
type Feature string

const (
	FeatureAttendance    Feature = "attendance"
	FeatureAssignments   Feature = "assignments"
	FeatureTests         Feature = "tests"
	FeatureNotes         Feature = "notes"
	FeatureFees          Feature = "fees"
	FeatureAnnouncements Feature = "announcements"
)

// Features lists every feature in canonical order. Widget ordering downstream
// derives from this slice, so the order is part of the contract.
var Features = []Feature{
	FeatureAttendance,
	FeatureAssignments,
	FeatureTests,
	FeatureNotes,
	FeatureFees,
	FeatureAnnouncements,
}

// Known reports whether the feature name is recognised.
func Known(f Feature) bool {
	for _, known := range Features {
		if f == known {
			return true
		}
	}
	return false
}

// FieldKind constrains the value type of a metadata field.
type FieldKind string

const (
	FieldString FieldKind = "string"
	FieldInt    FieldKind = "int"
)

// FieldRule describes a type-specific metadata field.
type FieldRule struct {
	Name     string
	Kind     FieldKind
	Required bool
	MinLen   int
	MaxLen   int
	Min      int
	Default  any
}

// Schema is the validated shape of unit metadata for one unit type.
type Schema struct {
	Type          models.UnitType
	SchemaVersion int
	MaxDescLen    int

	// Defaults is the full per-type feature table. Stored metadata carries a
	// sparse override map merged over these defaults; overrides win.
	Defaults map[Feature]bool

	Fields []FieldRule
}

const maxDescriptionLen = 512

// registry is built once at package load and never mutated afterwards, so it
// is safe for unsynchronised concurrent reads.
var registry = map[models.UnitType]*Schema{
	models.UnitTypeClass: {
		Type:          models.UnitTypeClass,
		SchemaVersion: 1,
		MaxDescLen:    maxDescriptionLen,
		Defaults: map[Feature]bool{
			FeatureAttendance:    true,
			FeatureAssignments:   true,
			FeatureTests:         true,
			FeatureNotes:         true,
			FeatureFees:          false,
			FeatureAnnouncements: true,
		},
		Fields: []FieldRule{
			{Name: "grade", Kind: FieldString, Required: true, MinLen: 1, MaxLen: 16, Default: "1"},
			{Name: "section", Kind: FieldString, MaxLen: 16},
		},
	},
	models.UnitTypeSubject: {
		Type:          models.UnitTypeSubject,
		SchemaVersion: 1,
		MaxDescLen:    maxDescriptionLen,
		Defaults: map[Feature]bool{
			FeatureAttendance:    false,
			FeatureAssignments:   true,
			FeatureTests:         true,
			FeatureNotes:         true,
			FeatureFees:          false,
			FeatureAnnouncements: false,
		},
		Fields: []FieldRule{
			{Name: "code", Kind: FieldString, Required: true, MinLen: 2, MaxLen: 16, Default: "GEN"},
		},
	},
	models.UnitTypeBatch: {
		Type:          models.UnitTypeBatch,
		SchemaVersion: 1,
		MaxDescLen:    maxDescriptionLen,
		Defaults: map[Feature]bool{
			FeatureAttendance:    true,
			FeatureAssignments:   true,
			FeatureTests:         true,
			FeatureNotes:         false,
			FeatureFees:          true,
			FeatureAnnouncements: true,
		},
		Fields: []FieldRule{
			{Name: "capacity", Kind: FieldInt, Required: true, Min: 1, Default: 30},
		},
	},
	models.UnitTypeDepartment: {
		Type:          models.UnitTypeDepartment,
		SchemaVersion: 1,
		MaxDescLen:    maxDescriptionLen,
		Defaults: map[Feature]bool{
			FeatureAttendance:    false,
			FeatureAssignments:   false,
			FeatureTests:         false,
			FeatureNotes:         false,
			FeatureFees:          false,
			FeatureAnnouncements: true,
		},
		Fields: []FieldRule{
			{Name: "head", Kind: FieldString, MaxLen: 128},
		},
	},
	models.UnitTypeClub: {
		Type:          models.UnitTypeClub,
		SchemaVersion: 1,
		MaxDescLen:    maxDescriptionLen,
		Defaults: map[Feature]bool{
			FeatureAttendance:    true,
			FeatureAssignments:   false,
			FeatureTests:         false,
			FeatureNotes:         false,
			FeatureFees:          false,
			FeatureAnnouncements: true,
		},
		Fields: []FieldRule{
			{Name: "category", Kind: FieldString, MaxLen: 64},
		},
	},
}

// Get returns the schema registered for the unit type.
func Get(t models.UnitType) (*Schema, bool) {
	schema, ok := registry[t]
	return schema, ok
}

// Defaults returns a copy of the full feature default table for the unit type.
func Defaults(t models.UnitType) (map[Feature]bool, bool) {
	schema, ok := registry[t]
	if !ok {
		return nil, false
	}

	out := make(map[Feature]bool, len(schema.Defaults))
	for feature, enabled := range schema.Defaults {
		out[feature] = enabled
	}
	return out, true
}

// DefaultPayload builds the minimal metadata payload that validates for the
// unit type: pinned schema version plus defaults for required fields.
func DefaultPayload(t models.UnitType) (map[string]any, bool) {
	schema, ok := registry[t]
	if !ok {
		return nil, false
	}

	payload := map[string]any{
		"schema_version": schema.SchemaVersion,
	}
	for _, rule := range schema.Fields {
		if rule.Required && rule.Default != nil {
			payload[rule.Name] = rule.Default
		}
	}
	return payload, true
}

// Merge overlays a sparse feature override map onto the supplied defaults.
// Overrides win; features absent from the overrides keep their default.
func Merge(defaults map[Feature]bool, overrides map[Feature]bool) map[Feature]bool {
	out := make(map[Feature]bool, len(defaults))
	for feature, enabled := range defaults {
		out[feature] = enabled
	}
	for feature, enabled := range overrides {
		out[feature] = enabled
	}
	return out
}
