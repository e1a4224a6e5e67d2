package uihints

import (
	"sort"

	"github.com/mmutisya/shuledesk/internal/models"
)

// Widget identifies the form control a field should render with.
type Widget string

const (
	WidgetSelect   Widget = "select"
	WidgetStepper  Widget = "stepper"
	WidgetChips    Widget = "chips"
	WidgetTextarea Widget = "textarea"
	WidgetRadio    Widget = "radio"
	WidgetPillset  Widget = "pillset"
	WidgetSwitch   Widget = "switch"
	WidgetText     Widget = "text"
	WidgetNumber   Widget = "number"
)

// Transform names an input normalisation applied before persisting.
type Transform string

const (
	TransformUppercase Transform = "uppercase"
	TransformTitlecase Transform = "titlecase"
	TransformTrim      Transform = "trim"
)

// Format names a display/validation format for a field.
type Format string

const (
	FormatAcademicYear Format = "academic_year"
	FormatPhone        Format = "phone"
	FormatEmail        Format = "email"
	FormatURL          Format = "url"
)

// Hint describes how one profile field renders for a given organisation type.
type Hint struct {
	Field     string    `json:"field"`
	Widget    Widget    `json:"widget"`
	Group     string    `json:"group"`
	Order     int       `json:"order"`
	Transform Transform `json:"transform,omitempty"`
	Format    Format    `json:"format,omitempty"`
}

// Group is an ordered collection of field hints rendered together.
type Group struct {
	Name   string `json:"name"`
	Fields []Hint `json:"fields"`
}

// hintTable is keyed by organisation type; slice order is the declaration
// order, which breaks ties between hints sharing an Order value.
var hintTable = map[models.OrgType][]Hint{
	models.OrgTypeSchool: {
		{Field: "board", Widget: WidgetSelect, Group: "academics", Order: 10},
		{Field: "medium", Widget: WidgetRadio, Group: "academics", Order: 20},
		{Field: "academic_year", Widget: WidgetText, Group: "academics", Order: 30, Format: FormatAcademicYear},
		{Field: "grades_offered", Widget: WidgetChips, Group: "academics", Order: 40},
		{Field: "principal_name", Widget: WidgetText, Group: "contact", Order: 10, Transform: TransformTitlecase},
		{Field: "phone", Widget: WidgetText, Group: "contact", Order: 20, Format: FormatPhone},
		{Field: "email", Widget: WidgetText, Group: "contact", Order: 30, Format: FormatEmail, Transform: TransformTrim},
		{Field: "motto", Widget: WidgetTextarea, Group: "profile", Order: 10},
	},
	models.OrgTypeCoachingCenter: {
		{Field: "target_exams", Widget: WidgetPillset, Group: "academics", Order: 10, Transform: TransformUppercase},
		{Field: "batch_size", Widget: WidgetStepper, Group: "academics", Order: 20},
		{Field: "academic_year", Widget: WidgetText, Group: "academics", Order: 30, Format: FormatAcademicYear},
		{Field: "phone", Widget: WidgetText, Group: "contact", Order: 10, Format: FormatPhone},
		{Field: "website", Widget: WidgetText, Group: "contact", Order: 20, Format: FormatURL},
	},
	models.OrgTypeTuitionCenter: {
		{Field: "subjects_offered", Widget: WidgetChips, Group: "academics", Order: 10},
		{Field: "batch_size", Widget: WidgetStepper, Group: "academics", Order: 20},
		{Field: "phone", Widget: WidgetText, Group: "contact", Order: 10, Format: FormatPhone},
	},
	models.OrgTypeCollege: {
		{Field: "affiliation", Widget: WidgetText, Group: "academics", Order: 10, Transform: TransformTitlecase},
		{Field: "departments", Widget: WidgetChips, Group: "academics", Order: 20},
		{Field: "academic_year", Widget: WidgetText, Group: "academics", Order: 30, Format: FormatAcademicYear},
		{Field: "website", Widget: WidgetText, Group: "contact", Order: 10, Format: FormatURL},
	},
	models.OrgTypeUniversity: {
		{Field: "accreditation", Widget: WidgetText, Group: "academics", Order: 10, Transform: TransformUppercase},
		{Field: "schools", Widget: WidgetChips, Group: "academics", Order: 20},
		{Field: "website", Widget: WidgetText, Group: "contact", Order: 10, Format: FormatURL},
	},
	models.OrgTypeEdTech: {
		{Field: "platform_url", Widget: WidgetText, Group: "profile", Order: 10, Format: FormatURL},
		{Field: "delivery_mode", Widget: WidgetRadio, Group: "profile", Order: 20},
		{Field: "support_email", Widget: WidgetText, Group: "contact", Order: 10, Format: FormatEmail, Transform: TransformTrim},
	},
	models.OrgTypeTraining: {
		{Field: "certifications", Widget: WidgetChips, Group: "profile", Order: 10},
		{Field: "delivery_mode", Widget: WidgetRadio, Group: "profile", Order: 20},
		{Field: "phone", Widget: WidgetText, Group: "contact", Order: 10, Format: FormatPhone},
	},
	models.OrgTypeNGO: {
		{Field: "registration_no", Widget: WidgetText, Group: "profile", Order: 10, Transform: TransformUppercase},
		{Field: "focus_areas", Widget: WidgetChips, Group: "profile", Order: 20},
		{Field: "donations_enabled", Widget: WidgetSwitch, Group: "profile", Order: 30},
		{Field: "email", Widget: WidgetText, Group: "contact", Order: 10, Format: FormatEmail, Transform: TransformTrim},
	},
}

// Lookup returns the hint registered for the field under the organisation
// type. Absence means "render with a generic default".
func Lookup(orgType models.OrgType, field string) (Hint, bool) {
	for _, hint := range hintTable[orgType] {
		if hint.Field == field {
			return hint, true
		}
	}
	return Hint{}, false
}

// Groups returns the org type's hints grouped for form layout. Groups appear
// in first-declaration order; fields within a group are sorted by Order with
// a stable sort, so equal orders keep declaration order.
func Groups(orgType models.OrgType) []Group {
	hints := hintTable[orgType]
	if len(hints) == 0 {
		return nil
	}

	var names []string
	byName := make(map[string][]Hint)
	for _, hint := range hints {
		if _, seen := byName[hint.Group]; !seen {
			names = append(names, hint.Group)
		}
		byName[hint.Group] = append(byName[hint.Group], hint)
	}

	groups := make([]Group, 0, len(names))
	for _, name := range names {
		fields := append([]Hint(nil), byName[name]...)
		sort.SliceStable(fields, func(i, j int) bool {
			return fields[i].Order < fields[j].Order
		})
		groups = append(groups, Group{Name: name, Fields: fields})
	}
	return groups
}
