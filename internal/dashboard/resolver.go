package dashboard

import (
	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/unittypes"
)

// WidgetKey identifies a dashboard widget the client knows how to render.
type WidgetKey string

const (
	WidgetAttendanceSummary   WidgetKey = "attendance_summary"
	WidgetAttendanceRecorder  WidgetKey = "attendance_recorder"
	WidgetAssignmentsOverview WidgetKey = "assignments_overview"
	WidgetTestsOverview       WidgetKey = "tests_overview"
	WidgetNotesFeed           WidgetKey = "notes_feed"
	WidgetFeesSummary         WidgetKey = "fees_summary"
	WidgetFeesCollection      WidgetKey = "fees_collection"
	WidgetAnnouncementsBoard  WidgetKey = "announcements_board"
)

// Config is the derived dashboard shape for one (target, caller) pair. It is
// recomputed on every request and never persisted.
type Config struct {
	Role    models.BaseRole `json:"role"`
	Widgets []WidgetKey     `json:"widgets"`
	Tables  []string        `json:"tables"`
}

// TargetKind distinguishes what the dashboard is resolved against.
type TargetKind string

const (
	TargetOrg      TargetKind = "org"
	TargetUnit     TargetKind = "unit"
	TargetAudience TargetKind = "audience"
)

// Target carries the resolved feature table for the org, unit, or audience a
// dashboard is requested for.
type Target struct {
	Kind     TargetKind
	Features map[unittypes.Feature]bool
}

// widgetMatrix is the explicit role-eligibility table: feature × role →
// widget keys. Both gates are independent and hard: a disabled feature hides
// its widgets for every role, and an ineligible role never sees a widget no
// matter the flags. Rows follow unittypes.Features canonical order, which
// fixes the rendered widget order.
var widgetMatrix = map[unittypes.Feature]map[models.BaseRole][]WidgetKey{
	unittypes.FeatureAttendance: {
		models.RoleAdmin:   {WidgetAttendanceSummary, WidgetAttendanceRecorder},
		models.RoleStaff:   {WidgetAttendanceSummary, WidgetAttendanceRecorder},
		models.RoleStudent: {WidgetAttendanceSummary},
		models.RoleParent:  {WidgetAttendanceSummary},
	},
	unittypes.FeatureAssignments: {
		models.RoleAdmin:   {WidgetAssignmentsOverview},
		models.RoleStaff:   {WidgetAssignmentsOverview},
		models.RoleStudent: {WidgetAssignmentsOverview},
		models.RoleParent:  {WidgetAssignmentsOverview},
	},
	unittypes.FeatureTests: {
		models.RoleAdmin:   {WidgetTestsOverview},
		models.RoleStaff:   {WidgetTestsOverview},
		models.RoleStudent: {WidgetTestsOverview},
		models.RoleParent:  {WidgetTestsOverview},
	},
	unittypes.FeatureNotes: {
		models.RoleAdmin:   {WidgetNotesFeed},
		models.RoleStaff:   {WidgetNotesFeed},
		models.RoleStudent: {WidgetNotesFeed},
	},
	unittypes.FeatureFees: {
		models.RoleAdmin: {WidgetFeesSummary, WidgetFeesCollection},
		models.RoleStaff: {WidgetFeesSummary},
	},
	unittypes.FeatureAnnouncements: {
		models.RoleAdmin:   {WidgetAnnouncementsBoard},
		models.RoleStaff:   {WidgetAnnouncementsBoard},
		models.RoleStudent: {WidgetAnnouncementsBoard},
		models.RoleParent:  {WidgetAnnouncementsBoard},
	},
}

// tableMatrix maps feature × role → data tables, under the same double gate.
var tableMatrix = map[unittypes.Feature]map[models.BaseRole][]string{
	unittypes.FeatureAttendance: {
		models.RoleAdmin: {"attendance_records"},
		models.RoleStaff: {"attendance_records"},
	},
	unittypes.FeatureAssignments: {
		models.RoleAdmin:   {"assignments"},
		models.RoleStaff:   {"assignments"},
		models.RoleStudent: {"assignments"},
		models.RoleParent:  {"assignments"},
	},
	unittypes.FeatureTests: {
		models.RoleAdmin:   {"test_results"},
		models.RoleStaff:   {"test_results"},
		models.RoleStudent: {"test_results"},
		models.RoleParent:  {"test_results"},
	},
	unittypes.FeatureFees: {
		models.RoleAdmin: {"fee_ledger"},
		models.RoleStaff: {"fee_ledger"},
	},
}

// Resolve computes the ordered widget and table sets for the caller against
// the target. Output order is fixed by the canonical feature order, never by
// map iteration, so a dashboard cannot flicker between reloads.
func Resolve(target Target, caller *models.Membership) Config {
	role := EffectiveRole(caller)

	cfg := Config{
		Role:    role,
		Widgets: []WidgetKey{},
		Tables:  []string{},
	}
	if caller == nil {
		return cfg
	}

	for _, feature := range unittypes.Features {
		if !target.Features[feature] {
			continue
		}
		cfg.Widgets = append(cfg.Widgets, widgetMatrix[feature][role]...)
		cfg.Tables = append(cfg.Tables, tableMatrix[feature][role]...)
	}
	return cfg
}

// EffectiveRole determines the persona used for widget eligibility. A custom
// role adopts its parent base role's presentation; the admin base role always
// wins.
func EffectiveRole(m *models.Membership) models.BaseRole {
	if m == nil {
		return ""
	}
	if m.BaseRole == models.RoleAdmin {
		return models.RoleAdmin
	}
	if m.Role != nil && m.Role.ParentRole.Valid() {
		return m.Role.ParentRole
	}
	return m.BaseRole
}

// orgFeatureTable fixes the feature set surfaced on an organisation-level
// dashboard per organisation type.
var orgFeatureTable = map[models.OrgType]map[unittypes.Feature]bool{
	models.OrgTypeSchool:         {unittypes.FeatureAttendance: true, unittypes.FeatureAssignments: true, unittypes.FeatureTests: true, unittypes.FeatureNotes: true, unittypes.FeatureFees: true, unittypes.FeatureAnnouncements: true},
	models.OrgTypeCoachingCenter: {unittypes.FeatureAttendance: true, unittypes.FeatureAssignments: true, unittypes.FeatureTests: true, unittypes.FeatureNotes: true, unittypes.FeatureFees: true, unittypes.FeatureAnnouncements: true},
	models.OrgTypeTuitionCenter:  {unittypes.FeatureAttendance: true, unittypes.FeatureAssignments: true, unittypes.FeatureTests: true, unittypes.FeatureNotes: true, unittypes.FeatureFees: true, unittypes.FeatureAnnouncements: true},
	models.OrgTypeCollege:        {unittypes.FeatureAttendance: true, unittypes.FeatureAssignments: true, unittypes.FeatureTests: true, unittypes.FeatureNotes: true, unittypes.FeatureFees: true, unittypes.FeatureAnnouncements: true},
	models.OrgTypeUniversity:     {unittypes.FeatureAttendance: true, unittypes.FeatureAssignments: true, unittypes.FeatureTests: true, unittypes.FeatureNotes: true, unittypes.FeatureFees: true, unittypes.FeatureAnnouncements: true},
	models.OrgTypeEdTech:         {unittypes.FeatureAssignments: true, unittypes.FeatureTests: true, unittypes.FeatureNotes: true, unittypes.FeatureFees: true, unittypes.FeatureAnnouncements: true},
	models.OrgTypeTraining:       {unittypes.FeatureAttendance: true, unittypes.FeatureAssignments: true, unittypes.FeatureTests: true, unittypes.FeatureFees: true, unittypes.FeatureAnnouncements: true},
	models.OrgTypeNGO:            {unittypes.FeatureAttendance: true, unittypes.FeatureNotes: true, unittypes.FeatureAnnouncements: true},
}

// OrgTarget builds the resolution target for an organisation dashboard.
func OrgTarget(orgType models.OrgType) Target {
	features := make(map[unittypes.Feature]bool, len(unittypes.Features))
	for feature, enabled := range orgFeatureTable[orgType] {
		features[feature] = enabled
	}
	return Target{Kind: TargetOrg, Features: features}
}

// UnitTarget builds the resolution target for a unit: the type's
// feature defaults merged with the unit's stored overrides.
func UnitTarget(unitType models.UnitType, metadata map[string]any) (Target, bool) {
	features, ok := unittypes.EffectiveFeatures(unitType, metadata)
	if !ok {
		return Target{}, false
	}
	return Target{Kind: TargetUnit, Features: features}, true
}

// AudienceTarget builds the resolution target for an audience. Audiences do
// not carry feature metadata; ACADEMIC audiences present like classes and
// ACTIVITY audiences like clubs.
func AudienceTarget(audienceType models.AudienceType) Target {
	unitType := models.UnitTypeClass
	if audienceType == models.AudienceActivity {
		unitType = models.UnitTypeClub
	}

	features, _ := unittypes.Defaults(unitType)
	return Target{Kind: TargetAudience, Features: features}
}
