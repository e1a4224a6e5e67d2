package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/dashboard"
	"github.com/mmutisya/shuledesk/internal/models"
	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
)

func newDashboardFixture(t *testing.T) (*gorm.DB, *DashboardService, *models.Organization) {
	t.Helper()

	db := openServiceTestDB(t)
	svc, err := NewDashboardService(db)
	require.NoError(t, err)
	return db, svc, seedOrg(t, db, "Dashboard Fixture School")
}

func TestDashboardForOrgRequiresMembership(t *testing.T) {
	db, svc, org := newDashboardFixture(t)

	ctx := context.Background()
	stranger := seedUser(t, db, "stranger@example.com")

	_, err := svc.ForOrg(ctx, org.ID, stranger.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.ForOrg(ctx, "missing-org", stranger.ID)
	require.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestDashboardForOrgVariesByRole(t *testing.T) {
	db, svc, org := newDashboardFixture(t)

	ctx := context.Background()
	admin := seedUser(t, db, "dash-admin@example.com")
	seedMember(t, db, org, admin, models.RoleAdmin)
	student := seedUser(t, db, "dash-student@example.com")
	seedMember(t, db, org, student, models.RoleStudent)

	adminCfg, err := svc.ForOrg(ctx, org.ID, admin.ID)
	require.NoError(t, err)
	require.Contains(t, adminCfg.Widgets, dashboard.WidgetAttendanceRecorder)

	studentCfg, err := svc.ForOrg(ctx, org.ID, student.ID)
	require.NoError(t, err)
	require.Contains(t, studentCfg.Widgets, dashboard.WidgetAttendanceSummary)
	require.NotContains(t, studentCfg.Widgets, dashboard.WidgetAttendanceRecorder)
}

func TestDashboardForUnitHonoursFeatureOverrides(t *testing.T) {
	db, svc, org := newDashboardFixture(t)

	ctx := context.Background()
	admin := seedUser(t, db, "dash-unit@example.com")
	seedMember(t, db, org, admin, models.RoleAdmin)

	units, err := NewUnitService(db, nil)
	require.NoError(t, err)

	unit, err := units.Create(ctx, org.ID, CreateUnitInput{Name: "Form Two", Type: models.UnitTypeClass})
	require.NoError(t, err)

	cfg, err := svc.ForUnit(ctx, org.ID, unit.ID, admin.ID)
	require.NoError(t, err)
	require.Contains(t, cfg.Widgets, dashboard.WidgetAttendanceRecorder)

	// Switching the attendance feature off removes its widgets.
	_, err = units.Update(ctx, org.ID, unit.ID, UpdateUnitInput{Metadata: map[string]any{
		"grade":    "2",
		"features": map[string]any{"attendance": false},
	}})
	require.NoError(t, err)

	cfg, err = svc.ForUnit(ctx, org.ID, unit.ID, admin.ID)
	require.NoError(t, err)
	require.NotContains(t, cfg.Widgets, dashboard.WidgetAttendanceRecorder)

	_, err = svc.ForUnit(ctx, org.ID, "missing-unit", admin.ID)
	require.ErrorIs(t, err, ErrUnitNotFound)
}

func TestStudentClassDashboardFromDefaults(t *testing.T) {
	db := openServiceTestDB(t)
	ctx := context.Background()

	orgs, err := NewOrganizationService(db, nil)
	require.NoError(t, err)
	units, err := NewUnitService(db, nil)
	require.NoError(t, err)
	svc, err := NewDashboardService(db)
	require.NoError(t, err)

	founder := seedUser(t, db, "dash-founder@example.com")
	org, err := orgs.Create(ctx, CreateOrganizationInput{
		Name:      "Hillcrest Primary",
		Type:      models.OrgTypeSchool,
		CreatedBy: founder.ID,
	})
	require.NoError(t, err)

	// No explicit metadata: the class type's defaults apply.
	unit, err := units.Create(ctx, org.ID, CreateUnitInput{Name: "Grade 4", Type: models.UnitTypeClass})
	require.NoError(t, err)

	student := seedUser(t, db, "dash-pupil@example.com")
	seedMember(t, db, org, student, models.RoleStudent)

	cfg, err := svc.ForUnit(ctx, org.ID, unit.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, cfg.Role)
	require.Equal(t, []dashboard.WidgetKey{
		dashboard.WidgetAttendanceSummary,
		dashboard.WidgetAssignmentsOverview,
		dashboard.WidgetTestsOverview,
		dashboard.WidgetNotesFeed,
		dashboard.WidgetAnnouncementsBoard,
	}, cfg.Widgets)
	require.NotContains(t, cfg.Widgets, dashboard.WidgetFeesSummary)
	require.NotContains(t, cfg.Widgets, dashboard.WidgetAttendanceRecorder)
}

func TestDashboardForAudience(t *testing.T) {
	db, svc, org := newDashboardFixture(t)

	ctx := context.Background()
	staff := seedUser(t, db, "dash-staff@example.com")
	seedMember(t, db, org, staff, models.RoleStaff)
	audience := seedAudience(t, db, org, "Chess Club", models.AudienceActivity, false)

	cfg, err := svc.ForAudience(ctx, org.ID, audience.ID, staff.ID)
	require.NoError(t, err)
	require.Contains(t, cfg.Widgets, dashboard.WidgetAttendanceRecorder)

	_, err = svc.ForAudience(ctx, org.ID, "missing-audience", staff.ID)
	require.ErrorIs(t, err, ErrAudienceNotFound)
}
