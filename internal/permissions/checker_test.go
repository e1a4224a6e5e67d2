package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
)

// openCheckerTestDB opens sqlite directly: the database package imports this
// one for registry sync, so the test cannot go through it.
func openCheckerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=1"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Audience{},
		&models.Role{},
		&models.Capability{},
		&models.Membership{},
	))
	require.NoError(t, Sync(context.Background(), db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func seedMembership(t *testing.T, db *gorm.DB, email string, baseRole models.BaseRole, role *models.Role) (*models.User, *models.Organization) {
	t.Helper()

	user := &models.User{Email: email, Name: "Checker User", Password: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	org := &models.Organization{Name: "Checker Org " + email, Type: models.OrgTypeSchool}
	require.NoError(t, db.Create(org).Error)

	membership := &models.Membership{UserID: user.ID, OrgID: org.ID, BaseRole: baseRole}
	if role != nil {
		role.OrgID = org.ID
		require.NoError(t, db.Create(role).Error)
		membership.RoleID = &role.ID
	}
	require.NoError(t, db.Create(membership).Error)

	return user, org
}

func TestCheckerAdminMembership(t *testing.T) {
	db := openCheckerTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	user, org := seedMembership(t, db, "checker-admin@example.com", models.RoleAdmin, nil)

	allowed, err := checker.Check(context.Background(), user.ID, org.ID, "org.manage")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestCheckerNonMemberDeniedWithoutError(t *testing.T) {
	db := openCheckerTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	outsider := &models.User{Email: "checker-outsider@example.com", Name: "Outsider", Password: "x", IsActive: true}
	require.NoError(t, db.Create(outsider).Error)

	_, org := seedMembership(t, db, "checker-member@example.com", models.RoleAdmin, nil)

	allowed, err := checker.Check(context.Background(), outsider.ID, org.ID, "org.view")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestCheckerCustomRoleGrants(t *testing.T) {
	db := openCheckerTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	role := &models.Role{
		Key:        "attendance-clerk",
		Name:       "Attendance Clerk",
		Scope:      models.RoleScopeOrg,
		ParentRole: models.RoleStaff,
		Capabilities: []models.Capability{
			{BaseModel: models.BaseModel{ID: "attendance.view"}},
			{BaseModel: models.BaseModel{ID: "attendance.record"}},
		},
	}
	user, org := seedMembership(t, db, "checker-clerk@example.com", models.RoleStaff, role)

	allowed, err := checker.Check(context.Background(), user.ID, org.ID, "attendance.record")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = checker.Check(context.Background(), user.ID, org.ID, "role.manage")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestCheckerValidatesArguments(t *testing.T) {
	db := openCheckerTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	_, err = checker.Check(context.Background(), "", "org", "org.view")
	require.Error(t, err)

	_, err = checker.Check(context.Background(), "user", " ", "org.view")
	require.Error(t, err)
}

func TestMembershipCapabilities(t *testing.T) {
	db := openCheckerTestDB(t)
	checker, err := NewChecker(db)
	require.NoError(t, err)

	role := &models.Role{
		Key:        "inviter",
		Name:       "Inviter",
		Scope:      models.RoleScopeOrg,
		ParentRole: models.RoleStaff,
		Capabilities: []models.Capability{
			{BaseModel: models.BaseModel{ID: "invite.view"}},
			{BaseModel: models.BaseModel{ID: "invite.create"}},
		},
	}
	user, org := seedMembership(t, db, "checker-inviter@example.com", models.RoleStaff, role)

	ids, err := checker.MembershipCapabilities(context.Background(), user.ID, org.ID)
	require.NoError(t, err)
	require.Contains(t, ids, "invite.view")
	require.Contains(t, ids, "invite.create")
	// Implied by invite.create.
	require.Contains(t, ids, "member.view")
	require.NotContains(t, ids, "org.manage")

	none, err := checker.MembershipCapabilities(context.Background(), user.ID, "b2b5cbfa-0000-0000-0000-000000000000")
	require.NoError(t, err)
	require.Nil(t, none)
}
