package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/mmutisya/shuledesk/internal/database/testutil"
	"github.com/mmutisya/shuledesk/internal/models"
)

// openServiceTestDB opens a migrated and seeded in-memory database so custom
// role grants can reference real capability rows.
func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithSeedData())
}

func seedOrg(t *testing.T, db *gorm.DB, name string) *models.Organization {
	t.Helper()

	org := &models.Organization{Name: name, Type: models.OrgTypeSchool, Status: models.OrgStatusActive}
	require.NoError(t, db.Create(org).Error)
	return org
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{Email: email, Name: "Test User", Password: "not-a-real-hash", IsActive: true}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedMember(t *testing.T, db *gorm.DB, org *models.Organization, user *models.User, baseRole models.BaseRole) *models.Membership {
	t.Helper()

	membership := &models.Membership{UserID: user.ID, OrgID: org.ID, BaseRole: baseRole}
	require.NoError(t, db.Create(membership).Error)
	return membership
}

func seedAudience(t *testing.T, db *gorm.DB, org *models.Organization, name string, audienceType models.AudienceType, exclusive bool) *models.Audience {
	t.Helper()

	audience := &models.Audience{OrgID: org.ID, Name: name, Type: audienceType, IsExclusive: exclusive}
	require.NoError(t, db.Create(audience).Error)
	return audience
}

func strPtr(s string) *string { return &s }

func baseRolePtr(r models.BaseRole) *models.BaseRole { return &r }
