package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmutisya/shuledesk/internal/models"
)

func roleWith(parent models.BaseRole, capabilityIDs ...string) *models.Role {
	caps := make([]models.Capability, 0, len(capabilityIDs))
	for _, id := range capabilityIDs {
		caps = append(caps, models.Capability{BaseModel: models.BaseModel{ID: id}})
	}
	return &models.Role{ParentRole: parent, Capabilities: caps}
}

func TestResolveAdminAllowsEverything(t *testing.T) {
	m := &models.Membership{BaseRole: models.RoleAdmin}

	require.True(t, Resolve(m, "org.manage"))
	require.True(t, Resolve(m, "attendance.record"))
	require.True(t, Resolve(m, "dashboard.view"))
}

func TestResolveDeniesWithoutRole(t *testing.T) {
	m := &models.Membership{BaseRole: models.RoleStudent}

	require.False(t, Resolve(m, "org.view"))
	require.False(t, Resolve(m, "attendance.record"))
}

func TestResolveCustomRoleGrants(t *testing.T) {
	m := &models.Membership{
		BaseRole: models.RoleStaff,
		Role:     roleWith(models.RoleStaff, "attendance.view", "attendance.record"),
	}

	require.True(t, Resolve(m, "attendance.view"))
	require.True(t, Resolve(m, "attendance.record"))
	require.False(t, Resolve(m, "org.manage"))
}

func TestResolveDependencyChainMustBeSatisfied(t *testing.T) {
	// attendance.record depends on attendance.view; granting only the former
	// denies because the chain is incomplete.
	m := &models.Membership{
		BaseRole: models.RoleStaff,
		Role:     roleWith(models.RoleStaff, "attendance.record"),
	}

	require.False(t, Resolve(m, "attendance.record"))
}

func TestResolveImpliedGrants(t *testing.T) {
	// invite.create implies member.view.
	m := &models.Membership{
		BaseRole: models.RoleStaff,
		Role:     roleWith(models.RoleStaff, "invite.view", "invite.create"),
	}

	require.True(t, Resolve(m, "invite.create"))
	require.True(t, Resolve(m, "member.view"))
	require.False(t, Resolve(m, "member.manage"))
}

func TestResolveAdminParentRoleWidens(t *testing.T) {
	m := &models.Membership{
		BaseRole: models.RoleStaff,
		Role:     roleWith(models.RoleAdmin),
	}

	require.True(t, Resolve(m, "org.manage"))
}

func TestResolveFailsClosed(t *testing.T) {
	require.False(t, Resolve(nil, "org.view"))
	require.False(t, Resolve(&models.Membership{BaseRole: models.RoleStaff}, ""))
	require.False(t, Resolve(&models.Membership{
		BaseRole: models.RoleStaff,
		Role:     roleWith(models.RoleStaff, "org.view"),
	}, "made.up"))
}

func TestResolveIgnoresStaleGrants(t *testing.T) {
	m := &models.Membership{
		BaseRole: models.RoleStaff,
		Role:     roleWith(models.RoleStaff, "retired.capability", "org.view"),
	}

	require.True(t, Resolve(m, "org.view"))
	require.False(t, Resolve(m, "retired.capability"))
}
