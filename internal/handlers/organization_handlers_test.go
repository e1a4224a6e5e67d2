package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmutisya/shuledesk/internal/handlers/testutil"
	"github.com/mmutisya/shuledesk/internal/models"
)

func TestOrganizationCreateMakesCallerAdmin(t *testing.T) {
	env := testutil.NewEnv(t)

	user := env.CreateUser("org-owner-pass")
	token := env.Token(user)

	w := env.Request(http.MethodPost, "/api/orgs", map[string]any{
		"name": "Hillside Academy",
		"type": "school",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	var org models.Organization
	testutil.DecodeInto(t, resp.Data, &org)
	require.Equal(t, models.OrgTypeSchool, org.Type)
	require.Equal(t, models.OrgStatusActive, org.Status)

	// The creator can immediately manage the new org.
	w = env.Request(http.MethodGet, "/api/orgs/"+org.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var membership models.Membership
	require.NoError(t, env.DB.First(&membership, "org_id = ? AND user_id = ?", org.ID, user.ID).Error)
	require.Equal(t, models.RoleAdmin, membership.BaseRole)
}

func TestOrganizationListScopedToCaller(t *testing.T) {
	env := testutil.NewEnv(t)

	owner := env.CreateUser("owner-pass")
	org := env.CreateOrg(owner, "Mine Academy", models.OrgTypeSchool)

	outsider := env.CreateUser("outsider-pass")
	env.CreateOrg(outsider, "Theirs Academy", models.OrgTypeCollege)

	w := env.Request(http.MethodGet, "/api/orgs", nil, env.Token(owner))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	var orgs []models.Organization
	testutil.DecodeInto(t, resp.Data, &orgs)
	require.Len(t, orgs, 1)
	require.Equal(t, org.ID, orgs[0].ID)
}

func TestOrganizationCapabilityEnforcement(t *testing.T) {
	env := testutil.NewEnv(t)

	admin := env.CreateUser("admin-pass")
	org := env.CreateOrg(admin, "Guarded Academy", models.OrgTypeSchool)

	student := env.CreateUser("student-pass")
	env.AddMember(org, student, models.RoleStudent)
	studentToken := env.Token(student)

	// Students hold no org.view capability without a custom role.
	w := env.Request(http.MethodGet, "/api/orgs/"+org.ID, nil, studentToken)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = env.Request(http.MethodPatch, "/api/orgs/"+org.ID, map[string]any{
		"name": "Hijacked Academy",
	}, studentToken)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// Non-members are indistinguishable from the unauthorised.
	stranger := env.CreateUser("stranger-pass")
	w = env.Request(http.MethodGet, "/api/orgs/"+org.ID, nil, env.Token(stranger))
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestOrganizationDeleteArchives(t *testing.T) {
	env := testutil.NewEnv(t)

	admin := env.CreateUser("archiver-pass")
	org := env.CreateOrg(admin, "Sunset Academy", models.OrgTypeSchool)
	token := env.Token(admin)

	w := env.Request(http.MethodDelete, "/api/orgs/"+org.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reloaded models.Organization
	require.NoError(t, env.DB.First(&reloaded, "id = ?", org.ID).Error)
	require.Equal(t, models.OrgStatusArchived, reloaded.Status)
}
