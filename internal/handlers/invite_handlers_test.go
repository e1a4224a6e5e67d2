package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mmutisya/shuledesk/internal/handlers/testutil"
	"github.com/mmutisya/shuledesk/internal/models"
)

type createdInvitePayload struct {
	Invite   models.Invite `json:"invite"`
	Token    string        `json:"token"`
	JoinCode string        `json:"join_code"`
}

func TestInviteCreateAcceptFlow(t *testing.T) {
	env := testutil.NewEnv(t)

	admin := env.CreateUser("invite-admin")
	org := env.CreateOrg(admin, "Invite Academy", models.OrgTypeSchool)
	adminToken := env.Token(admin)

	email := "joiner-" + uuid.NewString() + "@example.com"
	w := env.Request(http.MethodPost, "/api/orgs/"+org.ID+"/invites", map[string]any{
		"email":          email,
		"base_role":      "student",
		"with_join_code": true,
	}, adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	var created createdInvitePayload
	testutil.DecodeInto(t, resp.Data, &created)
	require.NotEmpty(t, created.Token)
	require.NotEmpty(t, created.JoinCode)
	require.Equal(t, email, created.Invite.Email)

	// The recipient registers an account and redeems the token.
	joiner := env.CreateUser("joiner-pass")
	w = env.Request(http.MethodPost, "/api/invites/accept", map[string]string{
		"token": created.Token,
	}, env.Token(joiner))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp = testutil.DecodeResponse(t, w)
	var membership models.Membership
	testutil.DecodeInto(t, resp.Data, &membership)
	require.Equal(t, org.ID, membership.OrgID)
	require.Equal(t, models.RoleStudent, membership.BaseRole)

	// The invite now shows as accepted in the org's list.
	w = env.Request(http.MethodGet, "/api/orgs/"+org.ID+"/invites", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = testutil.DecodeResponse(t, w)
	var invites []models.Invite
	testutil.DecodeInto(t, resp.Data, &invites)
	require.Len(t, invites, 1)
	require.NotNil(t, invites[0].AcceptedAt)
}

func TestInviteJoinByCode(t *testing.T) {
	env := testutil.NewEnv(t)

	admin := env.CreateUser("code-admin")
	org := env.CreateOrg(admin, "Code Academy", models.OrgTypeCoachingCenter)

	email := "coded-" + uuid.NewString() + "@example.com"
	w := env.Request(http.MethodPost, "/api/orgs/"+org.ID+"/invites", map[string]any{
		"email":          email,
		"base_role":      "parent",
		"with_join_code": true,
	}, env.Token(admin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created createdInvitePayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &created)

	joiner := env.CreateUser("coded-pass")
	w = env.Request(http.MethodPost, "/api/invites/join", map[string]string{
		"code": created.JoinCode,
	}, env.Token(joiner))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var membership models.Membership
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &membership)
	require.Equal(t, models.RoleParent, membership.BaseRole)
}

func TestInviteCreateRequiresCapability(t *testing.T) {
	env := testutil.NewEnv(t)

	admin := env.CreateUser("cap-admin")
	org := env.CreateOrg(admin, "Capability Academy", models.OrgTypeSchool)

	student := env.CreateUser("cap-student")
	env.AddMember(org, student, models.RoleStudent)

	w := env.Request(http.MethodPost, "/api/orgs/"+org.ID+"/invites", map[string]any{
		"email":     "blocked@example.com",
		"base_role": "student",
	}, env.Token(student))
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestInviteBulkEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	admin := env.CreateUser("bulk-admin")
	org := env.CreateOrg(admin, "Bulk Academy", models.OrgTypeSchool)
	token := env.Token(admin)

	w := env.Request(http.MethodPost, "/api/orgs/"+org.ID+"/invites/bulk", map[string]any{
		"mode": "dry_run",
		"items": []map[string]any{
			{"email": "bulk-one-" + uuid.NewString() + "@example.com", "base_role": "student"},
			{"email": "bulk-two-" + uuid.NewString() + "@example.com", "base_role": "student"},
		},
	}, token)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var batch models.InviteBatch
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &batch)
	require.Equal(t, models.BatchModeDryRun, batch.Mode)

	// Poll the status endpoint until the worker finishes.
	require.Eventually(t, func() bool {
		w := env.Request(http.MethodGet, "/api/orgs/"+org.ID+"/invites/batches/"+batch.ID, nil, token)
		if w.Code != http.StatusOK {
			return false
		}
		testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &batch)
		return batch.Status == models.BatchStatusDone || batch.Status == models.BatchStatusError
	}, 5*time.Second, 20*time.Millisecond)

	require.Equal(t, models.BatchStatusDone, batch.Status)
	require.Equal(t, 2, batch.SentCount)

	// Dry runs never persist invites.
	var count int64
	require.NoError(t, env.DB.Model(&models.Invite{}).Where("org_id = ?", org.ID).Count(&count).Error)
	require.Zero(t, count)
}
