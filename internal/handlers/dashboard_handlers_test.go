package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmutisya/shuledesk/internal/dashboard"
	"github.com/mmutisya/shuledesk/internal/handlers/testutil"
	"github.com/mmutisya/shuledesk/internal/models"
)

func TestOrgDashboardEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	admin := env.CreateUser("dash-admin-pass")
	org := env.CreateOrg(admin, "Dashboard Academy", models.OrgTypeSchool)

	w := env.Request(http.MethodGet, "/api/orgs/"+org.ID+"/dashboard", nil, env.Token(admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cfg dashboard.Config
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &cfg)
	require.Contains(t, cfg.Widgets, dashboard.WidgetAttendanceSummary)
	require.Contains(t, cfg.Widgets, dashboard.WidgetAttendanceRecorder)
	require.NotNil(t, cfg.Tables)
}

func TestAudienceDashboardEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	admin := env.CreateUser("aud-dash-pass")
	org := env.CreateOrg(admin, "Audience Dashboard Academy", models.OrgTypeSchool)

	audience := &models.Audience{OrgID: org.ID, Name: "Grade 1", Type: models.AudienceAcademic}
	require.NoError(t, env.DB.Create(audience).Error)

	w := env.Request(http.MethodGet, "/api/orgs/"+org.ID+"/audiences/"+audience.ID+"/dashboard", nil, env.Token(admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cfg dashboard.Config
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &cfg)
	require.NotEmpty(t, cfg.Widgets)
}

func TestUIHintsEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	admin := env.CreateUser("hints-pass")
	org := env.CreateOrg(admin, "Hints Academy", models.OrgTypeSchool)

	w := env.Request(http.MethodGet, "/api/orgs/"+org.ID+"/ui-hints", nil, env.Token(admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		OrgType models.OrgType `json:"org_type"`
		Groups  []struct {
			Name   string `json:"name"`
			Fields []struct {
				Field string `json:"field"`
			} `json:"fields"`
		} `json:"groups"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &payload)
	require.Equal(t, models.OrgTypeSchool, payload.OrgType)
	require.NotEmpty(t, payload.Groups)
}
