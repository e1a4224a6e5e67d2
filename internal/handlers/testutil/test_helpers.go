package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/api"
	"github.com/mmutisya/shuledesk/internal/app"
	iauth "github.com/mmutisya/shuledesk/internal/auth"
	sharedtestutil "github.com/mmutisya/shuledesk/internal/database/testutil"
	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/pkg/crypto"
	"github.com/mmutisya/shuledesk/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database
// for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
}

// NewEnv provisions a fresh handler test environment with migrations and seed
// data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{
			BaseURL: "https://desk.test",
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Monitoring: app.MonitoringConfig{
			Health: app.HealthConfig{Enabled: true},
		},
	}

	router, err := api.NewRouter(db, jwtSvc, cfg)
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
	}
}

// CreateUser inserts an active user with a random email and returns the record.
func (e *Env) CreateUser(password string) *models.User {
	e.T.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	user := &models.User{
		Email:    "user-" + uuid.NewString() + "@example.com",
		Name:     "Test User",
		Password: hashed,
		IsActive: true,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// Token issues an access token for the given user directly, bypassing the
// login endpoint.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Email:  user.Email,
	})
	require.NoError(e.T, err)
	return token
}

// CreateOrg inserts an organisation and an admin membership for the user.
func (e *Env) CreateOrg(user *models.User, name string, orgType models.OrgType) *models.Organization {
	e.T.Helper()

	org := &models.Organization{Name: name, Type: orgType, Status: models.OrgStatusActive}
	require.NoError(e.T, e.DB.Create(org).Error)
	membership := &models.Membership{UserID: user.ID, OrgID: org.ID, BaseRole: models.RoleAdmin}
	require.NoError(e.T, e.DB.Create(membership).Error)
	return org
}

// AddMember joins the user to the org with the given base role.
func (e *Env) AddMember(org *models.Organization, user *models.User, baseRole models.BaseRole) *models.Membership {
	e.T.Helper()

	membership := &models.Membership{UserID: user.ID, OrgID: org.ID, BaseRole: baseRole}
	require.NoError(e.T, e.DB.Create(membership).Error)
	return membership
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	Token string      `json:"token"`
	User  UserPayload `json:"user"`
}

// UserPayload captures the subset of user fields returned from auth endpoints.
type UserPayload struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Login authenticates against the local provider and returns the issued token.
func (e *Env) Login(email, password string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Token)
	require.Equal(e.T, email, result.User.Email)
	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON
// encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
