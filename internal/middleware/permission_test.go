package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/permissions"
)

func openPermissionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Role{},
		&models.Capability{},
		&models.Membership{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestRequireCapabilityWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := openPermissionTestDB(t)
	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/orgs/:id/members", RequireCapability(checker, "member.view"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orgs/org-1/members", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireCapabilityDeniesNonMembers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := openPermissionTestDB(t)
	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)

	org := models.Organization{Name: "Denial Academy", Type: models.OrgTypeSchool}
	require.NoError(t, db.Create(&org).Error)

	admin := models.User{Email: "mw-admin@example.com", Name: "Admin", Password: "x"}
	outsider := models.User{Email: "mw-outsider@example.com", Name: "Outsider", Password: "x"}
	require.NoError(t, db.Create(&admin).Error)
	require.NoError(t, db.Create(&outsider).Error)

	require.NoError(t, db.Create(&models.Membership{
		UserID:   admin.ID,
		OrgID:    org.ID,
		BaseRole: models.RoleAdmin,
	}).Error)

	r := gin.New()
	authAs := func(userID string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(CtxUserIDKey, userID)
			c.Next()
		}
	}
	r.GET("/admin/orgs/:id/members", authAs(admin.ID), RequireCapability(checker, "member.view"), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/outsider/orgs/:id/members", authAs(outsider.ID), RequireCapability(checker, "member.view"), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/orgs/"+org.ID+"/members", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/outsider/orgs/"+org.ID+"/members", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}
