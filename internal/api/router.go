package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/app"
	iauth "github.com/mmutisya/shuledesk/internal/auth"
	"github.com/mmutisya/shuledesk/internal/handlers"
	"github.com/mmutisya/shuledesk/internal/middleware"
	"github.com/mmutisya/shuledesk/internal/permissions"
	"github.com/mmutisya/shuledesk/pkg/mail"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
// Organisation-scoped routes carry the org id in :id so the capability
// middleware can resolve the caller's membership before the handler runs.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(100, time.Minute))

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	checker, err := permissions.NewChecker(db)
	if err != nil {
		return nil, err
	}
	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, err
	}

	inviteHandler, err := handlers.NewInviteHandler(db, mailer, cfg.Server.BaseURL)
	if err != nil {
		return nil, err
	}

	// Redemption needs the caller's identity but no org capability: the
	// caller is not a member yet.
	api.POST("/invites/accept", inviteHandler.Accept)
	api.POST("/invites/join", inviteHandler.Join)

	roleHandler, err := handlers.NewRoleHandler(db)
	if err != nil {
		return nil, err
	}

	orgHandler, err := handlers.NewOrganizationHandler(db)
	if err != nil {
		return nil, err
	}

	// Any authenticated user can create an organisation; they become its
	// first admin. Listing is scoped to the caller's memberships.
	api.GET("/orgs", orgHandler.List)
	api.POST("/orgs", orgHandler.Create)

	unitHandler, err := handlers.NewUnitHandler(db)
	if err != nil {
		return nil, err
	}
	audienceHandler, err := handlers.NewAudienceHandler(db)
	if err != nil {
		return nil, err
	}
	memberHandler, err := handlers.NewMemberHandler(db)
	if err != nil {
		return nil, err
	}
	attendanceHandler, err := handlers.NewAttendanceHandler(db)
	if err != nil {
		return nil, err
	}
	dashboardHandler, err := handlers.NewDashboardHandler(db)
	if err != nil {
		return nil, err
	}
	uiHintsHandler, err := handlers.NewUIHintsHandler(db)
	if err != nil {
		return nil, err
	}

	can := func(capabilityID string) gin.HandlerFunc {
		return middleware.RequireCapability(checker, capabilityID)
	}

	orgs := api.Group("/orgs/:id")
	{
		orgs.GET("", can("org.view"), orgHandler.Get)
		orgs.PATCH("", can("org.manage"), orgHandler.Update)
		orgs.DELETE("", can("org.manage"), orgHandler.Archive)

		// The registry itself is static, but exposing it only inside a
		// tenant keeps the surface uniform with role management.
		orgs.GET("/capabilities", can("role.view"), roleHandler.Capabilities)

		orgs.GET("/dashboard", can("dashboard.view"), dashboardHandler.ForOrg)
		orgs.GET("/ui-hints", can("dashboard.view"), uiHintsHandler.Get)

		units := orgs.Group("/units")
		{
			units.GET("", can("unit.view"), unitHandler.List)
			units.GET("/tree", can("unit.view"), unitHandler.Tree)
			units.POST("", can("unit.manage"), unitHandler.Create)
			units.POST("/validate-meta", can("unit.view"), unitHandler.ValidateMeta)
			units.GET("/:unitID", can("unit.view"), unitHandler.Get)
			units.PATCH("/:unitID", can("unit.manage"), unitHandler.Update)
			units.DELETE("/:unitID", can("unit.manage"), unitHandler.Delete)
			units.POST("/:unitID/attach", can("unit.manage"), unitHandler.Attach)
			units.POST("/:unitID/detach", can("unit.manage"), unitHandler.Detach)
			units.GET("/:unitID/descendants", can("unit.view"), unitHandler.Descendants)
			units.GET("/:unitID/dashboard", can("dashboard.view"), dashboardHandler.ForUnit)
		}

		audiences := orgs.Group("/audiences")
		{
			audiences.GET("", can("audience.view"), audienceHandler.List)
			audiences.POST("", can("audience.manage"), audienceHandler.Create)
			audiences.GET("/:audienceID", can("audience.view"), audienceHandler.Get)
			audiences.PATCH("/:audienceID", can("audience.manage"), audienceHandler.Update)
			audiences.DELETE("/:audienceID", can("audience.manage"), audienceHandler.Delete)
			audiences.POST("/:audienceID/attach", can("audience.manage"), audienceHandler.Attach)
			audiences.POST("/:audienceID/detach", can("audience.manage"), audienceHandler.Detach)
			audiences.GET("/:audienceID/descendants", can("audience.view"), audienceHandler.Descendants)
			audiences.GET("/:audienceID/members", can("audience.view"), audienceHandler.Members)
			audiences.POST("/:audienceID/members", can("audience.manage"), audienceHandler.AddMember)
			audiences.DELETE("/:audienceID/members/:memberID", can("audience.manage"), audienceHandler.RemoveMember)
			audiences.GET("/:audienceID/dashboard", can("dashboard.view"), dashboardHandler.ForAudience)

			audiences.POST("/:audienceID/attendance", can("attendance.record"), attendanceHandler.Record)
			audiences.GET("/:audienceID/attendance", can("attendance.view"), attendanceHandler.List)
		}

		orgs.PATCH("/attendance/records/:recordID", can("attendance.record"), attendanceHandler.UpdateRecord)

		members := orgs.Group("/members")
		{
			members.GET("", can("member.view"), memberHandler.List)
			members.POST("", can("member.manage"), memberHandler.Create)
			members.GET("/:memberID", can("member.view"), memberHandler.Get)
			members.PATCH("/:memberID", can("member.manage"), memberHandler.Update)
			members.DELETE("/:memberID", can("member.manage"), memberHandler.Delete)
		}

		roles := orgs.Group("/roles")
		{
			roles.GET("", can("role.view"), roleHandler.List)
			roles.POST("", can("role.manage"), roleHandler.Create)
			roles.GET("/:roleID", can("role.view"), roleHandler.Get)
			roles.PATCH("/:roleID", can("role.manage"), roleHandler.Update)
			roles.DELETE("/:roleID", can("role.manage"), roleHandler.Delete)
			roles.PUT("/:roleID/capabilities", can("role.manage"), roleHandler.SetCapabilities)
		}

		invites := orgs.Group("/invites")
		{
			invites.GET("", can("invite.view"), inviteHandler.List)
			invites.POST("", can("invite.create"), inviteHandler.Create)
			invites.DELETE("/:inviteID", can("invite.create"), inviteHandler.Revoke)
			invites.POST("/bulk", can("invite.create"), inviteHandler.CreateBatch)
			invites.GET("/batches/:batchID", can("invite.view"), inviteHandler.GetBatch)
		}
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
