package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/services"
	"github.com/mmutisya/shuledesk/pkg/response"
)

type DashboardHandler struct {
	svc *services.DashboardService
}

func NewDashboardHandler(db *gorm.DB) (*DashboardHandler, error) {
	svc, err := services.NewDashboardService(db)
	if err != nil {
		return nil, err
	}
	return &DashboardHandler{svc: svc}, nil
}

// GET /api/orgs/:id/dashboard
func (h *DashboardHandler) ForOrg(c *gin.Context) {
	cfg, err := h.svc.ForOrg(requestContext(c), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cfg)
}

// GET /api/orgs/:id/units/:unitID/dashboard
func (h *DashboardHandler) ForUnit(c *gin.Context) {
	cfg, err := h.svc.ForUnit(requestContext(c), c.Param("id"), c.Param("unitID"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cfg)
}

// GET /api/orgs/:id/audiences/:audienceID/dashboard
func (h *DashboardHandler) ForAudience(c *gin.Context) {
	cfg, err := h.svc.ForAudience(requestContext(c), c.Param("id"), c.Param("audienceID"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, cfg)
}
