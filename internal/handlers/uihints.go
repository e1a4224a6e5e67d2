package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/services"
	"github.com/mmutisya/shuledesk/internal/uihints"
	"github.com/mmutisya/shuledesk/pkg/response"
)

type UIHintsHandler struct {
	orgs *services.OrganizationService
}

func NewUIHintsHandler(db *gorm.DB) (*UIHintsHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	orgs, err := services.NewOrganizationService(db, audit)
	if err != nil {
		return nil, err
	}
	return &UIHintsHandler{orgs: orgs}, nil
}

// GET /api/orgs/:id/ui-hints returns the org-type-specific presentation
// groups for profile fields.
func (h *UIHintsHandler) Get(c *gin.Context) {
	org, err := h.orgs.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	groups := uihints.Groups(org.Type)
	if groups == nil {
		groups = []uihints.Group{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"org_type": org.Type,
		"groups":   groups,
	})
}
