package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/services"
	"github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/response"
)

type OrganizationHandler struct {
	svc *services.OrganizationService
}

func NewOrganizationHandler(db *gorm.DB) (*OrganizationHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewOrganizationService(db, audit)
	if err != nil {
		return nil, err
	}
	return &OrganizationHandler{svc: svc}, nil
}

type createOrganizationRequest struct {
	Name        string         `json:"name" validate:"required,min=3,max=128"`
	Type        string         `json:"type" validate:"required"`
	Description string         `json:"description" validate:"omitempty,max=512"`
	Profile     map[string]any `json:"profile"`
	LogoURL     string         `json:"logo_url" validate:"omitempty,max=512"`
	AccentColor string         `json:"accent_color" validate:"omitempty,max=16"`
}

type updateOrganizationRequest struct {
	Name        *string         `json:"name" validate:"omitempty,min=3,max=128"`
	Description *string         `json:"description" validate:"omitempty,max=512"`
	Profile     *map[string]any `json:"profile"`
	LogoURL     *string         `json:"logo_url" validate:"omitempty,max=512"`
	AccentColor *string         `json:"accent_color" validate:"omitempty,max=16"`
	Status      *string         `json:"status"`
}

// GET /api/orgs
func (h *OrganizationHandler) List(c *gin.Context) {
	orgs, err := h.svc.ListForUser(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, orgs)
}

// GET /api/orgs/:id
func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, org)
}

// POST /api/orgs
func (h *OrganizationHandler) Create(c *gin.Context) {
	var body createOrganizationRequest
	if !bindAndValidate(c, &body) {
		return
	}

	input := services.CreateOrganizationInput{
		Name:        strings.TrimSpace(body.Name),
		Type:        models.OrgType(body.Type),
		Description: strings.TrimSpace(body.Description),
		Profile:     body.Profile,
		LogoURL:     strings.TrimSpace(body.LogoURL),
		AccentColor: strings.TrimSpace(body.AccentColor),
		CreatedBy:   currentUserID(c),
	}

	org, err := h.svc.Create(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, org)
}

// PATCH /api/orgs/:id
func (h *OrganizationHandler) Update(c *gin.Context) {
	var body updateOrganizationRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if body.Name == nil && body.Description == nil && body.Profile == nil &&
		body.LogoURL == nil && body.AccentColor == nil && body.Status == nil {
		response.Error(c, errors.NewBadRequest("no fields provided for update"))
		return
	}

	input := services.UpdateOrganizationInput{
		Description: body.Description,
		LogoURL:     body.LogoURL,
		AccentColor: body.AccentColor,
	}
	if body.Name != nil {
		trimmed := strings.TrimSpace(*body.Name)
		if trimmed == "" {
			response.Error(c, errors.NewBadRequest("name must not be empty"))
			return
		}
		input.Name = &trimmed
	}
	if body.Profile != nil {
		input.Profile = *body.Profile
	}
	if body.Status != nil {
		status := models.OrgStatus(*body.Status)
		input.Status = &status
	}

	org, err := h.svc.Update(requestContext(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, org)
}

// DELETE /api/orgs/:id
func (h *OrganizationHandler) Archive(c *gin.Context) {
	if err := h.svc.Archive(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"archived": true})
}
