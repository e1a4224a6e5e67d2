package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/permissions"
	"github.com/mmutisya/shuledesk/internal/services"
	"github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/response"
)

type RoleHandler struct {
	svc *services.RoleService
}

func NewRoleHandler(db *gorm.DB) (*RoleHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewRoleService(db, audit)
	if err != nil {
		return nil, err
	}
	return &RoleHandler{svc: svc}, nil
}

type createRoleRequest struct {
	Key          string   `json:"key" validate:"required,min=2,max=64"`
	Name         string   `json:"name" validate:"required,min=2,max=128"`
	Description  string   `json:"description" validate:"omitempty,max=512"`
	Scope        string   `json:"scope" validate:"required,oneof=org unit"`
	ParentRole   string   `json:"parent_role" validate:"required"`
	Capabilities []string `json:"capabilities"`
}

type updateRoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=128"`
	Description *string `json:"description" validate:"omitempty,max=512"`
	ParentRole  *string `json:"parent_role"`
}

type setCapabilitiesRequest struct {
	Capabilities []string `json:"capabilities" validate:"required"`
}

// GET /api/orgs/:id/roles
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.svc.List(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/orgs/:id/roles/:roleID
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.svc.GetByID(requestContext(c), c.Param("id"), c.Param("roleID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// POST /api/orgs/:id/roles
func (h *RoleHandler) Create(c *gin.Context) {
	var body createRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.svc.Create(requestContext(c), c.Param("id"), services.CreateRoleInput{
		Key:          body.Key,
		Name:         body.Name,
		Description:  body.Description,
		Scope:        models.RoleScope(body.Scope),
		ParentRole:   models.BaseRole(body.ParentRole),
		Capabilities: body.Capabilities,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// PATCH /api/orgs/:id/roles/:roleID
func (h *RoleHandler) Update(c *gin.Context) {
	var body updateRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if body.Name == nil && body.Description == nil && body.ParentRole == nil {
		response.Error(c, errors.NewBadRequest("no fields provided for update"))
		return
	}

	input := services.UpdateRoleInput{
		Name:        body.Name,
		Description: body.Description,
	}
	if body.ParentRole != nil {
		role := models.BaseRole(*body.ParentRole)
		input.ParentRole = &role
	}

	role, err := h.svc.Update(requestContext(c), c.Param("id"), c.Param("roleID"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// PUT /api/orgs/:id/roles/:roleID/capabilities
func (h *RoleHandler) SetCapabilities(c *gin.Context) {
	var body setCapabilitiesRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.svc.SetCapabilities(requestContext(c), c.Param("id"), c.Param("roleID"), body.Capabilities)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// DELETE /api/orgs/:id/roles/:roleID
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id"), c.Param("roleID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/orgs/:id/capabilities lists the registry grouped by module so
// admin UIs can render grant pickers.
func (h *RoleHandler) Capabilities(c *gin.Context) {
	all := permissions.GetAll()
	grouped := map[string][]*permissions.Capability{}
	for _, def := range all {
		grouped[def.Module] = append(grouped[def.Module], def)
	}
	response.Success(c, http.StatusOK, grouped)
}
