package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/services"
	"github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/response"
)

type MemberHandler struct {
	svc *services.MembershipService
}

func NewMemberHandler(db *gorm.DB) (*MemberHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewMembershipService(db, audit)
	if err != nil {
		return nil, err
	}
	return &MemberHandler{svc: svc}, nil
}

type createMemberRequest struct {
	UserID   string  `json:"user_id" validate:"required,uuid4"`
	BaseRole string  `json:"base_role" validate:"required"`
	RoleID   *string `json:"role_id" validate:"omitempty,uuid4"`
}

type updateMemberRequest struct {
	BaseRole *string `json:"base_role"`
	RoleID   *string `json:"role_id" validate:"omitempty,uuid4"`
	// ClearRole removes the custom role; it cannot be combined with role_id.
	ClearRole bool `json:"clear_role"`
}

// GET /api/orgs/:id/members
func (h *MemberHandler) List(c *gin.Context) {
	members, err := h.svc.List(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// GET /api/orgs/:id/members/:memberID
func (h *MemberHandler) Get(c *gin.Context) {
	member, err := h.svc.GetByID(requestContext(c), c.Param("id"), c.Param("memberID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// POST /api/orgs/:id/members
func (h *MemberHandler) Create(c *gin.Context) {
	var body createMemberRequest
	if !bindAndValidate(c, &body) {
		return
	}

	member, err := h.svc.Create(requestContext(c), c.Param("id"), services.CreateMembershipInput{
		UserID:   body.UserID,
		BaseRole: models.BaseRole(body.BaseRole),
		RoleID:   body.RoleID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, member)
}

// PATCH /api/orgs/:id/members/:memberID
func (h *MemberHandler) Update(c *gin.Context) {
	var body updateMemberRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if body.BaseRole == nil && body.RoleID == nil && !body.ClearRole {
		response.Error(c, errors.NewBadRequest("no fields provided for update"))
		return
	}
	if body.ClearRole && body.RoleID != nil {
		response.Error(c, errors.NewBadRequest("role_id and clear_role are mutually exclusive"))
		return
	}

	input := services.UpdateMembershipInput{}
	if body.BaseRole != nil {
		role := models.BaseRole(*body.BaseRole)
		input.BaseRole = &role
	}
	if body.ClearRole {
		var none *string
		input.RoleID = &none
	} else if body.RoleID != nil {
		input.RoleID = &body.RoleID
	}

	member, err := h.svc.Update(requestContext(c), c.Param("id"), c.Param("memberID"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// DELETE /api/orgs/:id/members/:memberID
func (h *MemberHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id"), c.Param("memberID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
