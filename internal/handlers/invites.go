package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/services"
	"github.com/mmutisya/shuledesk/pkg/mail"
	"github.com/mmutisya/shuledesk/pkg/response"
)

type InviteHandler struct {
	svc *services.InviteService
}

func NewInviteHandler(db *gorm.DB, mailer mail.Mailer, baseURL string) (*InviteHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewInviteService(db, audit, mailer, baseURL)
	if err != nil {
		return nil, err
	}
	return &InviteHandler{svc: svc}, nil
}

type createInviteRequest struct {
	Email        string  `json:"email" validate:"required,email"`
	BaseRole     *string `json:"base_role"`
	RoleID       *string `json:"role_id" validate:"omitempty,uuid4"`
	AudienceID   *string `json:"audience_id" validate:"omitempty,uuid4"`
	WithJoinCode bool    `json:"with_join_code"`
}

type acceptInviteRequest struct {
	Token string `json:"token" validate:"required"`
}

type joinInviteRequest struct {
	Code string `json:"code" validate:"required,min=4,max=16"`
}

type batchItemRequest struct {
	Email      string  `json:"email" validate:"required"`
	BaseRole   *string `json:"base_role"`
	RoleID     *string `json:"role_id" validate:"omitempty,uuid4"`
	AudienceID *string `json:"audience_id" validate:"omitempty,uuid4"`
}

type createBatchRequest struct {
	Mode  string             `json:"mode" validate:"required,oneof=dry_run commit"`
	Items []batchItemRequest `json:"items" validate:"required,min=1,dive"`
}

// GET /api/orgs/:id/invites
func (h *InviteHandler) List(c *gin.Context) {
	invites, err := h.svc.List(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invites)
}

// POST /api/orgs/:id/invites
func (h *InviteHandler) Create(c *gin.Context) {
	var body createInviteRequest
	if !bindAndValidate(c, &body) {
		return
	}

	created, err := h.svc.Create(requestContext(c), c.Param("id"), currentUserID(c), services.CreateInviteInput{
		Email:        body.Email,
		BaseRole:     baseRolePtr(body.BaseRole),
		RoleID:       body.RoleID,
		AudienceID:   body.AudienceID,
		WithJoinCode: body.WithJoinCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{
		"invite": created.Invite,
		"token":  created.Token,
	}
	if created.JoinCode != "" {
		payload["join_code"] = created.JoinCode
	}
	response.Success(c, http.StatusCreated, payload)
}

// DELETE /api/orgs/:id/invites/:inviteID
func (h *InviteHandler) Revoke(c *gin.Context) {
	if err := h.svc.Revoke(requestContext(c), c.Param("id"), c.Param("inviteID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// POST /api/invites/accept
func (h *InviteHandler) Accept(c *gin.Context) {
	var body acceptInviteRequest
	if !bindAndValidate(c, &body) {
		return
	}

	membership, err := h.svc.Accept(requestContext(c), body.Token, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, membership)
}

// POST /api/invites/join
func (h *InviteHandler) Join(c *gin.Context) {
	var body joinInviteRequest
	if !bindAndValidate(c, &body) {
		return
	}

	membership, err := h.svc.AcceptByCode(requestContext(c), body.Code, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, membership)
}

// POST /api/orgs/:id/invites/bulk
func (h *InviteHandler) CreateBatch(c *gin.Context) {
	var body createBatchRequest
	if !bindAndValidate(c, &body) {
		return
	}

	items := make([]services.BatchItemInput, 0, len(body.Items))
	for _, item := range body.Items {
		items = append(items, services.BatchItemInput{
			Email:      item.Email,
			BaseRole:   baseRolePtr(item.BaseRole),
			RoleID:     item.RoleID,
			AudienceID: item.AudienceID,
		})
	}

	batch, err := h.svc.CreateBatch(requestContext(c), c.Param("id"), currentUserID(c), models.BatchMode(body.Mode), items)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, batch)
}

// GET /api/orgs/:id/invites/batches/:batchID
func (h *InviteHandler) GetBatch(c *gin.Context) {
	batch, err := h.svc.GetBatch(requestContext(c), c.Param("id"), c.Param("batchID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, batch)
}

func baseRolePtr(raw *string) *models.BaseRole {
	if raw == nil {
		return nil
	}
	role := models.BaseRole(*raw)
	return &role
}
