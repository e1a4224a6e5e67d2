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

type AudienceHandler struct {
	svc *services.AudienceService
}

func NewAudienceHandler(db *gorm.DB) (*AudienceHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewAudienceService(db, audit)
	if err != nil {
		return nil, err
	}
	return &AudienceHandler{svc: svc}, nil
}

type createAudienceRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=128"`
	Type        string  `json:"type" validate:"required"`
	Level       int     `json:"level" validate:"omitempty,min=0,max=100"`
	IsExclusive bool    `json:"is_exclusive"`
	ParentID    *string `json:"parent_id" validate:"omitempty,uuid4"`
}

type updateAudienceRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=128"`
	Level       *int    `json:"level" validate:"omitempty,min=0,max=100"`
	Type        *string `json:"type"`
	IsExclusive *bool   `json:"is_exclusive"`
}

type moveAudienceRequest struct {
	ParentID *string `json:"parent_id" validate:"omitempty,uuid4"`
}

type audienceMemberRequest struct {
	MembershipID string `json:"membership_id" validate:"required,uuid4"`
}

// GET /api/orgs/:id/audiences
func (h *AudienceHandler) List(c *gin.Context) {
	audiences, err := h.svc.List(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, audiences)
}

// GET /api/orgs/:id/audiences/:audienceID
func (h *AudienceHandler) Get(c *gin.Context) {
	audience, err := h.svc.GetByID(requestContext(c), c.Param("id"), c.Param("audienceID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, audience)
}

// POST /api/orgs/:id/audiences
func (h *AudienceHandler) Create(c *gin.Context) {
	var body createAudienceRequest
	if !bindAndValidate(c, &body) {
		return
	}

	audience, err := h.svc.Create(requestContext(c), c.Param("id"), services.CreateAudienceInput{
		Name:        strings.TrimSpace(body.Name),
		Type:        models.AudienceType(body.Type),
		Level:       body.Level,
		IsExclusive: body.IsExclusive,
		ParentID:    body.ParentID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, audience)
}

// PATCH /api/orgs/:id/audiences/:audienceID
func (h *AudienceHandler) Update(c *gin.Context) {
	var body updateAudienceRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if body.Name == nil && body.Level == nil && body.Type == nil && body.IsExclusive == nil {
		response.Error(c, errors.NewBadRequest("no fields provided for update"))
		return
	}

	var requestedType *models.AudienceType
	if body.Type != nil {
		t := models.AudienceType(*body.Type)
		requestedType = &t
	}

	audience, err := h.svc.Update(requestContext(c), c.Param("id"), c.Param("audienceID"), services.UpdateAudienceInput{
		Name:  body.Name,
		Level: body.Level,
	}, requestedType, body.IsExclusive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, audience)
}

// POST /api/orgs/:id/audiences/:audienceID/attach
func (h *AudienceHandler) Attach(c *gin.Context) {
	var body moveAudienceRequest
	if !bindAndValidate(c, &body) {
		return
	}
	if body.ParentID == nil {
		response.Error(c, errors.NewBadRequest("parent_id is required"))
		return
	}

	audience, err := h.svc.Move(requestContext(c), c.Param("id"), c.Param("audienceID"), body.ParentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, audience)
}

// POST /api/orgs/:id/audiences/:audienceID/detach
func (h *AudienceHandler) Detach(c *gin.Context) {
	audience, err := h.svc.Move(requestContext(c), c.Param("id"), c.Param("audienceID"), nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, audience)
}

// GET /api/orgs/:id/audiences/:audienceID/descendants
func (h *AudienceHandler) Descendants(c *gin.Context) {
	audiences, err := h.svc.Descendants(requestContext(c), c.Param("id"), c.Param("audienceID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, audiences)
}

// DELETE /api/orgs/:id/audiences/:audienceID?cascade=true
func (h *AudienceHandler) Delete(c *gin.Context) {
	cascade := strings.EqualFold(c.Query("cascade"), "true")
	if err := h.svc.Delete(requestContext(c), c.Param("id"), c.Param("audienceID"), cascade); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/orgs/:id/audiences/:audienceID/members
func (h *AudienceHandler) Members(c *gin.Context) {
	members, err := h.svc.Members(requestContext(c), c.Param("id"), c.Param("audienceID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// POST /api/orgs/:id/audiences/:audienceID/members
func (h *AudienceHandler) AddMember(c *gin.Context) {
	var body audienceMemberRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.svc.AddMember(requestContext(c), c.Param("id"), c.Param("audienceID"), body.MembershipID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"added": true})
}

// DELETE /api/orgs/:id/audiences/:audienceID/members/:memberID
func (h *AudienceHandler) RemoveMember(c *gin.Context) {
	if err := h.svc.RemoveMember(requestContext(c), c.Param("id"), c.Param("audienceID"), c.Param("memberID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
