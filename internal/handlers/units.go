package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/services"
	"github.com/mmutisya/shuledesk/internal/unittypes"
	"github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/response"
)

type UnitHandler struct {
	svc *services.UnitService
}

func NewUnitHandler(db *gorm.DB) (*UnitHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewUnitService(db, audit)
	if err != nil {
		return nil, err
	}
	return &UnitHandler{svc: svc}, nil
}

type createUnitRequest struct {
	Name     string         `json:"name" validate:"required,min=2,max=128"`
	Type     string         `json:"type" validate:"required"`
	ParentID *string        `json:"parent_id" validate:"omitempty,uuid4"`
	Metadata map[string]any `json:"metadata"`
}

type updateUnitRequest struct {
	Name     *string        `json:"name" validate:"omitempty,min=2,max=128"`
	Metadata map[string]any `json:"metadata"`
}

type moveUnitRequest struct {
	ParentID *string `json:"parent_id" validate:"omitempty,uuid4"`
}

type validateMetaRequest struct {
	Type     string         `json:"type" validate:"required"`
	Metadata map[string]any `json:"metadata" validate:"required"`
}

// GET /api/orgs/:id/units
func (h *UnitHandler) List(c *gin.Context) {
	units, err := h.svc.List(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, units)
}

// GET /api/orgs/:id/units/:unitID
func (h *UnitHandler) Get(c *gin.Context) {
	unit, err := h.svc.GetByID(requestContext(c), c.Param("id"), c.Param("unitID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, unit)
}

// POST /api/orgs/:id/units
func (h *UnitHandler) Create(c *gin.Context) {
	var body createUnitRequest
	if !bindAndValidate(c, &body) {
		return
	}

	unit, err := h.svc.Create(requestContext(c), c.Param("id"), services.CreateUnitInput{
		Name:     strings.TrimSpace(body.Name),
		Type:     models.UnitType(body.Type),
		ParentID: body.ParentID,
		Metadata: body.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, unit)
}

// PATCH /api/orgs/:id/units/:unitID
func (h *UnitHandler) Update(c *gin.Context) {
	var body updateUnitRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if body.Name == nil && body.Metadata == nil {
		response.Error(c, errors.NewBadRequest("no fields provided for update"))
		return
	}

	unit, err := h.svc.Update(requestContext(c), c.Param("id"), c.Param("unitID"), services.UpdateUnitInput{
		Name:     body.Name,
		Metadata: body.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, unit)
}

// POST /api/orgs/:id/units/:unitID/attach
func (h *UnitHandler) Attach(c *gin.Context) {
	var body moveUnitRequest
	if !bindAndValidate(c, &body) {
		return
	}
	if body.ParentID == nil {
		response.Error(c, errors.NewBadRequest("parent_id is required"))
		return
	}

	unit, err := h.svc.Move(requestContext(c), c.Param("id"), c.Param("unitID"), body.ParentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, unit)
}

// POST /api/orgs/:id/units/:unitID/detach
func (h *UnitHandler) Detach(c *gin.Context) {
	unit, err := h.svc.Move(requestContext(c), c.Param("id"), c.Param("unitID"), nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, unit)
}

// GET /api/orgs/:id/units/tree
func (h *UnitHandler) Tree(c *gin.Context) {
	tree, err := h.svc.Tree(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tree)
}

// GET /api/orgs/:id/units/:unitID/descendants
func (h *UnitHandler) Descendants(c *gin.Context) {
	units, err := h.svc.Descendants(requestContext(c), c.Param("id"), c.Param("unitID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, units)
}

// DELETE /api/orgs/:id/units/:unitID?cascade=true
func (h *UnitHandler) Delete(c *gin.Context) {
	cascade := strings.EqualFold(c.Query("cascade"), "true")
	if err := h.svc.Delete(requestContext(c), c.Param("id"), c.Param("unitID"), cascade); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/orgs/:id/units/validate-meta
func (h *UnitHandler) ValidateMeta(c *gin.Context) {
	var body validateMetaRequest
	if !bindAndValidate(c, &body) {
		return
	}

	unitType := models.UnitType(body.Type)
	if !unitType.Valid() {
		response.Error(c, errors.NewValidation("unknown unit type"))
		return
	}

	if err := unittypes.Validate(unitType, body.Metadata); err != nil {
		var fieldErrs unittypes.FieldErrors
		if stderrors.As(err, &fieldErrs) {
			response.Success(c, http.StatusOK, gin.H{
				"valid":    false,
				"failures": fieldErrs,
			})
			return
		}
		response.Error(c, err)
		return
	}

	features, _ := unittypes.EffectiveFeatures(unitType, body.Metadata)
	response.Success(c, http.StatusOK, gin.H{
		"valid":    true,
		"features": features,
	})
}
