package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/hierarchy"
	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/unittypes"
	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
)

// ErrUnitNotFound indicates the requested unit does not exist in the org.
var ErrUnitNotFound = apperrors.New("UNIT_NOT_FOUND", "Unit not found", http.StatusNotFound)

// CreateUnitInput describes a new organisational unit.
type CreateUnitInput struct {
	Name     string
	Type     models.UnitType
	ParentID *string
	Metadata map[string]any
}

// UpdateUnitInput carries mutable unit fields. Metadata replaces the stored
// payload wholesale when present.
type UpdateUnitInput struct {
	Name     *string
	Metadata map[string]any
}

// UnitService manages org units and their hierarchy.
type UnitService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewUnitService constructs a UnitService instance.
func NewUnitService(db *gorm.DB, auditService *AuditService) (*UnitService, error) {
	if db == nil {
		return nil, errors.New("unit service: db is required")
	}
	return &UnitService{db: db, auditService: auditService}, nil
}

// Create validates the unit's metadata against its type schema and persists
// it. A missing metadata payload falls back to the type's defaults.
func (s *UnitService) Create(ctx context.Context, orgID string, input CreateUnitInput) (*models.OrgUnit, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("unit name is required")
	}
	if !input.Type.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown unit type %q", input.Type))
	}

	schema, _ := unittypes.Get(input.Type)
	payload := input.Metadata
	if payload == nil {
		payload, _ = unittypes.DefaultPayload(input.Type)
	}
	if err := unittypes.Validate(input.Type, payload); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	if input.ParentID != nil {
		forest, err := s.loadForest(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if _, ok := forest.Get(*input.ParentID); !ok {
			return nil, ErrUnitNotFound
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unit service: encode metadata: %w", err)
	}

	unit := &models.OrgUnit{
		OrgID:         orgID,
		Name:          name,
		Type:          input.Type,
		ParentID:      input.ParentID,
		Metadata:      datatypes.JSON(raw),
		SchemaVersion: schema.SchemaVersion,
	}

	if err := s.db.WithContext(ctx).Create(unit).Error; err != nil {
		return nil, fmt.Errorf("unit service: create unit: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "unit.create",
		Resource: unit.ID,
		Result:   "success",
		Metadata: map[string]any{
			"org_id": orgID,
			"type":   string(input.Type),
			"name":   name,
		},
	})

	return unit, nil
}

// GetByID loads a unit scoped to the organisation.
func (s *UnitService) GetByID(ctx context.Context, orgID, id string) (*models.OrgUnit, error) {
	ctx = ensureContext(ctx)

	var unit models.OrgUnit
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		First(&unit, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("unit service: get unit: %w", err)
	}
	return &unit, nil
}

// List returns an organisation's units ordered by creation date.
func (s *UnitService) List(ctx context.Context, orgID string) ([]models.OrgUnit, error) {
	ctx = ensureContext(ctx)

	var units []models.OrgUnit
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&units).Error
	if err != nil {
		return nil, fmt.Errorf("unit service: list units: %w", err)
	}
	return units, nil
}

// Update applies name and metadata changes. The unit's type is immutable;
// metadata is re-validated against the type schema before it is stored.
func (s *UnitService) Update(ctx context.Context, orgID, id string, input UpdateUnitInput) (*models.OrgUnit, error) {
	ctx = ensureContext(ctx)

	unit, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("unit name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Metadata != nil {
		if err := unittypes.Validate(unit.Type, input.Metadata); err != nil {
			return nil, apperrors.NewValidation(err.Error())
		}
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("unit service: encode metadata: %w", err)
		}
		updates["metadata"] = datatypes.JSON(raw)
	}

	if len(updates) == 0 {
		return unit, nil
	}

	if err := s.db.WithContext(ctx).Model(unit).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("unit service: update unit: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "unit.update",
		Resource: unit.ID,
		Result:   "success",
		Metadata: map[string]any{"org_id": orgID},
	})

	return s.GetByID(ctx, orgID, id)
}

// Move reparents a unit. A nil parent promotes the unit to a root. Cycles and
// cross-org parents are rejected with a conflict.
func (s *UnitService) Move(ctx context.Context, orgID, id string, parentID *string) (*models.OrgUnit, error) {
	ctx = ensureContext(ctx)

	unit, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if parentID != nil {
		forest, err := s.loadForest(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if err := forest.CanAttach(id, *parentID); err != nil {
			return nil, mapHierarchyError(err)
		}
	}

	if err := s.db.WithContext(ctx).Model(unit).Update("parent_id", parentID).Error; err != nil {
		return nil, fmt.Errorf("unit service: move unit: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "unit.move",
		Resource: unit.ID,
		Result:   "success",
		Metadata: map[string]any{"org_id": orgID},
	})

	return s.GetByID(ctx, orgID, id)
}

// Descendants lists a unit's subtree, parents before children, siblings in
// creation order.
func (s *UnitService) Descendants(ctx context.Context, orgID, id string) ([]models.OrgUnit, error) {
	ctx = ensureContext(ctx)

	forest, err := s.loadForest(ctx, orgID)
	if err != nil {
		return nil, err
	}

	nodes, err := forest.Descendants(id)
	if err != nil {
		return nil, mapHierarchyError(err)
	}
	if len(nodes) == 0 {
		return []models.OrgUnit{}, nil
	}

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}

	var units []models.OrgUnit
	if err := s.db.WithContext(ctx).Where("org_id = ? AND id IN ?", orgID, ids).Find(&units).Error; err != nil {
		return nil, fmt.Errorf("unit service: load descendants: %w", err)
	}

	byID := make(map[string]models.OrgUnit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}
	ordered := make([]models.OrgUnit, 0, len(ids))
	for _, nodeID := range ids {
		if u, ok := byID[nodeID]; ok {
			ordered = append(ordered, u)
		}
	}
	return ordered, nil
}

// Delete removes a unit. Units with children need cascade; the cascade
// removes the subtree children-first so no row is ever orphaned.
func (s *UnitService) Delete(ctx context.Context, orgID, id string, cascade bool) error {
	ctx = ensureContext(ctx)

	if _, err := s.GetByID(ctx, orgID, id); err != nil {
		return err
	}

	forest, err := s.loadForest(ctx, orgID)
	if err != nil {
		return err
	}

	order, err := forest.DetachOrder(id, cascade)
	if err != nil {
		return mapHierarchyError(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, unitID := range order {
			if err := tx.Where("org_id = ?", orgID).Delete(&models.OrgUnit{}, "id = ?", unitID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("unit service: delete unit: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "unit.delete",
		Resource: id,
		Result:   "success",
		Metadata: map[string]any{
			"org_id":  orgID,
			"cascade": cascade,
			"removed": len(order),
		},
	})

	return nil
}

// EffectiveFeatures resolves the unit's feature toggles: type defaults merged
// with any stored overrides.
func (s *UnitService) EffectiveFeatures(ctx context.Context, orgID, id string) (map[unittypes.Feature]bool, error) {
	unit, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{}
	if len(unit.Metadata) > 0 {
		if err := json.Unmarshal(unit.Metadata, &payload); err != nil {
			return nil, fmt.Errorf("unit service: decode metadata: %w", err)
		}
	}
	features, ok := unittypes.EffectiveFeatures(unit.Type, payload)
	if !ok {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown unit type %q", unit.Type))
	}
	return features, nil
}

// UnitNode is a unit with its nested children, used by the tree endpoint.
type UnitNode struct {
	models.OrgUnit
	Children []UnitNode `json:"children"`
}

// Tree returns the org's full unit forest, roots first, children nested in
// creation order.
func (s *UnitService) Tree(ctx context.Context, orgID string) ([]UnitNode, error) {
	ctx = ensureContext(ctx)

	units, err := s.List(ctx, orgID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.OrgUnit, len(units))
	children := make(map[string][]string, len(units))
	var roots []string
	for _, u := range units {
		byID[u.ID] = u
		if u.ParentID == nil {
			roots = append(roots, u.ID)
		} else {
			children[*u.ParentID] = append(children[*u.ParentID], u.ID)
		}
	}

	var build func(id string) UnitNode
	build = func(id string) UnitNode {
		node := UnitNode{OrgUnit: byID[id], Children: []UnitNode{}}
		for _, childID := range children[id] {
			node.Children = append(node.Children, build(childID))
		}
		return node
	}

	tree := make([]UnitNode, 0, len(roots))
	for _, rootID := range roots {
		tree = append(tree, build(rootID))
	}
	return tree, nil
}

func (s *UnitService) loadForest(ctx context.Context, orgID string) (*hierarchy.Forest, error) {
	var units []models.OrgUnit
	err := s.db.WithContext(ctx).
		Select("id", "org_id", "parent_id", "created_at").
		Where("org_id = ?", orgID).
		Find(&units).Error
	if err != nil {
		return nil, fmt.Errorf("unit service: load hierarchy: %w", err)
	}

	nodes := make([]hierarchy.Node, 0, len(units))
	for _, u := range units {
		nodes = append(nodes, hierarchy.Node{
			ID:        u.ID,
			OrgID:     u.OrgID,
			ParentID:  u.ParentID,
			CreatedAt: u.CreatedAt,
		})
	}

	forest, err := hierarchy.NewForest(nodes)
	if err != nil {
		return nil, fmt.Errorf("unit service: build hierarchy: %w", err)
	}
	return forest, nil
}

func mapHierarchyError(err error) error {
	switch {
	case errors.Is(err, hierarchy.ErrNodeMissing):
		return ErrUnitNotFound
	case errors.Is(err, hierarchy.ErrCycle):
		return apperrors.NewConflict("move would create a cycle")
	case errors.Is(err, hierarchy.ErrCrossOrg):
		return apperrors.NewConflict("parent belongs to a different organisation")
	case errors.Is(err, hierarchy.ErrHasChildren):
		return apperrors.NewConflict("unit has children; pass cascade to remove the subtree")
	default:
		return err
	}
}
