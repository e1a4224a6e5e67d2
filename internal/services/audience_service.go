package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/hierarchy"
	"github.com/mmutisya/shuledesk/internal/models"
	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
)

// ErrAudienceNotFound indicates the requested audience does not exist.
var ErrAudienceNotFound = apperrors.New("AUDIENCE_NOT_FOUND", "Audience not found", http.StatusNotFound)

// CreateAudienceInput describes a new audience. Type and IsExclusive are
// fixed at creation time.
type CreateAudienceInput struct {
	Name        string
	Type        models.AudienceType
	Level       int
	IsExclusive bool
	ParentID    *string
}

// UpdateAudienceInput carries the mutable audience fields. Type and
// exclusivity are deliberately absent; attempts to change them are rejected
// at the handler boundary and double-checked here.
type UpdateAudienceInput struct {
	Name  *string
	Level *int
}

// AudienceService manages audiences, their hierarchy and their rosters.
type AudienceService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewAudienceService constructs an AudienceService instance.
func NewAudienceService(db *gorm.DB, auditService *AuditService) (*AudienceService, error) {
	if db == nil {
		return nil, errors.New("audience service: db is required")
	}
	return &AudienceService{db: db, auditService: auditService}, nil
}

// Create persists an audience, optionally under a parent in the same org.
func (s *AudienceService) Create(ctx context.Context, orgID string, input CreateAudienceInput) (*models.Audience, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("audience name is required")
	}
	if !input.Type.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown audience type %q", input.Type))
	}

	if input.ParentID != nil {
		forest, err := s.loadForest(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if _, ok := forest.Get(*input.ParentID); !ok {
			return nil, ErrAudienceNotFound
		}
	}

	audience := &models.Audience{
		OrgID:       orgID,
		Name:        name,
		Type:        input.Type,
		Level:       input.Level,
		IsExclusive: input.IsExclusive,
		ParentID:    input.ParentID,
	}

	if err := s.db.WithContext(ctx).Create(audience).Error; err != nil {
		return nil, fmt.Errorf("audience service: create audience: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "audience.create",
		Resource: audience.ID,
		Result:   "success",
		Metadata: map[string]any{
			"org_id": orgID,
			"type":   string(input.Type),
			"name":   name,
		},
	})

	return audience, nil
}

// GetByID loads an audience scoped to the organisation.
func (s *AudienceService) GetByID(ctx context.Context, orgID, id string) (*models.Audience, error) {
	ctx = ensureContext(ctx)

	var audience models.Audience
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		First(&audience, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAudienceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("audience service: get audience: %w", err)
	}
	return &audience, nil
}

// List returns an organisation's audiences ordered by creation date.
func (s *AudienceService) List(ctx context.Context, orgID string) ([]models.Audience, error) {
	ctx = ensureContext(ctx)

	var audiences []models.Audience
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&audiences).Error
	if err != nil {
		return nil, fmt.Errorf("audience service: list audiences: %w", err)
	}
	return audiences, nil
}

// Update applies name and level changes. RequestedType and
// requestedExclusive carry values the caller tried to set; any attempt to
// change either is a validation failure because both are immutable.
func (s *AudienceService) Update(ctx context.Context, orgID, id string, input UpdateAudienceInput, requestedType *models.AudienceType, requestedExclusive *bool) (*models.Audience, error) {
	ctx = ensureContext(ctx)

	audience, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if requestedType != nil && *requestedType != audience.Type {
		return nil, apperrors.NewValidation("audience type is immutable")
	}
	if requestedExclusive != nil && *requestedExclusive != audience.IsExclusive {
		return nil, apperrors.NewValidation("audience exclusivity is immutable")
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("audience name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Level != nil {
		updates["level"] = *input.Level
	}

	if len(updates) == 0 {
		return audience, nil
	}

	if err := s.db.WithContext(ctx).Model(audience).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("audience service: update audience: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "audience.update",
		Resource: audience.ID,
		Result:   "success",
		Metadata: map[string]any{"org_id": orgID},
	})

	return s.GetByID(ctx, orgID, id)
}

// Move reparents an audience. A nil parent promotes it to a root.
func (s *AudienceService) Move(ctx context.Context, orgID, id string, parentID *string) (*models.Audience, error) {
	ctx = ensureContext(ctx)

	audience, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if parentID != nil {
		forest, err := s.loadForest(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if err := forest.CanAttach(id, *parentID); err != nil {
			return nil, mapAudienceHierarchyError(err)
		}
	}

	if err := s.db.WithContext(ctx).Model(audience).Update("parent_id", parentID).Error; err != nil {
		return nil, fmt.Errorf("audience service: move audience: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "audience.move",
		Resource: audience.ID,
		Result:   "success",
		Metadata: map[string]any{"org_id": orgID},
	})

	return s.GetByID(ctx, orgID, id)
}

// Descendants lists an audience's subtree, parents before children, siblings
// in creation order.
func (s *AudienceService) Descendants(ctx context.Context, orgID, id string) ([]models.Audience, error) {
	ctx = ensureContext(ctx)

	forest, err := s.loadForest(ctx, orgID)
	if err != nil {
		return nil, err
	}

	nodes, err := forest.Descendants(id)
	if err != nil {
		return nil, mapAudienceHierarchyError(err)
	}
	if len(nodes) == 0 {
		return []models.Audience{}, nil
	}

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}

	var audiences []models.Audience
	if err := s.db.WithContext(ctx).Where("org_id = ? AND id IN ?", orgID, ids).Find(&audiences).Error; err != nil {
		return nil, fmt.Errorf("audience service: load descendants: %w", err)
	}

	byID := make(map[string]models.Audience, len(audiences))
	for _, a := range audiences {
		byID[a.ID] = a
	}
	ordered := make([]models.Audience, 0, len(ids))
	for _, nodeID := range ids {
		if a, ok := byID[nodeID]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

// Delete removes an audience. Audiences with children need cascade; the
// cascade removes the subtree children-first.
func (s *AudienceService) Delete(ctx context.Context, orgID, id string, cascade bool) error {
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
		return mapAudienceHierarchyError(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, audienceID := range order {
			if err := tx.Exec("DELETE FROM audience_members WHERE audience_id = ?", audienceID).Error; err != nil {
				return err
			}
			if err := tx.Where("org_id = ?", orgID).Delete(&models.Audience{}, "id = ?", audienceID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("audience service: delete audience: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "audience.delete",
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

// AddMember places a membership on the audience roster. Exclusive audiences
// admit a member only if no other exclusive audience of the same type already
// holds them.
func (s *AudienceService) AddMember(ctx context.Context, orgID, audienceID, membershipID string) error {
	ctx = ensureContext(ctx)

	audience, err := s.GetByID(ctx, orgID, audienceID)
	if err != nil {
		return err
	}

	var membership models.Membership
	err = s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&membership, "id = ?", membershipID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMembershipNotFound
	}
	if err != nil {
		return fmt.Errorf("audience service: load membership: %w", err)
	}

	if audience.IsExclusive {
		var count int64
		err = s.db.WithContext(ctx).
			Table("audience_members").
			Joins("JOIN audiences ON audiences.id = audience_members.audience_id").
			Where("audience_members.membership_id = ?", membershipID).
			Where("audiences.org_id = ? AND audiences.type = ? AND audiences.is_exclusive = ?", orgID, audience.Type, true).
			Where("audiences.id <> ?", audienceID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("audience service: check exclusivity: %w", err)
		}
		if count > 0 {
			return apperrors.NewConflict("member already belongs to an exclusive audience of this type")
		}
	}

	if err := s.db.WithContext(ctx).Model(audience).Association("Members").Append(&membership); err != nil {
		return fmt.Errorf("audience service: add member: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "audience.member.add",
		Resource: audience.ID,
		Result:   "success",
		Metadata: map[string]any{
			"org_id":        orgID,
			"membership_id": membershipID,
		},
	})

	return nil
}

// RemoveMember drops a membership from the roster. Removing an absent member
// is a no-op.
func (s *AudienceService) RemoveMember(ctx context.Context, orgID, audienceID, membershipID string) error {
	ctx = ensureContext(ctx)

	audience, err := s.GetByID(ctx, orgID, audienceID)
	if err != nil {
		return err
	}

	membership := models.Membership{}
	membership.ID = membershipID
	if err := s.db.WithContext(ctx).Model(audience).Association("Members").Delete(&membership); err != nil {
		return fmt.Errorf("audience service: remove member: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "audience.member.remove",
		Resource: audience.ID,
		Result:   "success",
		Metadata: map[string]any{
			"org_id":        orgID,
			"membership_id": membershipID,
		},
	})

	return nil
}

// Members lists the audience roster ordered by join date.
func (s *AudienceService) Members(ctx context.Context, orgID, audienceID string) ([]models.Membership, error) {
	ctx = ensureContext(ctx)

	audience, err := s.GetByID(ctx, orgID, audienceID)
	if err != nil {
		return nil, err
	}

	var members []models.Membership
	err = s.db.WithContext(ctx).
		Model(audience).
		Association("Members").
		Find(&members)
	if err != nil {
		return nil, fmt.Errorf("audience service: list members: %w", err)
	}
	return members, nil
}

func (s *AudienceService) loadForest(ctx context.Context, orgID string) (*hierarchy.Forest, error) {
	var audiences []models.Audience
	err := s.db.WithContext(ctx).
		Select("id", "org_id", "parent_id", "created_at").
		Where("org_id = ?", orgID).
		Find(&audiences).Error
	if err != nil {
		return nil, fmt.Errorf("audience service: load hierarchy: %w", err)
	}

	nodes := make([]hierarchy.Node, 0, len(audiences))
	for _, a := range audiences {
		nodes = append(nodes, hierarchy.Node{
			ID:        a.ID,
			OrgID:     a.OrgID,
			ParentID:  a.ParentID,
			CreatedAt: a.CreatedAt,
		})
	}

	forest, err := hierarchy.NewForest(nodes)
	if err != nil {
		return nil, fmt.Errorf("audience service: build hierarchy: %w", err)
	}
	return forest, nil
}

func mapAudienceHierarchyError(err error) error {
	switch {
	case errors.Is(err, hierarchy.ErrNodeMissing):
		return ErrAudienceNotFound
	case errors.Is(err, hierarchy.ErrCycle):
		return apperrors.NewConflict("move would create a cycle")
	case errors.Is(err, hierarchy.ErrCrossOrg):
		return apperrors.NewConflict("parent belongs to a different organisation")
	case errors.Is(err, hierarchy.ErrHasChildren):
		return apperrors.NewConflict("audience has children; pass cascade to remove the subtree")
	default:
		return err
	}
}
