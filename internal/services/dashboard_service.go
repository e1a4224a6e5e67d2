package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/dashboard"
	"github.com/mmutisya/shuledesk/internal/models"
	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/metrics"
)

// DashboardService computes per-caller dashboard configurations. Configs are
// derived on every read and never persisted.
type DashboardService struct {
	db *gorm.DB
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(db *gorm.DB) (*DashboardService, error) {
	if db == nil {
		return nil, errors.New("dashboard service: db is required")
	}
	return &DashboardService{db: db}, nil
}

// ForOrg resolves the caller's org-level dashboard.
func (s *DashboardService) ForOrg(ctx context.Context, orgID, userID string) (*dashboard.Config, error) {
	ctx = ensureContext(ctx)

	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dashboard service: load org: %w", err)
	}

	caller, err := s.caller(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	cfg := dashboard.Resolve(dashboard.OrgTarget(org.Type), caller)
	metrics.DashboardResolutions.WithLabelValues(string(dashboard.TargetOrg)).Inc()
	return &cfg, nil
}

// ForUnit resolves the caller's dashboard against an org unit, honouring
// the unit's stored feature overrides.
func (s *DashboardService) ForUnit(ctx context.Context, orgID, unitID, userID string) (*dashboard.Config, error) {
	ctx = ensureContext(ctx)

	var unit models.OrgUnit
	err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&unit, "id = ?", unitID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dashboard service: load unit: %w", err)
	}

	caller, err := s.caller(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{}
	if len(unit.Metadata) > 0 {
		if err := json.Unmarshal(unit.Metadata, &payload); err != nil {
			return nil, fmt.Errorf("dashboard service: decode unit metadata: %w", err)
		}
	}

	target, ok := dashboard.UnitTarget(unit.Type, payload)
	if !ok {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown unit type %q", unit.Type))
	}

	cfg := dashboard.Resolve(target, caller)
	metrics.DashboardResolutions.WithLabelValues(string(dashboard.TargetUnit)).Inc()
	return &cfg, nil
}

// ForAudience resolves the caller's dashboard against an audience.
func (s *DashboardService) ForAudience(ctx context.Context, orgID, audienceID, userID string) (*dashboard.Config, error) {
	ctx = ensureContext(ctx)

	var audience models.Audience
	err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&audience, "id = ?", audienceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAudienceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dashboard service: load audience: %w", err)
	}

	caller, err := s.caller(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	cfg := dashboard.Resolve(dashboard.AudienceTarget(audience.Type), caller)
	metrics.DashboardResolutions.WithLabelValues(string(dashboard.TargetAudience)).Inc()
	return &cfg, nil
}

// caller loads the requesting user's membership. A non-member gets no
// dashboard, not an empty one.
func (s *DashboardService) caller(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	var membership models.Membership
	err := s.db.WithContext(ctx).
		Preload("Role.Capabilities").
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("dashboard service: load membership: %w", err)
	}
	return &membership, nil
}
