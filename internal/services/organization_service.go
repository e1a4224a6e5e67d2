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

	"github.com/mmutisya/shuledesk/internal/models"
	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
)

var (
	// ErrOrganizationNotFound indicates the requested organisation does not exist.
	ErrOrganizationNotFound = apperrors.New("ORG_NOT_FOUND", "Organisation not found", http.StatusNotFound)
)

// CreateOrganizationInput captures the attributes required to register an organisation.
type CreateOrganizationInput struct {
	Name        string
	Type        models.OrgType
	Description string
	Profile     map[string]any
	LogoURL     string
	AccentColor string

	// CreatedBy, when set, receives an admin membership so the new tenant is
	// manageable from its first request.
	CreatedBy string
}

// UpdateOrganizationInput represents mutable organisation fields. Type changes
// are not supported; tenants do not change category after onboarding.
type UpdateOrganizationInput struct {
	Name        *string
	Description *string
	Profile     map[string]any
	LogoURL     *string
	AccentColor *string
	Status      *models.OrgStatus
}

// OrganizationService manages lifecycle operations for organisations.
type OrganizationService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewOrganizationService constructs an OrganizationService instance.
func NewOrganizationService(db *gorm.DB, auditService *AuditService) (*OrganizationService, error) {
	if db == nil {
		return nil, errors.New("organization service: db is required")
	}
	return &OrganizationService{
		db:           db,
		auditService: auditService,
	}, nil
}

// Create registers a new organisation.
func (s *OrganizationService) Create(ctx context.Context, input CreateOrganizationInput) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("organisation name is required")
	}
	if !input.Type.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown organisation type %q", input.Type))
	}

	org := &models.Organization{
		Name:        name,
		Type:        input.Type,
		Status:      models.OrgStatusActive,
		Description: strings.TrimSpace(input.Description),
		LogoURL:     strings.TrimSpace(input.LogoURL),
		AccentColor: strings.TrimSpace(input.AccentColor),
	}

	if input.Profile != nil {
		data, err := json.Marshal(input.Profile)
		if err != nil {
			return nil, fmt.Errorf("organization service: marshal profile: %w", err)
		}
		org.Profile = datatypes.JSON(data)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return err
		}
		if creator := strings.TrimSpace(input.CreatedBy); creator != "" {
			membership := &models.Membership{
				UserID:   creator,
				OrgID:    org.ID,
				BaseRole: models.RoleAdmin,
			}
			if err := tx.Create(membership).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("organization service: create organization: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "org.create",
		Resource: org.ID,
		Result:   "success",
		Metadata: map[string]any{
			"name": name,
			"type": string(input.Type),
		},
	})

	return org, nil
}

// GetByID loads an organisation and its memberships.
func (s *OrganizationService) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	var org models.Organization
	err := s.db.WithContext(ctx).
		Preload("Memberships").
		First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("organization service: get organization: %w", err)
	}
	return &org, nil
}

// List returns all organisations ordered by creation date. Archived tenants
// are included; callers filter on status where it matters.
func (s *OrganizationService) List(ctx context.Context) ([]models.Organization, error) {
	ctx = ensureContext(ctx)

	var orgs []models.Organization
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("organization service: list organizations: %w", err)
	}
	return orgs, nil
}

// ListForUser returns the organisations the user holds a membership in,
// ordered by creation date.
func (s *OrganizationService) ListForUser(ctx context.Context, userID string) ([]models.Organization, error) {
	ctx = ensureContext(ctx)

	var orgs []models.Organization
	err := s.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.org_id = organizations.id").
		Where("memberships.user_id = ?", userID).
		Order("organizations.created_at ASC").
		Find(&orgs).Error
	if err != nil {
		return nil, fmt.Errorf("organization service: list organizations for user: %w", err)
	}
	return orgs, nil
}

// Update modifies metadata for an organisation.
func (s *OrganizationService) Update(ctx context.Context, id string, input UpdateOrganizationInput) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("organization service: load organization: %w", err)
	}

	updates := map[string]any{}

	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != org.Name {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.LogoURL != nil {
		updates["logo_url"] = strings.TrimSpace(*input.LogoURL)
	}
	if input.AccentColor != nil {
		updates["accent_color"] = strings.TrimSpace(*input.AccentColor)
	}
	if input.Status != nil {
		switch *input.Status {
		case models.OrgStatusActive, models.OrgStatusSuspended, models.OrgStatusArchived:
			updates["status"] = *input.Status
		default:
			return nil, apperrors.NewValidation(fmt.Sprintf("unknown organisation status %q", *input.Status))
		}
	}
	if input.Profile != nil {
		data, err := json.Marshal(input.Profile)
		if err != nil {
			return nil, fmt.Errorf("organization service: marshal profile: %w", err)
		}
		updates["profile"] = datatypes.JSON(data)
	}

	if len(updates) == 0 {
		return &org, nil
	}

	if err := s.db.WithContext(ctx).Model(&org).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("organization service: update organization: %w", err)
	}

	if err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("organization service: reload organization: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "org.update",
		Resource: org.ID,
		Result:   "success",
		Metadata: updates,
	})

	return &org, nil
}

// Archive moves an organisation to the archived state. Organisations are
// never hard-deleted.
func (s *OrganizationService) Archive(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrganizationNotFound
	}
	if err != nil {
		return fmt.Errorf("organization service: load organization: %w", err)
	}

	if org.Status == models.OrgStatusArchived {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&org).Update("status", models.OrgStatusArchived).Error; err != nil {
		return fmt.Errorf("organization service: archive organization: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "org.archive",
		Resource: org.ID,
		Result:   "success",
	})

	return nil
}
