package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
)

var (
	// ErrMembershipNotFound indicates the requested membership does not exist.
	ErrMembershipNotFound = apperrors.New("MEMBER_NOT_FOUND", "Member not found", http.StatusNotFound)
	// ErrMembershipExists signals the user already belongs to the organisation.
	ErrMembershipExists = apperrors.New("MEMBER_EXISTS", "User is already a member of this organisation", http.StatusConflict)
)

// CreateMembershipInput binds a user into an organisation.
type CreateMembershipInput struct {
	UserID   string
	BaseRole models.BaseRole
	RoleID   *string
}

// UpdateMembershipInput describes mutable membership fields.
type UpdateMembershipInput struct {
	BaseRole *models.BaseRole
	// RoleID uses a double pointer so callers can distinguish "leave alone"
	// (nil) from "clear the custom role" (pointer to nil).
	RoleID **string
}

// MembershipService manages org membership records.
type MembershipService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewMembershipService constructs a MembershipService instance.
func NewMembershipService(db *gorm.DB, auditService *AuditService) (*MembershipService, error) {
	if db == nil {
		return nil, errors.New("membership service: db is required")
	}
	return &MembershipService{db: db, auditService: auditService}, nil
}

// Create adds a user to an organisation with a base role. The (user, org)
// pair is unique; a second add conflicts.
func (s *MembershipService) Create(ctx context.Context, orgID string, input CreateMembershipInput) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	if !input.BaseRole.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown base role %q", input.BaseRole))
	}

	if input.RoleID != nil {
		if err := s.ensureRoleInOrg(ctx, orgID, *input.RoleID); err != nil {
			return nil, err
		}
	}

	membership := &models.Membership{
		UserID:   userID,
		OrgID:    orgID,
		BaseRole: input.BaseRole,
		RoleID:   input.RoleID,
	}

	if err := s.db.WithContext(ctx).Create(membership).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrMembershipExists
		}
		return nil, fmt.Errorf("membership service: create membership: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "member.create",
		Resource: membership.ID,
		Result:   "success",
		Metadata: map[string]any{
			"org_id":    orgID,
			"user_id":   userID,
			"base_role": string(input.BaseRole),
		},
	})

	return membership, nil
}

// GetByID loads a membership scoped to the organisation.
func (s *MembershipService) GetByID(ctx context.Context, orgID, id string) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	var membership models.Membership
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Role.Capabilities").
		Where("org_id = ?", orgID).
		First(&membership, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("membership service: get membership: %w", err)
	}
	return &membership, nil
}

// GetByUser loads the membership binding a user to an organisation.
func (s *MembershipService) GetByUser(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	var membership models.Membership
	err := s.db.WithContext(ctx).
		Preload("Role.Capabilities").
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("membership service: get membership: %w", err)
	}
	return &membership, nil
}

// List returns an organisation's memberships ordered by creation date.
func (s *MembershipService) List(ctx context.Context, orgID string) ([]models.Membership, error) {
	ctx = ensureContext(ctx)

	var memberships []models.Membership
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Role").
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("membership service: list memberships: %w", err)
	}
	return memberships, nil
}

// Update changes a membership's base role or custom role assignment.
func (s *MembershipService) Update(ctx context.Context, orgID, id string, input UpdateMembershipInput) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	membership, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}

	if input.BaseRole != nil {
		if !input.BaseRole.Valid() {
			return nil, apperrors.NewValidation(fmt.Sprintf("unknown base role %q", *input.BaseRole))
		}
		updates["base_role"] = *input.BaseRole
	}
	if input.RoleID != nil {
		if *input.RoleID != nil {
			if err := s.ensureRoleInOrg(ctx, orgID, **input.RoleID); err != nil {
				return nil, err
			}
		}
		updates["role_id"] = *input.RoleID
	}

	if len(updates) == 0 {
		return membership, nil
	}

	// Update through a bare model: membership carries preloaded User/Role
	// structs, and gorm would write their foreign keys back alongside the
	// requested columns, undoing a role_id clear.
	err = s.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("id = ? AND org_id = ?", membership.ID, orgID).
		Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("membership service: update membership: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "member.update",
		Resource: membership.ID,
		Result:   "success",
		Metadata: updates,
	})

	return s.GetByID(ctx, orgID, id)
}

// Delete removes the membership from the organisation.
func (s *MembershipService) Delete(ctx context.Context, orgID, id string) error {
	ctx = ensureContext(ctx)

	membership, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Select("Audiences").Delete(membership).Error; err != nil {
		return fmt.Errorf("membership service: delete membership: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "member.delete",
		Resource: membership.ID,
		Result:   "success",
		Metadata: map[string]any{"org_id": orgID},
	})

	return nil
}

func (s *MembershipService) ensureRoleInOrg(ctx context.Context, orgID, roleID string) error {
	var role models.Role
	err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&role, "id = ?", roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRoleNotFound
	}
	if err != nil {
		return fmt.Errorf("membership service: load role: %w", err)
	}
	return nil
}
