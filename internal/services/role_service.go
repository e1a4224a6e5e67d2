package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
	"github.com/mmutisya/shuledesk/internal/permissions"
	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
)

var (
	// ErrRoleNotFound indicates the requested role does not exist in the org.
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
	// ErrRoleKeyExists signals a duplicate role key within the organisation.
	ErrRoleKeyExists = apperrors.New("ROLE_KEY_EXISTS", "A role with this key already exists", http.StatusConflict)
	// ErrRoleInUse blocks deleting a role that memberships still reference.
	ErrRoleInUse = apperrors.New("ROLE_IN_USE", "Role is assigned to members and cannot be deleted", http.StatusConflict)
)

// CreateRoleInput describes a new custom role.
type CreateRoleInput struct {
	Key          string
	Name         string
	Description  string
	Scope        models.RoleScope
	ParentRole   models.BaseRole
	Capabilities []string
}

// UpdateRoleInput carries mutable role fields.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	ParentRole  *models.BaseRole
}

// RoleService manages custom roles and their capability grants.
type RoleService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewRoleService constructs a RoleService instance.
func NewRoleService(db *gorm.DB, auditService *AuditService) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	return &RoleService{db: db, auditService: auditService}, nil
}

// Create persists a custom role and its initial capability grants. Grants are
// widened to their dependency closure so a role never holds a capability
// whose prerequisites it lacks.
func (s *RoleService) Create(ctx context.Context, orgID string, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	key := strings.TrimSpace(strings.ToLower(input.Key))
	name := strings.TrimSpace(input.Name)
	if key == "" || name == "" {
		return nil, apperrors.NewBadRequest("role key and name are required")
	}
	if input.Scope != models.RoleScopeOrg && input.Scope != models.RoleScopeUnit {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown role scope %q", input.Scope))
	}
	if !input.ParentRole.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown parent role %q", input.ParentRole))
	}

	grants, err := s.resolveGrants(input.Capabilities)
	if err != nil {
		return nil, err
	}

	role := &models.Role{
		OrgID:       orgID,
		Key:         key,
		Name:        name,
		Description: input.Description,
		Scope:       input.Scope,
		ParentRole:  input.ParentRole,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(role).Error; err != nil {
			return err
		}
		if len(grants) > 0 {
			return tx.Model(role).Association("Capabilities").Replace(capabilityRows(grants))
		}
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrRoleKeyExists
		}
		return nil, fmt.Errorf("role service: create role: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "role.create",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{
			"org_id": orgID,
			"key":    key,
			"grants": grants,
		},
	})

	return s.GetByID(ctx, orgID, role.ID)
}

// GetByID loads a role scoped to the organisation with its grants.
func (s *RoleService) GetByID(ctx context.Context, orgID, id string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	var role models.Role
	err := s.db.WithContext(ctx).
		Preload("Capabilities").
		Where("org_id = ?", orgID).
		First(&role, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("role service: get role: %w", err)
	}
	return &role, nil
}

// List returns an organisation's custom roles ordered by key.
func (s *RoleService) List(ctx context.Context, orgID string) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	var roles []models.Role
	err := s.db.WithContext(ctx).
		Preload("Capabilities").
		Where("org_id = ?", orgID).
		Order("key ASC").
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("role service: list roles: %w", err)
	}
	return roles, nil
}

// Update changes a role's display fields and parent role. The key is
// immutable once minted.
func (s *RoleService) Update(ctx context.Context, orgID, id string, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("role name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.ParentRole != nil {
		if !input.ParentRole.Valid() {
			return nil, apperrors.NewValidation(fmt.Sprintf("unknown parent role %q", *input.ParentRole))
		}
		updates["parent_role"] = *input.ParentRole
	}

	if len(updates) == 0 {
		return role, nil
	}

	if err := s.db.WithContext(ctx).Model(role).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("role service: update role: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "role.update",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{"org_id": orgID},
	})

	return s.GetByID(ctx, orgID, id)
}

// SetCapabilities replaces the role's grants with the dependency closure of
// the supplied capability set.
func (s *RoleService) SetCapabilities(ctx context.Context, orgID, id string, capabilityIDs []string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	grants, err := s.resolveGrants(capabilityIDs)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(role).Association("Capabilities").Replace(capabilityRows(grants)); err != nil {
		return nil, fmt.Errorf("role service: set capabilities: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "role.grants.set",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{
			"org_id": orgID,
			"grants": grants,
		},
	})

	return s.GetByID(ctx, orgID, id)
}

// Delete removes a role. Roles still referenced by memberships are kept and
// the delete conflicts.
func (s *RoleService) Delete(ctx context.Context, orgID, id string) error {
	ctx = ensureContext(ctx)

	role, err := s.GetByID(ctx, orgID, id)
	if err != nil {
		return err
	}

	var count int64
	err = s.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("org_id = ? AND role_id = ?", orgID, id).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("role service: count role references: %w", err)
	}
	if count > 0 {
		return ErrRoleInUse
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(role).Association("Capabilities").Clear(); err != nil {
			return err
		}
		return tx.Delete(role).Error
	})
	if err != nil {
		return fmt.Errorf("role service: delete role: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "role.delete",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{"org_id": orgID},
	})

	return nil
}

// resolveGrants validates every requested capability against the registry
// and expands the set to its dependency closure, sorted for determinism.
func (s *RoleService) resolveGrants(capabilityIDs []string) ([]string, error) {
	closure := map[string]struct{}{}
	for _, id := range capabilityIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		deps, err := permissions.ResolveDependencies(id)
		if err != nil {
			return nil, apperrors.NewValidation(fmt.Sprintf("unknown capability %q", id))
		}
		closure[id] = struct{}{}
		for _, dep := range deps {
			closure[dep] = struct{}{}
		}
	}

	grants := make([]string, 0, len(closure))
	for id := range closure {
		grants = append(grants, id)
	}
	sort.Strings(grants)
	return grants, nil
}

func capabilityRows(ids []string) []*models.Capability {
	rows := make([]*models.Capability, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, &models.Capability{BaseModel: models.BaseModel{ID: id}})
	}
	return rows
}
