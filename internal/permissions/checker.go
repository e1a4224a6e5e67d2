package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/mmutisya/shuledesk/internal/models"
)

// Checker evaluates membership capabilities against the registry. It is the
// authoritative server-side check; client-side guards are presentation hints.
type Checker struct {
	db *gorm.DB
}

// NewChecker constructs a capability checker backed by the provided database.
func NewChecker(db *gorm.DB) (*Checker, error) {
	if db == nil {
		return nil, errors.New("capability checker: db is required")
	}
	return &Checker{db: db}, nil
}

// Check determines whether the user holds the capability within the organisation.
// A missing membership denies without error so callers cannot distinguish
// "no membership" from "no grant".
func (c *Checker) Check(ctx context.Context, userID, orgID, capabilityID string) (bool, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, errors.New("capability checker: user id is required")
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return false, errors.New("capability checker: org id is required")
	}

	var membership models.Membership
	err := c.db.WithContext(ctx).
		Preload("Role.Capabilities").
		Where("user_id = ? AND org_id = ?", userID, orgID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("capability checker: load membership: %w", err)
	}

	return Resolve(&membership, capabilityID), nil
}

// MembershipCapabilities returns the distinct capability IDs granted to the
// user within the organisation, sorted for stable output.
func (c *Checker) MembershipCapabilities(ctx context.Context, userID, orgID string) ([]string, error) {
	ctx = ensureContext(ctx)

	var membership models.Membership
	err := c.db.WithContext(ctx).
		Preload("Role.Capabilities").
		Where("user_id = ? AND org_id = ?", userID, orgID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("capability checker: load membership: %w", err)
	}

	if membership.BaseRole == models.RoleAdmin || (membership.Role != nil && membership.Role.ParentRole == models.RoleAdmin) {
		all := GetAll()
		ids := make([]string, 0, len(all))
		for id := range all {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids, nil
	}

	if membership.Role == nil {
		return nil, nil
	}

	granted := make([]string, 0, len(membership.Role.Capabilities))
	for _, capability := range membership.Role.Capabilities {
		granted = append(granted, capability.ID)
	}

	grants, err := expandImplied(granted)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(grants))
	for id := range grants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
