package permissions

import (
	"strings"

	"github.com/mmutisya/shuledesk/internal/models"
)

// Resolve decides whether a membership grants the requested capability.
//
// Admin base role allows everything. A custom role allows a capability only
// when it is explicitly granted (directly or through implication) and its
// dependency chain is satisfied; the parent role never widens the grant set
// unless it is admin. Everything else, including unknown capabilities, is
// denied. The function never panics on partial memberships.
func Resolve(m *models.Membership, capabilityID string) bool {
	if m == nil {
		return false
	}

	capabilityID = strings.TrimSpace(capabilityID)
	if capabilityID == "" {
		return false
	}

	if m.BaseRole == models.RoleAdmin {
		return true
	}

	// Unknown capabilities fail closed before any role inspection.
	if _, ok := Get(capabilityID); !ok {
		return false
	}

	if m.Role == nil {
		return false
	}

	if m.Role.ParentRole == models.RoleAdmin {
		return true
	}

	granted := make([]string, 0, len(m.Role.Capabilities))
	for _, c := range m.Role.Capabilities {
		granted = append(granted, c.ID)
	}

	grants, err := expandImplied(granted)
	if err != nil {
		return false
	}

	dependencies, err := ResolveDependencies(capabilityID)
	if err != nil {
		return false
	}
	for _, dep := range dependencies {
		if _, ok := grants[dep]; !ok {
			return false
		}
	}

	_, ok := grants[capabilityID]
	return ok
}

// expandImplied walks implication edges so a grant of e.g. invite.create also
// carries member.view.
func expandImplied(ids []string) (map[string]struct{}, error) {
	grants := make(map[string]struct{})

	var visit func(string) error
	visit = func(id string) error {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil
		}
		if _, exists := grants[id]; exists {
			return nil
		}

		def, ok := Get(id)
		if !ok {
			// Stale grants referencing retired capabilities are ignored
			// rather than poisoning the whole evaluation.
			return nil
		}

		grants[id] = struct{}{}
		for _, implied := range def.Implies {
			if err := visit(implied); err != nil {
				return err
			}
		}
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return grants, nil
}
