package permissions

import (
	"fmt"
)

var (
	// ErrUnknownCapability indicates a capability lookup failed because it has not been registered.
	ErrUnknownCapability = fmt.Errorf("capability: unknown capability")
	// ErrCircularDependency signals that a dependency graph contains a cycle.
	ErrCircularDependency = fmt.Errorf("capability: circular dependency detected")
)

// ResolveDependencies returns the full dependency chain for the specified capability.
func ResolveDependencies(capabilityID string) ([]string, error) {
	caps := GetAll()

	root, ok := caps[capabilityID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCapability, capabilityID)
	}

	visited := make(map[string]bool, len(caps))
	recStack := make(map[string]bool, len(caps))
	var resolved []string

	var walk func(string) error
	walk = func(current string) error {
		def, ok := caps[current]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownCapability, current)
		}
		if recStack[current] {
			return fmt.Errorf("%w at %s", ErrCircularDependency, current)
		}
		if visited[current] {
			return nil
		}

		recStack[current] = true
		for _, dep := range def.DependsOn {
			if err := walk(dep); err != nil {
				return err
			}
		}
		recStack[current] = false
		visited[current] = true

		if current != capabilityID {
			resolved = append(resolved, current)
		}

		return nil
	}

	for _, dep := range root.DependsOn {
		if err := walk(dep); err != nil {
			return nil, err
		}
	}

	return resolved, nil
}
