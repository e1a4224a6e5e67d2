package permissions

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Capability describes a permission definition registered by modules.
type Capability struct {
	ID          string
	Module      string
	DependsOn   []string
	Implies     []string
	Description string
}

type capabilityRegistry struct {
	mu           sync.RWMutex
	capabilities map[string]*Capability
}

var globalRegistry = &capabilityRegistry{
	capabilities: make(map[string]*Capability),
}

var (
	errNilCapability   = errors.New("capability: nil definition")
	errEmptyID         = errors.New("capability: id is required")
	errDuplicateID     = errors.New("capability: already registered")
	errSelfDependency  = errors.New("capability: cannot depend on itself")
	errSelfImplication = errors.New("capability: cannot imply itself")
)

// Register adds a capability definition to the global registry.
func Register(input *Capability) error {
	if input == nil {
		return errNilCapability
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		return errEmptyID
	}

	def := cloneCapability(input)
	def.ID = id
	def.Module = strings.TrimSpace(def.Module)

	depends, err := normaliseIDs(def.DependsOn, id, errSelfDependency)
	if err != nil {
		return err
	}
	implies, err := normaliseIDs(def.Implies, id, errSelfImplication)
	if err != nil {
		return err
	}
	def.DependsOn = depends
	def.Implies = implies

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.capabilities[id]; exists {
		return fmt.Errorf("%w: %s", errDuplicateID, id)
	}

	globalRegistry.capabilities[id] = def
	return nil
}

// Get returns a copy of the capability definition when registered.
func Get(id string) (*Capability, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	def, ok := globalRegistry.capabilities[id]
	if !ok {
		return nil, false
	}
	return cloneCapability(def), true
}

// GetAll returns a copy of all registered capabilities keyed by ID.
func GetAll() map[string]*Capability {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	out := make(map[string]*Capability, len(globalRegistry.capabilities))
	for id, def := range globalRegistry.capabilities {
		out[id] = cloneCapability(def)
	}
	return out
}

// GetByModule gathers capabilities registered under the specified module.
func GetByModule(module string) []*Capability {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	module = strings.TrimSpace(module)
	var caps []*Capability
	for _, def := range globalRegistry.capabilities {
		if def.Module == module {
			caps = append(caps, cloneCapability(def))
		}
	}
	return caps
}

// ValidateDependencies ensures that all dependencies reference known capabilities.
func ValidateDependencies() error {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	for _, def := range globalRegistry.capabilities {
		for _, dep := range def.DependsOn {
			if _, ok := globalRegistry.capabilities[dep]; !ok {
				return fmt.Errorf("capability: %s depends on unknown capability %s", def.ID, dep)
			}
		}
	}
	return nil
}

func cloneCapability(def *Capability) *Capability {
	if def == nil {
		return nil
	}

	cp := *def
	if len(def.DependsOn) > 0 {
		cp.DependsOn = append([]string(nil), def.DependsOn...)
	}
	if len(def.Implies) > 0 {
		cp.Implies = append([]string(nil), def.Implies...)
	}
	return &cp
}

func normaliseIDs(values []string, self string, selfErr error) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(values))
	var result []string

	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if value == self {
			return nil, selfErr
		}
		if _, exists := seen[value]; exists {
			continue
		}

		seen[value] = struct{}{}
		result = append(result, value)
	}

	return result, nil
}
