// Package metadata holds registration-time descriptions of callable targets.
// Whether a target is transactional is decided here, once, when the target
// is registered: either by its explicit flag or by a configured rule.
package metadata

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateTarget is returned when a target name is registered twice.
var ErrDuplicateTarget = errors.New("target already registered")

// TargetDef describes a callable target.
type TargetDef struct {
	Name          string `json:"name"`
	Group         string `json:"group,omitempty"`
	Transactional bool   `json:"transactional"`
}

// Registry stores target definitions.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]TargetDef
	rules   *RuleSet
}

// NewRegistry creates a registry. rules may be nil.
func NewRegistry(rules *RuleSet) *Registry {
	return &Registry{
		targets: make(map[string]TargetDef),
		rules:   rules,
	}
}

// Register resolves the transactional marker of def and stores it.
// The stored definition is returned.
func (r *Registry) Register(def TargetDef) (TargetDef, error) {
	if def.Name == "" {
		return TargetDef{}, errors.New("target name is required")
	}

	resolved, err := r.rules.Resolve(def)
	if err != nil {
		return TargetDef{}, fmt.Errorf("resolve target %q: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.targets[def.Name]; exists {
		return TargetDef{}, fmt.Errorf("%w: %s", ErrDuplicateTarget, def.Name)
	}
	r.targets[def.Name] = resolved
	return resolved, nil
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (TargetDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.targets[name]
	return d, ok
}

// List returns all definitions ordered by name.
func (r *Registry) List() []TargetDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]TargetDef, 0, len(r.targets))
	for _, def := range r.targets {
		list = append(list, def)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
