// Package registry maps action names to their implementations and
// parameter schemas.
//
// A Registry is filled once at process start (see builtin.Register) and only
// read afterwards. Lookups are safe for concurrent use.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"geoetl/internal/dataset"
	"geoetl/internal/rule"
)

// Shape describes how many datasets an action reads and writes.
type Shape string

const (
	// Single reads one dataset and writes one.
	Single Shape = "single"
	// FanOut reads one dataset and writes several.
	FanOut Shape = "fan-out"
	// FanIn reads several datasets and writes one.
	FanIn Shape = "fan-in"
)

// Func runs an action. inputs are in the order of Rule.Inputs() and the
// returned datasets must match Rule.Outputs().
type Func func(ctx context.Context, inputs []*dataset.Dataset, params rule.Params) ([]*dataset.Dataset, error)

// Action is a registered transformation.
type Action struct {
	Name      string
	Summary   string
	Shape     Shape
	Run       Func
	NewParams func() rule.Params
}

// Registry is the set of known actions.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds a. Registering a name twice fails with
// *DuplicateActionError and leaves the registry unchanged.
func (r *Registry) Register(a Action) error {
	switch {
	case a.Name == "":
		return errors.New("registry: action name must not be empty")
	case a.Run == nil:
		return fmt.Errorf("registry: action %q has no implementation", a.Name)
	case a.NewParams == nil:
		return fmt.Errorf("registry: action %q has no parameter schema", a.Name)
	}
	if a.Shape == "" {
		a.Shape = Single
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.actions[a.Name]; dup {
		return &DuplicateActionError{Name: a.Name}
	}
	r.actions[a.Name] = a
	return nil
}

// MustRegister is Register for init-time wiring; it panics on error.
func (r *Registry) MustRegister(a Action) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Lookup returns the action called name, or *UnknownActionError with the
// closest registered name as suggestion.
func (r *Registry) Lookup(name string) (Action, error) {
	r.mu.RLock()
	a, ok := r.actions[name]
	r.mu.RUnlock()
	if !ok {
		return Action{}, &UnknownActionError{Name: name, Suggestion: Suggest(name, r.Names())}
	}
	return a, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.actions))
	for n := range r.actions {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NewParams returns a fresh parameter record for name. Optional fields
// left out of the configuration keep their zero values.
func (r *Registry) NewParams(name string) (rule.Params, bool) {
	r.mu.RLock()
	a, ok := r.actions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return a.NewParams(), true
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}
