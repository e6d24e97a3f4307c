package registry

import (
	"fmt"
	"sync"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
)

// Namespace groups component kinds by role
type Namespace string

const (
	// Transformer holds fit/transform components
	Transformer Namespace = "transformer"
	// Workflow holds top-level runnable components
	Workflow Namespace = "workflow"
	// Plain holds every other component
	Plain Namespace = "plain"
)

// LookupOrder is the fixed priority in which namespaces are searched for a kind
var LookupOrder = []Namespace{Transformer, Workflow, Plain}

// Factory returns a fresh zero-configured component
type Factory func() component.Component

// Options configures uniqueness checks for a registry
type Options struct {
	// AllowOverwrite lets a later registration replace an earlier one in every namespace.
	// Intended for tests.
	AllowOverwrite bool
}

// Registry maps kinds to component factories, per namespace
type Registry struct {
	mu        sync.RWMutex
	opts      Options
	frozen    bool
	factories map[Namespace]map[string]Factory
	order     map[Namespace][]string // Maintains registration order
}

// New creates an empty registry
func New(opts Options) *Registry {
	r := &Registry{
		opts:      opts,
		factories: make(map[Namespace]map[string]Factory, len(LookupOrder)),
		order:     make(map[Namespace][]string, len(LookupOrder)),
	}
	for _, ns := range LookupOrder {
		r.factories[ns] = make(map[string]Factory)
		r.order[ns] = make([]string, 0)
	}
	return r
}

// Options returns the registry configuration
func (r *Registry) Options() Options {
	return r.opts
}

// Register adds a factory under kind in namespace.
// The factory's component must report the same kind and satisfy the namespace capability.
func (r *Registry) Register(ns Namespace, kind string, factory Factory) error {
	if factory == nil {
		return apperrors.NewConfigError(fmt.Sprintf("cannot register nil factory for kind %q", kind), nil)
	}
	if kind == "" {
		return apperrors.NewConfigError("component kind cannot be empty", nil)
	}

	sample := factory()
	if sample == nil {
		return apperrors.NewConfigError(fmt.Sprintf("factory for kind %q returned nil", kind), nil)
	}
	if sample.Kind() != kind {
		return apperrors.NewConfigError(
			fmt.Sprintf("factory for kind %q builds a component of kind %q", kind, sample.Kind()), nil).
			WithContext("kind", kind)
	}
	if err := checkCapability(ns, sample); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return apperrors.NewConfigError(fmt.Sprintf("registry is frozen, cannot register %q", kind), nil)
	}

	kinds, ok := r.factories[ns]
	if !ok {
		return apperrors.NewConfigError(fmt.Sprintf("unknown namespace %q", ns), nil)
	}

	if _, exists := kinds[kind]; exists {
		if !r.opts.AllowOverwrite {
			return apperrors.NewDuplicateRegistrationError(string(ns), kind)
		}
		kinds[kind] = factory
		return nil
	}

	kinds[kind] = factory
	r.order[ns] = append(r.order[ns], kind)
	return nil
}

func checkCapability(ns Namespace, c component.Component) error {
	var ok bool
	var want string
	switch ns {
	case Transformer:
		_, ok = c.(component.Fittable)
		want = "Fit and Transform"
	case Workflow:
		_, ok = c.(component.Runnable)
		want = "Run"
	case Plain:
		return nil
	default:
		return apperrors.NewConfigError(fmt.Sprintf("unknown namespace %q", ns), nil)
	}
	if !ok {
		return apperrors.NewConfigError(
			fmt.Sprintf("kind %q cannot be registered as %s: missing %s", c.Kind(), ns, want), nil).
			WithContext("kind", c.Kind())
	}
	return nil
}

// Freeze rejects any further registration
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze was called
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup finds kind by searching namespaces in LookupOrder
func (r *Registry) Lookup(kind string) (Namespace, Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ns := range LookupOrder {
		if factory, ok := r.factories[ns][kind]; ok {
			return ns, factory, nil
		}
	}
	return "", nil, apperrors.NewUnknownDiscriminatorError(kind)
}

// Get retrieves the factory for kind within a single namespace
func (r *Registry) Get(ns Namespace, kind string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[ns][kind]
	if !ok {
		return nil, apperrors.NewUnknownDiscriminatorError(kind).WithContext("namespace", string(ns))
	}
	return factory, nil
}

// Has checks if kind is registered in namespace
func (r *Registry) Has(ns Namespace, kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.factories[ns][kind]
	return ok
}

// Kinds returns the kinds of a namespace in registration order
func (r *Registry) Kinds(ns Namespace) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, len(r.order[ns]))
	copy(kinds, r.order[ns])
	return kinds
}

// Count returns the number of registered kinds across all namespaces
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, kinds := range r.factories {
		n += len(kinds)
	}
	return n
}

// Clone creates an unfrozen copy of the registry with the given options
func (r *Registry) Clone(opts Options) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := New(opts)
	for _, ns := range LookupOrder {
		for _, kind := range r.order[ns] {
			clone.factories[ns][kind] = r.factories[ns][kind]
			clone.order[ns] = append(clone.order[ns], kind)
		}
	}
	return clone
}
