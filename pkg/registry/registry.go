package registry

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/conductor/pkg/domain"
	"github.com/aretw0/conductor/pkg/schema"
)

// Handler defines the signature for a capability implementation.
// It receives a context and a map of arguments, and returns a result or error.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Capability pairs a descriptor with its implementation.
type Capability struct {
	Info    domain.CapabilityInfo
	Handler Handler
}

// New is a shorthand for building a Capability.
func New(name, description string, handler Handler, params ...domain.Parameter) Capability {
	return Capability{
		Info:    domain.CapabilityInfo{Name: name, Description: description, Parameters: params},
		Handler: handler,
	}
}

// Plugin prefixes every capability name with namespace ("math" + "add" = "math.add").
func Plugin(namespace string, caps ...Capability) []Capability {
	out := make([]Capability, len(caps))
	for i, c := range caps {
		c.Info.Name = namespace + "." + c.Info.Name
		out[i] = c
	}
	return out
}

type entry struct {
	cap    Capability
	fields []schema.Field
}

// Registry manages the available capabilities. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	sealed  bool
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register adds a capability to the registry.
// Registering a name twice fails with *domain.DuplicateCapabilityError.
func (r *Registry) Register(c Capability) error {
	name := strings.TrimSpace(c.Info.Name)
	if name == "" {
		return fmt.Errorf("capability name is empty")
	}
	if c.Handler == nil {
		return fmt.Errorf("capability '%s' has no handler", name)
	}

	fields, err := parseFields(c.Info.Parameters)
	if err != nil {
		return fmt.Errorf("capability '%s': %w", name, err)
	}

	c.Info.Name = name
	c.Info.Parameters = slices.Clone(c.Info.Parameters)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("register '%s': %w", name, domain.ErrRegistrySealed)
	}
	if _, exists := r.entries[name]; exists {
		return &domain.DuplicateCapabilityError{Name: name}
	}
	r.entries[name] = &entry{cap: c, fields: fields}
	return nil
}

// MustRegister registers every capability and panics on the first failure.
func (r *Registry) MustRegister(caps ...Capability) {
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Seal makes the registry read-only. Further Register calls fail with domain.ErrRegistrySealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (Capability, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Capability{}, &domain.UnknownCapabilityError{Name: name}
	}
	c := e.cap
	c.Info.Parameters = slices.Clone(c.Info.Parameters)
	return c, nil
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List yields the descriptors of all capabilities, sorted by name.
// The sequence is lazy and can be ranged over any number of times.
func (r *Registry) List() iter.Seq[domain.CapabilityInfo] {
	return func(yield func(domain.CapabilityInfo) bool) {
		r.mu.RLock()
		names := slices.Sorted(maps.Keys(r.entries))
		r.mu.RUnlock()

		for _, name := range names {
			c, err := r.Lookup(name)
			if err != nil {
				continue
			}
			if !yield(c.Info) {
				return
			}
		}
	}
}

// ValidateArgs checks args against the capability's parameters and returns
// a copy with declared defaults filled in.
func (r *Registry) ValidateArgs(name string, args map[string]any) (map[string]any, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.UnknownCapabilityError{Name: name}
	}
	return applyAndCheck(e, args)
}

// Execute validates args and invokes the named capability.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.UnknownCapabilityError{Name: name}
	}

	checked, err := applyAndCheck(e, args)
	if err != nil {
		return nil, err
	}
	return e.cap.Handler(ctx, checked)
}

// Snapshot returns an immutable view of the registry without the excluded names.
func (r *Registry) Snapshot(exclude ...string) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &Snapshot{entries: make(map[string]*entry, len(r.entries))}
	for name, e := range r.entries {
		if slices.Contains(exclude, name) {
			continue
		}
		s.entries[name] = e
	}
	return s
}

func parseFields(params []domain.Parameter) ([]schema.Field, error) {
	specs := make([]schema.FieldSpec, len(params))
	for i, p := range params {
		specs[i] = schema.FieldSpec{Name: p.Name, Type: p.Type, Required: p.Required}
	}
	return schema.ParseFields(specs)
}

func applyAndCheck(e *entry, args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(e.cap.Info.Parameters))
	maps.Copy(out, args)
	for _, p := range e.cap.Info.Parameters {
		if v, ok := out[p.Name]; (!ok || v == nil) && p.Default != nil {
			out[p.Name] = p.Default
		}
	}

	if err := schema.Check(e.fields, out, schema.Strict()); err != nil {
		return nil, fmt.Errorf("capability '%s' arguments: %w", e.cap.Info.Name, err)
	}
	return out, nil
}
