package tools

import (
	"errors"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry holds tool specs in registration order.
type Registry struct {
	mu      sync.RWMutex
	specs   map[string]*Spec
	schemas map[string]*jsonschema.Schema
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{specs: map[string]*Spec{}, schemas: map[string]*jsonschema.Schema{}}
}

func (r *Registry) Register(spec Spec) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return errors.New("tools: spec name is required")
	}
	seen := map[string]bool{}
	for _, p := range spec.Params {
		if p.Name == "" {
			return errors.New("tools: " + name + ": parameter name is required")
		}
		if seen[p.Name] {
			return errors.New("tools: " + name + ": duplicate parameter " + p.Name)
		}
		seen[p.Name] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[name]; ok {
		return &DuplicateToolError{Name: name}
	}
	stored := spec.clone()
	stored.Name = name
	schema, err := stored.compile()
	if err != nil {
		return err
	}
	r.specs[name] = stored
	r.schemas[name] = schema
	r.order = append(r.order, name)
	return nil
}

// MustRegister panics on error; meant for static built-in tables.
func (r *Registry) MustRegister(specs ...Spec) {
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Lookup returns a copy of the named spec.
func (r *Registry) Lookup(name string) (Spec, error) {
	spec, err := r.lookup(name)
	if err != nil {
		return Spec{}, err
	}
	return *spec.clone(), nil
}

// Validate checks args against the registered spec, reusing its compiled schema.
func (r *Registry) Validate(name string, args map[string]any) error {
	r.mu.RLock()
	spec, ok := r.specs[name]
	schema := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return &UnknownToolError{Name: name}
	}
	return spec.validate(schema, args)
}

func (r *Registry) lookup(name string) (*Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return spec, nil
}

func (r *Registry) List() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.specs[name].clone())
	}
	return out
}
