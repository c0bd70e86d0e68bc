package ml

import (
	"iter"
	"slices"
)

// Registry holds models under display names in insertion order.
// Registering an existing name replaces the model in place.
// A Registry is not safe for concurrent use.
type Registry struct {
	names  []string
	models map[string]Model
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

// Register stores m under name, overwriting any previous model.
func (r *Registry) Register(name string, m Model) {
	if _, exists := r.models[name]; !exists {
		r.names = append(r.names, name)
	}
	r.models[name] = m
}

// Get returns the model registered under name.
func (r *Registry) Get(name string) (Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Remove deletes name from the registry.
func (r *Registry) Remove(name string) bool {
	if _, ok := r.models[name]; !ok {
		return false
	}
	delete(r.models, name)
	r.names = slices.DeleteFunc(r.names, func(n string) bool { return n == name })
	return true
}

// Names returns the registered names in insertion order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.names)
}

// All iterates over the registered models in insertion order.
func (r *Registry) All() iter.Seq2[string, Model] {
	return func(yield func(string, Model) bool) {
		for _, name := range r.names {
			if !yield(name, r.models[name]) {
				return
			}
		}
	}
}
