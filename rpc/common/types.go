package common

import (
	"fmt"
	"reflect"
	"sync"
)

// --------------------------------------------------------------------------
// Type Registry (declared value types of the structured codec)
// --------------------------------------------------------------------------

// TypeRegistry maps the declared value type names carried on the wire to Go types,
// so the receiving side can reconstruct a typed payload.
type TypeRegistry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewTypeRegistry creates a registry with the builtin payload types registered
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}

	r.MustRegister("string", "")
	r.MustRegister("bytes", []byte(nil))
	r.MustRegister("bool", false)
	r.MustRegister("int", int(0))
	r.MustRegister("int64", int64(0))
	r.MustRegister("uint64", uint64(0))
	r.MustRegister("float64", float64(0))
	r.MustRegister("map", map[string]any(nil))
	r.MustRegister("list", []any(nil))

	return r
}

// Register binds name to the type of prototype. Registering the same pair twice is
// allowed, rebinding a name or a type is not.
func (r *TypeRegistry) Register(name string, prototype any) error {
	if name == "" {
		return fmt.Errorf("type name must not be empty")
	}
	if prototype == nil {
		return fmt.Errorf("prototype for %s must not be nil", name)
	}
	t := reflect.TypeOf(prototype)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok && existing != t {
		return fmt.Errorf("type name %s already bound to %s", name, existing)
	}
	if existing, ok := r.byType[t]; ok && existing != name {
		return fmt.Errorf("type %s already registered as %s", t, existing)
	}

	r.byName[name] = t
	r.byType[t] = name
	return nil
}

// MustRegister is like Register but panics on error
func (r *TypeRegistry) MustRegister(name string, prototype any) {
	if err := r.Register(name, prototype); err != nil {
		panic(err)
	}
}

// NameOf returns the declared type name of v. Unregistered types are declared by
// their Go type string.
func (r *TypeRegistry) NameOf(v any) string {
	if v == nil {
		return ""
	}
	t := reflect.TypeOf(v)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, ok := r.byType[t]; ok {
		return name
	}
	return t.String()
}

// Lookup returns the Go type registered for name
func (r *TypeRegistry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byName[name]
	return t, ok
}
