// Package types resolves type aliases and answers structural questions about
// target record types: which properties are settable and what type they hold.
package types

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// UnknownTypeError is returned when an alias is not registered.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type alias %q", e.Name)
}

// Registry maps case-insensitive aliases to Go types.
type Registry struct {
	mu      sync.RWMutex
	aliases map[string]reflect.Type
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// NewRegistry returns a registry preloaded with the built-in aliases.
func NewRegistry() *Registry {
	r := &Registry{aliases: make(map[string]reflect.Type)}
	builtins := map[string]reflect.Type{
		"string":     reflect.TypeOf(""),
		"byte":       reflect.TypeOf(byte(0)),
		"short":      reflect.TypeOf(int16(0)),
		"int":        reflect.TypeOf(0),
		"integer":    reflect.TypeOf(0),
		"long":       reflect.TypeOf(int64(0)),
		"float":      reflect.TypeOf(float32(0)),
		"double":     reflect.TypeOf(float64(0)),
		"boolean":    reflect.TypeOf(false),
		"bool":       reflect.TypeOf(false),
		"decimal":    reflect.TypeOf((*big.Float)(nil)),
		"bigdecimal": reflect.TypeOf((*big.Float)(nil)),
		"biginteger": reflect.TypeOf((*big.Int)(nil)),
		"date":       reflect.TypeOf(time.Time{}),
		"timestamp":  reflect.TypeOf(time.Time{}),
		"bytes":      reflect.TypeOf([]byte(nil)),
		"object":     anyType,
		"map":        reflect.TypeOf(map[string]any(nil)),
		"hashmap":    reflect.TypeOf(map[string]any(nil)),
		"list":       reflect.TypeOf([]any(nil)),
		"arraylist":  reflect.TypeOf([]any(nil)),
		"collection": reflect.TypeOf([]any(nil)),
	}
	for alias, t := range builtins {
		r.aliases[alias] = t
		if t.Kind() != reflect.Slice && t.Kind() != reflect.Map && t != anyType {
			r.aliases[alias+"[]"] = reflect.SliceOf(t)
		}
	}
	return r
}

// Register binds alias to t. Rebinding an alias to a different type fails.
func (r *Registry) Register(alias string, t reflect.Type) error {
	if alias == "" {
		return fmt.Errorf("register: empty alias")
	}
	if t == nil {
		return fmt.Errorf("register %q: nil type", alias)
	}
	key := strings.ToLower(alias)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.aliases[key]; ok && existing != t {
		return fmt.Errorf("register %q: alias already bound to %s", alias, existing)
	}
	r.aliases[key] = t
	return nil
}

// RegisterValue binds alias to the dynamic type of v.
func (r *Registry) RegisterValue(alias string, v any) error {
	return r.Register(alias, reflect.TypeOf(v))
}

// Resolve returns the type bound to name. An empty name resolves to nil.
func (r *Registry) Resolve(name string) (reflect.Type, error) {
	if name == "" {
		return nil, nil
	}
	r.mu.RLock()
	t, ok := r.aliases[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownTypeError{Name: name}
	}
	return t, nil
}

// Aliases returns the registered aliases in sorted order.
func (r *Registry) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.aliases))
	for a := range r.aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Name returns a stable display name for t. It is used in fingerprints, so
// it must not depend on pointer identity.
func Name(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
