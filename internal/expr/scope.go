package expr

import (
	"reflect"

	"github.com/roach88/sqlmapper/internal/types"
)

// Names always bound in a root scope.
const (
	ParameterKey  = "_parameter"
	DatabaseIDKey = "_databaseId"
)

// Scope is one frame of variables over a root parameter object.
//
// The root frame holds the parameter and the built-in names. Child frames
// are created per loop iteration and discarded afterwards, so nothing bound
// inside an iteration is visible to the next one. Bind always writes to the
// frame it is called on, so a <bind> in a loop body lands in the iteration
// frame: it is visible to the rest of that iteration and gone after it, the
// same as the loop's item and index.
type Scope struct {
	parent *Scope
	vars   map[string]any
	param  any
}

// NewScope returns a root scope over param.
func NewScope(param any, databaseID string) *Scope {
	return &Scope{
		vars: map[string]any{
			ParameterKey:  param,
			DatabaseIDKey: databaseID,
		},
		param: param,
	}
}

// Child returns a new frame whose lookups fall through to s.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, vars: make(map[string]any)}
}

// Bind sets name in this frame.
func (s *Scope) Bind(name string, value any) {
	s.vars[name] = value
}

// Parameter returns the root parameter object.
func (s *Scope) Parameter() any {
	return s.root().param
}

func (s *Scope) root() *Scope {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Lookup resolves a bare name: frames innermost first, then a property of
// the root parameter.
//
// A map parameter yields nil for a missing key. A struct parameter without
// the property is an error. A scalar parameter answers to any name, and a
// slice parameter answers to "list", "collection" and "array".
func (s *Scope) Lookup(name string) (any, error) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, nil
		}
	}

	param := s.root().param
	if param == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(param)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		return mapIndex(rv, name)
	case reflect.Struct:
		fv, ok := types.Field(rv, name)
		if !ok {
			return nil, errorf("no property %q in parameter of type %s", name, rv.Type())
		}
		return valueOf(fv), nil
	case reflect.Slice, reflect.Array:
		switch name {
		case "list", "collection", "array":
			return param, nil
		}
		return nil, errorf("parameter %q not found, available parameters are [collection, list, array]", name)
	}
	return param, nil
}
