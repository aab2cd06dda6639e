package types

import (
	"reflect"
	"strings"
)

// HasSettableProperty reports whether a value of type t can receive the
// dotted property path name. Maps accept any key; interface types are
// treated as open.
func HasSettableProperty(t reflect.Type, name string) bool {
	_, ok := PropertyType(t, name)
	return ok
}

// PropertyType returns the type held by the dotted property path name.
func PropertyType(t reflect.Type, name string) (reflect.Type, bool) {
	if t == nil || name == "" {
		return nil, false
	}
	cur := t
	for _, part := range strings.Split(name, ".") {
		cur = deref(cur)
		switch cur.Kind() {
		case reflect.Map:
			if cur.Key().Kind() != reflect.String {
				return nil, false
			}
			cur = cur.Elem()
		case reflect.Interface:
			return anyType, true
		case reflect.Struct:
			f, ok := fieldByName(cur, part)
			if !ok {
				return nil, false
			}
			cur = f.Type
		default:
			return nil, false
		}
	}
	return cur, true
}

// ElementType returns the element type of a slice, array or map type.
func ElementType(t reflect.Type) (reflect.Type, bool) {
	if t == nil {
		return nil, false
	}
	t = deref(t)
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return t.Elem(), true
	}
	return nil, false
}

// IsCollection reports whether t is a slice or array type (byte slices
// excluded).
func IsCollection(t reflect.Type) bool {
	if t == nil {
		return false
	}
	t = deref(t)
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

// Field reads property name from struct value v. Pointers are followed.
// Unexported fields are never matched.
func Field(v reflect.Value, name string) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	f, ok := fieldByName(v.Type(), name)
	if !ok {
		return reflect.Value{}, false
	}
	fv, err := v.FieldByIndexErr(f.Index)
	if err != nil {
		// nil embedded pointer on the path
		return reflect.Value{}, true
	}
	return fv, true
}

// fieldByName matches the exact field name, then a db tag, then the field
// name case-insensitively.
func fieldByName(t reflect.Type, name string) (reflect.StructField, bool) {
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return f, true
	}
	fields := reflect.VisibleFields(t)
	for _, f := range fields {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("db"), ","); tag == name {
			return f, true
		}
	}
	for _, f := range fields {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
