package expr

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/sqlmapper/internal/types"
)

// normalize folds a value into the evaluator's scalar domain: int64,
// float64, string, bool or nil. Pointers are followed. Composite values are
// returned as they are.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return int64(u)
		}
		return float64(u)
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return rv.Interface()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// truth converts a value to a condition result. Only bools, nil and numbers
// have a truth value.
func truth(v any) (bool, error) {
	switch n := normalize(v).(type) {
	case nil:
		return false, nil
	case bool:
		return n, nil
	case int64:
		return n != 0, nil
	case float64:
		return n != 0, nil
	default:
		return false, errorf("value of type %T is not a condition", v)
	}
}

// compare applies a comparison operator to two values.
func compare(op string, left, right any) (bool, error) {
	switch op {
	case "eq":
		op = "=="
	case "neq":
		op = "!="
	case "lt":
		op = "<"
	case "lte":
		op = "<="
	case "gt":
		op = ">"
	case "gte":
		op = ">="
	}

	if op == "==" || op == "!=" {
		eq, err := equal(left, right)
		if err != nil {
			return false, err
		}
		return eq == (op == "=="), nil
	}

	l, r := normalize(left), normalize(right)
	var c int
	switch {
	case isNumber(l) && isNumber(r):
		c = compareNumbers(l, r)
	case isString(l) && isString(r):
		c = strings.Compare(l.(string), r.(string))
	default:
		return false, errorf("cannot order %s and %s", describe(l), describe(r))
	}

	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, errorf("unknown operator %q", op)
}

func equal(left, right any) (bool, error) {
	if isNil(left) || isNil(right) {
		return isNil(left) && isNil(right), nil
	}
	l, r := normalize(left), normalize(right)
	switch {
	case isNumber(l) && isNumber(r):
		return compareNumbers(l, r) == 0, nil
	case isString(l) && isString(r):
		return l == r, nil
	}
	if lb, ok := l.(bool); ok {
		if rb, ok := r.(bool); ok {
			return lb == rb, nil
		}
	}
	if reflect.TypeOf(l) == reflect.TypeOf(r) && !isScalar(l) {
		return reflect.DeepEqual(l, r), nil
	}
	return false, errorf("cannot compare %s with %s", describe(l), describe(r))
}

func compareNumbers(l, r any) int {
	if li, ok := l.(int64); ok {
		if ri, ok := r.(int64); ok {
			switch {
			case li < ri:
				return -1
			case li > ri:
				return 1
			}
			return 0
		}
	}
	lf, rf := toFloat(l), toFloat(r)
	switch {
	case lf < rf:
		return -1
	case lf > rf:
		return 1
	}
	return 0
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isScalar(v any) bool {
	switch v.(type) {
	case int64, float64, string, bool:
		return true
	}
	return false
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case int64, float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}

// arithmetic applies + - * / % to two values. + concatenates when either
// side is a string.
func arithmetic(op string, left, right any) (any, error) {
	l, r := normalize(left), normalize(right)
	if op == "+" && (isString(l) || isString(r)) {
		return Stringify(l) + Stringify(r), nil
	}
	if !isNumber(l) || !isNumber(r) {
		return nil, errorf("operator %s needs numbers, got %s and %s", op, describe(l), describe(r))
	}

	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "/", "%":
			if ri == 0 {
				return nil, errorf("division by zero")
			}
			if op == "/" {
				return li / ri, nil
			}
			return li % ri, nil
		}
	}

	lf, rf := toFloat(l), toFloat(r)
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		return nil, errorf("operator %% needs integers")
	}
	return nil, errorf("unknown operator %q", op)
}

func negate(v any) (any, error) {
	switch n := normalize(v).(type) {
	case int64:
		return -n, nil
	case float64:
		return -n, nil
	}
	return nil, errorf("cannot negate %s", describe(normalize(v)))
}

// valueOf unwraps a reflect.Value for further navigation. Invalid values
// (a nil embedded pointer on the way) read as nil.
func valueOf(rv reflect.Value) any {
	if !rv.IsValid() || !rv.CanInterface() {
		return nil
	}
	return rv.Interface()
}

// property reads name from v: a map key, or a struct field. Reading through
// nil yields nil.
func property(v any, name string) (any, error) {
	if isNil(v) {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
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
			return nil, errorf("no property %q on type %s", name, rv.Type())
		}
		return valueOf(fv), nil
	}
	return nil, errorf("cannot read property %q of %s", name, describe(normalize(v)))
}

func mapIndex(rv reflect.Value, key any) (any, error) {
	if key == nil {
		return nil, errorf("map key is null")
	}
	kv := reflect.ValueOf(key)
	kt := rv.Type().Key()
	if !kv.Type().AssignableTo(kt) {
		// reflect converts integers to strings as runes; refuse that.
		if (kv.Kind() == reflect.String) != (kt.Kind() == reflect.String) || !kv.Type().ConvertibleTo(kt) {
			return nil, errorf("map key %v does not fit %s", key, kt)
		}
		kv = kv.Convert(kt)
	}
	if rv.IsNil() {
		return nil, nil
	}
	return valueOf(rv.MapIndex(kv)), nil
}

func index(v any, idx any) (any, error) {
	if isNil(v) {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		return mapIndex(rv, normalize(idx))
	case reflect.Slice, reflect.Array, reflect.String:
		i, ok := normalize(idx).(int64)
		if !ok {
			return nil, errorf("index must be a number, got %s", describe(normalize(idx)))
		}
		if i < 0 || i >= int64(rv.Len()) {
			return nil, errorf("index %d out of range [0,%d)", i, rv.Len())
		}
		return valueOf(rv.Index(int(i))), nil
	}
	return nil, errorf("cannot index %s", describe(normalize(v)))
}

func call(v any, method string) (any, error) {
	if isNil(v) {
		return nil, errorf("cannot call %s() on null", method)
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, errorf("cannot call %s() on null", method)
		}
		rv = rv.Elem()
	}
	switch method {
	case "size", "length", "isEmpty":
		var n int
		switch rv.Kind() {
		case reflect.String:
			n = len([]rune(rv.String()))
		case reflect.Slice, reflect.Array, reflect.Map:
			n = rv.Len()
		default:
			return nil, errorf("%s() is not defined for %s", method, rv.Type())
		}
		if method == "isEmpty" {
			return n == 0, nil
		}
		return int64(n), nil
	case "trim":
		if rv.Kind() != reflect.String {
			return nil, errorf("trim() is not defined for %s", rv.Type())
		}
		return strings.TrimSpace(rv.String()), nil
	}
	return nil, errorf("unknown method %s()", method)
}

// Entry is one element of an iterated collection. Key is the index for
// slices and the key for maps.
type Entry struct {
	Key   any
	Value any
}

func entries(v any) ([]Entry, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]Entry, rv.Len())
		for i := range out {
			out[i] = Entry{Key: i, Value: valueOf(rv.Index(i))}
		}
		return out, nil
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return lessKey(keys[i].Interface(), keys[j].Interface())
		})
		out := make([]Entry, len(keys))
		for i, k := range keys {
			out[i] = Entry{Key: k.Interface(), Value: valueOf(rv.MapIndex(k))}
		}
		return out, nil
	}
	return nil, errorf("cannot iterate over %s", describe(normalize(v)))
}

func lessKey(a, b any) bool {
	na, nb := normalize(a), normalize(b)
	if isNumber(na) && isNumber(nb) {
		return compareNumbers(na, nb) < 0
	}
	return fmt.Sprint(na) < fmt.Sprint(nb)
}

// Stringify renders a value as SQL text. nil renders as the empty string.
func Stringify(v any) string {
	switch n := normalize(v).(type) {
	case nil:
		return ""
	case string:
		return n
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	default:
		return fmt.Sprint(n)
	}
}
