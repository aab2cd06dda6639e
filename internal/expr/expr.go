// Package expr evaluates the test and interpolation expressions embedded in
// statement templates.
//
// The language covers comparisons (== != < <= > >= and the word forms eq
// neq lt lte gt gte), and/or/not, arithmetic, string/number/boolean/null
// literals and property paths such as author.name, ids[0] and
// list.size(). Paths resolve against a Scope.
//
// Comparison is typed: numbers compare with numbers, strings with strings,
// booleans with booleans, and anything with null. Other pairings are an
// ExpressionError rather than false.
package expr

import (
	"github.com/roach88/sqlmapper/internal/tokens"
)

// Value evaluates an expression and returns its raw value.
func Value(text string, scope *Scope) (any, error) {
	ast, err := Parse(text)
	if err != nil {
		return nil, err
	}
	ev := &evaluator{scope: scope}
	v, err := ev.expression(ast)
	return v, wrap(text, err)
}

// Evaluate evaluates a test expression. null is false, numbers are true
// when non-zero; any other non-boolean result is an ExpressionError.
func Evaluate(test string, scope *Scope) (bool, error) {
	v, err := Value(test, scope)
	if err != nil {
		return false, err
	}
	b, err := truth(v)
	return b, wrap(test, err)
}

// Render replaces every ${expression} in template with the text of its value.
func Render(template string, scope *Scope) (string, error) {
	return tokens.Replace(template, "${", "}", func(content string) (string, error) {
		v, err := Value(content, scope)
		if err != nil {
			return "", err
		}
		return Stringify(v), nil
	})
}

// Iterate evaluates a collection expression and returns its elements.
// Slices and arrays yield index/value entries, maps yield key/value entries
// ordered by key. A null collection is an error unless nullable is set, in
// which case it yields no entries.
func Iterate(text string, scope *Scope, nullable bool) ([]Entry, error) {
	v, err := Value(text, scope)
	if err != nil {
		return nil, err
	}
	if isNil(v) {
		if nullable {
			return nil, nil
		}
		return nil, &ExpressionError{Expr: text, Message: "collection evaluated to null"}
	}
	out, err := entries(v)
	return out, wrap(text, err)
}
