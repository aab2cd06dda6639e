package expr

import (
	"errors"
	"fmt"
)

// ExpressionError reports a malformed expression or one that cannot be
// evaluated against its scope.
type ExpressionError struct {
	// Expr is the offending expression or template text.
	Expr string

	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression %q: %s", e.Expr, e.Message)
}

func (e *ExpressionError) Unwrap() error {
	return e.Err
}

// IsExpressionError reports whether err is or wraps an ExpressionError.
func IsExpressionError(err error) bool {
	var ee *ExpressionError
	return errors.As(err, &ee)
}

// evalError is raised inside evaluation before the expression text is known.
type evalError struct {
	msg string
}

func (e *evalError) Error() string { return e.msg }

func errorf(format string, args ...any) error {
	return &evalError{msg: fmt.Sprintf(format, args...)}
}
