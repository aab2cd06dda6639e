package resolve

import (
	"errors"
	"fmt"
)

// IncompleteError reports that a definition depends on something not yet
// in the catalog. Items failing with it stay queued for the next pass.
type IncompleteError struct {
	// What names the kind of the missing definition, e.g. "resultMap".
	What string

	// Ref is the missing definition's qualified id or namespace.
	Ref string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s %q is not defined yet", e.What, e.Ref)
}

// Incomplete returns an *IncompleteError for a missing definition.
func Incomplete(what, ref string) error {
	return &IncompleteError{What: what, Ref: ref}
}

// IsIncomplete reports whether err is or wraps an IncompleteError.
func IsIncomplete(err error) bool {
	var ie *IncompleteError
	return errors.As(err, &ie)
}

// UnresolvedReferenceError reports a queued item whose dependency never
// appeared before the final pass.
type UnresolvedReferenceError struct {
	Kind      Kind
	Namespace string
	ID        string
	Resource  string

	// What and Ref describe the missing definition, as last reported by the
	// item's IncompleteError.
	What string
	Ref  string
}

func (e *UnresolvedReferenceError) Error() string {
	subject := fmt.Sprintf("%s %s.%s", e.Kind, e.Namespace, e.ID)
	if e.ID == "" {
		subject = fmt.Sprintf("%s in namespace %s", e.Kind, e.Namespace)
	}
	msg := fmt.Sprintf("unresolved reference: %s refers to %s %q", subject, e.What, e.Ref)
	if e.Resource != "" {
		msg += " (" + e.Resource + ")"
	}
	return msg
}

// IsUnresolved reports whether err is or wraps an UnresolvedReferenceError.
// Joined errors match when any member does.
func IsUnresolved(err error) bool {
	var ue *UnresolvedReferenceError
	return errors.As(err, &ue)
}
