package catalog

import (
	"errors"
	"fmt"
)

// Kind names a definition kind in errors and listings.
type Kind string

const (
	KindNamespace    Kind = "namespace"
	KindResultMap    Kind = "resultMap"
	KindStatement    Kind = "statement"
	KindFragment     Kind = "sql"
	KindParameterMap Kind = "parameterMap"
	KindCache        Kind = "cache"
	KindCacheRef     Kind = "cache-ref"
)

var (
	// ErrSealed is returned when writing to a sealed catalog.
	ErrSealed = errors.New("catalog is sealed")

	// ErrTxDone is returned when a committed or rolled back Tx is used.
	ErrTxDone = errors.New("transaction already finished")
)

// DuplicateDefinitionError reports an id declared twice with different
// content.
type DuplicateDefinitionError struct {
	Kind Kind

	// Key is the qualified id, or the namespace for namespaces and caches.
	Key string

	// Existing and Incoming describe both declarations: fingerprints for
	// definitions, resources for namespaces.
	Existing string
	Incoming string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("duplicate %s %q: already defined with different content", e.Kind, e.Key)
}

// IsDuplicate reports whether err is or wraps a DuplicateDefinitionError.
func IsDuplicate(err error) bool {
	var de *DuplicateDefinitionError
	return errors.As(err, &de)
}

// NotFoundError reports a reference to a definition that does not exist.
type NotFoundError struct {
	Kind Kind
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}
