package ir

import (
	"fmt"
	"strings"
)

// QualifiedID is the namespace-qualified key of every catalog definition.
type QualifiedID struct {
	Namespace string
	ID        string
}

// String renders namespace.id.
func (q QualifiedID) String() string {
	if q.Namespace == "" {
		return q.ID
	}
	return q.Namespace + "." + q.ID
}

// IsZero reports whether q is unset.
func (q QualifiedID) IsZero() bool {
	return q.Namespace == "" && q.ID == ""
}

// Qualify resolves a reference written inside namespace. A reference that
// contains a dot is already qualified: everything before the last dot is its
// namespace. An empty ref yields the zero QualifiedID.
func Qualify(namespace, ref string) QualifiedID {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return QualifiedID{}
	}
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		return QualifiedID{Namespace: ref[:i], ID: ref[i+1:]}
	}
	return QualifiedID{Namespace: namespace, ID: ref}
}

// QualifyList splits a comma separated list of references and qualifies
// each one.
func QualifyList(namespace, refs string) []QualifiedID {
	var out []QualifiedID
	for _, r := range strings.Split(refs, ",") {
		if q := Qualify(namespace, r); !q.IsZero() {
			out = append(out, q)
		}
	}
	return out
}

// ValidateLocalID checks an id as declared inside a document. Declared ids
// are always local: a dot would make references to them ambiguous.
func ValidateLocalID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if strings.Contains(id, ".") {
		return fmt.Errorf("id %q must not contain '.'", id)
	}
	return nil
}
