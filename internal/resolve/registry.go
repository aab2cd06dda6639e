// Package resolve queues definitions whose references are not yet in the
// catalog and retries them until nothing more can be resolved.
//
// Documents may be loaded in any order and may refer to each other, so a
// result map, cache-ref or statement that names a missing definition is
// queued instead of failing. Drain runs after every document; Finish runs
// once at the end of a load and turns whatever is left into
// UnresolvedReferenceErrors.
package resolve

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/sqlmapper/internal/catalog"
)

// Kind selects one of the three queues. Queues drain in Kind order.
type Kind int

const (
	KindResultMap Kind = iota
	KindCacheRef
	KindStatement

	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindResultMap:
		return "resultMap"
	case KindCacheRef:
		return "cache-ref"
	case KindStatement:
		return "statement"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Item is one deferred definition.
type Item struct {
	Kind      Kind
	Namespace string

	// ID is the local id of the definition; empty for cache-refs.
	ID       string
	Resource string

	// Resolve builds and stages the definition. It returns an
	// *IncompleteError while a dependency is missing; any other error is
	// fatal.
	Resolve func(w catalog.Writer) error
}

type pending struct {
	Item
	last *IncompleteError
}

// Registry holds the pending queues. All methods are safe for concurrent
// use; Drain holds the registry lock for its whole run, so Resolve
// functions must not call back into the registry.
type Registry struct {
	mu     sync.Mutex
	queues [numKinds][]*pending
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Enqueue appends it to the queue of its kind.
func (r *Registry) Enqueue(it Item) {
	if it.Kind < 0 || it.Kind >= numKinds {
		panic(fmt.Sprintf("resolve: invalid item kind %d", int(it.Kind)))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[it.Kind] = append(r.queues[it.Kind], &pending{Item: it})
}

// Defer runs it.Resolve once and queues the item if it is incomplete.
// Other errors are returned unchanged.
func (r *Registry) Defer(w catalog.Writer, it Item) error {
	err := it.Resolve(w)
	var ie *IncompleteError
	if !errors.As(err, &ie) {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[it.Kind] = append(r.queues[it.Kind], &pending{Item: it, last: ie})
	return nil
}

// Len returns the number of queued items across all kinds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, q := range r.queues {
		n += len(q)
	}
	return n
}

// Pending returns the queued items of kind in queue order.
func (r *Registry) Pending(kind Kind) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, len(r.queues[kind]))
	for i, p := range r.queues[kind] {
		out[i] = p.Item
	}
	return out
}

// Drain retries every queued item against w until a full pass over all
// queues resolves nothing. It returns the number of items resolved. A
// fatal error stops the drain immediately; the failing item stays queued.
func (r *Registry) Drain(w catalog.Writer) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for {
		resolved := 0
		for k := range r.queues {
			n, err := r.pass(Kind(k), w)
			resolved += n
			if err != nil {
				return total + resolved, err
			}
		}
		total += resolved
		if resolved == 0 {
			return total, nil
		}
	}
}

// pass iterates the queue of kind once.
func (r *Registry) pass(kind Kind, w catalog.Writer) (int, error) {
	q := r.queues[kind]
	keep := q[:0:0]
	resolved := 0
	for i, p := range q {
		err := p.Resolve(w)
		if err == nil {
			resolved++
			continue
		}
		var ie *IncompleteError
		if errors.As(err, &ie) {
			p.last = ie
			keep = append(keep, p)
			continue
		}
		r.queues[kind] = append(append(keep, p), q[i+1:]...)
		return resolved, err
	}
	r.queues[kind] = keep
	return resolved, nil
}

// Finish drains the queues one final time and reports every item still
// pending as an *UnresolvedReferenceError, joined into one error.
func (r *Registry) Finish(w catalog.Writer) error {
	if _, err := r.Drain(w); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for k, q := range r.queues {
		for _, p := range q {
			ue := &UnresolvedReferenceError{
				Kind:      Kind(k),
				Namespace: p.Namespace,
				ID:        p.ID,
				Resource:  p.Resource,
			}
			if p.last != nil {
				ue.What, ue.Ref = p.last.What, p.last.Ref
			}
			errs = append(errs, ue)
		}
	}
	return errors.Join(errs...)
}

// Snapshot captures the queues so a failed document can be undone.
type Snapshot struct {
	queues [numKinds][]pending
}

// Snapshot returns a copy of the current queues.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s Snapshot
	for k, q := range r.queues {
		s.queues[k] = make([]pending, len(q))
		for i, p := range q {
			s.queues[k][i] = *p
		}
	}
	return s
}

// Restore replaces the queues with the contents of s.
func (r *Registry) Restore(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, q := range s.queues {
		restored := make([]*pending, len(q))
		for i := range q {
			p := q[i]
			restored[i] = &p
		}
		r.queues[k] = restored
	}
}
