package resolve

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlmapper/internal/catalog"
	"github.com/roach88/sqlmapper/internal/ir"
)

// needs returns a Resolve func that succeeds once every flag is set.
func needs(ref string, ready *bool, onResolve func()) func(catalog.Writer) error {
	return func(catalog.Writer) error {
		if !*ready {
			return Incomplete("resultMap", ref)
		}
		if onResolve != nil {
			onResolve()
		}
		return nil
	}
}

func newTx(t *testing.T) *catalog.Tx {
	t.Helper()
	tx, err := catalog.New().Begin()
	require.NoError(t, err)
	return tx
}

func TestDrainReachesFixpoint(t *testing.T) {
	// c depends on b, b depends on a; queued in reverse order so a single
	// pass cannot resolve them all.
	var aDone, bDone, cDone bool
	alwaysReady := true

	r := NewRegistry()
	r.Enqueue(Item{Kind: KindResultMap, Namespace: "ns", ID: "c", Resolve: needs("ns.b", &bDone, func() { cDone = true })})
	r.Enqueue(Item{Kind: KindResultMap, Namespace: "ns", ID: "b", Resolve: needs("ns.a", &aDone, func() { bDone = true })})
	r.Enqueue(Item{Kind: KindResultMap, Namespace: "ns", ID: "a", Resolve: needs("", &alwaysReady, func() { aDone = true })})

	n, err := r.Drain(newTx(t))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, cDone)
	assert.Equal(t, 0, r.Len())
}

func TestDrainKeepsIncompleteItems(t *testing.T) {
	ready := false
	r := NewRegistry()
	r.Enqueue(Item{Kind: KindCacheRef, Namespace: "A", Resolve: needs("B", &ready, nil)})

	n, err := r.Drain(newTx(t))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, r.Len())

	ready = true
	n, err = r.Drain(newTx(t))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, r.Len())
}

func TestDrainStopsOnFatalError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	r := NewRegistry()
	r.Enqueue(Item{Kind: KindStatement, Namespace: "ns", ID: "bad", Resolve: func(catalog.Writer) error { return boom }})
	r.Enqueue(Item{Kind: KindStatement, Namespace: "ns", ID: "next", Resolve: func(catalog.Writer) error {
		calls++
		return nil
	}})

	_, err := r.Drain(newTx(t))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, calls, "items after a fatal error are not attempted")
	assert.Equal(t, 2, r.Len())
}

func TestDrainOrdersQueues(t *testing.T) {
	var order []string
	record := func(name string) func(catalog.Writer) error {
		return func(catalog.Writer) error {
			order = append(order, name)
			return nil
		}
	}

	r := NewRegistry()
	r.Enqueue(Item{Kind: KindStatement, Resolve: record("statement")})
	r.Enqueue(Item{Kind: KindCacheRef, Resolve: record("cache-ref")})
	r.Enqueue(Item{Kind: KindResultMap, Resolve: record("resultMap")})

	_, err := r.Drain(newTx(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"resultMap", "cache-ref", "statement"}, order)
}

func TestDefer(t *testing.T) {
	r := NewRegistry()
	tx := newTx(t)

	require.NoError(t, r.Defer(tx, Item{Kind: KindResultMap, ID: "ok", Resolve: func(catalog.Writer) error { return nil }}))
	assert.Equal(t, 0, r.Len())

	ready := false
	require.NoError(t, r.Defer(tx, Item{Kind: KindResultMap, ID: "later", Resolve: needs("ns.x", &ready, nil)}))
	assert.Equal(t, 1, r.Len())

	boom := errors.New("boom")
	assert.ErrorIs(t, r.Defer(tx, Item{Kind: KindResultMap, Resolve: func(catalog.Writer) error { return boom }}), boom)
	assert.Equal(t, 1, r.Len())
}

// secondTry returns a Resolve func that is incomplete on its first call and
// succeeds after that.
func secondTry(ref string) func(catalog.Writer) error {
	var calls atomic.Int32
	return func(catalog.Writer) error {
		if calls.Add(1) == 1 {
			return Incomplete("resultMap", ref)
		}
		return nil
	}
}

func TestRegistryConcurrentEnqueueDrain(t *testing.T) {
	const (
		workers   = 8
		perWorker = 50
	)
	r := NewRegistry()
	tx := newTx(t)

	var resolved atomic.Int64
	stop := make(chan struct{})
	drained := make(chan error, 1)
	go func() {
		for {
			n, err := r.Drain(tx)
			resolved.Add(int64(n))
			if err != nil {
				drained <- err
				return
			}
			select {
			case <-stop:
				drained <- nil
				return
			default:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				it := Item{Kind: Kind(i % int(numKinds)), Namespace: fmt.Sprintf("w%d", w), ID: fmt.Sprintf("s%d", i), Resolve: secondTry("ns.later")}
				if i%2 == 0 {
					r.Enqueue(it)
					continue
				}
				if err := r.Defer(nil, it); err != nil {
					t.Errorf("defer %s.%s: %v", it.Namespace, it.ID, err)
				}
			}
		}(w)
	}
	wg.Wait()
	close(stop)
	require.NoError(t, <-drained)

	submitted := int64(workers * perWorker)
	assert.Equal(t, submitted, int64(r.Len())+resolved.Load(), "every item is either queued or resolved")

	for round := 0; round < 2 && r.Len() > 0; round++ {
		n, err := r.Drain(tx)
		require.NoError(t, err)
		resolved.Add(int64(n))
	}
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, submitted, resolved.Load())
}

func TestFinishReportsUnresolved(t *testing.T) {
	never := false
	r := NewRegistry()
	r.Enqueue(Item{Kind: KindCacheRef, Namespace: "A", Resource: "a.xml", Resolve: func(catalog.Writer) error {
		return Incomplete("cache", "B")
	}})
	r.Enqueue(Item{Kind: KindResultMap, Namespace: "A", ID: "m", Resolve: needs("C.n", &never, nil)})

	err := r.Finish(newTx(t))
	require.Error(t, err)
	assert.True(t, IsUnresolved(err))
	assert.False(t, IsIncomplete(err))

	var ue *UnresolvedReferenceError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, KindResultMap, ue.Kind, "result maps are reported first")
	assert.Equal(t, "C.n", ue.Ref)

	assert.Contains(t, err.Error(), `cache-ref in namespace A refers to cache "B" (a.xml)`)
	assert.Contains(t, err.Error(), `resultMap A.m refers to resultMap "C.n"`)
}

func TestFinishEmpty(t *testing.T) {
	assert.NoError(t, NewRegistry().Finish(newTx(t)))
}

func TestSnapshotRestore(t *testing.T) {
	ready := false
	r := NewRegistry()
	r.Enqueue(Item{Kind: KindResultMap, ID: "kept", Resolve: needs("x", &ready, nil)})

	snap := r.Snapshot()
	r.Enqueue(Item{Kind: KindStatement, ID: "added", Resolve: needs("y", &ready, nil)})
	ready = true
	_, err := r.Drain(newTx(t))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())

	r.Restore(snap)
	items := r.Pending(KindResultMap)
	require.Len(t, items, 1)
	assert.Equal(t, "kept", items[0].ID)
	assert.Empty(t, r.Pending(KindStatement))
}

func TestResolveStagesIntoWriter(t *testing.T) {
	tx := newTx(t)
	r := NewRegistry()
	r.Enqueue(Item{Kind: KindCacheRef, Namespace: "A", Resolve: func(w catalog.Writer) error {
		if _, ok := w.Cache("B"); !ok {
			return Incomplete("cache", "B")
		}
		return w.DefineCacheRef("A", "B")
	}})

	_, err := r.Drain(tx)
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())

	require.NoError(t, tx.DefineCache(&ir.CacheDef{Namespace: "B"}))
	_, err = r.Drain(tx)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())

	a, _ := tx.Cache("A")
	b, _ := tx.Cache("B")
	assert.Same(t, b, a)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "resultMap", KindResultMap.String())
	assert.Equal(t, "cache-ref", KindCacheRef.String())
	assert.Equal(t, "statement", KindStatement.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}
