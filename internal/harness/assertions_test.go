package harness

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlmapper/internal/builder"
	"github.com/roach88/sqlmapper/internal/store"
	"github.com/roach88/sqlmapper/internal/testutil"
)

// assertionContext loads the author and blog fixtures into a finished
// catalog backed by an in-memory store.
func assertionContext(t *testing.T) *AssertionContext {
	t.Helper()
	l := builder.NewLoader(builder.DefaultSettings(), testutil.Registry(),
		builder.WithLoadIDGenerator(testutil.FixedLoadID("assert-load")))
	require.NoError(t, l.LoadReader("author.xml", strings.NewReader(testutil.AuthorMapper)))
	require.NoError(t, l.LoadReader("blog.xml", strings.NewReader(testutil.BlogMapper)))
	require.NoError(t, l.Finish())

	st, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &AssertionContext{
		Catalog: l.Catalog(),
		Store:   st,
		LoadID:  l.LoadID(),
		Ctx:     context.Background(),
	}
}

func TestAssertStatementExists(t *testing.T) {
	actx := assertionContext(t)

	assert.NoError(t, assertStatementExists(actx.Catalog, Assertion{Statement: "blog.findBlog"}))

	err := assertStatementExists(actx.Catalog, Assertion{Statement: "blog.nope"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertStatementExists, ae.Type)
	assert.Equal(t, "not found in catalog", ae.Actual)
	assert.Contains(t, ae.Known, "author.findById")
	assert.Contains(t, err.Error(), "Catalog:\n  author.findById\n")
}

func TestAssertResultMapProperties(t *testing.T) {
	actx := assertionContext(t)

	assert.NoError(t, assertResultMapProperties(actx.Catalog, Assertion{
		ResultMap:  "blog.blogMap",
		Properties: []string{"ID", "Title", "Author", "Posts"},
	}))

	err := assertResultMapProperties(actx.Catalog, Assertion{
		ResultMap:  "author.authorMap",
		Properties: []string{"ID", "Email"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maps [ID Username Email]")

	err = assertResultMapProperties(actx.Catalog, Assertion{ResultMap: "author.gone", Properties: []string{"ID"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blog.blogMap")
}

func TestAssertUnresolvedCount(t *testing.T) {
	result := NewResult()
	result.Unresolved = []UnresolvedRef{{ID: "a.x", What: "resultMap", Ref: "a.m"}}

	assert.NoError(t, assertUnresolvedCount(result, Assertion{Count: 1}))

	err := assertUnresolvedCount(result, Assertion{Count: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 0 unresolved")
	assert.Contains(t, err.Error(), "a.x -> resultMap a.m")
}

func TestAssertSnapshotStatements(t *testing.T) {
	actx := assertionContext(t)

	assert.NoError(t, assertSnapshotStatements(actx, Assertion{Namespace: "author", Count: 4}))
	assert.NoError(t, assertSnapshotStatements(actx, Assertion{Namespace: "blog", Count: 1}))

	err := assertSnapshotStatements(actx, Assertion{Namespace: "blog", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blog.findBlog")

	// Every assertion shares one stored snapshot.
	snaps, err := actx.Store.ListSnapshots(actx.Ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "assert-load", snaps[0].LoadID)
}

func TestEvaluateAssertions(t *testing.T) {
	actx := assertionContext(t)
	result := NewResult()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertStatementExists, Statement: "author.search"},
		{Type: AssertUnresolvedCount, Count: 0},
		{Type: AssertSnapshotStatements, Namespace: "author", Count: 4},
		{Type: AssertStatementExists, Statement: "author.nope"},
		{Type: "trace_order"},
	}, actx)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "statement author.nope")
	assert.Equal(t, `assertion[4]: unknown assertion type "trace_order"`, errs[1])
}

func TestEvaluateAssertions_WithoutContext(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertStatementExists, Statement: "author.search"},
		{Type: AssertUnresolvedCount},
	}, nil)

	require.Len(t, errs, 1)
	assert.Equal(t, "assertion[0]: statement_exists requires a catalog", errs[0])
}
