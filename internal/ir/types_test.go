package ir

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlmapper/internal/markup"
)

func TestQualify(t *testing.T) {
	testCases := []struct {
		name      string
		namespace string
		ref       string
		want      QualifiedID
	}{
		{name: "local", namespace: "blog", ref: "byId", want: QualifiedID{"blog", "byId"}},
		{name: "qualified", namespace: "blog", ref: "author.authorMap", want: QualifiedID{"author", "authorMap"}},
		{name: "dotted namespace", namespace: "x", ref: "org.app.Author.map", want: QualifiedID{"org.app.Author", "map"}},
		{name: "trimmed", namespace: "blog", ref: "  byId ", want: QualifiedID{"blog", "byId"}},
		{name: "empty", namespace: "blog", ref: "", want: QualifiedID{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Qualify(tc.namespace, tc.ref))
		})
	}
}

func TestQualifyList(t *testing.T) {
	got := QualifyList("blog", "a, other.b,,")
	assert.Equal(t, []QualifiedID{{"blog", "a"}, {"other", "b"}}, got)
}

func TestQualifiedIDString(t *testing.T) {
	assert.Equal(t, "blog.byId", QualifiedID{"blog", "byId"}.String())
	assert.Equal(t, "byId", QualifiedID{ID: "byId"}.String())
	assert.True(t, QualifiedID{}.IsZero())
}

func TestValidateLocalID(t *testing.T) {
	assert.NoError(t, ValidateLocalID("byId"))
	assert.Error(t, ValidateLocalID(""))
	assert.Error(t, ValidateLocalID("a.b"))
}

func TestParseParamMode(t *testing.T) {
	for in, want := range map[string]ParamMode{"": ModeIn, "in": ModeIn, "Out": ModeOut, "INOUT": ModeInOut} {
		got, err := ParseParamMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseParamMode("sideways")
	assert.Error(t, err)
}

func TestResultMapCanonical(t *testing.T) {
	yes := true
	rm := &ResultMap{
		ID:      QualifiedID{"blog", "detailed"},
		Type:    reflect.TypeOf(map[string]any(nil)),
		Extends: QualifiedID{"blog", "base"},
		Entries: []ResultEntry{
			{Kind: EntryIDColumn, ID: true, Column: "id", Property: "id"},
			{Kind: EntryNestedAssociation, Property: "author", NestedResultMap: QualifiedID{"author", "authorMap"}},
		},
		Discriminator: &Discriminator{
			Column: "kind",
			Cases:  map[string]QualifiedID{"2": {"blog", "b"}, "1": {"blog", "a"}},
		},
		AutoMapping: &yes,
	}

	fp1, err := Fingerprint(DomainResultMap, rm.Canonical())
	require.NoError(t, err)

	changed := *rm
	changed.Entries = append([]ResultEntry(nil), rm.Entries...)
	changed.Entries[0].Column = "blog_id"
	fp2, err := Fingerprint(DomainResultMap, changed.Canonical())
	require.NoError(t, err)

	assert.NotEqual(t, fp1, fp2)
	assert.True(t, rm.HasNestedResultMaps())
	assert.Equal(t, []QualifiedID{{"author", "authorMap"}, {"blog", "a"}, {"blog", "b"}}, rm.References())
	assert.Len(t, rm.EntriesOf(EntryIDColumn), 1)
	assert.Equal(t, []string{"1", "2"}, rm.Discriminator.CaseValues())
}

func TestCacheAndFragmentCanonical(t *testing.T) {
	c := &CacheDef{Namespace: "blog", Implementation: "PERPETUAL", Eviction: "LRU", Size: 1024, ReadWrite: true}
	_, err := Fingerprint(DomainCache, c.Canonical())
	require.NoError(t, err)

	f := &SQLFragment{
		ID:   QualifiedID{"blog", "cols"},
		Body: markup.NewElement("sql", []markup.Attr{{Name: "id", Value: "cols"}}, markup.NewText("id, title")),
	}
	assert.Equal(t, `<sql id="cols">id, title</sql>`, f.Canonical()["body"])
}

func TestBoundSQLAccessors(t *testing.T) {
	b := &BoundSQL{
		SQL: "SELECT * FROM t WHERE a = ? AND b = ?",
		Bindings: []Binding{
			{Property: "a", Mode: ModeIn, Value: 1},
			{Property: "b", Mode: ModeOut},
		},
	}
	assert.Equal(t, []any{1, nil}, b.Args())
	assert.Equal(t, []string{"a", "b"}, b.Properties())
}
