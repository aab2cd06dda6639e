package types

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type audit struct {
	CreatedAt time.Time
}

type author struct {
	ID       int64 `db:"author_id"`
	Username string
	Bio      *string
	Tags     []string
	Extra    map[string]any
	password string
	audit
}

type blog struct {
	Title  string
	Author *author
	Posts  []post
}

type post struct {
	Subject string
}

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()

	testCases := []struct {
		name string
		want reflect.Type
	}{
		{name: "string", want: reflect.TypeOf("")},
		{name: "INT", want: reflect.TypeOf(0)},
		{name: "Long", want: reflect.TypeOf(int64(0))},
		{name: "map", want: reflect.TypeOf(map[string]any(nil))},
		{name: "int[]", want: reflect.TypeOf([]int(nil))},
		{name: "date", want: reflect.TypeOf(time.Time{})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()

	got, err := r.Resolve("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = r.Resolve("Nope")
	var ute *UnknownTypeError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "Nope", ute.Name)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterValue("Author", author{}))

	got, err := r.Resolve("author")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(author{}), got)

	// Same binding again is fine, a different one is not.
	require.NoError(t, r.RegisterValue("AUTHOR", author{}))
	assert.Error(t, r.RegisterValue("author", blog{}))
	assert.Error(t, r.Register("", reflect.TypeOf(0)))
	assert.Contains(t, r.Aliases(), "author")
}

func TestHasSettableProperty(t *testing.T) {
	authorType := reflect.TypeOf(author{})
	blogType := reflect.TypeOf(&blog{})

	testCases := []struct {
		name string
		typ  reflect.Type
		prop string
		want bool
	}{
		{name: "exact name", typ: authorType, prop: "Username", want: true},
		{name: "case insensitive", typ: authorType, prop: "username", want: true},
		{name: "db tag", typ: authorType, prop: "author_id", want: true},
		{name: "unexported", typ: authorType, prop: "password", want: false},
		{name: "promoted", typ: authorType, prop: "CreatedAt", want: true},
		{name: "missing", typ: authorType, prop: "email", want: false},
		{name: "nested through pointer", typ: blogType, prop: "author.username", want: true},
		{name: "nested missing", typ: blogType, prop: "author.email", want: false},
		{name: "map accepts anything", typ: authorType, prop: "extra.whatever", want: true},
		{name: "scalar has no properties", typ: reflect.TypeOf(0), prop: "x", want: false},
		{name: "nil type", typ: nil, prop: "x", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HasSettableProperty(tc.typ, tc.prop))
		})
	}
}

func TestPropertyType(t *testing.T) {
	got, ok := PropertyType(reflect.TypeOf(blog{}), "posts")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf([]post(nil)), got)
	assert.True(t, IsCollection(got))

	elem, ok := ElementType(got)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(post{}), elem)

	assert.False(t, IsCollection(reflect.TypeOf([]byte(nil))))
	assert.False(t, IsCollection(reflect.TypeOf("")))
}

func TestField(t *testing.T) {
	bio := "hello"
	b := &blog{Title: "go", Author: &author{ID: 7, Bio: &bio}}

	v, ok := Field(reflect.ValueOf(b), "title")
	require.True(t, ok)
	assert.Equal(t, "go", v.Interface())

	a, ok := Field(reflect.ValueOf(b), "Author")
	require.True(t, ok)
	id, ok := Field(a, "author_id")
	require.True(t, ok)
	assert.Equal(t, int64(7), id.Interface())

	_, ok = Field(reflect.ValueOf(b), "missing")
	assert.False(t, ok)

	_, ok = Field(reflect.ValueOf((*blog)(nil)), "title")
	assert.False(t, ok)
}

func TestName(t *testing.T) {
	assert.Equal(t, "", Name(nil))
	assert.Equal(t, "string", Name(reflect.TypeOf("")))
	assert.Equal(t, "github.com/roach88/sqlmapper/internal/types.author", Name(reflect.TypeOf(author{})))
	assert.Equal(t, "map[string]interface {}", Name(reflect.TypeOf(map[string]any(nil))))
}
