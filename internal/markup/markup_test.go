package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogMapper = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE mapper PUBLIC "-//mybatis.org//DTD Mapper 3.0//EN" "mybatis-3-mapper.dtd">
<mapper namespace="blog">
  <!-- lookup by id -->
  <select id="byId" resultType="map">
    SELECT * FROM ${schema}.blog WHERE id = #{id} <![CDATA[ AND rank < 3 ]]>
  </select>
</mapper>`

func TestParse(t *testing.T) {
	root, err := ParseString("blog.xml", blogMapper, map[string]string{"schema": "app"})
	require.NoError(t, err)

	assert.Equal(t, "mapper", root.Name())
	ns, ok := root.Attr("namespace")
	require.True(t, ok)
	assert.Equal(t, "blog", ns)

	selects := ElementsNamed(root, "select")
	require.Len(t, selects, 1)
	sel := selects[0]
	assert.Equal(t, "byId", AttrOr(sel, "id", ""))
	assert.Equal(t, 5, sel.Line())

	// Character data and CDATA merge into one text node.
	require.Len(t, sel.Children(), 1)
	assert.Equal(t, KindText, sel.Children()[0].Kind())
	assert.Contains(t, sel.Text(), "FROM app.blog WHERE id = #{id}")
	assert.Contains(t, sel.Text(), "AND rank < 3")
}

func TestParse_LeavesUnknownPlaceholders(t *testing.T) {
	root, err := ParseString("a.xml", `<mapper namespace="a"><sql id="cols">${alias}.id, ${known}</sql></mapper>`,
		map[string]string{"known": "name"})
	require.NoError(t, err)
	assert.Equal(t, "${alias}.id, name", root.Text())
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{name: "unclosed element", doc: `<mapper namespace="a"><select id="x"></mapper>`},
		{name: "empty document", doc: ``},
		{name: "text outside root", doc: `<mapper/>trailing`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseString("bad.xml", tc.doc, nil)
			require.Error(t, err)
			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
			assert.Equal(t, "bad.xml", pe.Resource)
		})
	}
}

func TestSubstitute(t *testing.T) {
	vars := map[string]string{"a": "1", "b": "two"}
	assert.Equal(t, "1 and two", Substitute("${a} and ${b}", vars))
	assert.Equal(t, "${c}", Substitute("${c}", vars))
	assert.Equal(t, "${a}", Substitute("${a}", nil))
}

func TestString_SortsAttributes(t *testing.T) {
	a := NewElement("if", []Attr{{Name: "test", Value: "x > 1"}, {Name: "b", Value: `q"`}}, NewText("a < b"))
	b := NewElement("if", []Attr{{Name: "b", Value: `q"`}, {Name: "test", Value: "x > 1"}}, NewText("a < b"))

	assert.Equal(t, `<if b="q&quot;" test="x &gt; 1">a &lt; b</if>`, String(a))
	assert.Equal(t, String(a), String(b))
	assert.Equal(t, `<include refid="x"/>`, String(NewElement("include", []Attr{{Name: "refid", Value: "x"}})))
}

func TestElementHelpers(t *testing.T) {
	root := NewElement("resultMap", nil,
		NewText("\n  "),
		NewElement("id", []Attr{{Name: "property", Value: "id"}}),
		NewElement("result", []Attr{{Name: "property", Value: ""}}),
	)

	assert.Len(t, Elements(root), 2)
	assert.Len(t, ElementsNamed(root, "result"), 1)
	assert.Equal(t, "fallback", AttrOr(Elements(root)[1], "property", "fallback"))
}
