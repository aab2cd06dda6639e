// Package testutil holds fixtures shared by package tests: record types, a
// preloaded type registry, sample mapper documents and deterministic load
// ids.
package testutil

import (
	"time"

	"github.com/roach88/sqlmapper/internal/types"
)

type Author struct {
	ID       int64
	Username string
	Email    string
	Bio      string
}

type Tag struct {
	ID   int64
	Name string
}

type Comment struct {
	ID   int64
	Body string
}

type Post struct {
	ID       int64
	Subject  string
	Body     string
	Draft    bool
	Created  time.Time
	Author   *Author
	Comments []*Comment
	Tags     []Tag
}

type Blog struct {
	ID     int64
	Title  string
	Author *Author
	Posts  []*Post
}

// Registry returns a type registry with the fixture types registered under
// their own names.
func Registry() *types.Registry {
	r := types.NewRegistry()
	for alias, v := range map[string]any{
		"Author":  Author{},
		"Tag":     Tag{},
		"Comment": Comment{},
		"Post":    Post{},
		"Blog":    Blog{},
	} {
		if err := r.RegisterValue(alias, v); err != nil {
			panic(err)
		}
	}
	return r
}

// AuthorMapper declares the author namespace: a cache, a result map, a
// fragment and a handful of statements.
const AuthorMapper = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="author">
  <cache eviction="FIFO" flushInterval="60000" size="512" readOnly="true"/>

  <resultMap id="authorMap" type="Author">
    <id property="ID" column="id"/>
    <result property="Username" column="username"/>
    <result property="Email" column="email"/>
  </resultMap>

  <sql id="columns">${alias}.id, ${alias}.username, ${alias}.email</sql>

  <select id="findById" parameterType="long" resultMap="authorMap">
    select <include refid="columns"><property name="alias" value="a"/></include>
    from author a where a.id = #{id}
  </select>

  <select id="search" resultMap="authorMap">
    select * from author
    <where>
      <if test="username != null">and username like #{username}</if>
      <if test="ids != null and ids.size() > 0">
        and id in
        <foreach collection="ids" item="id" open="(" separator="," close=")">#{id}</foreach>
      </if>
    </where>
    order by ${orderBy}
  </select>

  <insert id="insert" parameterType="Author" useGeneratedKeys="true" keyProperty="ID">
    insert into author (username, email) values (#{Username}, #{Email})
  </insert>

  <update id="update" parameterType="Author">
    update author
    <set>
      <if test="Username != null">username = #{Username},</if>
      <if test="Email != null">email = #{Email},</if>
    </set>
    where id = #{ID}
  </update>
</mapper>
`

// BlogMapper shares the author cache and nests the author result map.
const BlogMapper = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="blog">
  <cache-ref namespace="author"/>

  <resultMap id="blogMap" type="Blog">
    <id property="ID" column="blog_id"/>
    <result property="Title" column="blog_title"/>
    <association property="Author" resultMap="author.authorMap" columnPrefix="author_"/>
    <collection property="Posts" ofType="Post">
      <id property="ID" column="post_id"/>
      <result property="Subject" column="post_subject"/>
    </collection>
  </resultMap>

  <select id="findBlog" resultMap="blogMap">
    select * from blog where id = #{id}
  </select>
</mapper>
`
