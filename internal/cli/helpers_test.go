package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testConfig = `
settings: databaseId: "sqlite"
typeAliases: Account: "map"
mappers: ["mappers/*.xml"]
`

const accountMapper = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="account">
  <cache eviction="LRU" size="128"/>

  <resultMap id="accountMap" type="Account">
    <id property="id" column="id"/>
    <result property="name" column="name"/>
  </resultMap>

  <select id="findById" parameterType="long" resultMap="accountMap">
    select id, name from account where id = #{id}
  </select>

  <select id="search" resultMap="accountMap">
    select id, name from account
    <where>
      <if test="name != null">name = #{name}</if>
    </where>
  </select>
</mapper>
`

const ledgerMapper = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="ledger">
  <cache-ref namespace="account"/>

  <select id="entries" resultType="map">
    select * from ledger where account_id = #{accountId}
  </select>
</mapper>
`

// writeProject writes a config with the account and ledger mappers, plus
// any extra files, and returns the config path.
func writeProject(t *testing.T, extra map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"app.cue":             testConfig,
		"mappers/account.xml": accountMapper,
		"mappers/ledger.xml":  ledgerMapper,
	}
	for name, content := range extra {
		files[name] = content
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return filepath.Join(dir, "app.cue")
}

// execute runs cmd with args and returns stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// safeBuffer is a bytes.Buffer safe for concurrent use.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func countOf(s, substr string) int {
	return strings.Count(s, substr)
}
