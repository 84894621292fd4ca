package mysql

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableDDL(t *testing.T, table string) string {
	t.Helper()
	for _, stmt := range schema {
		if strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			return stmt
		}
	}
	require.FailNow(t, "no DDL for table", table)
	return ""
}

func TestKeyColumnsCompareExactly(t *testing.T) {
	require.NotEmpty(t, exactColumns)
	for _, c := range exactColumns {
		ddl := tableDDL(t, c.table)
		line := regexp.MustCompile(`(?m)^\s+` + c.column + `\s+(.+?),?$`).FindStringSubmatch(ddl)
		require.Len(t, line, 2, "%s.%s", c.table, c.column)
		assert.Equal(t, c.def, strings.Join(strings.Fields(line[1]), " "), "%s.%s", c.table, c.column)
		assert.Contains(t, c.def, "COLLATE utf8mb4_bin")
	}

	// the explanation cache key is fully covered
	key := map[string]bool{}
	for _, c := range exactColumns {
		if c.table == "topic_explanations" {
			key[c.column] = true
		}
	}
	assert.Equal(t, map[string]bool{"topic": true, "language": true, "framework": true}, key)
}

func TestAlterColumn(t *testing.T) {
	assert.Equal(t,
		"ALTER TABLE topic_explanations MODIFY topic VARCHAR(200) COLLATE utf8mb4_bin NOT NULL",
		alterColumn("topic_explanations", "topic", "VARCHAR(200) COLLATE utf8mb4_bin NOT NULL"))
}
