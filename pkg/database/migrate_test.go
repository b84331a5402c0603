package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	require.Equal(t, "001_schema.sql", names[0])
	for i := 1; i < len(names); i++ {
		require.Less(t, names[i-1], names[i])
	}
}

func TestSchemaCreatesTimelines(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)
	require.True(t, strings.Contains(string(sql), "CREATE TABLE IF NOT EXISTS timelines"))
}
