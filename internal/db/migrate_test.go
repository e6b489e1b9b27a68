package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationVersionsSorted(t *testing.T) {
	versions, err := migrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)

	for i := 1; i < len(versions); i++ {
		assert.Less(t, versions[i-1], versions[i])
	}
}

func TestCoreMigrationDeclaresUniqueKeys(t *testing.T) {
	contents, err := migrationFiles.ReadFile("migrations/0001_core.up.sql")
	require.NoError(t, err)
	sql := string(contents)

	assert.Contains(t, sql, "dm_key      TEXT UNIQUE")
	assert.Contains(t, sql, "entity_id   TEXT UNIQUE")
	assert.Contains(t, sql, "endpoint   TEXT NOT NULL UNIQUE")
	assert.True(t, strings.Contains(sql, "roles_single_default"))
}

func TestSeedRolesHaveOneDefault(t *testing.T) {
	versions, err := migrationVersions()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_core.up.sql", "0002_seed_roles.up.sql"}, versions)

	contents, err := migrationFiles.ReadFile("migrations/0002_seed_roles.up.sql")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(contents), "true"))
	assert.Contains(t, string(contents), "ON CONFLICT (name) DO NOTHING")
}
