package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	ctx := context.Background()

	v, err := Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, Migrate(conn))
	require.NoError(t, Migrate(conn))

	migrations, err := loadMigrations()
	require.NoError(t, err)
	v, err = Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='stones'`).Scan(&n))
	assert.Equal(t, 1, n)
}
