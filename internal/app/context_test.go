package app

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/db"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/migrate"
)

func TestResolveOrg(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))
	e := engine.New(conn, nil)
	ctx := context.Background()

	_, err = ResolveOrg(ctx, "", e.Repo)
	assert.ErrorContains(t, err, "no organization")

	_, err = e.InitOrganization(ctx, "acme", "Acme", "alice", nil)
	require.NoError(t, err)
	got, err := ResolveOrg(ctx, "", e.Repo)
	require.NoError(t, err)
	assert.Equal(t, "acme", got)

	_, err = e.InitOrganization(ctx, "gemco", "Gem Co", "alice", nil)
	require.NoError(t, err)
	_, err = ResolveOrg(ctx, "", e.Repo)
	assert.ErrorContains(t, err, "multiple organizations")

	got, err = ResolveOrg(ctx, " gemco ", e.Repo)
	require.NoError(t, err)
	assert.Equal(t, "gemco", got)

	_, err = ResolveOrg(ctx, "missing", e.Repo)
	assert.ErrorContains(t, err, "not found")
}

func TestUseOrgKeepsOtherEntries(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(EnvFile(ws), []byte("GEMSTONES_JWT_SECRET=abc\n"), 0o644))
	require.NoError(t, UseOrg(ws, "acme"))
	require.NoError(t, UseOrg(ws, "gemco"))

	env, err := godotenv.Read(EnvFile(ws))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"GEMSTONES_JWT_SECRET": "abc", OrgEnvKey: "gemco"}, env)

	assert.Error(t, UseOrg(ws, " "))
	assert.NoError(t, LoadEnv(t.TempDir()))
}
