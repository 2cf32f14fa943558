package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/export"
)

func TestMain(m *testing.M) {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	os.Exit(m.Run())
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func setFlag(t *testing.T, name, value string) {
	t.Helper()
	flags := rootCmd.PersistentFlags()
	prev := flags.Lookup(name).Value.String()
	require.NoError(t, flags.Set(name, value))
	t.Cleanup(func() { _ = flags.Set(name, prev) })
}

func TestExportSinkSelection(t *testing.T) {
	ws := t.TempDir()
	setFlag(t, "workspace", ws)

	sink, err := exportSink()
	require.NoError(t, err)
	assert.Equal(t, export.LocalSink{Dir: filepath.Join(ws, ".gemstones", "exports")}, sink)

	setFlag(t, "export-dir", filepath.Join(ws, "out"))
	sink, err = exportSink()
	require.NoError(t, err)
	assert.Equal(t, export.LocalSink{Dir: filepath.Join(ws, "out")}, sink)

	setFlag(t, "s3-endpoint", "http://localhost:9000")
	setFlag(t, "s3-bucket", "stones")
	setFlag(t, "s3-access-key", "minio")
	setFlag(t, "s3-secret-key", "minio123")
	sink, err = exportSink()
	require.NoError(t, err)
	assert.IsType(t, &export.ObjectSink{}, sink)
}

func TestCLIFlow(t *testing.T) {
	ws := t.TempDir()
	out := t.TempDir()

	require.NoError(t, run(t, "--workspace", ws, "org", "create", "--id", "acme", "--name", "Acme"))
	require.NoError(t, run(t, "--workspace", ws, "stone", "add", "--id", "s1", "--name", "Ruby", "--color", "red"))
	require.NoError(t, run(t, "--workspace", ws, "search", "red", "&", "ruby"))
	require.NoError(t, run(t, "--workspace", ws, "export", "--out", out))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".csv"))
	doc, err := os.ReadFile(filepath.Join(out, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Ruby")

	err = run(t, "--workspace", ws, "stone", "sell", "missing")
	assert.Error(t, err)
}
