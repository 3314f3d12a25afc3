package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	snapshotYAML = false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("KV_BACKEND", "pebble")
	t.Setenv("PEBBLE_PATH", filepath.Join(t.TempDir(), "db"))
	t.Setenv("GIFT_JWT_SECRET", "cli-secret")
	t.Setenv("PUBLIC_BASE_URL", "https://gifts.example.com")
	return t.TempDir()
}

func TestGiftNew(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "gift", "new")
	require.NoError(t, err)
	assert.Contains(t, out, "token: ")
	assert.Contains(t, out, "link:  https://gifts.example.com/")
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := setupEnv(t)
	file := filepath.Join(dir, "items.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
- id: n1
  type: note
  content: Happy birthday
  color: bg-yellow-100
  position: {x: 10, y: 10}
  rotation: 2.5
- id: p1
  type: photo
  content: https://gifts.example.com/blobs/g1/photo.png
  caption: us
  position: {x: 40, y: 60}
`), 0o644))

	out, err := run(t, "snapshot", "put", "g1", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored 2 items for gift g1")

	out, err = run(t, "snapshot", "get", "g1")
	require.NoError(t, err)
	assert.Contains(t, out, `"color": "yellow"`)
	assert.Contains(t, out, `"caption": "us"`)

	out, err = run(t, "snapshot", "get", "g1", "--yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "content: Happy birthday")

	out, err = run(t, "snapshot", "ls")
	require.NoError(t, err)
	assert.Equal(t, "g1", strings.TrimSpace(out))

	_, err = run(t, "snapshot", "rm", "g1")
	require.NoError(t, err)
	out, err = run(t, "snapshot", "get", "g1")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestSnapshotPutRejectsInvalidItems(t *testing.T) {
	dir := setupEnv(t)
	file := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"id":"x","type":"sticker"}]`), 0o644))

	_, err := run(t, "snapshot", "put", "g1", file)
	assert.Error(t, err)

	_, err = run(t, "snapshot", "put", "g1", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
