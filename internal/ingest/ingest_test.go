package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "april.pdf"), "%PDF-1.4")
	writeFile(t, filepath.Join(root, "sub", "may.CSV"), "Date,Amount\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignore me")
	writeFile(t, filepath.Join(root, ".cache", "old.pdf"), "%PDF")
	writeFile(t, filepath.Join(root, ".hidden.pdf"), "%PDF")

	res, stats, err := ScanDirectory(context.Background(), root, nil, true)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, filepath.Join(root, "april.pdf"), res[0].Path)
	assert.Equal(t, "pdf", res[0].Ext)
	assert.Equal(t, int64(8), res[0].SizeBytes)
	assert.Len(t, res[0].HashHex, 64)
	assert.Equal(t, "csv", res[1].Ext)
	assert.Equal(t, uint32(2), stats.Matched)
	assert.Zero(t, stats.Failed)

	res, _, err = ScanDirectory(context.Background(), root, []string{".pdf"}, false)
	require.NoError(t, err)
	assert.Len(t, res, 3)
}

func TestScanDirectoryErrors(t *testing.T) {
	_, _, err := ScanDirectory(context.Background(), "  ", nil, true)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = ScanDirectory(ctx, t.TempDir(), nil, true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHashFileMatchesKnownDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pdf")
	writeFile(t, path, "")
	sum, n, err := HashFile(path)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", sum)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("/a/b.pdf"))
	assert.False(t, IsHidden("."))
}

func TestWatcherEmitsNewStatements(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "ignored.txt"), "x")
	target := filepath.Join(root, "june.pdf")
	writeFile(t, target, "%PDF-1.4")

	select {
	case got := <-events:
		assert.Equal(t, target, got)
	case <-time.After(3 * time.Second):
		t.Fatal("no event for new statement")
	}
}
