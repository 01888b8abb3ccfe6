package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecsync/vecsync/internal/hasher"
	"github.com/vecsync/vecsync/pkg/types"
)

func scan(t *testing.T, path string) ScannedFile {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return ScannedFile{Path: path, ModTime: info.ModTime().UnixNano(), Size: info.Size()}
}

func storedState(t *testing.T, path, content string, mtime int64) types.FileState {
	t.Helper()
	return types.FileState{
		Path:        path,
		ContentHash: hasher.SumString(content),
		ModTime:     time.Unix(0, mtime),
		ChunkCount:  1,
		ChunkTotal:  1,
	}
}

func TestDetectNewFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fresh.txt", "never seen before")

	cs, err := NewDetector(2).Detect(context.Background(), nil, []ScannedFile{scan(t, path)})
	require.NoError(t, err)

	require.Len(t, cs.New, 1)
	assert.Equal(t, path, cs.New[0].Path)
	assert.Equal(t, hasher.SumString("never seen before"), cs.New[0].ContentHash)
	assert.Equal(t, []byte("never seen before"), cs.New[0].Content)
	assert.Equal(t, 0, cs.Unchanged)
}

func TestDetectUnchangedSkipsRead(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "same.txt", "content")
	sf := scan(t, path)

	stored := []types.FileState{storedState(t, path, "content", sf.ModTime)}

	// Make the file unreadable: the fast path must not open it.
	require.NoError(t, os.Chmod(path, 0o000))
	t.Cleanup(func() { _ = os.Chmod(path, 0o644) })

	cs, err := NewDetector(2).Detect(context.Background(), stored, []ScannedFile{sf})
	require.NoError(t, err)
	assert.Equal(t, 1, cs.Unchanged)
	assert.Empty(t, cs.Failed)
}

func TestDetectModified(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "new revision")
	sf := scan(t, path)

	stored := []types.FileState{storedState(t, path, "old revision", sf.ModTime-1)}

	cs, err := NewDetector(2).Detect(context.Background(), stored, []ScannedFile{sf})
	require.NoError(t, err)
	require.Len(t, cs.Modified, 1)
	assert.Equal(t, hasher.SumString("new revision"), cs.Modified[0].ContentHash)
}

func TestDetectRefreshed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "same bytes")
	sf := scan(t, path)

	stored := []types.FileState{storedState(t, path, "same bytes", sf.ModTime-1)}

	cs, err := NewDetector(2).Detect(context.Background(), stored, []ScannedFile{sf})
	require.NoError(t, err)
	require.Len(t, cs.Refreshed, 1)
	assert.Empty(t, cs.Modified)
	assert.Equal(t, sf.ModTime, cs.Refreshed[0].ModTime)
}

func TestDetectIncompleteFileIsModified(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "same bytes")
	sf := scan(t, path)

	// Same mtime and same content, but only 1 of 3 chunks landed.
	st := storedState(t, path, "same bytes", sf.ModTime)
	st.ChunkCount = 1
	st.ChunkTotal = 3

	cs, err := NewDetector(2).Detect(context.Background(), []types.FileState{st}, []ScannedFile{sf})
	require.NoError(t, err)
	assert.Equal(t, 0, cs.Unchanged)
	assert.Empty(t, cs.Refreshed)
	require.Len(t, cs.Modified, 1, "incomplete files re-index so the missing chunks land")
}

func TestDetectMove(t *testing.T) {
	dir := t.TempDir()
	newPath := writeFile(t, dir, "renamed.txt", "travelling content")
	sf := scan(t, newPath)

	oldPath := filepath.Join(dir, "original.txt") // not on disk
	stored := []types.FileState{storedState(t, oldPath, "travelling content", sf.ModTime)}

	cs, err := NewDetector(2).Detect(context.Background(), stored, []ScannedFile{sf})
	require.NoError(t, err)

	require.Len(t, cs.Moved, 1)
	assert.Equal(t, oldPath, cs.Moved[0].OldPath)
	assert.Equal(t, newPath, cs.Moved[0].Path)
	assert.Empty(t, cs.New)
	assert.Empty(t, cs.Deleted, "a move consumes the old path, it is not a delete")
}

func TestDetectCopyIsNotMove(t *testing.T) {
	dir := t.TempDir()
	orig := writeFile(t, dir, "orig.txt", "duplicated content")
	copied := writeFile(t, dir, "copy.txt", "duplicated content")
	sfOrig := scan(t, orig)
	sfCopy := scan(t, copied)

	stored := []types.FileState{storedState(t, orig, "duplicated content", sfOrig.ModTime)}

	cs, err := NewDetector(2).Detect(context.Background(), stored, []ScannedFile{sfOrig, sfCopy})
	require.NoError(t, err)

	assert.Equal(t, 1, cs.Unchanged)
	assert.Empty(t, cs.Moved, "the original still exists, so the copy is new")
	require.Len(t, cs.New, 1)
	assert.Equal(t, copied, cs.New[0].Path)
}

func TestDetectDeleted(t *testing.T) {
	gone := filepath.Join(t.TempDir(), "gone.txt")
	stored := []types.FileState{storedState(t, gone, "deleted content", 12345)}

	cs, err := NewDetector(2).Detect(context.Background(), stored, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{gone}, cs.Deleted)
}

func TestDetectReadFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "fine")
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.Symlink(filepath.Join(dir, "does-not-exist"), bad))
	sfGood := scan(t, good)
	sfBad := ScannedFile{Path: bad, ModTime: time.Now().UnixNano()}

	cs, err := NewDetector(2).Detect(context.Background(), nil, []ScannedFile{sfGood, sfBad})
	require.NoError(t, err)
	require.Len(t, cs.New, 1)
	assert.Equal(t, good, cs.New[0].Path)
	require.Len(t, cs.Failed, 1)
	assert.Equal(t, bad, cs.Failed[0].Path)
}

func TestDetectDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	var scanned []ScannedFile
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		scanned = append(scanned, scan(t, writeFile(t, dir, name, "content of "+name)))
	}

	cs, err := NewDetector(3).Detect(context.Background(), nil, scanned)
	require.NoError(t, err)
	require.Len(t, cs.New, 3)
	assert.Equal(t, filepath.Join(dir, "a.txt"), cs.New[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.txt"), cs.New[1].Path)
	assert.Equal(t, filepath.Join(dir, "c.txt"), cs.New[2].Path)
}
