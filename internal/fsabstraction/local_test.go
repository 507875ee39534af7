package fsabstraction

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("bb"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.txt"), []byte("ccc"), 0o644))
	return dir
}

func TestLocal_List(t *testing.T) {
	dir := setupTree(t)
	l := NewLocal()
	entries, err := l.List(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestLocal_StatAndPredicates(t *testing.T) {
	dir := setupTree(t)
	l := NewLocal()

	s, err := l.Stat(context.Background(), filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Size)
	assert.True(t, s.IsFile)
	assert.False(t, s.IsDir)

	isDir, err := l.IsDir(context.Background(), filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestLocal_Exists(t *testing.T) {
	dir := setupTree(t)
	l := NewLocal()

	ok, err := l.Exists(context.Background(), filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Exists(context.Background(), filepath.Join(dir, "nope.txt"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocal_TreeSize(t *testing.T) {
	dir := setupTree(t)
	l := NewLocal()
	size, err := l.TreeSize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, int64(1+2+3), size)
}

func TestLocal_Count(t *testing.T) {
	dir := setupTree(t)
	l := NewLocal()
	n, err := l.Count(context.Background(), dir, "*.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, n) // a.txt and sub/c.txt: Count walks the whole tree
}

func TestLocal_Find(t *testing.T) {
	dir := setupTree(t)
	l := NewLocal()
	found, err := l.Find(context.Background(), dir, "*.txt")
	require.NoError(t, err)
	assert.Len(t, found, 2) // a.txt and sub/c.txt
}

func TestLocal_NotFoundIsClassified(t *testing.T) {
	l := NewLocal()
	_, err := l.Stat(context.Background(), "/definitely/does/not/exist")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
