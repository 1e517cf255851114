package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-app/internal/domain"
)

func TestDiskStoreAndDelete(t *testing.T) {
	ctx := context.Background()
	disk, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	key, err := disk.Store(ctx, strings.NewReader("image-bytes"), "covers", ".png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "covers/"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	data, err := os.ReadFile(filepath.Join(disk.Root(), filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	require.NoError(t, disk.Delete(ctx, key))
	assert.ErrorIs(t, disk.Delete(ctx, key), domain.ErrAssetNotFound)
}

func TestDiskStoreUsesFreshKeys(t *testing.T) {
	ctx := context.Background()
	disk, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	a, err := disk.Store(ctx, strings.NewReader("a"), "covers", ".jpg")
	require.NoError(t, err)
	b, err := disk.Store(ctx, strings.NewReader("b"), "covers", ".jpg")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDiskDeleteStaysInsideRoot(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	outside := filepath.Join(parent, "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	disk, err := NewDisk(filepath.Join(parent, "root"))
	require.NoError(t, err)

	assert.ErrorIs(t, disk.Delete(ctx, "../outside.txt"), domain.ErrAssetNotFound)
	_, err = os.Stat(outside)
	assert.NoError(t, err)
	assert.ErrorIs(t, disk.Delete(ctx, ""), domain.ErrAssetNotFound)
}
