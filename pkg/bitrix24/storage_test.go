package bitrix24_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// exerciseStorage checks the full TokenStorage contract against a backend.
func exerciseStorage(t *testing.T, storage bitrix24.TokenStorage) {
	t.Helper()

	ctx := context.Background()

	// Empty storage reports no tokens
	_, err := storage.GetAccessToken(ctx)
	require.ErrorIs(t, err, bitrix24.ErrTokenNotFound)

	_, err = storage.GetRefreshToken(ctx)
	require.ErrorIs(t, err, bitrix24.ErrTokenNotFound)

	// Store and read back
	require.NoError(t, storage.StoreAccessToken(ctx, "access-1"))
	require.NoError(t, storage.StoreRefreshToken(ctx, "refresh-1"))

	access, err := storage.GetAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", access)

	refresh, err := storage.GetRefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh)

	// Overwrite
	require.NoError(t, storage.StoreAccessToken(ctx, "access-2"))

	access, err = storage.GetAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", access)

	// Remove only the access token
	require.NoError(t, storage.RemoveAccessToken(ctx))

	_, err = storage.GetAccessToken(ctx)
	assert.ErrorIs(t, err, bitrix24.ErrTokenNotFound)

	refresh, err = storage.GetRefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh)

	// Remove the refresh token too
	require.NoError(t, storage.RemoveRefreshToken(ctx))

	_, err = storage.GetRefreshToken(ctx)
	assert.ErrorIs(t, err, bitrix24.ErrTokenNotFound)
}

func TestMemoryTokenStorage(t *testing.T) {
	t.Parallel()

	exerciseStorage(t, bitrix24.NewMemoryTokenStorage())
}

func TestMemoryTokenStorage_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	storage := bitrix24.NewMemoryTokenStorage()
	ctx := context.Background()
	done := make(chan bool)

	go func() {
		for range 100 {
			_ = storage.StoreAccessToken(ctx, "token")
			_ = storage.StoreRefreshToken(ctx, "refresh")
		}
		done <- true
	}()

	go func() {
		for range 100 {
			_, _ = storage.GetAccessToken(ctx)
			_, _ = storage.GetRefreshToken(ctx)
		}
		done <- true
	}()

	<-done
	<-done

	access, err := storage.GetAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token", access)
}

func TestFileTokenStorage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tokens.json")
	exerciseStorage(t, bitrix24.NewFileTokenStorage(path))
}

func TestFileTokenStorage_PersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "tokens.json")

	first := bitrix24.NewFileTokenStorage(path)
	require.NoError(t, first.StoreAccessToken(ctx, "A"))
	require.NoError(t, first.StoreRefreshToken(ctx, "R"))

	second := bitrix24.NewFileTokenStorage(path)

	access, err := second.GetAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", access)

	refresh, err := second.GetRefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "R", refresh)
}

func TestFileTokenStorage_Permissions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	storage := bitrix24.NewFileTokenStorage(path)
	require.NoError(t, storage.StoreAccessToken(ctx, "A"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileTokenStorage_CorruptFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	storage := bitrix24.NewFileTokenStorage(path)

	_, err := storage.GetAccessToken(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, bitrix24.ErrTokenNotFound)
}

func TestNoOpTokenStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := bitrix24.NewNoOpTokenStorage()

	require.NoError(t, storage.StoreAccessToken(ctx, "A"))
	require.NoError(t, storage.StoreRefreshToken(ctx, "R"))

	_, err := storage.GetAccessToken(ctx)
	assert.ErrorIs(t, err, bitrix24.ErrTokenNotFound)

	_, err = storage.GetRefreshToken(ctx)
	assert.ErrorIs(t, err, bitrix24.ErrTokenNotFound)

	assert.NoError(t, storage.RemoveAccessToken(ctx))
	assert.NoError(t, storage.RemoveRefreshToken(ctx))
}

func TestStorageChain_ReadsThroughAndBackfills(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fast := bitrix24.NewMemoryTokenStorage()
	slow := bitrix24.NewMemoryTokenStorage()
	require.NoError(t, slow.StoreAccessToken(ctx, "from-slow"))

	chain := bitrix24.NewStorageChain(fast, slow)

	access, err := chain.GetAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-slow", access)

	// The hit was backfilled into the faster storage
	access, err = fast.GetAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-slow", access)
}

func TestStorageChain_WritesEverywhere(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	first := bitrix24.NewMemoryTokenStorage()
	second := bitrix24.NewMemoryTokenStorage()
	chain := bitrix24.NewStorageChain(first, second)

	require.NoError(t, chain.StoreRefreshToken(ctx, "R"))

	refresh, err := first.GetRefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "R", refresh)

	refresh, err = second.GetRefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "R", refresh)

	require.NoError(t, chain.RemoveRefreshToken(ctx))

	_, err = first.GetRefreshToken(ctx)
	assert.ErrorIs(t, err, bitrix24.ErrTokenNotFound)

	_, err = second.GetRefreshToken(ctx)
	assert.ErrorIs(t, err, bitrix24.ErrTokenNotFound)
}

func TestStorageChain_Empty(t *testing.T) {
	t.Parallel()

	chain := bitrix24.NewStorageChain()

	_, err := chain.GetAccessToken(context.Background())
	assert.ErrorIs(t, err, bitrix24.ErrTokenNotFound)
}
