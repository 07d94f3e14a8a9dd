package bitrix24

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ainq-io/bitrix24-client/internal/constants"
)

// TokenStorage persists the OAuth token pair across client lifetimes. The
// token manager treats any read failure as "no token available", so
// implementations should return ErrTokenNotFound for absent tokens rather
// than inventing empty values.
type TokenStorage interface {
	GetAccessToken(ctx context.Context) (string, error)
	StoreAccessToken(ctx context.Context, token string) error
	RemoveAccessToken(ctx context.Context) error
	GetRefreshToken(ctx context.Context) (string, error)
	StoreRefreshToken(ctx context.Context, token string) error
	RemoveRefreshToken(ctx context.Context) error
}

// MemoryTokenStorage keeps the token pair in process memory. Safe for
// concurrent use.
type MemoryTokenStorage struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewMemoryTokenStorage creates an empty in-memory storage.
func NewMemoryTokenStorage() *MemoryTokenStorage {
	return &MemoryTokenStorage{}
}

// GetAccessToken returns the stored access token.
func (s *MemoryTokenStorage) GetAccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.access == "" {
		return "", ErrTokenNotFound
	}

	return s.access, nil
}

// StoreAccessToken replaces the stored access token.
func (s *MemoryTokenStorage) StoreAccessToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = token

	return nil
}

// RemoveAccessToken drops the stored access token.
func (s *MemoryTokenStorage) RemoveAccessToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""

	return nil
}

// GetRefreshToken returns the stored refresh token.
func (s *MemoryTokenStorage) GetRefreshToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.refresh == "" {
		return "", ErrTokenNotFound
	}

	return s.refresh, nil
}

// StoreRefreshToken replaces the stored refresh token.
func (s *MemoryTokenStorage) StoreRefreshToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh = token

	return nil
}

// RemoveRefreshToken drops the stored refresh token.
func (s *MemoryTokenStorage) RemoveRefreshToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh = ""

	return nil
}

// tokenFile is the on-disk layout of FileTokenStorage.
type tokenFile struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// FileTokenStorage stores the token pair as a JSON file with 0600
// permissions. Used by the CLI to survive process restarts.
type FileTokenStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStorage creates a storage backed by the given file path. The
// file and its directory are created on first store.
func NewFileTokenStorage(path string) *FileTokenStorage {
	return &FileTokenStorage{path: path}
}

// Path returns the backing file path.
func (s *FileTokenStorage) Path() string {
	return s.path
}

func (s *FileTokenStorage) load() (*tokenFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &tokenFile{}, nil
		}

		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var file tokenFile

	err = json.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}

	return &file, nil
}

func (s *FileTokenStorage) save(file *tokenFile) error {
	dir := filepath.Dir(s.path)

	err := os.MkdirAll(dir, constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token file: %w", err)
	}

	err = os.WriteFile(s.path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	return nil
}

// GetAccessToken returns the access token from the file.
func (s *FileTokenStorage) GetAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return "", err
	}

	if file.AccessToken == "" {
		return "", ErrTokenNotFound
	}

	return file.AccessToken, nil
}

// StoreAccessToken writes the access token to the file.
func (s *FileTokenStorage) StoreAccessToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}

	file.AccessToken = token

	return s.save(file)
}

// RemoveAccessToken drops the access token from the file.
func (s *FileTokenStorage) RemoveAccessToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}

	file.AccessToken = ""

	return s.save(file)
}

// GetRefreshToken returns the refresh token from the file.
func (s *FileTokenStorage) GetRefreshToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return "", err
	}

	if file.RefreshToken == "" {
		return "", ErrTokenNotFound
	}

	return file.RefreshToken, nil
}

// StoreRefreshToken writes the refresh token to the file.
func (s *FileTokenStorage) StoreRefreshToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}

	file.RefreshToken = token

	return s.save(file)
}

// RemoveRefreshToken drops the refresh token from the file.
func (s *FileTokenStorage) RemoveRefreshToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}

	file.RefreshToken = ""

	return s.save(file)
}

// NoOpTokenStorage never persists anything; the client then re-authorizes
// on every process start.
type NoOpTokenStorage struct{}

// NewNoOpTokenStorage creates a storage that forgets everything.
func NewNoOpTokenStorage() *NoOpTokenStorage {
	return &NoOpTokenStorage{}
}

// GetAccessToken always reports no token.
func (s *NoOpTokenStorage) GetAccessToken(ctx context.Context) (string, error) {
	return "", ErrTokenNotFound
}

// StoreAccessToken does nothing.
func (s *NoOpTokenStorage) StoreAccessToken(ctx context.Context, token string) error {
	return nil
}

// RemoveAccessToken does nothing.
func (s *NoOpTokenStorage) RemoveAccessToken(ctx context.Context) error {
	return nil
}

// GetRefreshToken always reports no token.
func (s *NoOpTokenStorage) GetRefreshToken(ctx context.Context) (string, error) {
	return "", ErrTokenNotFound
}

// StoreRefreshToken does nothing.
func (s *NoOpTokenStorage) StoreRefreshToken(ctx context.Context, token string) error {
	return nil
}

// RemoveRefreshToken does nothing.
func (s *NoOpTokenStorage) RemoveRefreshToken(ctx context.Context) error {
	return nil
}

// StorageChain layers token storages. Reads return the first hit and
// backfill the storages before it; writes and removals go to every layer.
type StorageChain struct {
	storages []TokenStorage
}

// NewStorageChain creates a chain over the given storages, first is fastest.
func NewStorageChain(storages ...TokenStorage) *StorageChain {
	return &StorageChain{storages: storages}
}

func (c *StorageChain) getThrough(
	ctx context.Context,
	get func(TokenStorage) (string, error),
	backfill func(TokenStorage, string) error,
) (string, error) {
	for i, storage := range c.storages {
		token, err := get(storage)
		if err != nil || token == "" {
			continue
		}

		// Found in this storage, populate earlier storages
		for j := range i {
			_ = backfill(c.storages[j], token)
		}

		return token, nil
	}

	return "", ErrTokenNotFound
}

func (c *StorageChain) allOf(apply func(TokenStorage) error) error {
	var lastErr error

	for _, storage := range c.storages {
		err := apply(storage)
		if err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// GetAccessToken returns the access token from the first storage that has it.
func (c *StorageChain) GetAccessToken(ctx context.Context) (string, error) {
	return c.getThrough(ctx,
		func(s TokenStorage) (string, error) { return s.GetAccessToken(ctx) },
		func(s TokenStorage, token string) error { return s.StoreAccessToken(ctx, token) },
	)
}

// StoreAccessToken writes the access token to every storage.
func (c *StorageChain) StoreAccessToken(ctx context.Context, token string) error {
	return c.allOf(func(s TokenStorage) error { return s.StoreAccessToken(ctx, token) })
}

// RemoveAccessToken drops the access token from every storage.
func (c *StorageChain) RemoveAccessToken(ctx context.Context) error {
	return c.allOf(func(s TokenStorage) error { return s.RemoveAccessToken(ctx) })
}

// GetRefreshToken returns the refresh token from the first storage that has it.
func (c *StorageChain) GetRefreshToken(ctx context.Context) (string, error) {
	return c.getThrough(ctx,
		func(s TokenStorage) (string, error) { return s.GetRefreshToken(ctx) },
		func(s TokenStorage, token string) error { return s.StoreRefreshToken(ctx, token) },
	)
}

// StoreRefreshToken writes the refresh token to every storage.
func (c *StorageChain) StoreRefreshToken(ctx context.Context, token string) error {
	return c.allOf(func(s TokenStorage) error { return s.StoreRefreshToken(ctx, token) })
}

// RemoveRefreshToken drops the refresh token from every storage.
func (c *StorageChain) RemoveRefreshToken(ctx context.Context) error {
	return c.allOf(func(s TokenStorage) error { return s.RemoveRefreshToken(ctx) })
}
