package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/lostbuddy/internal/domain"
)

var (
	// ErrBlobNotFound is returned when no blob is stored under the requested ID.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrInvalidBlobID is returned for IDs that cannot be mapped to a storage key.
	ErrInvalidBlobID = errors.New("invalid blob id")
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown blob backend")
)

// Repository defines the interface for blob storage operations.
type Repository interface {
	// Lock acquires a lock on the blob with the given ID.
	// If exclusive is true, acquires a write lock, otherwise a read lock.
	// Returns a function to release the lock, and any error encountered.
	Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error)

	// Exists checks if a blob with the given ID exists.
	Exists(ctx context.Context, id domain.BlobID) (bool, error)

	// Store persists a blob, replacing any previous content under its ID.
	Store(ctx context.Context, blob *domain.Blob) error

	// Fetch retrieves a blob by its ID.
	// Returns ErrBlobNotFound if nothing is stored under the ID.
	Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error)

	// Delete removes a blob with the given ID.
	// Returns ErrBlobNotFound if nothing is stored under the ID.
	Delete(ctx context.Context, id domain.BlobID) error

	// Close releases any resources held by the repository.
	Close() error
}

// Backend names accepted by Config.Backend.
const (
	BackendFileSystem = "filesystem"
	BackendRedis      = "redis"
	BackendMemory     = "memory"
)

// Config selects and configures a blob backend.
type Config struct {
	// Backend is one of "filesystem", "redis" or "memory"
	Backend string `env:"BACKEND" env-default:"filesystem" yaml:"backend"`

	FileSystem FileSystemBlobRepositoryConfig `env-prefix:"FS_" yaml:"filesystem"`
	Redis      RedisBlobRepositoryConfig      `env-prefix:"REDIS_" yaml:"redis"`
}

// New creates the blob repository selected by cfg.Backend. An empty
// backend selects BackendFileSystem.
func New(ctx context.Context, cfg Config) (Repository, error) {
	switch cfg.Backend {
	case BackendFileSystem, "":
		return NewFileSystemBlobRepository(ctx, cfg.FileSystem)
	case BackendRedis:
		return NewRedisBlobRepository(ctx, cfg.Redis)
	case BackendMemory:
		return NewMemoryBlobRepository(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
