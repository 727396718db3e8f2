// Package account stores registered accounts keyed by normalized email.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/lostbuddy/internal/domain"
	"github.com/mkrupp/lostbuddy/internal/repo/blob"
)

// Repository defines the interface for account persistence.
type Repository interface {
	// LoadAll returns every stored account keyed by normalized email.
	// Missing or unparseable data yields an empty map, not an error.
	LoadAll(ctx context.Context) (domain.Accounts, error)

	// SaveAll replaces the stored accounts with the given set.
	SaveAll(ctx context.Context, accounts domain.Accounts) error

	// FindByEmail looks up an account by email; the email is normalized first.
	// Returns false if no account has the email.
	FindByEmail(ctx context.Context, email string) (*domain.Account, bool, error)

	// FindByMobile returns the first account with the given mobile number.
	// Returns false if no account has the mobile number.
	FindByMobile(ctx context.Context, mobile string) (*domain.Account, bool, error)

	// Create inserts the account if neither its email nor its mobile is in use.
	// Returns domain.ErrEmailTaken or domain.ErrMobileTaken otherwise.
	Create(ctx context.Context, account *domain.Account) error

	// Close releases any resources held by the repository.
	Close() error
}

// Backend names accepted by Config.Backend.
const (
	BackendBlob   = "blob"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown account backend")

// Config selects and configures the account backend.
type Config struct {
	// Backend is "blob" (one serialized collection in the blob store) or "sqlite"
	Backend string `env:"BACKEND" env-default:"blob" yaml:"backend"`

	SQLite SQLiteAccountRepositoryConfig `env-prefix:"SQLITE_" yaml:"sqlite"`
}

// New creates the account repository selected by cfg.Backend; an empty
// backend selects BackendBlob. blobs is only used by the blob backend.
func New(ctx context.Context, cfg Config, blobs blob.Repository) (Repository, error) {
	switch cfg.Backend {
	case BackendBlob, "":
		return NewBlobAccountRepository(blobs), nil
	case BackendSQLite:
		return NewSQLiteAccountRepository(ctx, cfg.SQLite)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
