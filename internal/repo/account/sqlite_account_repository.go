package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/lostbuddy/internal/domain"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
)

// SQLiteAccountRepositoryConfig holds configuration for the SQLite account repository.
type SQLiteAccountRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" env-default:"var/storage/accounts.db" yaml:"database_path"`
}

// SQLiteAccountRepository implements Repository with one row per account.
// Email is the primary key and mobile carries a UNIQUE constraint, so Create
// is a single INSERT.
type SQLiteAccountRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteAccountRepository)(nil)

// NewSQLiteAccountRepository opens the database and creates the schema if needed.
func NewSQLiteAccountRepository(ctx context.Context, cfg SQLiteAccountRepositoryConfig) (*SQLiteAccountRepository, error) {
	log := logging.GetLogger("repo.account.sqlite").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// A single connection keeps PRAGMAs and ":memory:" databases consistent.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initializeDB(ctx, db); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	log.DebugContext(ctx, "db initialized")

	return &SQLiteAccountRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			email      TEXT    PRIMARY KEY,
			name       TEXT    NOT NULL,
			mobile     TEXT    UNIQUE NOT NULL,
			city       TEXT    NOT NULL DEFAULT '',
			pass_hash  TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

const selectAccount = "SELECT email, name, mobile, city, pass_hash, created_at FROM accounts"

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*domain.Account, error) {
	var (
		account   domain.Account
		createdAt int64
	)

	if err := row.Scan(
		&account.Email,
		&account.Name,
		&account.Mobile,
		&account.City,
		&account.PasswordHash,
		&createdAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}

	account.CreatedAt = time.UnixMilli(createdAt)

	return &account, nil
}

func (r *SQLiteAccountRepository) LoadAll(ctx context.Context) (domain.Accounts, error) {
	rows, err := r.db.QueryContext(ctx, selectAccount)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(domain.Accounts)

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}

		accounts[account.Email] = account
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

func (r *SQLiteAccountRepository) SaveAll(ctx context.Context, accounts domain.Accounts) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM accounts"); err != nil {
		return fmt.Errorf("delete accounts: %w", err)
	}

	for _, account := range accounts {
		if err := insertAccount(ctx, tx, account); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAccount(ctx context.Context, db execer, account *domain.Account) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO accounts (email, name, mobile, city, pass_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		account.Email,
		account.Name,
		account.Mobile,
		account.City,
		account.PasswordHash,
		account.CreatedAt.UnixMilli(),
	)
	if err != nil {
		var liteErr *sqlite.Error
		if errors.As(err, &liteErr) {
			switch liteErr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
				err = errors.Join(domain.ErrEmailTaken, err)
			case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
				err = errors.Join(domain.ErrMobileTaken, err)
			default:
				break
			}
		}

		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

func (r *SQLiteAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, bool, error) {
	return r.findOne(ctx, selectAccount+" WHERE email = ?", domain.NormalizeEmail(email))
}

func (r *SQLiteAccountRepository) FindByMobile(ctx context.Context, mobile string) (*domain.Account, bool, error) {
	return r.findOne(ctx, selectAccount+" WHERE mobile = ? LIMIT 1", mobile)
}

func (r *SQLiteAccountRepository) findOne(ctx context.Context, query string, arg string) (*domain.Account, bool, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query account: %w", err)
	}

	return account, true, nil
}

func (r *SQLiteAccountRepository) Create(ctx context.Context, account *domain.Account) (err error) {
	log := r.log.With(logging.Group("account", "email", account.Email))

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "create account rejected", "error", err)
		} else {
			log.DebugContext(ctx, "account created")
		}
	}()

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	return insertAccount(ctx, r.db, account)
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteAccountRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
