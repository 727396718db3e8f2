package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/lostbuddy/internal/domain"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
	"github.com/mkrupp/lostbuddy/internal/repo/blob"
)

// AccountsBlobID is the well-known key of the serialized account collection.
const AccountsBlobID = domain.BlobID("lb_accounts")

// accountRecord is the persisted form of an account.
type accountRecord struct {
	Name      string `json:"name"`
	Mobile    string `json:"mobile"`
	Email     string `json:"email"`
	City      string `json:"city"`
	PassHash  string `json:"passHash"`
	CreatedAt int64  `json:"createdAt"` // Unix milliseconds
}

func newAccountRecord(account *domain.Account) accountRecord {
	return accountRecord{
		Name:      account.Name,
		Mobile:    account.Mobile,
		Email:     account.Email,
		City:      account.City,
		PassHash:  account.PasswordHash,
		CreatedAt: account.CreatedAt.UnixMilli(),
	}
}

func (r accountRecord) account() *domain.Account {
	return &domain.Account{
		Name:         r.Name,
		Mobile:       r.Mobile,
		Email:        r.Email,
		City:         r.City,
		PasswordHash: r.PassHash,
		CreatedAt:    time.UnixMilli(r.CreatedAt),
	}
}

// BlobAccountRepository implements Repository by keeping the whole account
// collection as one JSON object in a blob repository. Every operation reads
// or writes the full collection; Create holds an exclusive blob lock across
// its read-modify-write.
type BlobAccountRepository struct {
	blobs blob.Repository
	log   logging.Logger
}

var _ Repository = (*BlobAccountRepository)(nil)

// NewBlobAccountRepository creates a BlobAccountRepository on top of blobs.
// The caller keeps ownership of blobs.
func NewBlobAccountRepository(blobs blob.Repository) *BlobAccountRepository {
	return &BlobAccountRepository{
		blobs: blobs,
		log:   logging.GetLogger("repo.account.blob"),
	}
}

func (r *BlobAccountRepository) LoadAll(ctx context.Context) (domain.Accounts, error) {
	unlock, err := r.blobs.Lock(ctx, AccountsBlobID, false)
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	defer unlock()

	return r.loadAll(ctx)
}

func (r *BlobAccountRepository) loadAll(ctx context.Context) (domain.Accounts, error) {
	accounts := make(domain.Accounts)

	data, err := r.blobs.Fetch(ctx, AccountsBlobID)
	if err != nil {
		if errors.Is(err, blob.ErrBlobNotFound) {
			return accounts, nil
		}

		return nil, fmt.Errorf("fetch accounts: %w", err)
	}

	var records map[string]*accountRecord
	if err := data.DecodeJSON(&records); err != nil {
		r.log.WarnContext(ctx, "account data unreadable, treating store as empty",
			"error", err, "size", data.Size())

		return accounts, nil
	}

	for email, record := range records {
		if record == nil {
			continue
		}

		accounts[email] = record.account()
	}

	return accounts, nil
}

func (r *BlobAccountRepository) SaveAll(ctx context.Context, accounts domain.Accounts) error {
	unlock, err := r.blobs.Lock(ctx, AccountsBlobID, true)
	if err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	defer unlock()

	return r.saveAll(ctx, accounts)
}

func (r *BlobAccountRepository) saveAll(ctx context.Context, accounts domain.Accounts) error {
	records := make(map[string]accountRecord, len(accounts))
	for email, account := range accounts {
		records[email] = newAccountRecord(account)
	}

	data, err := domain.NewJSONBlob(AccountsBlobID, records)
	if err != nil {
		return err
	}

	if err := r.blobs.Store(ctx, data); err != nil {
		return fmt.Errorf("store accounts: %w", err)
	}

	return nil
}

func (r *BlobAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, bool, error) {
	accounts, err := r.LoadAll(ctx)
	if err != nil {
		return nil, false, err
	}

	account, ok := accounts[domain.NormalizeEmail(email)]

	return account, ok, nil
}

func (r *BlobAccountRepository) FindByMobile(ctx context.Context, mobile string) (*domain.Account, bool, error) {
	accounts, err := r.LoadAll(ctx)
	if err != nil {
		return nil, false, err
	}

	account, ok := accounts.FindByMobile(mobile)

	return account, ok, nil
}

func (r *BlobAccountRepository) Create(ctx context.Context, account *domain.Account) (err error) {
	log := r.log.With(logging.Group("account", "email", account.Email))

	defer func() {
		if err != nil {
			log.DebugContext(ctx, "create account rejected", "error", err)
		} else {
			log.DebugContext(ctx, "account created")
		}
	}()

	unlock, err := r.blobs.Lock(ctx, AccountsBlobID, true)
	if err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	defer unlock()

	accounts, err := r.loadAll(ctx)
	if err != nil {
		return err
	}

	if _, ok := accounts[account.Email]; ok {
		return domain.ErrEmailTaken
	}

	if _, ok := accounts.FindByMobile(account.Mobile); ok {
		return domain.ErrMobileTaken
	}

	accounts[account.Email] = account

	return r.saveAll(ctx, accounts)
}

// Close implements Repository. The blob repository is left open.
func (r *BlobAccountRepository) Close() error {
	return nil
}
