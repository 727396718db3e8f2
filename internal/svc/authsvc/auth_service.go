package authsvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/lostbuddy/internal/domain"
	context_ "github.com/mkrupp/lostbuddy/internal/infra/context"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
	"github.com/mkrupp/lostbuddy/internal/repo/account"
	"github.com/mkrupp/lostbuddy/internal/repo/session"
)

// AuthService provides account registration, login and session management.
// The session slot an operation acts on is selected by the client ID in its
// context; a context without one uses the default slot.
type AuthService struct {
	Accounts  account.Repository
	Sessions  session.Repository
	Hasher    PasswordHasher
	Validator *Validator
	Metrics   *Metrics
	Log       logging.Logger
	Now       func() time.Time
}

// NewAuthService creates an AuthService over the given repositories using
// SHA-256 password hashing. metrics may be nil.
func NewAuthService(accounts account.Repository, sessions session.Repository, metrics *Metrics) *AuthService {
	return &AuthService{
		Accounts:  accounts,
		Sessions:  sessions,
		Hasher:    SHA256Hasher{},
		Validator: NewValidator(),
		Metrics:   metrics,
		Log:       logging.GetLogger("svc.authsvc.auth_service"),
		Now:       time.Now,
	}
}

// logOutcome logs a finished operation. Rejections caused by the caller
// are logged at INFO, everything else at ERROR.
func logOutcome(ctx context.Context, log logging.Logger, op string, err error) {
	switch {
	case err == nil:
		log.DebugContext(ctx, op+" successful")
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAuthentication):
		log.InfoContext(ctx, op+" rejected", "reason", domain.ErrorCode(err))
	default:
		log.ErrorContext(ctx, op+" failed", "error", err)
	}
}

// Register validates req, checks that neither its email nor its mobile is
// taken, and stores the new account. Nothing is written on failure.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (_ *domain.Account, err error) {
	req = req.Normalized()
	log := s.Log.With(logging.Group("account", "email", req.Email, "mobile", req.Mobile))

	defer func() {
		s.Metrics.recordRegistration(err)
		logOutcome(ctx, log, "register", err)
	}()

	if err := s.Validator.ValidateRegistration(req); err != nil {
		return nil, err
	}

	if _, ok, err := s.Accounts.FindByEmail(ctx, req.Email); err != nil {
		return nil, fmt.Errorf("find by email: %w", err)
	} else if ok {
		return nil, domain.ErrEmailTaken
	}

	if _, ok, err := s.Accounts.FindByMobile(ctx, req.Mobile); err != nil {
		return nil, fmt.Errorf("find by mobile: %w", err)
	} else if ok {
		return nil, domain.ErrMobileTaken
	}

	passwordHash, err := s.Hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	newAccount := &domain.Account{
		Name:         req.Name,
		Mobile:       req.Mobile,
		Email:        req.Email,
		City:         req.City,
		PasswordHash: passwordHash,
		CreatedAt:    s.Now(),
	}

	// Create re-checks both keys; a concurrent registration surfaces here.
	if err := s.Accounts.Create(ctx, newAccount); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}

		return nil, fmt.Errorf("create account: %w", err)
	}

	return newAccount, nil
}

// Login resolves identifier as an email first and as a mobile number
// second, verifies the password and stores the resulting session in the
// caller's slot.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (_ domain.Session, err error) {
	identifier = domain.NormalizeEmail(identifier)
	log := s.Log.With(logging.Group("login", "identifier", identifier))

	defer func() {
		s.Metrics.recordLogin(err)
		logOutcome(ctx, log, "login", err)
	}()

	if err := s.Validator.ValidateCredentials(identifier, password); err != nil {
		return domain.Session{}, err
	}

	found, err := s.findAccount(ctx, identifier)
	if err != nil {
		return domain.Session{}, err
	}

	passwordHash, err := s.Hasher.Hash(ctx, password)
	if err != nil {
		return domain.Session{}, err
	}

	if !hashesEqual(passwordHash, found.PasswordHash) {
		return domain.Session{}, domain.ErrIncorrectPassword
	}

	current := found.Session()

	if err := s.Sessions.Put(ctx, clientID(ctx), current); err != nil {
		return domain.Session{}, fmt.Errorf("put session: %w", err)
	}

	return current, nil
}

func (s *AuthService) findAccount(ctx context.Context, identifier string) (*domain.Account, error) {
	found, ok, err := s.Accounts.FindByEmail(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("find by email: %w", err)
	} else if ok {
		return found, nil
	}

	found, ok, err = s.Accounts.FindByMobile(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("find by mobile: %w", err)
	} else if !ok {
		return nil, domain.ErrAccountNotFound
	}

	return found, nil
}

// Logout clears the caller's session slot. Logging out without a session
// is not an error.
func (s *AuthService) Logout(ctx context.Context) (err error) {
	defer func() {
		if err == nil {
			s.Metrics.recordLogout()
		}

		logOutcome(ctx, s.Log, "logout", err)
	}()

	if err := s.Sessions.Delete(ctx, clientID(ctx)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// CurrentSession returns the session in the caller's slot, if any.
func (s *AuthService) CurrentSession(ctx context.Context) (domain.Session, bool, error) {
	current, ok, err := s.Sessions.Get(ctx, clientID(ctx))
	if err != nil {
		s.Log.ErrorContext(ctx, "get session failed", "error", err)

		return domain.Session{}, false, fmt.Errorf("get session: %w", err)
	}

	return current, ok, nil
}

// Close releases the account repository.
func (s *AuthService) Close() error {
	if err := s.Accounts.Close(); err != nil {
		return fmt.Errorf("close account repo: %w", err)
	}

	return nil
}

func clientID(ctx context.Context) string {
	id, _ := context_.ClientIDFromContext(ctx)

	return id
}
