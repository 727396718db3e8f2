package authclient

import (
	"context"

	"github.com/mkrupp/lostbuddy/internal/domain"
)

// AuthClient is the set of account operations available to a front end,
// whether served in-process or over HTTP. *authsvc.AuthService satisfies it.
type AuthClient interface {
	// Register creates an account.
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error)

	// Login authenticates by email or mobile and opens a session.
	Login(ctx context.Context, identifier, password string) (domain.Session, error)

	// Logout closes the session, if any.
	Logout(ctx context.Context) error

	// CurrentSession returns the open session, if any.
	CurrentSession(ctx context.Context) (domain.Session, bool, error)
}
