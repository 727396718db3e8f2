package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mkrupp/lostbuddy/internal/domain"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
	"github.com/mkrupp/lostbuddy/internal/repo/blob"
)

// CurrentSessionKey is the blob key of the default session slot.
const CurrentSessionKey = "lb_current"

// ErrInvalidClientID is returned for a client ID that cannot name a slot.
var ErrInvalidClientID = errors.New("invalid client id")

// Repository persists the current session of each client. An empty client
// ID selects the default slot.
type Repository interface {
	// Get returns the session stored for clientID. A missing or unreadable
	// record is reported as absent.
	Get(ctx context.Context, clientID string) (domain.Session, bool, error)

	// Put replaces the session stored for clientID.
	Put(ctx context.Context, clientID string, session domain.Session) error

	// Delete clears the slot of clientID. Clearing an empty slot is not an error.
	Delete(ctx context.Context, clientID string) error
}

// BlobSessionRepository implements Repository with one blob per slot.
type BlobSessionRepository struct {
	blobs blob.Repository
	log   logging.Logger
}

var _ Repository = (*BlobSessionRepository)(nil)

// NewBlobSessionRepository creates a BlobSessionRepository on top of blobs.
// The caller keeps ownership of blobs.
func NewBlobSessionRepository(blobs blob.Repository) *BlobSessionRepository {
	return &BlobSessionRepository{
		blobs: blobs,
		log:   logging.GetLogger("repo.session.blob"),
	}
}

// SlotID returns the blob key holding the session of clientID.
func SlotID(clientID string) (domain.BlobID, error) {
	if clientID == "" {
		return CurrentSessionKey, nil
	}

	if strings.ContainsAny(clientID, "/\\\x00") || clientID == "." || clientID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidClientID, clientID)
	}

	return domain.BlobID("clients/" + clientID + "/" + CurrentSessionKey), nil
}

func (r *BlobSessionRepository) Get(ctx context.Context, clientID string) (domain.Session, bool, error) {
	id, err := SlotID(clientID)
	if err != nil {
		return domain.Session{}, false, err
	}

	data, err := r.blobs.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, blob.ErrBlobNotFound) {
			return domain.Session{}, false, nil
		}

		return domain.Session{}, false, fmt.Errorf("fetch session: %w", err)
	}

	var session domain.Session
	if err := data.DecodeJSON(&session); err != nil {
		r.log.WarnContext(ctx, "session data unreadable, treating slot as empty",
			"slot", id, "error", err)

		return domain.Session{}, false, nil
	}

	return session, true, nil
}

func (r *BlobSessionRepository) Put(ctx context.Context, clientID string, session domain.Session) error {
	id, err := SlotID(clientID)
	if err != nil {
		return err
	}

	data, err := domain.NewJSONBlob(id, session)
	if err != nil {
		return err
	}

	if err := r.blobs.Store(ctx, data); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

func (r *BlobSessionRepository) Delete(ctx context.Context, clientID string) error {
	id, err := SlotID(clientID)
	if err != nil {
		return err
	}

	err = r.blobs.Delete(ctx, id)
	if err != nil && !errors.Is(err, blob.ErrBlobNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}
