package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkrupp/lostbuddy/internal/domain"
)

// MemoryRepository implements Repository in process memory. Contents are
// lost when the process exits.
type MemoryRepository struct {
	mu    sync.RWMutex
	blobs map[domain.BlobID][]byte
	locks map[domain.BlobID]*sync.RWMutex
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryBlobRepository creates an empty MemoryRepository.
func NewMemoryBlobRepository() *MemoryRepository {
	return &MemoryRepository{
		blobs: make(map[domain.BlobID][]byte),
		locks: make(map[domain.BlobID]*sync.RWMutex),
	}
}

func (m *MemoryRepository) Lock(_ context.Context, id domain.BlobID, exclusive bool) (func(), error) {
	m.mu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = new(sync.RWMutex)
		m.locks[id] = lock
	}
	m.mu.Unlock()

	if exclusive {
		lock.Lock()

		return lock.Unlock, nil
	}

	lock.RLock()

	return lock.RUnlock, nil
}

func (m *MemoryRepository) Exists(_ context.Context, id domain.BlobID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[id]

	return ok, nil
}

func (m *MemoryRepository) Store(_ context.Context, blob *domain.Blob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[blob.ID] = append([]byte(nil), blob.Body...)

	return nil
}

func (m *MemoryRepository) Fetch(_ context.Context, id domain.BlobID) (*domain.Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	body, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
	}

	return domain.NewBlob(id, append([]byte(nil), body...)), nil
}

func (m *MemoryRepository) Delete(_ context.Context, id domain.BlobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, id)
	}

	delete(m.blobs, id)

	return nil
}

func (m *MemoryRepository) Close() error {
	return nil
}
