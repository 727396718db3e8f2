package blob_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/lostbuddy/internal/domain"

	. "github.com/mkrupp/lostbuddy/internal/repo/blob"
)

type backend struct {
	name string
	new  func(t *testing.T) Repository
}

func backends() []backend {
	return []backend{
		{
			name: BackendFileSystem,
			new: func(t *testing.T) Repository {
				t.Helper()

				repo, err := NewFileSystemBlobRepository(context.Background(), FileSystemBlobRepositoryConfig{
					Basedir: t.TempDir(),
				})
				require.NoError(t, err)

				return repo
			},
		},
		{
			name: BackendMemory,
			new: func(t *testing.T) Repository {
				t.Helper()

				return NewMemoryBlobRepository()
			},
		},
		{
			name: BackendRedis,
			new: func(t *testing.T) Repository {
				t.Helper()

				mr := miniredis.RunT(t)

				repo, err := NewRedisBlobRepository(context.Background(), RedisBlobRepositoryConfig{
					Addr:      mr.Addr(),
					KeyPrefix: "test:",
				})
				require.NoError(t, err)
				t.Cleanup(func() { _ = repo.Close() })

				return repo
			},
		},
	}
}

func TestRepository_StoreFetch(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := b.new(t)

			tests := []struct {
				name string
				blob *domain.Blob
			}{
				{"handles new blob", domain.NewBlob("lb_accounts", []byte(`{"a":1}`))},
				{"handles existing blob", domain.NewBlob("lb_accounts", []byte(`{}`))},
				{"handles empty blob", domain.NewBlob("empty", []byte{})},
				{"handles nested id", domain.NewBlob("clients/abc/lb_current", []byte(`{"name":"x"}`))},
			}

			for _, tt := range tests {
				require.NoError(t, repo.Store(ctx, tt.blob), tt.name)

				fetched, err := repo.Fetch(ctx, tt.blob.ID)
				require.NoError(t, err, tt.name)
				assert.Equal(t, tt.blob.ID, fetched.ID, tt.name)
				assert.Equal(t, string(tt.blob.Body), string(fetched.Body), tt.name)

				exists, err := repo.Exists(ctx, tt.blob.ID)
				require.NoError(t, err)
				assert.True(t, exists, tt.name)
			}
		})
	}
}

func TestRepository_Missing(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := b.new(t)

			_, err := repo.Fetch(ctx, "missing")
			assert.ErrorIs(t, err, ErrBlobNotFound)

			exists, err := repo.Exists(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, exists)

			assert.ErrorIs(t, repo.Delete(ctx, "missing"), ErrBlobNotFound)
		})
	}
}

func TestRepository_Delete(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := b.new(t)

			require.NoError(t, repo.Store(ctx, domain.NewBlob("lb_current", []byte(`{}`))))
			require.NoError(t, repo.Delete(ctx, "lb_current"))

			_, err := repo.Fetch(ctx, "lb_current")
			assert.ErrorIs(t, err, ErrBlobNotFound)
		})
	}
}

func TestRepository_ExclusiveLock(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := b.new(t)

			unlock, err := repo.Lock(ctx, "lb_accounts", true)
			require.NoError(t, err)

			acquired := make(chan struct{})

			go func() {
				unlock2, err := repo.Lock(ctx, "lb_accounts", true)
				if err == nil {
					unlock2()
				}
				close(acquired)
			}()

			select {
			case <-acquired:
				t.Fatal("second exclusive lock acquired while first was held")
			case <-time.After(100 * time.Millisecond):
			}

			unlock()

			select {
			case <-acquired:
			case <-time.After(5 * time.Second):
				t.Fatal("second exclusive lock not acquired after release")
			}
		})
	}
}

func TestRepository_SharedLock(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := b.new(t)

			var wg sync.WaitGroup

			unlock1, err := repo.Lock(ctx, "shared", false)
			require.NoError(t, err)

			wg.Add(1)

			go func() {
				defer wg.Done()

				unlock2, err := repo.Lock(ctx, "shared", false)
				if assert.NoError(t, err) {
					unlock2()
				}
			}()

			wg.Wait()
			unlock1()
		})
	}
}

func TestFileSystemRepository_InvalidID(t *testing.T) {
	t.Parallel()

	repo, err := NewFileSystemBlobRepository(context.Background(), FileSystemBlobRepositoryConfig{
		Basedir: t.TempDir(),
	})
	require.NoError(t, err)

	for _, id := range []domain.BlobID{"", "../escape", "a//b", "a/./b", "/abs"} {
		_, err := repo.GetFilename(id)
		assert.ErrorIs(t, err, ErrInvalidBlobID, "id %q", id)

		assert.ErrorIs(t, repo.Store(context.Background(), domain.NewBlob(id, nil)), ErrInvalidBlobID, "id %q", id)
	}
}

func TestRedisRepository_LockHonoursContext(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	repo, err := NewRedisBlobRepository(context.Background(), RedisBlobRepositoryConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	unlock, err := repo.Lock(context.Background(), "lb_accounts", true)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = repo.Lock(ctx, "lb_accounts", true)
	assert.Error(t, err)
}

func TestNewRedisBlobRepository_Unreachable(t *testing.T) {
	t.Parallel()

	_, err := NewRedisBlobRepository(context.Background(), RedisBlobRepositoryConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	t.Parallel()

	repo, err := New(context.Background(), Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	repo, err = New(context.Background(), Config{
		Backend:    BackendFileSystem,
		FileSystem: FileSystemBlobRepositoryConfig{Basedir: t.TempDir()},
	})
	require.NoError(t, err)
	assert.IsType(t, &FileSystemRepository{}, repo)

	repo, err = New(context.Background(), Config{
		FileSystem: FileSystemBlobRepositoryConfig{Basedir: t.TempDir()},
	})
	require.NoError(t, err)
	assert.IsType(t, &FileSystemRepository{}, repo, "empty backend selects filesystem")

	_, err = New(context.Background(), Config{Backend: "tape"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
