package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mkrupp/lostbuddy/internal/domain"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
)

// FileSystemBlobRepositoryConfig holds configuration for the filesystem-based blob repository.
type FileSystemBlobRepositoryConfig struct {
	// Basedir is the root directory for blob storage
	Basedir string `env:"BASEDIR" env-default:"var/storage/blob" yaml:"basedir"`

	// Ext is the file extension of stored blobs
	Ext string `env:"EXT" env-default:"json" yaml:"ext"`
}

// FileSystemRepository implements Repository using the local filesystem.
// Every "/"-separated segment of a blob ID becomes a directory level below
// Basedir; writes go through a temp file and rename.
type FileSystemRepository struct {
	cfg FileSystemBlobRepositoryConfig
	log logging.Logger
}

var _ Repository = (*FileSystemRepository)(nil)

// NewFileSystemBlobRepository creates a FileSystemRepository rooted at cfg.Basedir.
// Returns an error if the base directory cannot be created.
func NewFileSystemBlobRepository(
	ctx context.Context,
	cfg FileSystemBlobRepositoryConfig,
) (*FileSystemRepository, error) {
	if cfg.Ext == "" {
		cfg.Ext = "json"
	}

	repo := &FileSystemRepository{
		cfg: cfg,
		log: logging.GetLogger("repo.blob.filesystem").With(
			logging.Group("repo", "basedir", cfg.Basedir, "ext", cfg.Ext),
		),
	}

	if err := repo.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}

	return repo, nil
}

func (fsRepo *FileSystemRepository) initStorage(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			fsRepo.log.ErrorContext(ctx, "init storage failed", "error", err)
		} else {
			fsRepo.log.DebugContext(ctx, "init storage")
		}
	}()

	if err := os.MkdirAll(fsRepo.cfg.Basedir, 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	return nil
}

// GetFilename returns the full filesystem path for a blob with the given ID.
func (fsRepo *FileSystemRepository) GetFilename(id domain.BlobID) (string, error) {
	segments := strings.Split(string(id), "/")

	for _, segment := range segments {
		if segment == "" || segment == "." || segment == ".." || strings.ContainsAny(segment, `\`+"\x00") {
			return "", fmt.Errorf("%w: %q", ErrInvalidBlobID, id)
		}
	}

	return filepath.Join(append([]string{fsRepo.cfg.Basedir}, segments...)...) + "." + fsRepo.cfg.Ext, nil
}

func (fsRepo *FileSystemRepository) Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error) {
	filename, err := fsRepo.GetFilename(id)
	if err != nil {
		return nil, err
	}

	mode := syscall.LOCK_SH
	if exclusive {
		mode = syscall.LOCK_EX
	}

	release, err := fsRepo.flock(ctx, filename+".lock", mode)
	if err != nil {
		return nil, fmt.Errorf("flock: %w", err)
	}

	return release, nil
}

func (fsRepo *FileSystemRepository) flock(ctx context.Context, lockfile string, mode int) (release func(), err error) {
	log := fsRepo.log.With(logging.Group("blob", "lockfile", lockfile))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		} else {
			log.DebugContext(ctx, "lock acquired")
		}
	}()

	if err := os.MkdirAll(filepath.Dir(lockfile), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), mode); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()

		log.DebugContext(ctx, "lock released")
	}, nil
}

func (fsRepo *FileSystemRepository) Exists(_ context.Context, id domain.BlobID) (bool, error) {
	filename, err := fsRepo.GetFilename(id)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(filename); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("stat: %w", err)
	}

	return true, nil
}

func (fsRepo *FileSystemRepository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	filename, err := fsRepo.GetFilename(blob.ID)
	if err != nil {
		return err
	}

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", blob.ID, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(file.Name())
		}
	}()

	if _, err := file.Write(blob.Body); err != nil {
		_ = file.Close()

		return fmt.Errorf("write: %w", err)
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()

		return fmt.Errorf("sync: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(file.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

func (fsRepo *FileSystemRepository) Fetch(ctx context.Context, id domain.BlobID) (_ *domain.Blob, err error) {
	filename, err := fsRepo.GetFilename(id)
	if err != nil {
		return nil, err
	}

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "filename", filename))
		if err != nil && !errors.Is(err, ErrBlobNotFound) {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob fetched", "found", err == nil)
		}
	}()

	body, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}

		return nil, fmt.Errorf("read file: %w", err)
	}

	return domain.NewBlob(id, body), nil
}

func (fsRepo *FileSystemRepository) Delete(ctx context.Context, id domain.BlobID) (err error) {
	filename, err := fsRepo.GetFilename(id)
	if err != nil {
		return err
	}

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "filename", filename))
		if err != nil && !errors.Is(err, ErrBlobNotFound) {
			log.ErrorContext(ctx, "blob delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob deleted", "found", err == nil)
		}
	}()

	if err := os.Remove(filename); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}

		return fmt.Errorf("remove: %w", err)
	}

	return nil
}

// Close implements Repository. The filesystem repository holds no resources.
func (fsRepo *FileSystemRepository) Close() error {
	return nil
}
