package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mkrupp/lostbuddy/internal/domain"
	"github.com/mkrupp/lostbuddy/internal/infra/logging"
)

// RedisBlobRepositoryConfig holds configuration for the redis blob repository.
type RedisBlobRepositoryConfig struct {
	Addr        string        `env:"ADDR" env-default:"localhost:6379" yaml:"addr"`
	Username    string        `env:"USERNAME" yaml:"username"`
	Password    string        `env:"PASSWORD" yaml:"password"`
	DB          int           `env:"DB" env-default:"0" yaml:"db"`
	MaxRetries  int           `env:"MAX_RETRIES" env-default:"3" yaml:"max_retries"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" env-default:"5s" yaml:"dial_timeout"`
	Timeout     time.Duration `env:"TIMEOUT" env-default:"3s" yaml:"timeout"`

	// KeyPrefix is prepended to every blob ID
	KeyPrefix string `env:"KEY_PREFIX" env-default:"lostbuddy:" yaml:"key_prefix"`

	// LockTTL bounds how long an abandoned exclusive lock blocks other writers
	LockTTL time.Duration `env:"LOCK_TTL" env-default:"10s" yaml:"lock_ttl"`

	// LockRetry is the polling interval while waiting for an exclusive lock
	LockRetry time.Duration `env:"LOCK_RETRY" env-default:"20ms" yaml:"lock_retry"`
}

// unlockScript deletes the lock key only if it still holds our token.
//
//nolint:gochecknoglobals
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRepository implements Repository on a redis server. Blobs are plain
// string values; exclusive locks are SET NX keys with a TTL.
type RedisRepository struct {
	client *redis.Client
	cfg    RedisBlobRepositoryConfig
	log    logging.Logger
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisBlobRepository connects to redis and verifies the connection with PING.
func NewRedisBlobRepository(ctx context.Context, cfg RedisBlobRepositoryConfig) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}

	if cfg.LockRetry <= 0 {
		cfg.LockRetry = 20 * time.Millisecond
	}

	return &RedisRepository{
		client: client,
		cfg:    cfg,
		log: logging.GetLogger("repo.blob.redis").With(
			logging.Group("repo", "addr", cfg.Addr, "db", cfg.DB, "prefix", cfg.KeyPrefix),
		),
	}, nil
}

func (r *RedisRepository) key(id domain.BlobID) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBlobID, id)
	}

	return r.cfg.KeyPrefix + string(id), nil
}

// Lock implements Repository. Single-key reads are atomic in redis, so a
// shared lock is a no-op; only exclusive locks take the lock key.
func (r *RedisRepository) Lock(ctx context.Context, id domain.BlobID, exclusive bool) (_ func(), err error) {
	key, err := r.key(id)
	if err != nil {
		return nil, err
	}

	if !exclusive {
		return func() {}, nil
	}

	lockKey := key + ".lock"
	token := uuid.NewString()
	log := r.log.With(logging.Group("blob", "lockkey", lockKey))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		} else {
			log.DebugContext(ctx, "lock acquired")
		}
	}()

	ticker := time.NewTicker(r.cfg.LockRetry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.cfg.LockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("setnx: %w", err)
		}

		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		// The caller's context may already be cancelled; release regardless.
		if err := unlockScript.Run(context.WithoutCancel(ctx), r.client, []string{lockKey}, token).Err(); err != nil {
			log.ErrorContext(ctx, "lock release failed", "error", err)

			return
		}

		log.DebugContext(ctx, "lock released")
	}, nil
}

func (r *RedisRepository) Exists(ctx context.Context, id domain.BlobID) (bool, error) {
	key, err := r.key(id)
	if err != nil {
		return false, err
	}

	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}

	return n > 0, nil
}

func (r *RedisRepository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	key, err := r.key(blob.ID)
	if err != nil {
		return err
	}

	defer func() {
		log := r.log.With(logging.Group("blob", "id", blob.ID))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	if err := r.client.Set(ctx, key, blob.Body, 0).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	return nil
}

func (r *RedisRepository) Fetch(ctx context.Context, id domain.BlobID) (*domain.Blob, error) {
	key, err := r.key(id)
	if err != nil {
		return nil, err
	}

	body, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, id)
		}

		r.log.ErrorContext(ctx, "blob fetch failed", "error", err, logging.Group("blob", "id", id))

		return nil, fmt.Errorf("get: %w", err)
	}

	return domain.NewBlob(id, body), nil
}

func (r *RedisRepository) Delete(ctx context.Context, id domain.BlobID) error {
	key, err := r.key(id)
	if err != nil {
		return err
	}

	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("del: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, id)
	}

	return nil
}

// Close closes the redis client.
func (r *RedisRepository) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}
