package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoData is returned by Storage.Load when nothing is stored.
var ErrNoData = errors.New("no stored session")

// Storage is the durable backing of the Store. Implementations must be safe
// for concurrent use.
type Storage interface {
	Load(ctx context.Context) ([]byte, error)
	// Save persists data. ttl <= 0 means no expiry.
	Save(ctx context.Context, data []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// ─── File ──────────────────────────────────────────────────────────────

// FileStorage keeps the session in a JSON file readable only by the owner.
type FileStorage struct {
	path string
}

// NewFileStorage creates a FileStorage at path. Parent directories are
// created on first save.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return data, nil
}

func (s *FileStorage) Save(_ context.Context, data []byte, _ time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s *FileStorage) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// ─── Redis ─────────────────────────────────────────────────────────────

// RedisStorage keeps the session under a single Redis key.
type RedisStorage struct {
	rdb *redis.Client
	key string
}

// NewRedisStorage creates a RedisStorage bound to key.
func NewRedisStorage(rdb *redis.Client, key string) *RedisStorage {
	return &RedisStorage{rdb: rdb, key: key}
}

func (s *RedisStorage) Load(ctx context.Context) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("get session key: %w", err)
	}
	return data, nil
}

func (s *RedisStorage) Save(ctx context.Context, data []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set session key: %w", err)
	}
	return nil
}

func (s *RedisStorage) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("delete session key: %w", err)
	}
	return nil
}

// ─── Memory ────────────────────────────────────────────────────────────

// MemoryStorage is a process-local Storage, used in tests and for
// ephemeral sessions.
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrNoData
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStorage) Save(_ context.Context, data []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStorage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}
