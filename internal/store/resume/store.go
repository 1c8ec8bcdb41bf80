// Package resume is the adapter for the resumable state store: TTL'd
// key-value snapshots that let a crashed process re-enter a workflow at its
// current node. The store is never used for mutual exclusion.
package resume

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BillClerici/skill-forge-sub000/internal/config"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// ErrNotFound is returned when no snapshot exists for an instance, either
// because it never ran or because its TTL expired.
var ErrNotFound = errors.New("resume: snapshot not found")

// Store persists workflow state snapshots keyed by instance id.
type Store interface {
	// Save writes a snapshot, replacing any previous one for the instance.
	Save(ctx context.Context, instanceID types.ID, data []byte) error

	// Load reads the latest snapshot, or ErrNotFound.
	Load(ctx context.Context, instanceID types.ID) ([]byte, error)

	// Delete drops the snapshot once a workflow reaches a terminal state.
	Delete(ctx context.Context, instanceID types.ID) error
}

const keyPrefix = "skillforge:workflow:"

// RedisStore implements Store on Redis with a configured TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a RedisStore and verifies connectivity.
func NewRedisStore(ctx context.Context, cfg config.ResumeConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

// Save writes the snapshot with the store TTL.
func (s *RedisStore) Save(ctx context.Context, instanceID types.ID, data []byte) error {
	return s.client.Set(ctx, keyPrefix+instanceID.String(), data, s.ttl).Err()
}

// Load reads the snapshot, mapping redis.Nil to ErrNotFound.
func (s *RedisStore) Load(ctx context.Context, instanceID types.ID) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+instanceID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

// Delete drops the snapshot.
func (s *RedisStore) Delete(ctx context.Context, instanceID types.ID) error {
	return s.client.Del(ctx, keyPrefix+instanceID.String()).Err()
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)

// MemoryStore is an in-process Store for tests and single-process use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[types.ID][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[types.ID][]byte)}
}

// Save stores a copy of the snapshot.
func (s *MemoryStore) Save(ctx context.Context, instanceID types.ID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[instanceID] = append([]byte(nil), data...)
	return nil
}

// Load returns a copy of the snapshot, or ErrNotFound.
func (s *MemoryStore) Load(ctx context.Context, instanceID types.ID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[instanceID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Delete drops the snapshot.
func (s *MemoryStore) Delete(ctx context.Context, instanceID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, instanceID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
