package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/segment-backoffice/config"
	"github.com/amirphl/segment-backoffice/rules"
	"github.com/amirphl/segment-backoffice/utils"
	"github.com/redis/go-redis/v9"
)

type draftRecord struct {
	State     rules.TagState `json:"state"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// draftStore keeps tag builder sessions between requests
type draftStore interface {
	save(ctx context.Context, key string, rec draftRecord, ttl time.Duration) error
	load(ctx context.Context, key string) (draftRecord, error)
	delete(ctx context.Context, key string) error
}

func newDraftStore(rc *redis.Client, cfg config.CacheConfig, now func() time.Time) draftStore {
	if rc != nil {
		return &redisDraftStore{rc: rc, cfg: cfg}
	}
	return &memoryDraftStore{items: make(map[string]draftRecord), now: now}
}

type redisDraftStore struct {
	rc  *redis.Client
	cfg config.CacheConfig
}

func (s *redisDraftStore) key(key string) string {
	return redisKey(s.cfg, utils.TagDraftKey, key)
}

func (s *redisDraftStore) save(ctx context.Context, key string, rec draftRecord, ttl time.Duration) error {
	bs, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := s.rc.Set(ctx, s.key(key), bs, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheNotAvailable, err)
	}
	return nil
}

func (s *redisDraftStore) load(ctx context.Context, key string) (draftRecord, error) {
	var rec draftRecord
	bs, err := s.rc.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, ErrDraftNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("%w: %w", ErrCacheNotAvailable, err)
	}
	if err := json.Unmarshal(bs, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode draft: %w", err)
	}
	return rec, nil
}

func (s *redisDraftStore) delete(ctx context.Context, key string) error {
	n, err := s.rc.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheNotAvailable, err)
	}
	if n == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// memoryDraftStore is used when no Redis is configured. Drafts are lost on
// restart and are not shared between replicas.
type memoryDraftStore struct {
	mu    sync.Mutex
	items map[string]draftRecord
	now   func() time.Time
}

func (s *memoryDraftStore) save(_ context.Context, key string, rec draftRecord, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.items[key] = rec
	return nil
}

func (s *memoryDraftStore) load(_ context.Context, key string) (draftRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	rec, ok := s.items[key]
	if !ok {
		return draftRecord{}, ErrDraftNotFound
	}
	return rec, nil
}

func (s *memoryDraftStore) delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	if _, ok := s.items[key]; !ok {
		return ErrDraftNotFound
	}
	delete(s.items, key)
	return nil
}

// sweep drops expired drafts; callers hold mu
func (s *memoryDraftStore) sweep() {
	now := s.now()
	for k, rec := range s.items {
		if !rec.ExpiresAt.After(now) {
			delete(s.items, k)
		}
	}
}
