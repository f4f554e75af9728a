package distribution

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Alias1177/SignalBot/models"
	"github.com/redis/go-redis/v9"
)

// CooldownStore remembers when a (symbol, direction, chat) was last sent
type CooldownStore interface {
	Last(ctx context.Context, key string) (time.Time, bool, error)
	Mark(ctx context.Context, key string, at time.Time, ttl time.Duration) error
}

// CooldownKey identifies identical sends
func CooldownKey(symbol string, dir models.Direction, chatID int64) string {
	return fmt.Sprintf("%s_%s_%d", symbol, dir, chatID)
}

// InCooldown reports whether an identical send happened less than window ago
func InCooldown(ctx context.Context, store CooldownStore, key string, window time.Duration, now time.Time) (bool, error) {
	if window <= 0 {
		return false, nil
	}
	last, ok, err := store.Last(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return now.Sub(last) < window, nil
}

// MemoryCooldown is a process-local CooldownStore
type MemoryCooldown struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	at      time.Time
	expires time.Time
}

// NewMemoryCooldown creates an empty in-memory store
func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{entries: make(map[string]memoryEntry)}
}

func (m *MemoryCooldown) Last(_ context.Context, key string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return time.Time{}, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(m.entries, key)
		return time.Time{}, false, nil
	}
	return e.at, true, nil
}

func (m *MemoryCooldown) Mark(_ context.Context, key string, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{at: at}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// CooldownKeyPrefix namespaces cooldown keys in Redis
const CooldownKeyPrefix = "signalbot:cooldown"

// RedisCooldown keeps cooldowns in Redis so restarts do not resend signals
type RedisCooldown struct {
	client *redis.Client
}

// NewRedisCooldown wraps a connected Redis client
func NewRedisCooldown(client *redis.Client) *RedisCooldown {
	return &RedisCooldown{client: client}
}

func (r *RedisCooldown) Last(ctx context.Context, key string) (time.Time, bool, error) {
	v, err := r.client.Get(ctx, CooldownKeyPrefix+":"+key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading cooldown: %w", err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing cooldown %q: %w", v, err)
	}
	return time.UnixMilli(ms), true, nil
}

func (r *RedisCooldown) Mark(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	if err := r.client.Set(ctx, CooldownKeyPrefix+":"+key, at.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("storing cooldown: %w", err)
	}
	return nil
}
