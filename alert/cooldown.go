package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CooldownStore de-bounces repeated alerts per (bike, category). An unmoved
// bike outside the fence would otherwise produce one alert per evaluation.
type CooldownStore interface {
	// Allow reports whether a new alert may be raised, and if so opens the
	// cooldown window.
	Allow(ctx context.Context, bikeID uuid.UUID, category Category) (bool, error)
}

// RedisCooldown implements CooldownStore with SET NX EX, so the window is
// shared across server instances.
type RedisCooldown struct {
	client *redis.Client
	window time.Duration
}

func NewRedisCooldown(client *redis.Client, window time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, window: window}
}

func (c *RedisCooldown) Allow(ctx context.Context, bikeID uuid.UUID, category Category) (bool, error) {
	key := fmt.Sprintf("alert:cooldown:%s:%s", bikeID, category)
	ok, err := c.client.SetNX(ctx, key, 1, c.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check alert cooldown: %w", err)
	}
	return ok, nil
}

// MemoryCooldown is an in-process CooldownStore for tests and single-node use.
type MemoryCooldown struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	return &MemoryCooldown{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

func (c *MemoryCooldown) Allow(_ context.Context, bikeID uuid.UUID, category Category) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := bikeID.String() + ":" + string(category)
	now := c.now()
	if last, ok := c.seen[key]; ok && now.Sub(last) < c.window {
		return false, nil
	}
	c.seen[key] = now
	return true, nil
}
