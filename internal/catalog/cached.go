package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"spinwin/internal/models"
)

const (
	DefaultTTL   = 5 * time.Minute
	rewardsKey   = "catalog:rewards"
	redisTimeout = 500 * time.Millisecond
)

// Cached keeps the last good catalog in memory and, when a Redis client is
// given, shares it between server instances. Redis errors fall through to the
// wrapped source.
type Cached struct {
	src   Source
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger

	mu        sync.Mutex
	rewards   []models.Reward
	fetchedAt time.Time
}

func NewCached(src Source, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cached{src: src, redis: rdb, ttl: ttl, now: time.Now, log: log}
}

func (c *Cached) Fetch(ctx context.Context) ([]models.Reward, error) {
	if rewards, ok := c.fromMemory(); ok {
		return rewards, nil
	}
	if rewards, ok := c.fromRedis(ctx); ok {
		c.store(rewards)
		return cloneRewards(rewards), nil
	}
	rewards, err := c.src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.store(rewards)
	c.toRedis(ctx, rewards)
	return cloneRewards(rewards), nil
}

// Invalidate forgets the cached catalog so the next Fetch hits the source.
func (c *Cached) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.rewards = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
	if c.redis == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := c.redis.Del(rctx, rewardsKey).Err(); err != nil {
		c.log.Warn().Err(err).Msg("catalog cache invalidate failed")
	}
}

func (c *Cached) fromMemory() ([]models.Reward, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rewards == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return cloneRewards(c.rewards), true
}

func (c *Cached) store(rewards []models.Reward) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rewards = cloneRewards(rewards)
	c.fetchedAt = c.now()
}

func (c *Cached) fromRedis(ctx context.Context) ([]models.Reward, bool) {
	if c.redis == nil {
		return nil, false
	}
	rctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	raw, err := c.redis.Get(rctx, rewardsKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Msg("catalog cache read failed")
		}
		return nil, false
	}
	var rewards []models.Reward
	if err := json.Unmarshal(raw, &rewards); err != nil {
		c.log.Warn().Err(err).Msg("catalog cache corrupt")
		return nil, false
	}
	return rewards, true
}

func (c *Cached) toRedis(ctx context.Context, rewards []models.Reward) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(rewards)
	if err != nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := c.redis.Set(rctx, rewardsKey, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("catalog cache write failed")
	}
}

func cloneRewards(in []models.Reward) []models.Reward {
	out := make([]models.Reward, len(in))
	copy(out, in)
	return out
}
