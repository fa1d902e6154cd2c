package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "splitlab/pkg/domain"
)

// RedisStickyCache implements StickyCache on go-redis. Assignment keys
// carry the sticky TTL; conversion counters are plain INCRs with no
// expiry.
type RedisStickyCache struct {
	client redis.Cmdable
}

func NewRedisStickyCache(client redis.Cmdable) *RedisStickyCache {
	return &RedisStickyCache{client: client}
}

func assignmentCacheKey(experimentID id.ExperimentID, userID id.UserID) string {
	return fmt.Sprintf("assignment:%s:%s", experimentID, userID)
}

func conversionCounterKey(experimentID id.ExperimentID, variantID id.VariantID) string {
	return fmt.Sprintf("conversions:%s:%s", experimentID, variantID)
}

func (c *RedisStickyCache) GetVariant(ctx context.Context, experimentID id.ExperimentID, userID id.UserID) (id.VariantID, bool, error) {
	raw, err := c.client.Get(ctx, assignmentCacheKey(experimentID, userID)).Result()
	if err == redis.Nil {
		return id.VariantID{}, false, nil
	}
	if err != nil {
		return id.VariantID{}, false, fmt.Errorf("get cached assignment: %w", err)
	}
	variantID, err := id.ParseVariantID(raw)
	if err != nil {
		// A corrupt entry is treated as a miss; the deterministic hash
		// recomputes the same variant anyway.
		return id.VariantID{}, false, nil
	}
	return variantID, true, nil
}

func (c *RedisStickyCache) SetVariant(ctx context.Context, experimentID id.ExperimentID, userID id.UserID, variantID id.VariantID, ttl time.Duration) error {
	if err := c.client.Set(ctx, assignmentCacheKey(experimentID, userID), variantID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("cache assignment: %w", err)
	}
	return nil
}

func (c *RedisStickyCache) IncrementConversions(ctx context.Context, experimentID id.ExperimentID, variantID id.VariantID) error {
	if err := c.client.Incr(ctx, conversionCounterKey(experimentID, variantID)).Err(); err != nil {
		return fmt.Errorf("increment conversion counter: %w", err)
	}
	return nil
}
