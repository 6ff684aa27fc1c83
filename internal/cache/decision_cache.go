// internal/cache/decision_cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	compliancedom "fleetcheck-service/internal/domain/compliance"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// DecisionCache is the hot allow/block lookup in redis. The postgres cache
// entry is authoritative; this copy only saves a query on the dispatch path.
type DecisionCache struct {
	client *redis.Client
}

func NewDecisionCache(client *redis.Client) *DecisionCache {
	return &DecisionCache{client: client}
}

func decisionKey(registrationNo string, operatorID int64) string {
	return fmt.Sprintf("compliance:%s:%d", registrationNo, operatorID)
}

// Put stores the decision with the same forward expiry as the persisted
// cache entry.
func (c *DecisionCache) Put(ctx context.Context, d *compliancedom.Decision, ttl time.Duration) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}
	if err := c.client.Set(ctx, decisionKey(d.RegistrationNo, d.OperatorID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache decision: %w", err)
	}
	return nil
}

// Get returns the cached decision, or ErrNotFound past expiry.
func (c *DecisionCache) Get(ctx context.Context, registrationNo string, operatorID int64) (*compliancedom.Decision, error) {
	data, err := c.client.Get(ctx, decisionKey(registrationNo, operatorID)).Bytes()
	if err == redis.Nil {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached decision: %w", err)
	}

	var d compliancedom.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached decision: %w", err)
	}
	return &d, nil
}

// Invalidate drops the hot copy, forcing the next lookup back to postgres.
func (c *DecisionCache) Invalidate(ctx context.Context, registrationNo string, operatorID int64) error {
	return c.client.Del(ctx, decisionKey(registrationNo, operatorID)).Err()
}
