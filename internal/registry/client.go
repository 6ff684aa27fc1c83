// internal/registry/client.go
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	registrydom "fleetcheck-service/internal/domain/registry"
	"fleetcheck-service/internal/domain/vehicle"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// ClientConfig tunes retry and failover behaviour.
type ClientConfig struct {
	MaxAttempts      int           // per provider, default 3
	BackoffBase      time.Duration // doubles each attempt, default 200ms
	BreakerThreshold int           // consecutive failures before open, default 5
	BreakerCooldown  time.Duration // default 60s
}

// AllProvidersFailedError names every provider that was attempted or skipped
// during a verify call, and why. The batch orchestrator records it per item.
type AllProvidersFailedError struct {
	RegistrationNo string
	Attempts       []registrydom.ProviderAttempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Skipped {
			parts = append(parts, fmt.Sprintf("%s skipped (%s)", a.Provider, a.Reason))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed (%s)", a.Provider, a.Reason))
		}
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.RegistrationNo, strings.Join(parts, "; "))
}

// Client orchestrates the provider adapters: per-provider retry with
// exponential backoff, a circuit breaker per provider, and cascading
// fallback in fixed priority order. The cascade, not per-call retries alone,
// is what keeps batch throughput up during a provider outage.
type Client struct {
	adapters   []Adapter // priority order: primary first
	normalizer *Normalizer
	breakers   *BreakerSet
	cfg        ClientConfig
	logger     *zap.Logger

	// Injectable sleep for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(adapters []Adapter, normalizer *Normalizer, cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 200 * time.Millisecond
	}
	return &Client{
		adapters:   adapters,
		normalizer: normalizer,
		breakers:   NewBreakerSet(cfg.BreakerThreshold, cfg.BreakerCooldown),
		cfg:        cfg,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Breakers exposes the breaker set for state inspection.
func (c *Client) Breakers() *BreakerSet {
	return c.breakers
}

// Verify fetches a raw record for the registration through the provider
// cascade and normalizes it into a canonical snapshot.
func (c *Client) Verify(ctx context.Context, registrationNo string) (*vehicle.Snapshot, error) {
	var attempts []registrydom.ProviderAttempt

	for _, adapter := range c.adapters {
		name := adapter.Name()

		if !c.breakers.Allow(name) {
			c.logger.Warn("provider circuit open, skipping",
				zap.String("provider", name),
				zap.String("registration", registrationNo),
			)
			attempts = append(attempts, registrydom.ProviderAttempt{
				Provider: name,
				Skipped:  true,
				Reason:   "circuit open",
			})
			continue
		}

		maxAttempts := c.cfg.MaxAttempts
		if c.breakers.State(name) == registrydom.BreakerHalfOpen {
			// A half-open circuit admits a single trial call; the trial's
			// outcome decides the circuit, not a retry loop.
			maxAttempts = 1
		}

		raw, err := c.fetchWithRetry(ctx, adapter, registrationNo, maxAttempts)
		if err == nil {
			c.breakers.RecordSuccess(name)
			return c.normalizer.Normalize(raw), nil
		}

		if errors.Is(err, xerrors.ErrVehicleNotFound) {
			// A definitive answer: the provider is healthy, it just does not
			// know the vehicle. Counts as breaker success so a half-open
			// trial that lands here closes the circuit instead of wedging it.
			c.breakers.RecordSuccess(name)
			attempts = append(attempts, registrydom.ProviderAttempt{
				Provider: name,
				Reason:   "vehicle not found",
			})
			continue
		}

		if xerrors.IsConfig(err) {
			// Our misconfiguration, not provider health. A half-open trial
			// consumed here is handed back so the next call can retry it.
			c.breakers.ReleaseTrial(name)
			c.logger.Error("provider configuration error",
				zap.String("provider", name),
				zap.Error(err),
			)
			attempts = append(attempts, registrydom.ProviderAttempt{
				Provider: name,
				Skipped:  true,
				Reason:   err.Error(),
			})
			continue
		}

		c.breakers.RecordFailure(name)
		c.logger.Warn("provider failed after retries",
			zap.String("provider", name),
			zap.String("registration", registrationNo),
			zap.Error(err),
		)
		attempts = append(attempts, registrydom.ProviderAttempt{
			Provider: name,
			Reason:   err.Error(),
		})
	}

	return nil, &AllProvidersFailedError{RegistrationNo: registrationNo, Attempts: attempts}
}

// fetchWithRetry calls one adapter up to maxAttempts times with exponential
// backoff. Non-retryable errors (config, not-found) return immediately.
func (c *Client) fetchWithRetry(ctx context.Context, adapter Adapter, registrationNo string, maxAttempts int) (*registrydom.RawRecord, error) {
	var lastErr error
	delay := c.cfg.BackoffBase

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := adapter.Fetch(ctx, registrationNo)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !xerrors.IsTransient(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		c.logger.Debug("transient provider error, retrying",
			zap.String("provider", adapter.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}

	return nil, fmt.Errorf("exhausted %d attempts: %w", maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
