// internal/registry/breaker.go
package registry

import (
	"sync"
	"time"

	registrydom "fleetcheck-service/internal/domain/registry"
)

type breaker struct {
	state       registrydom.BreakerState
	failures    int
	lastFailure time.Time
}

// BreakerSet tracks one circuit per provider. It is owned by the Client
// instance that created it, never shared module-level state, so tests can
// build fresh sets.
type BreakerSet struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	providers map[string]*breaker

	// Injectable clock for tests.
	now func() time.Time
}

func NewBreakerSet(threshold int, cooldown time.Duration) *BreakerSet {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &BreakerSet{
		threshold: threshold,
		cooldown:  cooldown,
		providers: make(map[string]*breaker),
		now:       time.Now,
	}
}

func (s *BreakerSet) get(provider string) *breaker {
	b, ok := s.providers[provider]
	if !ok {
		b = &breaker{state: registrydom.BreakerClosed}
		s.providers[provider] = b
	}
	return b
}

// Allow reports whether a call to the provider may proceed. An open circuit
// whose cool-down has elapsed moves to half-open and admits exactly one trial
// call; further calls are refused until that trial is recorded.
func (s *BreakerSet) Allow(provider string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(provider)
	switch b.state {
	case registrydom.BreakerClosed:
		return true
	case registrydom.BreakerOpen:
		if s.now().Sub(b.lastFailure) >= s.cooldown {
			b.state = registrydom.BreakerHalfOpen
			return true
		}
		return false
	case registrydom.BreakerHalfOpen:
		// Trial call already in flight.
		return false
	}
	return false
}

// RecordSuccess closes the provider's circuit and resets its failure count.
func (s *BreakerSet) RecordSuccess(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(provider)
	b.state = registrydom.BreakerClosed
	b.failures = 0
}

// RecordFailure bumps the provider's consecutive-failure count. Crossing the
// threshold, or failing the half-open trial, opens the circuit.
func (s *BreakerSet) RecordFailure(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(provider)
	b.failures++
	b.lastFailure = s.now()
	if b.state == registrydom.BreakerHalfOpen || b.failures >= s.threshold {
		b.state = registrydom.BreakerOpen
	}
}

// ReleaseTrial returns a half-open circuit to open without judging provider
// health, for trial calls that ended before reaching the provider (for
// example a missing-credentials error). The elapsed cool-down is preserved,
// so the next call is admitted as a fresh trial.
func (s *BreakerSet) ReleaseTrial(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(provider)
	if b.state == registrydom.BreakerHalfOpen {
		b.state = registrydom.BreakerOpen
	}
}

// State returns the provider's current circuit state.
func (s *BreakerSet) State(provider string) registrydom.BreakerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(provider).state
}
