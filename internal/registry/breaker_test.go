package registry

import (
	"testing"
	"time"

	registrydom "fleetcheck-service/internal/domain/registry"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	set := NewBreakerSet(3, time.Minute)

	for i := 0; i < 2; i++ {
		set.RecordFailure("national_registry")
		assert.Equal(t, registrydom.BreakerClosed, set.State("national_registry"))
		assert.True(t, set.Allow("national_registry"))
	}

	set.RecordFailure("national_registry")
	assert.Equal(t, registrydom.BreakerOpen, set.State("national_registry"))
	assert.False(t, set.Allow("national_registry"))
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	set := NewBreakerSet(3, time.Minute)

	set.RecordFailure("state_transport")
	set.RecordFailure("state_transport")
	set.RecordSuccess("state_transport")
	set.RecordFailure("state_transport")
	set.RecordFailure("state_transport")

	assert.Equal(t, registrydom.BreakerClosed, set.State("state_transport"))
	assert.True(t, set.Allow("state_transport"))
}

func TestBreakerHalfOpenAdmitsSingleTrial(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	set := NewBreakerSet(2, 30*time.Second)
	set.now = func() time.Time { return now }

	set.RecordFailure("national_registry")
	set.RecordFailure("national_registry")
	assert.Equal(t, registrydom.BreakerOpen, set.State("national_registry"))
	assert.False(t, set.Allow("national_registry"))

	// Cool-down elapses: exactly one trial call gets through.
	now = now.Add(31 * time.Second)
	assert.True(t, set.Allow("national_registry"))
	assert.Equal(t, registrydom.BreakerHalfOpen, set.State("national_registry"))
	assert.False(t, set.Allow("national_registry"))
}

func TestBreakerHalfOpenTrialOutcome(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("trial success closes the circuit", func(t *testing.T) {
		set := NewBreakerSet(2, 30*time.Second)
		set.now = func() time.Time { return now }
		set.RecordFailure("p")
		set.RecordFailure("p")

		set.now = func() time.Time { return now.Add(time.Minute) }
		assert.True(t, set.Allow("p"))
		set.RecordSuccess("p")
		assert.Equal(t, registrydom.BreakerClosed, set.State("p"))
		assert.True(t, set.Allow("p"))
	})

	t.Run("trial failure reopens the circuit", func(t *testing.T) {
		set := NewBreakerSet(2, 30*time.Second)
		set.now = func() time.Time { return now }
		set.RecordFailure("p")
		set.RecordFailure("p")

		set.now = func() time.Time { return now.Add(time.Minute) }
		assert.True(t, set.Allow("p"))
		set.RecordFailure("p")
		assert.Equal(t, registrydom.BreakerOpen, set.State("p"))
		assert.False(t, set.Allow("p"))
	})
}

func TestBreakerProvidersAreIndependent(t *testing.T) {
	set := NewBreakerSet(1, time.Minute)

	set.RecordFailure("national_registry")
	assert.Equal(t, registrydom.BreakerOpen, set.State("national_registry"))
	assert.Equal(t, registrydom.BreakerClosed, set.State("state_transport"))
	assert.True(t, set.Allow("state_transport"))
}
