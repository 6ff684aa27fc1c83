// internal/domain/registry/entity.go
package registry

import "time"

// Provider identifiers. Adapters tag every raw record with one of these so
// the normalizer knows which synonym set to apply.
const (
	ProviderNational = "national_registry"
	ProviderState    = "state_transport"
)

// RawRecord is a provider's response before normalization. The payload is
// opaque outside the normalizer; untyped provider data must not leak past
// that boundary.
type RawRecord struct {
	Provider      string                 `json:"provider"`
	TransactionID string                 `json:"transaction_id"`
	CapturedAt    time.Time              `json:"captured_at"`
	Payload       map[string]interface{} `json:"payload"`
}

// BreakerState is the three-state circuit machine kept per provider.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// ProviderAttempt records, for the aggregate all-providers-failed error, what
// happened with one provider during a verify call.
type ProviderAttempt struct {
	Provider string `json:"provider"`
	Skipped  bool   `json:"skipped"`
	Reason   string `json:"reason"`
}
