// internal/registry/provider.go
package registry

import (
	"context"

	registrydom "fleetcheck-service/internal/domain/registry"
)

// Adapter fetches one raw registry record for a registration number.
// Adapters never retry internally; retry and failover belong to the Client.
// Failures must be distinguishable as configuration (not retryable) or
// transient (retryable) via the xerrors kind helpers.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, registrationNo string) (*registrydom.RawRecord, error)
}
