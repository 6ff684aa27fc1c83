// internal/registry/provider_state.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	registrydom "fleetcheck-service/internal/domain/registry"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
)

// StateTransportConfig carries credentials for the fallback state-transport
// registry.
type StateTransportConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// StateTransportAdapter is the fallback provider. Slower and with patchier
// data than the national registry, but independent infrastructure.
type StateTransportAdapter struct {
	cfg    StateTransportConfig
	client *http.Client
}

func NewStateTransportAdapter(cfg StateTransportConfig) *StateTransportAdapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &StateTransportAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *StateTransportAdapter) Name() string {
	return registrydom.ProviderState
}

func (a *StateTransportAdapter) Fetch(ctx context.Context, registrationNo string) (*registrydom.RawRecord, error) {
	if a.cfg.BaseURL == "" || a.cfg.Token == "" {
		return nil, xerrors.Config(fmt.Errorf("state transport credentials not configured"))
	}

	endpoint := fmt.Sprintf("%s/api/rc/%s", a.cfg.BaseURL, url.PathEscape(registrationNo))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.Token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, xerrors.Transient(fmt.Errorf("state transport call failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("registration %s: %w", registrationNo, xerrors.ErrVehicleNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, xerrors.Config(fmt.Errorf("state transport rejected credentials: status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, xerrors.Transient(fmt.Errorf("state transport returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Transient(fmt.Errorf("failed to read state transport response: %w", err))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, xerrors.Transient(fmt.Errorf("failed to decode state transport response: %w", err))
	}

	txnID := stringField(payload, "request_id", "txn_id")
	if txnID == "" {
		txnID = ulid.Make().String()
	}

	return &registrydom.RawRecord{
		Provider:      a.Name(),
		TransactionID: txnID,
		CapturedAt:    time.Now().UTC(),
		Payload:       payload,
	}, nil
}
