// internal/registry/provider_national.go
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	registrydom "fleetcheck-service/internal/domain/registry"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
)

// NationalRegistryConfig carries credentials and transport settings for the
// primary (national) vehicle registry.
type NationalRegistryConfig struct {
	BaseURL  string
	APIKey   string
	ClientID string
	Timeout  time.Duration
}

// NationalRegistryAdapter is the primary provider. It POSTs a lookup request
// and returns the registry's raw JSON payload untouched.
type NationalRegistryAdapter struct {
	cfg    NationalRegistryConfig
	client *http.Client
}

func NewNationalRegistryAdapter(cfg NationalRegistryConfig) *NationalRegistryAdapter {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &NationalRegistryAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *NationalRegistryAdapter) Name() string {
	return registrydom.ProviderNational
}

func (a *NationalRegistryAdapter) Fetch(ctx context.Context, registrationNo string) (*registrydom.RawRecord, error) {
	if a.cfg.BaseURL == "" || a.cfg.APIKey == "" || a.cfg.ClientID == "" {
		return nil, xerrors.Config(fmt.Errorf("national registry credentials not configured"))
	}

	body, err := json.Marshal(map[string]string{
		"reg_no":    registrationNo,
		"client_id": a.cfg.ClientID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v2/vehicles/lookup", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, xerrors.Transient(fmt.Errorf("national registry call failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("registration %s: %w", registrationNo, xerrors.ErrVehicleNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, xerrors.Config(fmt.Errorf("national registry rejected credentials: status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, xerrors.Transient(fmt.Errorf("national registry returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Transient(fmt.Errorf("failed to read national registry response: %w", err))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, xerrors.Transient(fmt.Errorf("failed to decode national registry response: %w", err))
	}

	txnID := stringField(payload, "txn_id", "transaction_id")
	if txnID == "" {
		// Registry omits the id on some responses; synthesize one so snapshot
		// upserts stay keyed.
		txnID = ulid.Make().String()
	}

	return &registrydom.RawRecord{
		Provider:      a.Name(),
		TransactionID: txnID,
		CapturedAt:    time.Now().UTC(),
		Payload:       payload,
	}, nil
}

func stringField(payload map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
