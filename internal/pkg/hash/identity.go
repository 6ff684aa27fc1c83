// internal/pkg/hash/identity.go
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	xerrors "fleetcheck-service/internal/pkg/errors"
)

// Identity produces a one-way digest of a chassis or engine number so that
// duplicate detection and storage never need the plaintext twice. Input is
// trimmed and upper-cased first; providers disagree on formatting and that
// must not defeat equality.
func Identity(value string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "" {
		return "", fmt.Errorf("cannot hash empty identifier: %w", xerrors.ErrInvalidInput)
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:]), nil
}
