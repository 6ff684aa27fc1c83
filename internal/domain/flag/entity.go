// internal/domain/flag/entity.go
package flag

import (
	"database/sql"
	"time"
)

type Code string

const (
	CodeLengthMismatch      Code = "length_mismatch"
	CodeTyreCountUnusual    Code = "tyre_count_unusual"
	CodePayloadMismatch     Code = "payload_mismatch"
	CodeRegistryDiscrepancy Code = "registry_discrepancy"
	CodeBlockedBodyType     Code = "blocked_body_type"
	CodePhotoCheckRequired  Code = "requires_manual_photo_check"
	CodePhotoCheckFailed    Code = "photo_verification_failed"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Flag is one typed discrepancy attached to a vehicle. Flags accumulate as
// history; a flag stays active until an administrator resolves it.
type Flag struct {
	ID         int64    `json:"id" db:"id"`
	VehicleID  int64    `json:"vehicle_id" db:"vehicle_id"`
	OperatorID int64    `json:"operator_id" db:"operator_id"`
	Code       Code     `json:"code" db:"code"`
	Severity   Severity `json:"severity" db:"severity"`
	Reason     string   `json:"reason" db:"reason"`

	// Side-by-side values when the flag came from a declared-vs-registry
	// comparison.
	DeclaredValue sql.NullString `json:"declared_value,omitempty" db:"declared_value"`
	RegistryValue sql.NullString `json:"registry_value,omitempty" db:"registry_value"`

	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" db:"last_seen_at"`
	Occurrences int       `json:"occurrences" db:"occurrences"`

	Resolved   bool           `json:"resolved" db:"resolved"`
	ResolvedBy sql.NullString `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt sql.NullTime   `json:"resolved_at,omitempty" db:"resolved_at"`
}

// PersistentThreshold is how many unresolved recurrences of one code mark a
// systemic problem rather than a one-off.
const PersistentThreshold = 3
