// internal/domain/ticket/entity.go
package ticket

import (
	"database/sql"
	"time"

	"fleetcheck-service/internal/domain/flag"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

type ReasonCode string

const (
	ReasonDuplicateIdentity     ReasonCode = "duplicate_identity"
	ReasonInvalidLengthForClass ReasonCode = "invalid_length_for_class"
	ReasonProviderMismatch      ReasonCode = "provider_mismatch"
	ReasonPersistentMismatch    ReasonCode = "persistent_mismatch"
	ReasonRegistryDiscrepancy   ReasonCode = "registry_discrepancy"
	ReasonPhotoCheckFailed      ReasonCode = "photo_verification_failed"
)

// Ticket is a human-actionable escalation record. Transitions are
// administrator-driven; a ticket never auto-closes.
type Ticket struct {
	ID             string        `json:"id" db:"id"`
	VehicleID      int64         `json:"vehicle_id" db:"vehicle_id"`
	OperatorID     int64         `json:"operator_id" db:"operator_id"`
	RegistrationNo string        `json:"registration_no" db:"registration_no"`
	Reason         ReasonCode    `json:"reason" db:"reason"`
	Severity       flag.Severity `json:"severity" db:"severity"`
	Status         Status        `json:"status" db:"status"`

	// Structured context for the reviewer, including snapshots of the
	// conflicting data that triggered the escalation.
	Notes map[string]interface{} `json:"notes,omitempty" db:"notes"`

	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
	ResolvedAt sql.NullTime   `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy sql.NullString `json:"resolved_by,omitempty" db:"resolved_by"`
}

// ValidTransition reports whether an administrator may move a ticket from
// one status to another.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusOpen:
		return to == StatusInProgress || to == StatusResolved || to == StatusClosed
	case StatusInProgress:
		return to == StatusResolved || to == StatusClosed
	case StatusResolved:
		return to == StatusClosed
	default:
		return false
	}
}

// ListFilters narrows ticket listings.
type ListFilters struct {
	Status         Status     `form:"status"`
	Reason         ReasonCode `form:"reason"`
	RegistrationNo string     `form:"registration_no"`
	OperatorID     int64      `form:"operator_id"`
	Page           int        `form:"page"`
	PageSize       int        `form:"page_size"`
}
