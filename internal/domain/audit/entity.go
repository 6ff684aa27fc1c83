// internal/domain/audit/entity.go
package audit

import "time"

type EventType string

const (
	EventDecision       EventType = "decision"
	EventOverride       EventType = "override"
	EventFlagResolved   EventType = "flag_resolved"
	EventTicketStatus   EventType = "ticket_status"
	EventPhotoReview    EventType = "photo_review"
	EventBatchCompleted EventType = "batch_completed"
)

// ActorSystem identifies engine-initiated entries; overrides carry the
// administrator's identity instead.
const ActorSystem = "system"

// Entry is one append-only audit record. Entries are compliance evidence;
// they are never updated or deleted.
type Entry struct {
	ID             string                 `json:"id" db:"id"`
	RegistrationNo string                 `json:"registration_no" db:"registration_no"`
	OperatorID     int64                  `json:"operator_id" db:"operator_id"`
	Type           EventType              `json:"type" db:"type"`
	Actor          string                 `json:"actor" db:"actor"`
	Details        map[string]interface{} `json:"details,omitempty" db:"details"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
}
