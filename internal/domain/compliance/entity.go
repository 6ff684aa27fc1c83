// internal/domain/compliance/entity.go
package compliance

import "time"

// CheckStatus is the tri-state outcome of one compliance sub-check. Blank
// registry fields skip the check rather than passing it silently, so the
// blank-is-acceptable policy stays visible per field.
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckFail    CheckStatus = "fail"
	CheckSkipped CheckStatus = "skipped"
)

// ReasonCode names a block condition independently of its human-readable
// wording, so escalation logic matches on codes instead of parsing text.
type ReasonCode string

const (
	ReasonCodeDuplicateIdentity       ReasonCode = "duplicate_identity"
	ReasonCodeBlockedBodyType         ReasonCode = "blocked_body_type"
	ReasonCodeEmissionNotAccepted     ReasonCode = "emission_not_accepted"
	ReasonCodeLengthExceedsClassMax   ReasonCode = "length_exceeds_class_max"
	ReasonCodeWeightOutsideClassRange ReasonCode = "weight_outside_class_range"
)

// Decision is one allow/block verdict for a vehicle under an operator.
// Immutable once written; the next decision for the same pair supersedes it.
type Decision struct {
	RegistrationNo string       `json:"registration_no"`
	OperatorID     int64        `json:"operator_id"`
	Allowed        bool         `json:"allowed"`
	Reasons        []string     `json:"reasons"`
	ReasonCodes    []ReasonCode `json:"reason_codes,omitempty"`
	RulesApplied   []string     `json:"rules_applied"`

	Provider            string    `json:"provider"`
	InferenceConfidence float64   `json:"inference_confidence"`
	LastVerifiedAt      time.Time `json:"last_verified_at"`
	DecidedAt           time.Time `json:"decided_at"`
}

// CacheEntry is the persisted decision plus per-check status fields, keyed by
// (registration, operator). An entry past ExpiresAt, or one that never
// existed, makes the vehicle a candidate for the next batch run.
type CacheEntry struct {
	ID             int64  `json:"id" db:"id"`
	RegistrationNo string `json:"registration_no" db:"registration_no"`
	OperatorID     int64  `json:"operator_id" db:"operator_id"`
	VehicleID      int64  `json:"vehicle_id" db:"vehicle_id"`

	Allowed      bool     `json:"allowed" db:"allowed"`
	Reasons      []string `json:"reasons" db:"reasons"`
	RulesApplied []string `json:"rules_applied" db:"rules_applied"`

	PermitStatus         CheckStatus `json:"permit_status" db:"permit_status"`
	FitnessStatus        CheckStatus `json:"fitness_status" db:"fitness_status"`
	InsuranceStatus      CheckStatus `json:"insurance_status" db:"insurance_status"`
	PollutionStatus      CheckStatus `json:"pollution_status" db:"pollution_status"`
	CategoryStatus       CheckStatus `json:"category_status" db:"category_status"`
	DuplicateStatus      CheckStatus `json:"duplicate_status" db:"duplicate_status"`
	TelemetryStatus      CheckStatus `json:"telemetry_status" db:"telemetry_status"`
	ClassificationStatus CheckStatus `json:"classification_status" db:"classification_status"`

	// One-way digests of the identity numbers, used for duplicate detection
	// without retaining plaintext twice.
	ChassisHash string `json:"-" db:"chassis_hash"`
	EngineHash  string `json:"-" db:"engine_hash"`

	Provider            string  `json:"provider" db:"provider"`
	InferenceConfidence float64 `json:"inference_confidence" db:"inference_confidence"`

	LastVerifiedAt time.Time `json:"last_verified_at" db:"last_verified_at"`
	ExpiresAt      time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the entry no longer satisfies compliance and the
// vehicle needs re-verification.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Statuses returns the per-check statuses keyed by check name, for audit
// evidence and API responses.
func (e *CacheEntry) Statuses() map[string]CheckStatus {
	return map[string]CheckStatus{
		"permit":         e.PermitStatus,
		"fitness":        e.FitnessStatus,
		"insurance":      e.InsuranceStatus,
		"pollution":      e.PollutionStatus,
		"category":       e.CategoryStatus,
		"duplicate":      e.DuplicateStatus,
		"telemetry":      e.TelemetryStatus,
		"classification": e.ClassificationStatus,
	}
}
