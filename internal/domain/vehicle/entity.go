// internal/domain/vehicle/entity.go
package vehicle

import "time"

// Snapshot is the canonical, provider-agnostic record of a vehicle's registry
// attributes at one point in time. Blank/unknown fields hold their zero value;
// a zero time means the registry did not populate the date.
type Snapshot struct {
	ID             int64  `json:"id" db:"id"`
	RegistrationNo string `json:"registration_no" db:"registration_no"`
	StateCode      string `json:"state_code" db:"state_code"`

	Manufacturer string `json:"manufacturer" db:"manufacturer"`
	Model        string `json:"model" db:"model"`
	ModelCode    string `json:"model_code" db:"model_code"`

	GrossWeightKG   float64 `json:"gross_weight_kg" db:"gross_weight_kg"`
	UnladenWeightKG float64 `json:"unladen_weight_kg" db:"unladen_weight_kg"`
	WheelbaseMM     float64 `json:"wheelbase_mm" db:"wheelbase_mm"`

	BodyTypeCode  string `json:"body_type_code" db:"body_type_code"`
	BodyTypeName  string `json:"body_type_name" db:"body_type_name"`
	Category      string `json:"category" db:"category"`
	EmissionNorms string `json:"emission_norms" db:"emission_norms"`

	PermitType   string    `json:"permit_type" db:"permit_type"`
	PermitExpiry time.Time `json:"permit_expiry" db:"permit_expiry"`

	FitnessExpiry   time.Time `json:"fitness_expiry" db:"fitness_expiry"`
	InsuranceExpiry time.Time `json:"insurance_expiry" db:"insurance_expiry"`
	PollutionExpiry time.Time `json:"pollution_expiry" db:"pollution_expiry"`

	RegistrationStatus string `json:"registration_status" db:"registration_status"`

	ChassisNo string `json:"chassis_no" db:"chassis_no"`
	EngineNo  string `json:"engine_no" db:"engine_no"`

	Provider      string    `json:"provider" db:"provider"`
	ProviderTxnID string    `json:"provider_txn_id" db:"provider_txn_id"`
	CapturedAt    time.Time `json:"captured_at" db:"captured_at"`

	// Retained for audit only; nothing downstream of the normalizer reads it.
	RawPayload map[string]interface{} `json:"raw_payload,omitempty" db:"raw_payload"`
}

// DeclaredTruck is what the operator claims about a truck on the platform.
// The flag computer diffs this against the verified Snapshot.
type DeclaredTruck struct {
	VehicleID      int64  `json:"vehicle_id" db:"vehicle_id"`
	OperatorID     int64  `json:"operator_id" db:"operator_id"`
	RegistrationNo string `json:"registration_no" db:"registration_no"`

	TyreCount         int     `json:"tyre_count" db:"tyre_count"`
	BodyLengthFt      float64 `json:"body_length_ft" db:"body_length_ft"`
	BodyType          string  `json:"body_type" db:"body_type"`
	PayloadCapacityKG float64 `json:"payload_capacity_kg" db:"payload_capacity_kg"`

	IsTrailer       bool   `json:"is_trailer" db:"is_trailer"`
	LinkedTractorNo string `json:"linked_tractor_no" db:"linked_tractor_no"`

	IsActive      bool       `json:"is_active" db:"is_active"`
	GPSLastPingAt *time.Time `json:"gps_last_ping_at,omitempty" db:"gps_last_ping_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
