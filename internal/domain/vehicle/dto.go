package vehicle

import "time"

// VerifyResponse is returned by the on-demand verify endpoint.
type VerifyResponse struct {
	RegistrationNo string    `json:"registration_no"`
	Provider       string    `json:"provider"`
	CapturedAt     time.Time `json:"captured_at"`
	Allowed        bool      `json:"allowed"`
	Reasons        []string  `json:"reasons,omitempty"`
	LastVerifiedAt time.Time `json:"last_verified_at"`
}

// SnapshotInfo is a lightweight snapshot view for list/audit responses
// (raw payload and identity numbers withheld).
type SnapshotInfo struct {
	RegistrationNo string    `json:"registration_no"`
	Manufacturer   string    `json:"manufacturer"`
	Model          string    `json:"model"`
	BodyTypeName   string    `json:"body_type_name"`
	Category       string    `json:"category"`
	GrossWeightKG  float64   `json:"gross_weight_kg"`
	Provider       string    `json:"provider"`
	CapturedAt     time.Time `json:"captured_at"`
}

// Info converts a full snapshot into its list view.
func (s *Snapshot) Info() SnapshotInfo {
	return SnapshotInfo{
		RegistrationNo: s.RegistrationNo,
		Manufacturer:   s.Manufacturer,
		Model:          s.Model,
		BodyTypeName:   s.BodyTypeName,
		Category:       s.Category,
		GrossWeightKG:  s.GrossWeightKG,
		Provider:       s.Provider,
		CapturedAt:     s.CapturedAt,
	}
}
