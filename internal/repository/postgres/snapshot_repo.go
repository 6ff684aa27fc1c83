// internal/repository/postgres/snapshot_repo.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fleetcheck-service/internal/domain/vehicle"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SnapshotRepository struct {
	db *pgxpool.Pool
}

func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert stores a snapshot keyed by (registration, provider, transaction id)
// so a retried fetch never creates a duplicate row.
func (r *SnapshotRepository) Upsert(ctx context.Context, s *vehicle.Snapshot) error {
	query := `
		INSERT INTO vehicle_snapshots (
			registration_no, state_code, manufacturer, model, model_code,
			gross_weight_kg, unladen_weight_kg, wheelbase_mm,
			body_type_code, body_type_name, category, emission_norms,
			permit_type, permit_expiry, fitness_expiry, insurance_expiry, pollution_expiry,
			registration_status, chassis_no, engine_no,
			provider, provider_txn_id, captured_at, raw_payload
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		ON CONFLICT (registration_no, provider, provider_txn_id) DO UPDATE SET
			captured_at = EXCLUDED.captured_at,
			raw_payload = EXCLUDED.raw_payload
		RETURNING id
	`

	var rawJSON []byte
	var err error
	if s.RawPayload != nil {
		rawJSON, err = json.Marshal(s.RawPayload)
		if err != nil {
			return fmt.Errorf("failed to marshal raw payload: %w", err)
		}
	}

	err = r.db.QueryRow(ctx, query,
		s.RegistrationNo, s.StateCode, s.Manufacturer, s.Model, s.ModelCode,
		s.GrossWeightKG, s.UnladenWeightKG, s.WheelbaseMM,
		s.BodyTypeCode, s.BodyTypeName, s.Category, s.EmissionNorms,
		s.PermitType, nullableTime(s.PermitExpiry), nullableTime(s.FitnessExpiry),
		nullableTime(s.InsuranceExpiry), nullableTime(s.PollutionExpiry),
		s.RegistrationStatus, s.ChassisNo, s.EngineNo,
		s.Provider, s.ProviderTxnID, s.CapturedAt, rawJSON,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// FindLatestByRegistration returns the most recent snapshot for a
// registration from any provider.
func (r *SnapshotRepository) FindLatestByRegistration(ctx context.Context, registrationNo string) (*vehicle.Snapshot, error) {
	query := selectSnapshot + `
		WHERE registration_no = $1
		ORDER BY captured_at DESC
		LIMIT 1
	`
	return r.scanOne(ctx, query, registrationNo)
}

// FindLatestOtherProvider returns the most recent snapshot for the
// registration captured by any provider other than the given one, for
// provider-disagreement detection.
func (r *SnapshotRepository) FindLatestOtherProvider(ctx context.Context, registrationNo, provider string) (*vehicle.Snapshot, error) {
	query := selectSnapshot + `
		WHERE registration_no = $1 AND provider <> $2
		ORDER BY captured_at DESC
		LIMIT 1
	`
	snap, err := r.scanOne(ctx, query, registrationNo, provider)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	return snap, err
}

const selectSnapshot = `
	SELECT id, registration_no, state_code, manufacturer, model, model_code,
	       gross_weight_kg, unladen_weight_kg, wheelbase_mm,
	       body_type_code, body_type_name, category, emission_norms,
	       permit_type, permit_expiry, fitness_expiry, insurance_expiry, pollution_expiry,
	       registration_status, chassis_no, engine_no,
	       provider, provider_txn_id, captured_at, raw_payload
	FROM vehicle_snapshots
`

func (r *SnapshotRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*vehicle.Snapshot, error) {
	var s vehicle.Snapshot
	var rawJSON []byte
	var permitExpiry, fitnessExpiry, insuranceExpiry, pollutionExpiry sql.NullTime

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&s.ID, &s.RegistrationNo, &s.StateCode, &s.Manufacturer, &s.Model, &s.ModelCode,
		&s.GrossWeightKG, &s.UnladenWeightKG, &s.WheelbaseMM,
		&s.BodyTypeCode, &s.BodyTypeName, &s.Category, &s.EmissionNorms,
		&s.PermitType, &permitExpiry, &fitnessExpiry, &insuranceExpiry, &pollutionExpiry,
		&s.RegistrationStatus, &s.ChassisNo, &s.EngineNo,
		&s.Provider, &s.ProviderTxnID, &s.CapturedAt, &rawJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshot: %w", err)
	}

	s.PermitExpiry = permitExpiry.Time
	s.FitnessExpiry = fitnessExpiry.Time
	s.InsuranceExpiry = insuranceExpiry.Time
	s.PollutionExpiry = pollutionExpiry.Time

	if len(rawJSON) > 0 {
		json.Unmarshal(rawJSON, &s.RawPayload)
	}
	return &s, nil
}
