// internal/repository/postgres/compliance_cache_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	compliancedom "fleetcheck-service/internal/domain/compliance"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type ComplianceCacheRepository struct {
	db *pgxpool.Pool
}

func NewComplianceCacheRepository(db *pgxpool.Pool) *ComplianceCacheRepository {
	return &ComplianceCacheRepository{db: db}
}

// Upsert writes the latest decision for a (registration, operator) pair.
// The previous entry is superseded in place; decisions themselves live in
// the audit log, so no history is lost.
func (r *ComplianceCacheRepository) Upsert(ctx context.Context, e *compliancedom.CacheEntry) error {
	query := `
		INSERT INTO compliance_cache (
			registration_no, operator_id, vehicle_id, allowed, reasons, rules_applied,
			permit_status, fitness_status, insurance_status, pollution_status,
			category_status, duplicate_status, telemetry_status, classification_status,
			chassis_hash, engine_hash, provider, inference_confidence,
			last_verified_at, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (registration_no, operator_id) DO UPDATE SET
			vehicle_id = EXCLUDED.vehicle_id,
			allowed = EXCLUDED.allowed,
			reasons = EXCLUDED.reasons,
			rules_applied = EXCLUDED.rules_applied,
			permit_status = EXCLUDED.permit_status,
			fitness_status = EXCLUDED.fitness_status,
			insurance_status = EXCLUDED.insurance_status,
			pollution_status = EXCLUDED.pollution_status,
			category_status = EXCLUDED.category_status,
			duplicate_status = EXCLUDED.duplicate_status,
			telemetry_status = EXCLUDED.telemetry_status,
			classification_status = EXCLUDED.classification_status,
			chassis_hash = EXCLUDED.chassis_hash,
			engine_hash = EXCLUDED.engine_hash,
			provider = EXCLUDED.provider,
			inference_confidence = EXCLUDED.inference_confidence,
			last_verified_at = EXCLUDED.last_verified_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		e.RegistrationNo, e.OperatorID, e.VehicleID, e.Allowed,
		pq.Array(e.Reasons), pq.Array(e.RulesApplied),
		e.PermitStatus, e.FitnessStatus, e.InsuranceStatus, e.PollutionStatus,
		e.CategoryStatus, e.DuplicateStatus, e.TelemetryStatus, e.ClassificationStatus,
		nullableString(e.ChassisHash), nullableString(e.EngineHash),
		e.Provider, e.InferenceConfidence,
		e.LastVerifiedAt, e.ExpiresAt,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert compliance cache entry: %w", err)
	}
	return nil
}

// FindByKey retrieves the entry for one (registration, operator) pair.
func (r *ComplianceCacheRepository) FindByKey(ctx context.Context, registrationNo string, operatorID int64) (*compliancedom.CacheEntry, error) {
	query := selectCacheEntry + ` WHERE registration_no = $1 AND operator_id = $2`

	row := r.db.QueryRow(ctx, query, registrationNo, operatorID)
	entry, err := scanCacheEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find compliance cache entry: %w", err)
	}
	return entry, nil
}

// FindByIdentityHash returns every cache entry whose chassis or engine hash
// matches. The duplicate universe is global and has no expiry cut-off.
func (r *ComplianceCacheRepository) FindByIdentityHash(ctx context.Context, identityHash string) ([]compliancedom.CacheEntry, error) {
	query := selectCacheEntry + ` WHERE chassis_hash = $1 OR engine_hash = $1`

	rows, err := r.db.Query(ctx, query, identityHash)
	if err != nil {
		return nil, fmt.Errorf("failed to search identity hashes: %w", err)
	}
	defer rows.Close()

	var out []compliancedom.CacheEntry
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

const selectCacheEntry = `
	SELECT id, registration_no, operator_id, vehicle_id, allowed, reasons, rules_applied,
	       permit_status, fitness_status, insurance_status, pollution_status,
	       category_status, duplicate_status, telemetry_status, classification_status,
	       chassis_hash, engine_hash, provider, inference_confidence,
	       last_verified_at, expires_at, created_at, updated_at
	FROM compliance_cache
`

func scanCacheEntry(row pgx.Row) (*compliancedom.CacheEntry, error) {
	var e compliancedom.CacheEntry
	var reasons, rules []string
	var chassisHash, engineHash sql.NullString

	err := row.Scan(
		&e.ID, &e.RegistrationNo, &e.OperatorID, &e.VehicleID, &e.Allowed,
		pq.Array(&reasons), pq.Array(&rules),
		&e.PermitStatus, &e.FitnessStatus, &e.InsuranceStatus, &e.PollutionStatus,
		&e.CategoryStatus, &e.DuplicateStatus, &e.TelemetryStatus, &e.ClassificationStatus,
		&chassisHash, &engineHash, &e.Provider, &e.InferenceConfidence,
		&e.LastVerifiedAt, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Reasons = reasons
	e.RulesApplied = rules
	e.ChassisHash = chassisHash.String
	e.EngineHash = engineHash.String
	return &e, nil
}
