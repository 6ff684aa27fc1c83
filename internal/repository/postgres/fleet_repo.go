// internal/repository/postgres/fleet_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetcheck-service/internal/domain/vehicle"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FleetRepository struct {
	db *pgxpool.Pool
}

func NewFleetRepository(db *pgxpool.Pool) *FleetRepository {
	return &FleetRepository{db: db}
}

// FindByRegistrationAndOperator loads one declared truck.
func (r *FleetRepository) FindByRegistrationAndOperator(ctx context.Context, registrationNo string, operatorID int64) (*vehicle.DeclaredTruck, error) {
	query := selectTruck + ` WHERE registration_no = $1 AND operator_id = $2`

	t, err := scanTruck(r.db.QueryRow(ctx, query, registrationNo, operatorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find declared truck: %w", err)
	}
	return t, nil
}

// FindByRegistration loads the declared truck for a registration regardless
// of operator, newest declaration first.
func (r *FleetRepository) FindByRegistration(ctx context.Context, registrationNo string) (*vehicle.DeclaredTruck, error) {
	query := selectTruck + ` WHERE registration_no = $1 ORDER BY updated_at DESC LIMIT 1`

	t, err := scanTruck(r.db.QueryRow(ctx, query, registrationNo))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find declared truck: %w", err)
	}
	return t, nil
}

// CountOtherActiveTrucks answers the operator fleet-size limit check. The
// vehicle being decided is excluded so the limit gates new activations, not
// re-verification of trucks already in the fleet.
func (r *FleetRepository) CountOtherActiveTrucks(ctx context.Context, operatorID int64, excludeRegistrationNo string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM operator_trucks
		 WHERE operator_id = $1 AND is_active = TRUE AND registration_no <> $2`,
		operatorID, excludeRegistrationNo,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active trucks: %w", err)
	}
	return count, nil
}

// SelectNeedingVerification picks batch candidates: trucks with no cache
// entry, an expired one, or one older than the staleness window,
// oldest-verified-first.
func (r *FleetRepository) SelectNeedingVerification(ctx context.Context, staleness time.Duration, limit int) ([]vehicle.DeclaredTruck, error) {
	query := `
		SELECT t.vehicle_id, t.operator_id, t.registration_no,
		       t.tyre_count, t.body_length_ft, t.body_type, t.payload_capacity_kg,
		       t.is_trailer, t.linked_tractor_no, t.is_active, t.gps_last_ping_at,
		       t.created_at, t.updated_at
		FROM operator_trucks t
		LEFT JOIN compliance_cache c
		  ON c.registration_no = t.registration_no AND c.operator_id = t.operator_id
		WHERE c.id IS NULL
		   OR c.expires_at <= NOW()
		   OR c.last_verified_at <= NOW() - $1::interval
		ORDER BY c.last_verified_at ASC NULLS FIRST
		LIMIT $2
	`

	interval := fmt.Sprintf("%d seconds", int(staleness.Seconds()))
	rows, err := r.db.Query(ctx, query, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select verification candidates: %w", err)
	}
	defer rows.Close()

	var out []vehicle.DeclaredTruck
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan declared truck: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

const selectTruck = `
	SELECT vehicle_id, operator_id, registration_no,
	       tyre_count, body_length_ft, body_type, payload_capacity_kg,
	       is_trailer, linked_tractor_no, is_active, gps_last_ping_at,
	       created_at, updated_at
	FROM operator_trucks
`

func scanTruck(row pgx.Row) (*vehicle.DeclaredTruck, error) {
	var t vehicle.DeclaredTruck
	err := row.Scan(
		&t.VehicleID, &t.OperatorID, &t.RegistrationNo,
		&t.TyreCount, &t.BodyLengthFt, &t.BodyType, &t.PayloadCapacityKG,
		&t.IsTrailer, &t.LinkedTractorNo, &t.IsActive, &t.GPSLastPingAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
