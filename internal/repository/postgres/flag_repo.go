// internal/repository/postgres/flag_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	flagdom "fleetcheck-service/internal/domain/flag"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlagRepository struct {
	db        *pgxpool.Pool
	dbWrapper *DB
}

func NewFlagRepository(db *pgxpool.Pool, dbWrapper *DB) *FlagRepository {
	return &FlagRepository{db: db, dbWrapper: dbWrapper}
}

// Append records a flag occurrence. A recurrence of an unresolved flag with
// the same code bumps its occurrence counter instead of inserting a new row;
// resolved rows stay untouched as history, so the persistent-mismatch count
// survives resolution cycles. The bump-or-insert pair runs in one
// transaction; concurrent batch workers may hit the same vehicle.
func (r *FlagRepository) Append(ctx context.Context, f *flagdom.Flag) error {
	tx, err := r.dbWrapper.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	update := `
		UPDATE vehicle_flags
		SET occurrences = occurrences + 1,
		    last_seen_at = $1,
		    reason = $2,
		    declared_value = $3,
		    registry_value = $4
		WHERE vehicle_id = $5 AND code = $6 AND resolved = FALSE
		RETURNING id, first_seen_at, occurrences
	`
	err = tx.QueryRow(ctx, update,
		f.LastSeenAt, f.Reason, f.DeclaredValue, f.RegistryValue,
		f.VehicleID, f.Code,
	).Scan(&f.ID, &f.FirstSeenAt, &f.Occurrences)
	if err == nil {
		return tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to bump flag occurrence: %w", err)
	}

	insert := `
		INSERT INTO vehicle_flags (
			vehicle_id, operator_id, code, severity, reason,
			declared_value, registry_value, first_seen_at, last_seen_at, occurrences
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`
	err = tx.QueryRow(ctx, insert,
		f.VehicleID, f.OperatorID, f.Code, f.Severity, f.Reason,
		f.DeclaredValue, f.RegistryValue, f.FirstSeenAt, f.LastSeenAt, f.Occurrences,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("failed to insert flag: %w", err)
	}
	return tx.Commit(ctx)
}

// FindByID retrieves one flag.
func (r *FlagRepository) FindByID(ctx context.Context, id int64) (*flagdom.Flag, error) {
	query := selectFlag + ` WHERE id = $1`

	f, err := scanFlag(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find flag: %w", err)
	}
	return f, nil
}

// HistoryByVehicle returns the full flag history for a vehicle, newest
// first, resolved rows included.
func (r *FlagRepository) HistoryByVehicle(ctx context.Context, vehicleID int64) ([]flagdom.Flag, error) {
	query := selectFlag + ` WHERE vehicle_id = $1 ORDER BY last_seen_at DESC`
	return r.queryFlags(ctx, query, vehicleID)
}

// ActiveByVehicle is the unresolved projection of the history.
func (r *FlagRepository) ActiveByVehicle(ctx context.Context, vehicleID int64) ([]flagdom.Flag, error) {
	query := selectFlag + ` WHERE vehicle_id = $1 AND resolved = FALSE ORDER BY last_seen_at DESC`
	return r.queryFlags(ctx, query, vehicleID)
}

// Resolve marks a flag resolved by an administrator. The row is kept.
func (r *FlagRepository) Resolve(ctx context.Context, id int64, resolvedBy string) error {
	query := `
		UPDATE vehicle_flags
		SET resolved = TRUE, resolved_by = $1, resolved_at = $2
		WHERE id = $3 AND resolved = FALSE
	`
	tag, err := r.db.Exec(ctx, query, resolvedBy, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

const selectFlag = `
	SELECT id, vehicle_id, operator_id, code, severity, reason,
	       declared_value, registry_value, first_seen_at, last_seen_at,
	       occurrences, resolved, resolved_by, resolved_at
	FROM vehicle_flags
`

func scanFlag(row pgx.Row) (*flagdom.Flag, error) {
	var f flagdom.Flag
	err := row.Scan(
		&f.ID, &f.VehicleID, &f.OperatorID, &f.Code, &f.Severity, &f.Reason,
		&f.DeclaredValue, &f.RegistryValue, &f.FirstSeenAt, &f.LastSeenAt,
		&f.Occurrences, &f.Resolved, &f.ResolvedBy, &f.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FlagRepository) queryFlags(ctx context.Context, query string, args ...interface{}) ([]flagdom.Flag, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flags: %w", err)
	}
	defer rows.Close()

	var out []flagdom.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}
