// internal/repository/postgres/ticket_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	ticketdom "fleetcheck-service/internal/domain/ticket"
	xerrors "fleetcheck-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepository struct {
	db *pgxpool.Pool
}

func NewTicketRepository(db *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db}
}

// Insert stores a new ticket.
func (r *TicketRepository) Insert(ctx context.Context, t *ticketdom.Ticket) error {
	query := `
		INSERT INTO tickets (
			id, vehicle_id, operator_id, registration_no, reason, severity,
			status, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`

	var notesJSON []byte
	var err error
	if t.Notes != nil {
		notesJSON, err = json.Marshal(t.Notes)
		if err != nil {
			return fmt.Errorf("failed to marshal ticket notes: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, query,
		t.ID, t.VehicleID, t.OperatorID, t.RegistrationNo, t.Reason, t.Severity,
		t.Status, notesJSON, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}
	return nil
}

// FindByID retrieves one ticket.
func (r *TicketRepository) FindByID(ctx context.Context, id string) (*ticketdom.Ticket, error) {
	query := selectTicket + ` WHERE id = $1`

	t, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	return t, nil
}

// FindOpenByVehicleAndReason returns the newest open or in-progress ticket
// for the same vehicle and reason, the Open dedup safeguard.
func (r *TicketRepository) FindOpenByVehicleAndReason(ctx context.Context, vehicleID int64, reason ticketdom.ReasonCode) (*ticketdom.Ticket, error) {
	query := selectTicket + `
		WHERE vehicle_id = $1 AND reason = $2 AND status IN ('open', 'in_progress')
		ORDER BY created_at DESC
		LIMIT 1
	`
	t, err := scanTicket(r.db.QueryRow(ctx, query, vehicleID, reason))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open ticket: %w", err)
	}
	return t, nil
}

// UpdateStatus applies a status transition.
func (r *TicketRepository) UpdateStatus(ctx context.Context, id string, status ticketdom.Status, resolvedBy string, resolvedAt *time.Time) error {
	query := `
		UPDATE tickets
		SET status = $1, resolved_by = $2, resolved_at = $3, updated_at = $4
		WHERE id = $5
	`
	tag, err := r.db.Exec(ctx, query,
		status, nullableString(resolvedBy), resolvedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// List returns tickets matching the filters with a total count.
func (r *TicketRepository) List(ctx context.Context, filters *ticketdom.ListFilters) ([]ticketdom.Ticket, int64, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Status != "" {
		conds = append(conds, "status = "+arg(filters.Status))
	}
	if filters.Reason != "" {
		conds = append(conds, "reason = "+arg(filters.Reason))
	}
	if filters.RegistrationNo != "" {
		conds = append(conds, "registration_no = "+arg(filters.RegistrationNo))
	}
	if filters.OperatorID > 0 {
		conds = append(conds, "operator_id = "+arg(filters.OperatorID))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM tickets"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	query := selectTicket + where + fmt.Sprintf(
		" ORDER BY created_at DESC LIMIT %s OFFSET %s",
		arg(filters.PageSize), arg((filters.Page-1)*filters.PageSize),
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var out []ticketdom.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan ticket: %w", err)
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

const selectTicket = `
	SELECT id, vehicle_id, operator_id, registration_no, reason, severity,
	       status, notes, created_at, updated_at, resolved_at, resolved_by
	FROM tickets
`

func scanTicket(row pgx.Row) (*ticketdom.Ticket, error) {
	var t ticketdom.Ticket
	var notesJSON []byte

	err := row.Scan(
		&t.ID, &t.VehicleID, &t.OperatorID, &t.RegistrationNo, &t.Reason, &t.Severity,
		&t.Status, &notesJSON, &t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt, &t.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	if len(notesJSON) > 0 {
		json.Unmarshal(notesJSON, &t.Notes)
	}
	return &t, nil
}
