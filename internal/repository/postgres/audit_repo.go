// internal/repository/postgres/audit_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	auditdom "fleetcheck-service/internal/domain/audit"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one audit entry. There is deliberately no update or delete
// on this table.
func (r *AuditRepository) Insert(ctx context.Context, e *auditdom.Entry) error {
	query := `
		INSERT INTO audit_log (id, registration_no, operator_id, type, actor, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`

	var detailsJSON []byte
	var err error
	if e.Details != nil {
		detailsJSON, err = json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, query,
		e.ID, e.RegistrationNo, e.OperatorID, e.Type, e.Actor, detailsJSON, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListByRegistration returns the newest entries for one registration.
func (r *AuditRepository) ListByRegistration(ctx context.Context, registrationNo string, limit int) ([]auditdom.Entry, error) {
	query := `
		SELECT id, registration_no, operator_id, type, actor, details, created_at
		FROM audit_log
		WHERE registration_no = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, registrationNo, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []auditdom.Entry
	for rows.Next() {
		var e auditdom.Entry
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.RegistrationNo, &e.OperatorID, &e.Type, &e.Actor, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(detailsJSON) > 0 {
			json.Unmarshal(detailsJSON, &e.Details)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
