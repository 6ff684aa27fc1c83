// internal/repository/postgres/helpers.go
package postgres

import (
	"database/sql"
	"time"
)

// nullableTime maps the zero time (registry left the field blank) to NULL.
func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
