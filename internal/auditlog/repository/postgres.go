package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"findash/internal/auditlog"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id         BIGINT PRIMARY KEY,
	category   TEXT NOT NULL,
	message    TEXT NOT NULL,
	details    JSONB,
	created_at TIMESTAMPTZ NOT NULL
)`

type PostgresRepo struct {
	DB *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return errors.Wrap(err, "create audit_logs")
}

type entryRow struct {
	ID        int64          `db:"id"`
	Category  string         `db:"category"`
	Message   string         `db:"message"`
	Details   sql.NullString `db:"details"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *PostgresRepo) Load(ctx context.Context, limit int) ([]auditlog.Entry, error) {
	query := `
		SELECT id, category, message, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	if limit <= 0 {
		limit = 1000
	}

	var rows []entryRow
	if err := r.DB.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errors.Wrap(err, "select audit_logs")
	}

	entries := make([]auditlog.Entry, 0, len(rows))
	for _, row := range rows {
		e := auditlog.Entry{
			ID:        row.ID,
			Category:  auditlog.Category(row.Category),
			Message:   row.Message,
			Timestamp: row.CreatedAt,
		}
		if row.Details.Valid && row.Details.String != "" {
			if err := json.Unmarshal([]byte(row.Details.String), &e.Details); err != nil {
				return nil, errors.Wrapf(err, "decode details of entry %d", row.ID)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *PostgresRepo) Save(ctx context.Context, e auditlog.Entry) error {
	var details sql.NullString
	if len(e.Details) > 0 {
		buf, err := json.Marshal(e.Details)
		if err != nil {
			return errors.Wrap(err, "encode details")
		}
		details = sql.NullString{String: string(buf), Valid: true}
	}

	query := `INSERT INTO audit_logs (id, category, message, details, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.DB.ExecContext(ctx, query, e.ID, string(e.Category), e.Message, details, e.Timestamp)
	return errors.Wrap(err, "insert audit_logs")
}

func (r *PostgresRepo) Prune(ctx context.Context, keep int) error {
	query := `
		DELETE FROM audit_logs
		WHERE id NOT IN (
			SELECT id FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT $1
		)
	`
	_, err := r.DB.ExecContext(ctx, query, keep)
	return errors.Wrap(err, "prune audit_logs")
}

func (r *PostgresRepo) Clear(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM audit_logs`)
	return errors.Wrap(err, "clear audit_logs")
}
