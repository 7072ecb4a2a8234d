package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"findash/internal/user"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         BIGSERIAL PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	plan       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	renews_on  TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "create users")
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (username, plan, active, renews_on, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`

	err := r.db.QueryRowContext(ctx, query, u.Username, u.Plan, u.Active, u.RenewsOn, u.CreatedAt).Scan(&u.ID)
	return errors.Wrap(err, "insert user")
}

func (r *PostgresUserRepository) get(ctx context.Context, where string, arg interface{}) (*user.User, error) {
	u := &user.User{}
	query := `SELECT id, username, plan, active, renews_on, created_at FROM users WHERE ` + where

	err := r.db.GetContext(ctx, u, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.get(ctx, "username = $1", username)
}

func (r *PostgresUserRepository) List(ctx context.Context, limit int) ([]user.User, error) {
	query := `
		SELECT id, username, plan, active, renews_on, created_at FROM (
			SELECT id, username, plan, active, renews_on, created_at
			FROM users ORDER BY id DESC LIMIT $1
		) recent ORDER BY id
	`
	var users []user.User
	if err := r.db.SelectContext(ctx, &users, query, limit); err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	return users, nil
}

func (r *PostgresUserRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users`)
	return errors.Wrap(err, "clear users")
}
