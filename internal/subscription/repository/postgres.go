package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"findash/internal/subscription"
)

const schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	user_id   TEXT NOT NULL,
	id        TEXT NOT NULL,
	plan      TEXT NOT NULL,
	status    TEXT NOT NULL,
	renews_on TIMESTAMPTZ,
	logo      TEXT NOT NULL DEFAULT '',
	price     NUMERIC(12,2) NOT NULL,
	position  INT NOT NULL,
	PRIMARY KEY (user_id, id)
);
CREATE TABLE IF NOT EXISTS subscription_balances (
	user_id TEXT PRIMARY KEY,
	balance NUMERIC(12,2) NOT NULL
)`

type PostgresRepo struct {
	db *sqlx.DB
}

func NewPostgresRepo(db *sqlx.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "create subscription tables")
}

type subRow struct {
	ID       string          `db:"id"`
	Plan     string          `db:"plan"`
	Status   string          `db:"status"`
	RenewsOn sql.NullTime    `db:"renews_on"`
	Logo     string          `db:"logo"`
	Price    decimal.Decimal `db:"price"`
}

// Get returns nil, nil for a user that was never seeded.
func (r *PostgresRepo) Get(ctx context.Context, userID string) (*subscription.Snapshot, error) {
	var balance decimal.Decimal
	err := r.db.QueryRowxContext(ctx,
		`SELECT balance FROM subscription_balances WHERE user_id = $1`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select balance")
	}

	var rows []subRow
	query := `
		SELECT id, plan, status, renews_on, logo, price
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY position
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "select subscriptions")
	}

	snap := &subscription.Snapshot{Balance: balance, Subs: make([]subscription.Subscription, 0, len(rows))}
	for _, row := range rows {
		s := subscription.Subscription{
			ID:     row.ID,
			Plan:   row.Plan,
			Status: subscription.Status(row.Status),
			Logo:   row.Logo,
			Price:  row.Price,
		}
		if row.RenewsOn.Valid {
			t := row.RenewsOn.Time
			s.RenewsOn = &t
		}
		snap.Subs = append(snap.Subs, s)
	}
	return snap, nil
}

// Put replaces the user's whole snapshot in one transaction.
func (r *PostgresRepo) Put(ctx context.Context, userID string, snap subscription.Snapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID); err != nil {
		return errors.Wrap(err, "delete subscriptions")
	}
	for i, s := range snap.Subs {
		renews := sql.NullTime{}
		if s.RenewsOn != nil {
			renews = sql.NullTime{Time: *s.RenewsOn, Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO subscriptions (user_id, id, plan, status, renews_on, logo, price, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			userID, s.ID, s.Plan, string(s.Status), renews, s.Logo, s.Price, i)
		if err != nil {
			return errors.Wrapf(err, "insert subscription %s", s.ID)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscription_balances (user_id, balance) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET balance = EXCLUDED.balance`,
		userID, snap.Balance)
	if err != nil {
		return errors.Wrap(err, "upsert balance")
	}

	return errors.Wrap(tx.Commit(), "commit")
}

func (r *PostgresRepo) Delete(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID); err != nil {
		return errors.Wrap(err, "delete subscriptions")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subscription_balances WHERE user_id = $1`, userID); err != nil {
		return errors.Wrap(err, "delete balance")
	}
	return errors.Wrap(tx.Commit(), "commit")
}
