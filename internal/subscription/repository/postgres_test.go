package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/subscription"
)

func newMock(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresGetUnknownUser(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM subscription_balances`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	snap, err := r.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, snap)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet(t *testing.T) {
	r, mock := newMock(t)
	renews := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM subscription_balances`)).
		WithArgs("user1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("56.43"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, plan, status, renews_on, logo, price`)).
		WithArgs("user1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "plan", "status", "renews_on", "logo", "price"}).
			AddRow("sub4", "ChatGPT Plus", "canceled", renews, "", "20.00").
			AddRow("sub5", "Apple Music", "active", nil, "", "10.99"))

	snap, err := r.Get(context.Background(), "user1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "56.43", snap.Balance.StringFixed(2))
	require.Len(t, snap.Subs, 2)
	assert.Equal(t, subscription.StatusCanceled, snap.Subs[0].Status)
	require.NotNil(t, snap.Subs[0].RenewsOn)
	assert.Nil(t, snap.Subs[1].RenewsOn)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutIsTransactional(t *testing.T) {
	r, mock := newMock(t)
	snap := subscription.Snapshot{
		Balance: decimal.RequireFromString("76.43"),
		Subs:    subscription.Seed(time.Now())[:1],
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM subscriptions`)).WithArgs("u").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO subscriptions`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO subscription_balances`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, r.Put(context.Background(), "u", snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutRollsBackOnError(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM subscriptions`)).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := r.Put(context.Background(), "u", subscription.Snapshot{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRepoCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	require.NoError(t, r.Put(ctx, "u", subscription.Snapshot{Subs: subscription.Seed(time.Now())}))

	got, err := r.Get(ctx, "u")
	require.NoError(t, err)
	got.Subs[0].Status = subscription.StatusCanceled

	again, _ := r.Get(ctx, "u")
	assert.Equal(t, subscription.StatusActive, again.Subs[0].Status)
}
