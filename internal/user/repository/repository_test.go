package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/user"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	for _, name := range []string{"guest_a", "guest_b", "guest_c"} {
		require.NoError(t, r.Create(ctx, &user.User{Username: name}))
	}

	u, err := r.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "guest_b", u.Username)

	u, err = r.GetByUsername(ctx, "guest_c")
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)

	_, err = r.GetByID(ctx, 9)
	assert.ErrorIs(t, err, user.ErrNotFound)

	list, _ := r.List(ctx, 2)
	require.Len(t, list, 2)
	assert.Equal(t, "guest_b", list[0].Username)

	require.NoError(t, r.Clear(ctx))
	list, _ = r.List(ctx, 0)
	assert.Empty(t, list)
}

func newMock(t *testing.T) (*PostgresUserRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresUserRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresCreate(t *testing.T) {
	r, mock := newMock(t)
	now := time.Now()
	u := &user.User{Username: "guest_1", Plan: "Demo", Active: true, CreatedAt: now}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("guest_1", "Demo", true, nil, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	require.NoError(t, r.Create(context.Background(), u))
	assert.Equal(t, int64(7), u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMissing(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, plan, active, renews_on, created_at FROM users WHERE username = $1`)).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "plan", "active", "renews_on", "created_at"}))

	_, err := r.GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, user.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByID(t *testing.T) {
	r, mock := newMock(t)
	created := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "plan", "active", "renews_on", "created_at"}).
			AddRow(3, "guest_x", "Demo", true, nil, created))

	u, err := r.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "guest_x", u.Username)
	assert.Nil(t, u.RenewsOn)
	require.NoError(t, mock.ExpectationsWereMet())
}
