package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/alert"
)

func alertFixture() []alert.Alert {
	return []alert.Alert{
		{ID: 1, Level: alert.LevelWarning, Category: alert.CategoryWallet, Message: "Demo wallet USDC low: 4.00"},
		{ID: 2, Level: alert.LevelInfo, Category: alert.CategoryMarket, Message: "BTC crossed $70K!"},
		{ID: 3, Level: alert.LevelWarning, Category: alert.CategorySubscription, Message: "Spotify renews in 2 days"},
		{ID: 4, Level: alert.LevelCritical, Category: alert.CategoryWallet, Message: "Wallet compromised"},
		{ID: 5, Level: alert.LevelWarning, Category: alert.CategoryWallet, Message: "Old wallet alert", Resolved: true},
	}
}

func ids(alerts []alert.Alert) []int64 {
	out := []int64{}
	for _, a := range alerts {
		out = append(out, a.ID)
	}
	return out
}

func TestAlertFilter(t *testing.T) {
	s := NewAlerts(func(context.Context) ([]alert.Alert, error) { return alertFixture(), nil }, nil, nil)
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	cases := []struct {
		level alert.Level
		text  string
		want  []int64
	}{
		{"", "", []int64{1, 2, 3, 4}},
		{alert.LevelWarning, "", []int64{1, 3}},
		{"", "WALLET", []int64{1, 4}},
		{alert.LevelWarning, "wallet", []int64{1}},
		{alert.LevelError, "", []int64{}},
		{alert.LevelCritical, "usdc", []int64{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ids(s.Filter(tc.level, tc.text)), "%s/%s", tc.level, tc.text)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	calls := 0
	s := NewAlerts(nil, func(context.Context, int64) error {
		calls++
		return nil
	}, nil)
	s.Reset(alertFixture()[:4])

	require.NoError(t, s.Resolve(context.Background(), 2))
	require.NoError(t, s.Resolve(context.Background(), 2))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int64{1, 3, 4}, ids(s.Snapshot().Items))
}

func TestResolveRollback(t *testing.T) {
	s := NewAlerts(nil, func(context.Context, int64) error { return errors.New("offline") }, nil, WithRollback())
	s.Reset(alertFixture()[:4])

	assert.Error(t, s.Resolve(context.Background(), 3))
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(s.Snapshot().Items))
}

func TestResolveMentioning(t *testing.T) {
	s := NewAlerts(nil, nil, nil)
	s.Reset(alertFixture()[:4])
	assert.Equal(t, 2, s.ResolveMentioning(context.Background(), "wallet"))
	assert.Equal(t, []int64{2, 3}, ids(s.Snapshot().Items))
}
