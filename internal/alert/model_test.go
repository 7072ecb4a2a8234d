package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() []Alert {
	return []Alert{
		{ID: 1, Level: LevelWarning, Message: "Demo wallet USDC low"},
		{ID: 2, Level: LevelError, Message: "Netflix subscription cancelled"},
		{ID: 3, Level: LevelWarning, Message: "Netflix subscription paused"},
		{ID: 4, Level: LevelInfo, Message: "BTC crossed $70K!"},
	}
}

func ids(alerts []Alert) []int64 {
	out := make([]int64, len(alerts))
	for i, a := range alerts {
		out[i] = a.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		text  string
		want  []int64
	}{
		{"no predicates", "", "", []int64{1, 2, 3, 4}},
		{"level only", LevelWarning, "", []int64{1, 3}},
		{"text only, case-insensitive", "", "NETFLIX", []int64{2, 3}},
		{"both", LevelWarning, "netflix", []int64{3}},
		{"no match", LevelCritical, "", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(fixture(), tt.level, tt.text)))
		})
	}
}

func TestAdvise(t *testing.T) {
	a := Advise(Alert{Message: "Demo wallet USDC low"})
	require.NotEmpty(t, a.Recommendations)
	assert.Equal(t, "mintUSDC", a.Recommendations[0].Tool)
	assert.Equal(t, "Demo wallet USDC low Suggested actions: Mint 50 USDC via Circle, Transfer from backup wallet", a.Summary)

	plain := Advise(Alert{Message: "Tx 0xabc confirmed in block 5"})
	assert.Empty(t, plain.Recommendations)
	assert.Equal(t, plain.Message, plain.Summary)
}

func TestDemoEvents(t *testing.T) {
	now := time.Date(2025, 8, 30, 12, 0, 0, 0, time.UTC)
	for _, ev := range DemoEvents {
		a, ok := DemoEvent(ev, "0xabc", now)
		require.True(t, ok, ev)
		assert.True(t, a.Level.Valid(), ev)
		assert.NotEmpty(t, a.Recommendations, ev)
		assert.Contains(t, a.Summary, "Suggested actions:", ev)
	}
	_, ok := DemoEvent("meteor", "", now)
	assert.False(t, ok)
}
