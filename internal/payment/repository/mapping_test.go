package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/payment"
)

func TestFileMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"customerId":"cus_1","subscriptions":{"Netflix":"sub_A"}}`), 0o600))

	m, err := NewFileMapping(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cus_1", m.CustomerID)
	assert.Equal(t, "sub_A", m.Subscriptions["Netflix"])

	_, err = NewFileMapping(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background())
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = NewFileMapping(path).Load(context.Background())
	assert.Error(t, err)
}

func TestStaticMappingCopies(t *testing.T) {
	s := NewStaticMapping(payment.Mapping{Subscriptions: map[string]string{"Spotify": "sub_B"}})
	m, err := s.Load(context.Background())
	require.NoError(t, err)
	m.Subscriptions["Spotify"] = "changed"

	again, _ := s.Load(context.Background())
	assert.Equal(t, "sub_B", again.Subscriptions["Spotify"])
}
