package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findash/internal/subscription"
	subrepo "findash/internal/subscription/repository"
	subsvc "findash/internal/subscription/service"
	"findash/internal/user/repository"
	"findash/pkg/jwt"
)

func TestGuestLogin(t *testing.T) {
	ctx := context.Background()
	subs := subsvc.NewService(subrepo.NewMemoryRepo(), nil, nil)
	svc := NewUserService(repository.NewMemoryRepository(), subs, nil, nil)

	u, err := svc.GuestLogin(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.True(t, strings.HasPrefix(u.Username, "guest_"))
	assert.Len(t, u.Username, len("guest_")+8)
	// Netflix renews first in the seed fixture
	assert.Equal(t, "Netflix", u.Plan)
	assert.True(t, u.Active)
	require.NotNil(t, u.RenewsOn)

	snap, err := subs.Snapshot(ctx, u.Username)
	require.NoError(t, err)
	assert.Len(t, snap.Subs, len(subscription.Catalogue))

	got, err := svc.GetByUsername(ctx, u.Username)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestGuestLoginWithoutSubscriptions(t *testing.T) {
	svc := NewUserService(repository.NewMemoryRepository(), nil, nil, nil)
	u, err := svc.GuestLogin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Free", u.Plan)
	assert.False(t, u.Active)
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("secret")
	token, err := m.Generate("guest_abc")
	require.NoError(t, err)
	sub, err := jwt.ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "guest_abc", sub)
}
