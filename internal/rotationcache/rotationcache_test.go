package rotationcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kenneth/pinenut/internal/config"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(client, time.Minute)
}

func TestNewDisabledReturnsNil(t *testing.T) {
	c, err := New(config.RotationCacheConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestNewEnabledWithoutAddrErrors(t *testing.T) {
	_, err := New(config.RotationCacheConfig{Enabled: true})
	require.Error(t, err)
}

func TestClaimFirstCallerWins(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	first, err := c.Claim(ctx, "checkout", "2026-07-30T12", "worker-a")
	require.NoError(t, err)
	require.True(t, first)

	second, err := c.Claim(ctx, "checkout", "2026-07-30T12", "worker-b")
	require.NoError(t, err)
	require.False(t, second)

	owner, ok, err := c.Owner(ctx, "checkout", "2026-07-30T12")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "worker-a", owner)
}

func TestReleaseAllowsReclaim(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Claim(ctx, "checkout", "bucket", "worker-a")
	require.NoError(t, err)

	require.NoError(t, c.Release(ctx, "checkout", "bucket"))

	_, ok, err := c.Owner(ctx, "checkout", "bucket")
	require.NoError(t, err)
	require.False(t, ok)

	claimed, err := c.Claim(ctx, "checkout", "bucket", "worker-b")
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestOwnerUnclaimedBucket(t *testing.T) {
	c := newTestCache(t)
	_, ok, err := c.Owner(context.Background(), "checkout", "never-claimed")
	require.NoError(t, err)
	require.False(t, ok)
}
