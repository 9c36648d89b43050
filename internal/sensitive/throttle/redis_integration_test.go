//go:build integration

package throttle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verimed/internal/sensitive/throttle"
	"verimed/pkg/testutil/containers"
)

func TestRedisHitIncrements(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	store := throttle.NewRedisStore(rc.Client)
	ctx := context.Background()

	count, err := store.Count(ctx, "user-1:patient-1")
	require.NoError(t, err)
	assert.Zero(t, count)

	for want := 1; want <= 3; want++ {
		count, err = store.Hit(ctx, "user-1:patient-1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	count, err = store.Count(ctx, "user-1:patient-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Keys are scoped per requester and patient.
	count, err = store.Count(ctx, "user-2:patient-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRedisWindowExpires(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	store := throttle.NewRedisStore(rc.Client)
	ctx := context.Background()

	_, err := store.Hit(ctx, "user-1:patient-1", time.Second)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		count, err := store.Count(ctx, "user-1:patient-1")
		return err == nil && count == 0
	}, 5*time.Second, 100*time.Millisecond)
}

func TestRedisReset(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	store := throttle.NewRedisStore(rc.Client)
	ctx := context.Background()

	_, err := store.Hit(ctx, "user-1:patient-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "user-1:patient-1"))

	count, err := store.Count(ctx, "user-1:patient-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
