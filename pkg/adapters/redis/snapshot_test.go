package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStore(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewSnapshotStore(client, redis.WithPrefix("test:tree:"))
	ctx := context.Background()

	snap := domain.NodeSnapshot{
		Children: []domain.NodeSnapshot{{ID: "menus", Path: "/menus", Condition: "debug"}},
	}
	require.NoError(t, store.Save(ctx, "workbench", snap))
	require.NoError(t, store.Save(ctx, "editor", domain.NodeSnapshot{}))
	assert.True(t, mr.Exists("test:tree:workbench"))

	got, err := store.Load(ctx, "workbench")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor", "workbench"}, names)

	require.NoError(t, store.Delete(ctx, "editor"))
	_, err = store.Load(ctx, "editor")
	assert.ErrorIs(t, err, redis.ErrSnapshotNotFound)

	assert.Error(t, store.Save(ctx, "", snap))
}

func TestSnapshotStore_TTL(t *testing.T) {
	mr, client := setup(t)
	store := redis.NewSnapshotStore(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "workbench", domain.NodeSnapshot{ID: "x"}))
	mr.FastForward(2 * time.Second)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	_, err = store.Load(ctx, "workbench")
	assert.ErrorIs(t, err, redis.ErrSnapshotNotFound)
}
