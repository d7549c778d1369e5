package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nyumbacal/internal/model"
)

type countingStore struct {
	*MemoryStore
	reads int
}

func (c *countingStore) Completed(ctx context.Context, user string) (bool, error) {
	c.reads++
	return c.MemoryStore.Completed(ctx, user)
}

func setupCachedStore() (*CachedStore, *countingStore, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	remote := &countingStore{MemoryStore: NewMemoryStore()}
	return NewCachedStore(remote, db, time.Minute), remote, mock
}

func TestCachedStore_CacheHit(t *testing.T) {
	store, remote, mock := setupCachedStore()
	defer mock.ClearExpect()

	mock.ExpectGet("onboarding:u1").SetVal("1")

	done, err := store.Completed(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 0, remote.reads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_MissFillsCache(t *testing.T) {
	store, remote, mock := setupCachedStore()
	defer mock.ClearExpect()
	ctx := context.Background()
	require.NoError(t, remote.MemoryStore.MarkCompleted(ctx, "u1"))

	mock.ExpectGet("onboarding:u1").RedisNil()
	mock.ExpectSetNX("onboarding:u1", "1", time.Minute).SetVal(true)

	done, err := store.Completed(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1, remote.reads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_RedisDownFallsBack(t *testing.T) {
	store, remote, mock := setupCachedStore()
	defer mock.ClearExpect()

	mock.ExpectGet("onboarding:u2").SetErr(errors.New("connection refused"))

	done, err := store.Completed(context.Background(), "u2")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1, remote.reads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_WriteThrough(t *testing.T) {
	store, remote, mock := setupCachedStore()
	defer mock.ClearExpect()
	ctx := context.Background()

	mock.ExpectSet("onboarding:u1", "1", time.Minute).SetVal("OK")
	require.NoError(t, store.MarkCompleted(ctx, "u1"))

	done, err := remote.MemoryStore.Completed(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, done)

	mock.ExpectDel("onboarding:u1").SetVal(1)
	require.NoError(t, store.Reset(ctx, "u1"))

	done, err = remote.MemoryStore.Completed(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_FailedSetInvalidates(t *testing.T) {
	store, _, mock := setupCachedStore()
	defer mock.ClearExpect()

	mock.ExpectSet("onboarding:u3", "1", time.Minute).SetErr(errors.New("oom"))
	mock.ExpectDel("onboarding:u3").SetVal(1)

	require.NoError(t, store.MarkCompleted(context.Background(), "u3"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_NoRedis(t *testing.T) {
	remote := NewMemoryStore()
	store := NewCachedStore(remote, nil, 0)
	ctx := context.Background()

	require.NoError(t, store.MarkCompleted(ctx, "u1"))
	done, err := store.Completed(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestEmptyUserRejected(t *testing.T) {
	store := NewCachedStore(NewMemoryStore(), nil, 0)
	_, err := store.Completed(context.Background(), " ")
	assert.ErrorIs(t, err, model.ErrMissingField)
	assert.ErrorIs(t, store.Reset(context.Background(), ""), model.ErrMissingField)
}
