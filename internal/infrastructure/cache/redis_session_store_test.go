package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/crosswms/loadorder/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values  map[string][]byte
	ttls    map[string]time.Duration
	failErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.failErr != nil {
		return redis.NewStringResult("", f.failErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.failErr != nil {
		return redis.NewStatusResult("", f.failErr)
	}
	f.values[key] = value.([]byte)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisSessionStore_RoundTrip(t *testing.T) {
	fake := newFakeRedis()
	store := NewRedisSessionStoreWithClient(fake, "test:", 30*time.Minute)
	ctx := context.Background()

	job := sampleJob()
	job.RecordPrint(printing.PrintSummary{Status: printing.PrintStatusPrinted, Images: 0})
	require.NoError(t, store.Save(ctx, job))

	key := "test:" + job.ID.String()
	assert.Contains(t, fake.values, key)
	assert.Equal(t, 30*time.Minute, fake.ttls[key])

	got, err := store.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, printing.DocumentTypeManifest, got.DocumentType)
	assert.Equal(t, job.Revision, got.Revision)
	require.NotNil(t, got.LastPrint)
	assert.Equal(t, printing.PrintStatusPrinted, got.LastPrint.Status)
}

func TestRedisSessionStore_Defaults(t *testing.T) {
	store := NewRedisSessionStoreWithClient(newFakeRedis(), "", 0)
	assert.Equal(t, "loadorder:dialog:", store.keyPrefix)
	assert.Equal(t, 2*time.Hour, store.ttl)
	assert.NoError(t, store.Close())
}

func TestRedisSessionStore_NotFound(t *testing.T) {
	store := NewRedisSessionStoreWithClient(newFakeRedis(), "test:", time.Minute)

	_, err := store.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRedisSessionStore_BackendError(t *testing.T) {
	fake := newFakeRedis()
	fake.failErr = errors.New("connection refused")
	store := NewRedisSessionStoreWithClient(fake, "test:", time.Minute)
	ctx := context.Background()

	_, err := store.FindByID(ctx, uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrNotFound)

	assert.Error(t, store.Save(ctx, sampleJob()))
}

func TestRedisSessionStore_CorruptPayload(t *testing.T) {
	fake := newFakeRedis()
	store := NewRedisSessionStoreWithClient(fake, "test:", time.Minute)
	id := uuid.New()
	fake.values["test:"+id.String()] = []byte("{not json")

	_, err := store.FindByID(context.Background(), id)
	assert.Error(t, err)
}

func TestRedisSessionStore_Delete(t *testing.T) {
	fake := newFakeRedis()
	store := NewRedisSessionStoreWithClient(fake, "test:", time.Minute)
	ctx := context.Background()

	job := sampleJob()
	require.NoError(t, store.Save(ctx, job))
	require.NoError(t, store.Delete(ctx, job.ID))
	require.NoError(t, store.Delete(ctx, job.ID))

	_, err := store.FindByID(ctx, job.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
