package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeyStore struct {
	keys   map[string]time.Duration
	setErr error
}

func (f *fakeKeyStore) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeKeyStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestIdempotencyGuardClaimOnce(t *testing.T) {
	kv := &fakeKeyStore{keys: map[string]time.Duration{}}
	guard := NewIdempotencyGuard(kv, 24*time.Hour)
	ctx := context.Background()

	ok, err := guard.Claim(ctx, "transition:7:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 24*time.Hour, kv.keys["idempotency:transition:7:abc"])

	ok, err = guard.Claim(ctx, "transition:7:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, guard.Release(ctx, "transition:7:abc"))
	ok, err = guard.Claim(ctx, "transition:7:abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotencyGuardPropagatesErrors(t *testing.T) {
	kv := &fakeKeyStore{keys: map[string]time.Duration{}, setErr: errors.New("connection refused")}
	guard := NewIdempotencyGuard(kv, time.Hour)

	_, err := guard.Claim(context.Background(), "k")
	assert.ErrorIs(t, err, kv.setErr)
}
