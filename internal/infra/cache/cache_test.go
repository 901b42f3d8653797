package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedis(client, "test:")
}

func TestRedis_SetGetDelete(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "storefront:a", []byte(`{"x":1}`), time.Minute))
	assert.True(t, mr.Exists("test:storefront:a"))

	got, err := c.Get(ctx, "storefront:a")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(got))

	require.NoError(t, c.Delete(ctx, "storefront:a"))
	_, err = c.Get(ctx, "storefront:a")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedis_TTLExpires(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Second))
	mr.FastForward(11 * time.Second)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_ExpiryAndSweep(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))

	v, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, 2, m.Len())

	m.Sweep()
	assert.Equal(t, 1, m.Len())
}

func TestMemory_CloseIsIdempotent(t *testing.T) {
	m := NewMemory(time.Millisecond)
	m.Close()
	m.Close()
}

func TestFetch_LoadsOnceThenServesCache(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"massage", "facial"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, m, "services", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, []string{"massage", "facial"}, got)
	}
	assert.Equal(t, 1, calls)
}

func TestFetch_LoaderErrorNotCached(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()

	boom := errors.New("db down")
	_, err := Fetch(context.Background(), m, "k", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Len())
}
