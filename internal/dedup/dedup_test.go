package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsScopedBySourceAndPayload(t *testing.T) {
	a := Key("pd-orders", []byte(`{"id":1}`))
	b := Key("pd-orders", []byte(`{"id":2}`))
	c := Key("pd-other", []byte(`{"id":1}`))

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, Key("pd-orders", []byte(`{"id":1}`)))
	assert.Contains(t, a, "dedup:webhook:pd-orders:")
}

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	ctx := context.Background()
	payload := []byte(`{"id":1}`)

	seen, err := d.Seen(ctx, "src", payload)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, "src", payload)
	require.NoError(t, err)
	assert.True(t, seen, "second delivery within the TTL is a duplicate")

	seen, err = d.Seen(ctx, "other", payload)
	require.NoError(t, err)
	assert.False(t, seen, "same payload from another source is distinct")

	// Past the TTL the delivery counts as new again.
	d.now = func() time.Time { return base.Add(2 * time.Hour) }
	seen, err = d.Seen(ctx, "src", payload)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisDeduper(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	d := NewRedisDeduper(client, time.Hour)
	defer d.Close()

	ctx := context.Background()
	payload := []byte(`{"id":1}`)

	seen, err := d.Seen(ctx, "src", payload)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, "src", payload)
	require.NoError(t, err)
	assert.True(t, seen)

	// Expiry reopens the window.
	mr.FastForward(2 * time.Hour)
	seen, err = d.Seen(ctx, "src", payload)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisDeduperPropagatesErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	d := NewRedisDeduper(client, time.Hour)

	mr.Close()
	_, err := d.Seen(context.Background(), "src", []byte("x"))
	assert.Error(t, err)
}
