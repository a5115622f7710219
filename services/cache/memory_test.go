package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	CoinID string  `json:"coin_id"`
	Price  float64 `json:"price"`
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "history:bitcoin:24", payload{CoinID: "bitcoin", Price: 64000}, time.Minute))

	var got payload
	require.NoError(t, m.Get(ctx, "history:bitcoin:24", &got))
	assert.Equal(t, "bitcoin", got.CoinID)
	assert.Equal(t, 64000.0, got.Price)
}

func TestMemoryMiss(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	var got payload
	assert.ErrorIs(t, m.Get(context.Background(), "absent", &got), ErrCacheMiss)
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got string
	assert.ErrorIs(t, m.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, m.Set(ctx, "b", "2", time.Minute))
	require.NoError(t, m.Delete(ctx, "a", "b"))

	var got string
	assert.ErrorIs(t, m.Get(ctx, "a", &got), ErrCacheMiss)
	assert.ErrorIs(t, m.Get(ctx, "b", &got), ErrCacheMiss)
}

func TestMemoryStringFastPath(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "s", "plain text", time.Minute))

	var got string
	require.NoError(t, m.Get(ctx, "s", &got))
	assert.Equal(t, "plain text", got)
}

func TestMemoryCloseTwice(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
