package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kirana/internal/domain/cart"
	"github.com/xenking/kirana/internal/domain/product"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, New(client, time.Hour)
}

func TestStore_LoadMissing(t *testing.T) {
	_, s := setupTestRedis(t)

	_, err := s.Load(context.Background(), cart.DefaultKey)
	require.ErrorIs(t, err, cart.ErrNoSnapshot)
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	mr, s := setupTestRedis(t)

	snap := cart.Snapshot{Lines: []cart.Line{
		{Product: product.Product{ID: "atta", Name: "Atta", Price: decimal.RequireFromString("320")}, Quantity: 2},
		{Product: product.Product{ID: "salt", Name: "Salt", Price: decimal.RequireFromString("24.5")}, Quantity: 1},
	}}
	require.NoError(t, s.Save(ctx, cart.DefaultKey, snap))

	assert.True(t, mr.Exists("kirana:cart-storage"))
	assert.Equal(t, time.Hour, mr.TTL("kirana:cart-storage"))

	got, err := s.Load(ctx, cart.DefaultKey)
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "atta", got.Lines[0].Product.ID)
	assert.True(t, decimal.RequireFromString("664.5").Equal(got.Total()))
}

func TestStore_Corrupt(t *testing.T) {
	mr, s := setupTestRedis(t)
	require.NoError(t, mr.Set("kirana:cart-storage", "[]"))

	_, err := s.Load(context.Background(), cart.DefaultKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, cart.ErrNoSnapshot)
}

func TestStore_Ping(t *testing.T) {
	mr, s := setupTestRedis(t)
	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	require.Error(t, s.Ping(context.Background()))
}

func TestDial_BadURL(t *testing.T) {
	_, err := Dial(context.Background(), "not-a-url", 0)
	require.Error(t, err)
}
