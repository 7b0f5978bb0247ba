package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gameSummary struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr())
	require.NoError(t, err)
	SetClient(c)
	t.Cleanup(func() {
		SetClient(nil)
		_ = c.Close()
	})
	return mr
}

func TestNewClient_ParsesURL(t *testing.T) {
	c, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	in := gameSummary{Name: "Catan", Slug: "catan", Count: 3}
	require.NoError(t, SetJSON(ctx, GameKey("catan"), in, time.Minute))
	assert.True(t, mr.Exists("game:catan"))

	var out gameSummary
	found, err := GetJSON(ctx, GameKey("catan"), &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)

	mr.FastForward(2 * time.Minute)
	found, err = GetJSON(ctx, GameKey("catan"), &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	setupRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *gameSummary) func() error {
		return func() error {
			calls++
			*dest = gameSummary{Name: "Azul", Slug: "azul", Count: calls}
			return nil
		}
	}

	var first gameSummary
	require.NoError(t, Aside(ctx, GameKey("azul"), &first, time.Minute, fetch(&first)))
	var second gameSummary
	require.NoError(t, Aside(ctx, GameKey("azul"), &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, second.Count)
}

func TestAside_PropagatesFetchError(t *testing.T) {
	setupRedis(t)
	boom := errors.New("db down")
	var dest gameSummary
	err := Aside(context.Background(), "k", &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestHelpers_NoClient(t *testing.T) {
	SetClient(nil)
	ctx := context.Background()

	found, err := GetJSON(ctx, "x", &gameSummary{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetJSON(ctx, "x", 1, time.Minute))

	called := false
	require.NoError(t, Aside(ctx, "x", &gameSummary{}, time.Minute, func() error { called = true; return nil }))
	assert.True(t, called)
	InvalidateFeed(ctx)
}

func TestInvalidateFeed(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, FeedKey("new", 10), []int{1}, time.Minute))
	require.NoError(t, SetJSON(ctx, FeedKey("top", 20), []int{2}, time.Minute))
	require.NoError(t, SetJSON(ctx, PostKey(7), gameSummary{}, time.Minute))

	InvalidatePost(ctx, 7)

	assert.False(t, mr.Exists("feed:first:new:10"))
	assert.False(t, mr.Exists("feed:first:top:20"))
	assert.False(t, mr.Exists("post:7"))
}

func TestMetricsHookIgnoresNil(t *testing.T) {
	setupRedis(t)
	err := GetClient().Get(context.Background(), "missing").Err()
	assert.ErrorIs(t, err, redis.Nil)
}
