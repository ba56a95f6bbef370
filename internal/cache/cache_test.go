package cache

import (
	"context"
	"testing"
	"time"

	"iamblessed-funnel-go/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectWithoutAddressDisablesCache(t *testing.T) {
	rdb, err := Connect(context.Background(), models.RedisConfig{})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if rdb != nil {
		t.Error("Expected nil client when no address is configured")
	}
}

func TestConnectUnreachable(t *testing.T) {
	// port 1 on loopback refuses connections
	_, err := Connect(context.Background(), models.RedisConfig{Addr: "127.0.0.1:1"})
	if err == nil {
		t.Error("Expected error for unreachable redis")
	}
}

func newTestCache(t *testing.T) (*LinkCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := Connect(context.Background(), models.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, rdb)
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLinkCache(rdb), mr
}

func TestLinkCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	expires := time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)
	link := models.ShortLink{
		Slug:      "gift",
		TargetURL: "https://iamblessedaf.com/?ref=ABCD2345",
		OwnerId:   "p1",
		Clicks:    7,
		ExpiresAt: &expires,
		CreatedAt: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, c.Set(ctx, link, time.Hour))
	assert.True(t, mr.Exists(linkKeyPrefix+"gift"))

	got, err := c.Get(ctx, "gift")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, link.TargetURL, got.TargetURL)
	assert.Equal(t, link.OwnerId, got.OwnerId)
	assert.EqualValues(t, 7, got.Clicks)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expires))
	assert.True(t, got.CreatedAt.Equal(link.CreatedAt))

	require.NoError(t, c.Delete(ctx, "gift"))
	got, err = c.Get(ctx, "gift")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLinkCacheMiss(t *testing.T) {
	c, _ := newTestCache(t)
	got, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLinkCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, models.ShortLink{Slug: "flash", TargetURL: "https://example.com"}, 30*time.Second))
	assert.Equal(t, 30*time.Second, mr.TTL(linkKeyPrefix+"flash"))

	mr.FastForward(31 * time.Second)
	got, err := c.Get(ctx, "flash")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLinkCacheCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(linkKeyPrefix+"bad", "{not json"))

	_, err := c.Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestLinkCacheUnavailable(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.Get(context.Background(), "gift")
	assert.Error(t, err)
}
