package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/config"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	cache, err := New(config.RedisConfig{
		Host:        mr.Host(),
		Port:        mr.Server().Addr().Port,
		MetadataTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func movie() (models.MediaItem, *models.MetadataContainer) {
	item := models.MediaItem{ID: "movie-1", Location: "/media/movie.mp4"}
	meta := &models.MetadataContainer{
		Kind: models.MediaKindVideo,
		Record: models.MediaRecord{
			Location:       item.Location,
			VideoContainer: models.VideoContainerMP4,
			Bitrate:        4000000,
			Duration:       60,
		},
		Video: &models.VideoStream{Codec: models.VideoCodecH264, Width: 1920, Height: 1080},
		Audio: []models.AudioStream{{Codec: models.AudioCodecAAC, Channels: 2, Frequency: 48000}},
	}
	return item, meta
}

func TestNew(t *testing.T) {
	cache, _ := setupTestCache(t)
	assert.NoError(t, cache.Ping(context.Background()))
}

func TestNewUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port := mr.Server().Addr().Port
	mr.Close()

	_, err := New(config.RedisConfig{Host: "127.0.0.1", Port: port})
	assert.Error(t, err)
}

func TestMetadataRoundTrip(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()
	item, meta := movie()

	got, err := cache.GetMetadata(ctx, item)
	require.NoError(t, err)
	assert.Nil(t, got, "empty cache should miss")

	require.NoError(t, cache.SetMetadata(ctx, item, meta))
	assert.Equal(t, time.Hour, mr.TTL(metadataKey(item.ID)))

	got, err = cache.GetMetadata(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	require.NoError(t, cache.DeleteMetadata(ctx, item.ID))
	got, err = cache.GetMetadata(ctx, item)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMetadataMovedItemMisses(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()
	item, meta := movie()

	require.NoError(t, cache.SetMetadata(ctx, item, meta))

	item.Location = "/media/moved.mp4"
	got, err := cache.GetMetadata(ctx, item)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMetadataCorruptEntry(t *testing.T) {
	cache, mr := setupTestCache(t)
	item, _ := movie()

	require.NoError(t, mr.Set(metadataKey(item.ID), "{not json"))

	_, err := cache.GetMetadata(context.Background(), item)
	assert.Error(t, err)
}

func TestSetMetadataNil(t *testing.T) {
	cache, mr := setupTestCache(t)
	item, _ := movie()

	require.NoError(t, cache.SetMetadata(context.Background(), item, nil))
	assert.False(t, mr.Exists(metadataKey(item.ID)))
}

func TestInvalidateMetadata(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, meta := movie()
		require.NoError(t, cache.SetMetadata(ctx, models.MediaItem{ID: id, Location: meta.Record.Location}, meta))
	}
	require.NoError(t, mr.Set("ratelimit:client", "1"))

	removed, err := cache.InvalidateMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.True(t, mr.Exists("ratelimit:client"))
}

func TestCheckRateLimit(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := cache.CheckRateLimit(ctx, "client-1", 3, time.Minute)
		require.NoError(t, err)
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, err := cache.CheckRateLimit(ctx, "client-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = cache.CheckRateLimit(ctx, "client-2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "limits are per key")

	mr.FastForward(time.Minute)
	allowed, err = cache.CheckRateLimit(ctx, "client-1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "window should reset")
}
