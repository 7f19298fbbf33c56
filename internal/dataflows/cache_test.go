package dataflows

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irwinlee/tradecouncil/config"
	"github.com/irwinlee/tradecouncil/internal/models"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	cache := newDiskCache(t.TempDir())
	asOf := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	_, ok := cache.get(models.AnalystNews, "NVDA", asOf)
	assert.False(t, ok)

	cache.put(models.AnalystNews, "NVDA", asOf, "headline digest")
	text, ok := cache.get(models.AnalystNews, "NVDA", asOf)
	require.True(t, ok)
	assert.Equal(t, "headline digest", text)

	// A different analysis date is a different entry.
	_, ok = cache.get(models.AnalystNews, "NVDA", asOf.AddDate(0, 0, 1))
	assert.False(t, ok)
}

func TestDiskCacheFlattensCryptoPairNames(t *testing.T) {
	dir := t.TempDir()
	cache := newDiskCache(dir)
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	cache.put(models.AnalystSocial, "BTC/USD", asOf, "community chatter")
	_, err := os.Stat(filepath.Join(dir, "social_BTC-USD_2026-03-02.txt"))
	require.NoError(t, err)

	text, ok := cache.get(models.AnalystSocial, "BTC/USD", asOf)
	require.True(t, ok)
	assert.Equal(t, "community chatter", text)
}

func TestDiskCacheNilIsInert(t *testing.T) {
	var cache *diskCache
	cache.put(models.AnalystNews, "NVDA", time.Now(), "ignored")
	_, ok := cache.get(models.AnalystNews, "NVDA", time.Now())
	assert.False(t, ok)
}

func TestServiceContextPrefersCachedEntry(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.OnlineTools = true
	cfg.CacheEnabled = true
	svc := NewService(cfg)

	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	svc.cache.put(models.AnalystNews, "NVDA", asOf, "cached news digest")

	// Served from disk; no network round trip happens on a hit.
	text, err := svc.Context(context.Background(), models.AnalystNews, "NVDA", asOf)
	require.NoError(t, err)
	assert.Equal(t, "cached news digest", text)
}

func TestServiceCacheDisabledByConfig(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.CacheEnabled = false
	svc := NewService(cfg)
	assert.Nil(t, svc.cache)
}
