package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sectorpulse/backend/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)

	assert.False(t, client.Enabled())
	assert.Nil(t, client.Redis())
	assert.NoError(t, client.Close())
}

func TestCache_DisabledIsNoop(t *testing.T) {
	cache := NewCache(disabledClient(t), "sectorpulse")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", []string{"a"}, time.Minute))

	var result []string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found, "cache miss when Redis disabled")
}

func TestCache_Key(t *testing.T) {
	cache := NewCache(disabledClient(t), "sectorpulse")
	assert.Equal(t, "sectorpulse:cache:index_changes:코스피:20240628",
		cache.Key(IndexChangesKey("코스피", time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC))))
}

func TestIndexChangesTTL(t *testing.T) {
	now := time.Date(2024, 6, 28, 15, 40, 0, 0, time.UTC)

	tests := []struct {
		name string
		date time.Time
		want time.Duration
	}{
		{"today", time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), TTLShort},
		{"yesterday", time.Date(2024, 6, 27, 0, 0, 0, 0, time.UTC), TTLDaily},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IndexChangesTTL(tt.date, now))
		})
	}
}
