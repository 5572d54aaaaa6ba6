package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qochi/internal/platform/config"
)

func TestOptionsAppliesOverrides(t *testing.T) {
	opts, err := Options(config.RedisConfig{
		URL:          "redis://:secret@cache.internal:6380/2",
		PoolSize:     32,
		MinIdleConns: 4,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, clientName, opts.ClientName)
	assert.Equal(t, 32, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)
	assert.Equal(t, time.Second, opts.ReadTimeout)
	assert.Zero(t, opts.WriteTimeout)
}

func TestOptionsRejectsBadURL(t *testing.T) {
	_, err := Options(config.RedisConfig{URL: "http://not-redis"})
	assert.Error(t, err)
}

func TestNewWithoutURL(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
