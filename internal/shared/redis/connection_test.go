package redis

import (
	"context"
	"testing"

	"domino-community/internal/shared/config"

	"github.com/go-playground/assert/v2"
)

func TestOptionsFromHost(t *testing.T) {
	opts, err := options(config.RedisConfig{Host: "cache", Port: "6380", Password: "pw", DB: 3})
	assert.Equal(t, err, nil)
	assert.Equal(t, opts.Addr, "cache:6380")
	assert.Equal(t, opts.Password, "pw")
	assert.Equal(t, opts.DB, 3)
	assert.Equal(t, opts.PoolSize, 2)
}

func TestOptionsFromURL(t *testing.T) {
	opts, err := options(config.RedisConfig{URL: "redis://:secret@example.com:6390/2", Host: "ignored"})
	assert.Equal(t, err, nil)
	assert.Equal(t, opts.Addr, "example.com:6390")
	assert.Equal(t, opts.Password, "secret")
	assert.Equal(t, opts.DB, 2)

	_, err = options(config.RedisConfig{URL: "http://nope"})
	assert.NotEqual(t, err, nil)
}

func TestConnectDisabled(t *testing.T) {
	client, err := Connect(context.Background(), config.RedisConfig{})
	assert.Equal(t, err, nil)
	assert.Equal(t, client == nil, true)
	assert.Equal(t, client.Close(), nil)
}
