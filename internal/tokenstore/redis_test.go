package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/assert/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "domino:session", "default", time.Hour), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	token, err := store.Load(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, token == nil, true)

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	err = store.Save(ctx, &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "bearer", Expiry: expiry})
	assert.Equal(t, err, nil)
	assert.Equal(t, mr.Exists("domino:session:default"), true)
	assert.Equal(t, mr.TTL("domino:session:default"), time.Hour)

	token, err = store.Load(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, token.AccessToken, "access")
	assert.Equal(t, token.RefreshToken, "refresh")
	assert.Equal(t, token.Expiry.Equal(expiry), true)

	assert.Equal(t, store.Clear(ctx), nil)
	assert.Equal(t, mr.Exists("domino:session:default"), false)

	token, err = store.Load(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, token == nil, true)
}

func TestRedisStoreExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	assert.Equal(t, store.Save(ctx, &oauth2.Token{AccessToken: "access"}), nil)
	mr.FastForward(2 * time.Hour)

	token, err := store.Load(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, token == nil, true)
}

func TestRedisStoreRejectsCorruptValue(t *testing.T) {
	store, mr := newTestRedisStore(t)
	assert.Equal(t, mr.Set("domino:session:default", "{not json"), nil)

	token, err := store.Load(context.Background())
	assert.NotEqual(t, err, nil)
	assert.Equal(t, token == nil, true)
}

func TestRedisStoreReportsUnreachableServer(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	_, err := store.Load(context.Background())
	assert.NotEqual(t, err, nil)
	assert.NotEqual(t, store.Save(context.Background(), &oauth2.Token{AccessToken: "a"}), nil)
}
