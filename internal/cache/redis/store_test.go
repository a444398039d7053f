package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreFailsWithoutServer(t *testing.T) {
	_, err := NewStore(Config{Addr: "127.0.0.1:1", TTL: time.Minute})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis cache")
}

func TestKeyUsesPrefix(t *testing.T) {
	s := &Store{prefix: "threatlineage:summary"}
	assert.Equal(t, "threatlineage:summary:abc", s.Key("abc"))
}

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewStore(Config{Addr: mr.Addr(), KeyPrefix: "test:summary", TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestGetMiss(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)

	val, ok, err := s.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, val)
}

func TestSetThenGetWithTTL(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "abc", "A process was started."))

	val, ok, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A process was started.", val)

	assert.True(t, mr.Exists("test:summary:abc"))
	assert.Equal(t, time.Hour, mr.TTL("test:summary:abc"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetWithoutTTLKeepsKey(t *testing.T) {
	s, mr := newTestStore(t, 0)
	require.NoError(t, s.Set(context.Background(), "abc", "x"))
	assert.Zero(t, mr.TTL("test:summary:abc"))
}

func TestGetReportsServerError(t *testing.T) {
	s, mr := newTestStore(t, time.Hour)
	mr.SetError("ERR cache unavailable")

	_, ok, err := s.Get(context.Background(), "abc")
	assert.Error(t, err)
	assert.False(t, ok)
}
