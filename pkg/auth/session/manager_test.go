package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}}
}

func (f *fakeStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

type fakeKeyer struct{}

func (fakeKeyer) AccessSessionKey(accessID string) string {
	return "session:access:" + accessID
}

func newTestManager() (*Manager, *fakeStore) {
	store := newFakeStore()
	return &Manager{store: store, keyer: fakeKeyer{}, ttl: time.Hour}, store
}

func TestGenerateAndHasSession(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	token, err := m.Generate(ctx, "access-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	ok, err := m.HasSession(ctx, "access-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.HasSession(ctx, "access-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRotateInvalidatesOldSession(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	token, err := m.Generate(ctx, "access-1")
	require.NoError(t, err)

	newAccessID, newToken, err := m.Rotate(ctx, "access-1", token)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccessID)
	assert.NotEmpty(t, newToken)
	assert.NotEqual(t, token, newToken)

	ok, err := m.HasSession(ctx, "access-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.HasSession(ctx, newAccessID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRotateRejectsMismatchedToken(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Generate(ctx, "access-1")
	require.NoError(t, err)

	_, _, err = m.Rotate(ctx, "access-1", "wrong-token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotateUnknownAccessID(t *testing.T) {
	m, _ := newTestManager()
	_, _, err := m.Rotate(context.Background(), "missing", "whatever")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevoke(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Generate(ctx, "access-1")
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, "access-1"))

	ok, err := m.HasSession(ctx, "access-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
