package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRevocationList(t *testing.T) {
	ctx := context.Background()
	list := NewInMemoryRevocationList()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	list.now = func() time.Time { return now }

	revoked, err := list.IsRevoked(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "j1", time.Minute))
	revoked, err = list.IsRevoked(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = list.IsRevoked(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocationList(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	list := NewRedisRevocationList(db)

	mock.ExpectSet("erp:token:revoked:j1", "1", time.Minute).SetVal("OK")
	require.NoError(t, list.Revoke(ctx, "j1", time.Minute))

	mock.ExpectExists("erp:token:revoked:j1").SetVal(1)
	revoked, err := list.IsRevoked(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mock.ExpectExists("erp:token:revoked:j2").SetVal(0)
	revoked, err = list.IsRevoked(ctx, "j2")
	require.NoError(t, err)
	assert.False(t, revoked)

	mock.ExpectExists("erp:token:revoked:j3").SetErr(errors.New("connection refused"))
	_, err = list.IsRevoked(ctx, "j3")
	assert.ErrorContains(t, err, "connection refused")

	// Non-positive ttl never reaches Redis.
	require.NoError(t, list.Revoke(ctx, "j4", 0))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()
	list := NewInMemoryRevocationList()

	live := &Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "live", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	require.NoError(t, RevokeToken(ctx, list, live))
	revoked, _ := list.IsRevoked(ctx, "live")
	assert.True(t, revoked)

	expired := &Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "old", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}}
	require.NoError(t, RevokeToken(ctx, list, expired))
	revoked, _ = list.IsRevoked(ctx, "old")
	assert.False(t, revoked)
}
