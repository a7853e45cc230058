package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiro/erp/internal/platform/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-access-secret-that-is-long-enough",
		RefreshSecret:          "test-refresh-secret-that-is-long-enough",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "chiro-erp-test",
		MaxRefreshCount:        2,
	}
}

func testSubject() Subject {
	return Subject{
		TenantID:    uuid.New(),
		UserID:      uuid.New(),
		Username:    "alice",
		Permissions: []string{"orders:read", "orders:write"},
	}
}

func TestIssueTokenPair(t *testing.T) {
	svc := NewTokenService(testJWTConfig())
	sub := testSubject()

	pair, err := svc.IssueTokenPair(sub)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), pair.AccessTokenExpiresAt, 5*time.Second)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sub.TenantID.String(), claims.TenantID)
	assert.Equal(t, sub.UserID.String(), claims.UserID)
	assert.Equal(t, sub.UserID.String(), claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, sub.Permissions, claims.Permissions)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.NotEmpty(t, claims.ID)

	refresh, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refresh.Permissions)
	assert.Equal(t, 0, refresh.RefreshCount)
}

func TestValidate_RejectsWrongTokenType(t *testing.T) {
	cfg := testJWTConfig()
	cfg.RefreshSecret = ""
	svc := NewTokenService(cfg)

	pair, err := svc.IssueTokenPair(testSubject())
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
	_, err = svc.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}

func TestValidate_Failures(t *testing.T) {
	svc := NewTokenService(testJWTConfig())

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
		pair, err := svc.IssueTokenPair(testSubject())
		svc.now = time.Now
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(time.Hour) }
		pair, err := svc.IssueTokenPair(testSubject())
		svc.now = time.Now
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := testJWTConfig()
		other.Secret = "another-secret-that-is-long-enough-too"
		pair, err := NewTokenService(other).IssueTokenPair(testSubject())
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := testJWTConfig()
		other.Issuer = "someone-else"
		pair, err := NewTokenService(other).IssueTokenPair(testSubject())
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{TenantID: "t", UserID: "u", TokenType: TokenTypeAccess})
		s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing tenant", func(t *testing.T) {
		c := svc.claims(Subject{UserID: uuid.New()}, TokenTypeAccess, time.Minute, time.Now())
		c.TenantID = ""
		s, err := svc.sign(c, svc.accessSecret)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(s)
		assert.ErrorIs(t, err, ErrMissingTenantID)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestIssueServiceToken(t *testing.T) {
	svc := NewTokenService(testJWTConfig())

	token, err := svc.IssueServiceToken(Subject{TenantID: uuid.New(), UserID: uuid.New(), Permissions: []string{"*"}}, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.True(t, claims.Service)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt.Time, 2*time.Second)
}

func TestRefresh(t *testing.T) {
	svc := NewTokenService(testJWTConfig())
	sub := testSubject()

	pair, err := svc.IssueTokenPair(sub)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(pair.RefreshToken, []string{"orders:read"})
	require.NoError(t, err)

	access, err := svc.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders:read"}, access.Permissions)
	assert.Equal(t, "alice", access.Username)

	refresh, err := svc.ValidateRefreshToken(refreshed.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, 1, refresh.RefreshCount)

	second, err := svc.Refresh(refreshed.RefreshToken, nil)
	require.NoError(t, err)

	_, err = svc.Refresh(second.RefreshToken, nil)
	assert.ErrorIs(t, err, ErrMaxRefreshExceeded)

	_, err = svc.Refresh(pair.AccessToken, nil)
	assert.Error(t, err)
}

func TestClaimsRemainingTTL(t *testing.T) {
	now := time.Now()
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))}}
	assert.InDelta(t, time.Minute.Seconds(), c.RemainingTTL(now).Seconds(), 1)
	assert.Zero(t, c.RemainingTTL(now.Add(2*time.Minute)))
	assert.Zero(t, (&Claims{}).RemainingTTL(now))
}
