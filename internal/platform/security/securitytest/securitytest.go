// Package securitytest issues tokens for handler tests.
package securitytest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/chiro/erp/internal/platform/config"
	"github.com/chiro/erp/internal/platform/security"
)

// JWTConfig returns signing settings for tests.
func JWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "securitytest-access-secret-0123456789",
		RefreshSecret:          "securitytest-refresh-secret-0123456789",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "chiro-erp-test",
		MaxRefreshCount:        3,
	}
}

// NewTestTokenService returns a TokenService using JWTConfig.
func NewTestTokenService() *security.TokenService {
	return security.NewTokenService(JWTConfig())
}

// BearerToken issues an access token for tenantID holding perms.
func BearerToken(t testing.TB, tokens *security.TokenService, tenantID uuid.UUID, perms ...string) string {
	t.Helper()
	pair, err := tokens.IssueTokenPair(security.Subject{
		TenantID:    tenantID,
		UserID:      uuid.New(),
		Username:    "tester",
		Permissions: perms,
	})
	require.NoError(t, err)
	return pair.AccessToken
}
