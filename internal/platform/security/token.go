// Package security issues and validates the JWTs that authenticate calls
// between clients and context services.
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/chiro/erp/internal/platform/config"
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrInvalidTokenType   = errors.New("invalid token type")
	ErrInvalidClaims      = errors.New("invalid token claims")
	ErrTokenNotYetValid   = errors.New("token is not yet valid")
	ErrMissingTenantID    = errors.New("missing tenant_id in claims")
	ErrMissingSubject     = errors.New("missing user_id in claims")
	ErrMaxRefreshExceeded = errors.New("maximum refresh count exceeded")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrMissingCredentials = errors.New("missing bearer token")
)

// Claims carried by every token this package issues.
type Claims struct {
	jwt.RegisteredClaims
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	Permissions  []string  `json:"permissions,omitempty"`
	TokenType    TokenType `json:"token_type"`
	Service      bool      `json:"svc,omitempty"`
	RefreshCount int       `json:"refresh_count,omitempty"`
}

// TokenPair is the login/refresh response body.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// Subject identifies whom a token is issued to.
type Subject struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Username    string
	Permissions []string
}

// TokenService signs and verifies HS256 tokens. Access and refresh tokens
// use separate secrets when a refresh secret is configured.
type TokenService struct {
	accessSecret      []byte
	refreshSecret     []byte
	accessExpiration  time.Duration
	refreshExpiration time.Duration
	issuer            string
	maxRefreshCount   int
	now               func() time.Time
}

// NewTokenService creates a TokenService from configuration.
func NewTokenService(cfg config.JWTConfig) *TokenService {
	refreshSecret := []byte(cfg.RefreshSecret)
	if cfg.RefreshSecret == "" {
		refreshSecret = []byte(cfg.Secret)
	}
	return &TokenService{
		accessSecret:      []byte(cfg.Secret),
		refreshSecret:     refreshSecret,
		accessExpiration:  cfg.AccessTokenExpiration,
		refreshExpiration: cfg.RefreshTokenExpiration,
		issuer:            cfg.Issuer,
		maxRefreshCount:   cfg.MaxRefreshCount,
		now:               time.Now,
	}
}

func (s *TokenService) claims(sub Subject, typ TokenType, ttl time.Duration, now time.Time) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   sub.UserID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID:    sub.TenantID.String(),
		UserID:      sub.UserID.String(),
		Username:    sub.Username,
		Permissions: sub.Permissions,
		TokenType:   typ,
	}
}

// IssueTokenPair creates an access token carrying sub's permissions and a
// refresh token that carries none.
func (s *TokenService) IssueTokenPair(sub Subject) (*TokenPair, error) {
	return s.issuePair(sub, 0)
}

func (s *TokenService) issuePair(sub Subject, refreshCount int) (*TokenPair, error) {
	now := s.now()

	access, err := s.sign(s.claims(sub, TokenTypeAccess, s.accessExpiration, now), s.accessSecret)
	if err != nil {
		return nil, err
	}

	refreshClaims := s.claims(Subject{TenantID: sub.TenantID, UserID: sub.UserID, Username: sub.Username},
		TokenTypeRefresh, s.refreshExpiration, now)
	refreshClaims.RefreshCount = refreshCount
	refresh, err := s.sign(refreshClaims, s.refreshSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  now.Add(s.accessExpiration),
		RefreshTokenExpiresAt: now.Add(s.refreshExpiration),
		TokenType:             "Bearer",
	}, nil
}

// IssueServiceToken creates an access-only token for a machine client.
// A zero ttl uses the configured access expiration.
func (s *TokenService) IssueServiceToken(sub Subject, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.accessExpiration
	}
	c := s.claims(sub, TokenTypeAccess, ttl, s.now())
	c.Service = true
	return s.sign(c, s.accessSecret)
}

func (s *TokenService) sign(claims *Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateAccessToken parses and checks an access token.
func (s *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, s.accessSecret, TokenTypeAccess)
}

// ValidateRefreshToken parses and checks a refresh token.
func (s *TokenService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, s.refreshSecret, TokenTypeRefresh)
}

func (s *TokenService) validate(tokenString string, secret []byte, expected TokenType) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TokenType != expected {
		return nil, ErrInvalidTokenType
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenantID
	}
	if claims.UserID == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair. permissions are
// re-read by the caller so revoked grants do not survive a refresh. The
// chain is bounded by the configured maximum refresh count.
func (s *TokenService) Refresh(refreshToken string, permissions []string) (*TokenPair, error) {
	claims, err := s.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if s.maxRefreshCount > 0 && claims.RefreshCount >= s.maxRefreshCount {
		return nil, ErrMaxRefreshExceeded
	}

	tenantID, err := claims.TenantUUID()
	if err != nil {
		return nil, ErrInvalidClaims
	}
	userID, err := claims.UserUUID()
	if err != nil {
		return nil, ErrInvalidClaims
	}

	return s.issuePair(Subject{
		TenantID:    tenantID,
		UserID:      userID,
		Username:    claims.Username,
		Permissions: permissions,
	}, claims.RefreshCount+1)
}

// TenantUUID parses the tenant claim.
func (c *Claims) TenantUUID() (uuid.UUID, error) {
	return uuid.Parse(c.TenantID)
}

// UserUUID parses the user claim.
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// RemainingTTL reports how long the token stays valid, used as the
// revocation entry lifetime.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
