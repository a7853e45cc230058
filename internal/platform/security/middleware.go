package security

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/httpapi"
	"github.com/chiro/erp/internal/platform/httpapi/dto"
	"github.com/chiro/erp/internal/platform/sharedkernel/logger"
)

const (
	claimsKey    = "security_claims"
	bearerPrefix = "Bearer "
)

type claimsContextKey struct{}

// AuthConfig configures Authenticate.
type AuthConfig struct {
	Tokens *TokenService
	// Revocations is optional; lookups fail open when the store errors.
	Revocations  RevocationList
	SkipPaths    []string
	SkipPrefixes []string
	Logger       *zap.Logger
}

// DefaultSkipPaths are the management endpoints every service exposes
// without authentication.
var DefaultSkipPaths = []string{"/health/live", "/health/ready", "/metrics"}

// Authenticate validates the bearer token and stores the claims in the gin
// context and in the request context, where the logger picks up tenant
// and user ids.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}
		for _, prefix := range cfg.SkipPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, log, ErrMissingCredentials, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			abortUnauthorized(c, log, ErrMissingCredentials, "Invalid authorization header format")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if token == "" {
			abortUnauthorized(c, log, ErrMissingCredentials, "Missing token")
			return
		}

		claims, err := cfg.Tokens.ValidateAccessToken(token)
		if err != nil {
			abortUnauthorized(c, log, err, "Token validation failed")
			return
		}

		if cfg.Revocations != nil && claims.ID != "" {
			revoked, err := cfg.Revocations.IsRevoked(c.Request.Context(), claims.ID)
			switch {
			case err != nil:
				log.Error("Failed to check token revocation", zap.String("jti", claims.ID), zap.Error(err))
			case revoked:
				abortUnauthorized(c, log, ErrTokenRevoked, "Token has been revoked")
				return
			}
		}

		c.Set(claimsKey, claims)
		ctx := ContextWithClaims(c.Request.Context(), claims)
		ctx = logger.WithTenantID(ctx, claims.TenantID)
		ctx = logger.WithUserID(ctx, claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error, reason string) {
	log.Warn("Authentication failed",
		zap.Error(err),
		zap.String("reason", reason),
		zap.String("path", c.Request.URL.Path),
	)

	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, ErrTokenRevoked):
		code, message = dto.ErrCodeTokenRevoked, "Token has been revoked"
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrInvalidTokenType),
		errors.Is(err, ErrTokenNotYetValid), errors.Is(err, ErrInvalidClaims),
		errors.Is(err, ErrMissingTenantID), errors.Is(err, ErrMissingSubject):
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(code, message, httpapi.GetRequestID(c)))
}

// RequirePermission aborts with 403 unless the caller holds at least one of
// the permissions. It must run after Authenticate.
func RequirePermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Authentication required", httpapi.GetRequestID(c)))
			return
		}
		if !claims.HasAnyPermission(permissions...) {
			logger.L(c.Request.Context()).Warn("Permission denied",
				zap.Strings("required", permissions),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponse(dto.ErrCodeForbidden, "Insufficient permissions", httpapi.GetRequestID(c)))
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the authenticated claims, or nil.
func ClaimsFrom(c *gin.Context) *Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// TenantID returns the caller's tenant, or uuid.Nil when unauthenticated.
func TenantID(c *gin.Context) uuid.UUID {
	claims := ClaimsFrom(c)
	if claims == nil {
		return uuid.Nil
	}
	id, err := claims.TenantUUID()
	if err != nil {
		return uuid.Nil
	}
	return id
}

// ContextWithClaims stores claims in ctx for layers below the handler.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns claims stored by ContextWithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok
}
