package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Guimenn/Zelos-Senai-sub003/internal/model"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/database"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/jwtutil"
	"github.com/Guimenn/Zelos-Senai-sub003/pkg/logger"
	"github.com/Guimenn/Zelos-Senai-sub003/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID   = "user_id"
	ContextEmail    = "email"
	ContextUserRole = "user_role"
	ContextIdentity = "identity"
	ContextToken    = "token"
)

var (
	errInactiveUser = errors.New("user is inactive")
	errRevokedToken = errors.New("token has been revoked")
)

// AuthMiddleware validates the bearer token, consulting the token cache first
func AuthMiddleware(cache *TokenCache) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			// Get the Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing Authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			// Check if it's a Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				log.Warn("Invalid Authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}
			tokenString := parts[1]

			identity, ok := cache.Get(tokenString)
			if !ok {
				var err error
				identity, err = verifyToken(tokenString)
				switch {
				case errors.Is(err, errInactiveUser):
					log.Warn("Inactive user presented a token", zap.Uint("user_id", identity.UserID))
					prometheus.RecordAuthError("inactive_user")
					return c.JSON(http.StatusForbidden, echo.Map{"error": "user account is inactive"})
				case err != nil:
					log.Warn("Invalid or expired token", zap.Error(err))
					prometheus.RecordAuthError("invalid_token")
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
				}
				cache.Set(tokenString, identity)
			}

			// Store user info in context for later use
			c.Set(ContextUserID, identity.UserID)
			c.Set(ContextEmail, identity.Email)
			c.Set(ContextUserRole, identity.Role)
			c.Set(ContextIdentity, identity)
			c.Set(ContextToken, tokenString)

			logger.Attach(logger.WithUserID(c.Request().Context(), identity.UserID), c)

			return next(c)
		}
	}
}

// verifyToken checks the signature and the account state behind the token
func verifyToken(tokenString string) (Identity, error) {
	claims, err := jwtutil.ValidateToken(tokenString)
	if err != nil {
		return Identity{}, err
	}

	identity := Identity{
		UserID:  claims.UserID,
		Email:   claims.Email,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := database.GetDB().Select("id", "email", "role", "is_active", "tokens_valid_after").
		First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return identity, errors.New("user no longer exists")
		}
		return identity, err
	}
	if !user.IsActive {
		return identity, errInactiveUser
	}
	if user.TokensValidAfter != nil && identity.IssuedAt.Before(*user.TokensValidAfter) {
		return identity, errRevokedToken
	}

	var revoked int64
	if err := database.GetDB().Model(&model.RevokedToken{}).Where("jti = ?", claims.ID).Count(&revoked).Error; err != nil {
		return identity, err
	}
	if revoked > 0 {
		return identity, errRevokedToken
	}

	// The stored role wins over the one in the token so role changes apply immediately
	identity.Role = user.Role
	identity.Email = user.Email
	return identity, nil
}

// CurrentUserID returns the authenticated user ID
func CurrentUserID(c echo.Context) uint {
	id, _ := c.Get(ContextUserID).(uint)
	return id
}

// CurrentRole returns the authenticated user role
func CurrentRole(c echo.Context) model.Role {
	role, _ := c.Get(ContextUserRole).(model.Role)
	return role
}

// CurrentIdentity returns everything the auth middleware stored about the caller
func CurrentIdentity(c echo.Context) (Identity, bool) {
	identity, ok := c.Get(ContextIdentity).(Identity)
	return identity, ok
}
