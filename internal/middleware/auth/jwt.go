package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const accountContextKey = "authenticated_account_id"

// ErrNoAccount indicates the request context carries no authenticated account.
var ErrNoAccount = errors.New("no authenticated account in context")

// JWTConfig holds the configuration for JWT middleware
type JWTConfig struct {
	Secret    string
	Logger    *zap.Logger
	SkipPaths []string // Paths to skip JWT validation
}

// JWTMiddleware validates bearer tokens and stores the account id (the UUID
// `sub` claim) on the request context.
func JWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, skipPath := range config.SkipPaths {
				if strings.HasPrefix(path, skipPath) {
					return next(c)
				}
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				config.Logger.Warn("Missing authorization header",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Authorization header required",
					"code":  "MISSING_AUTH_HEADER",
				})
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				config.Logger.Warn("Invalid authorization header format",
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid authorization header format. Expected: Bearer <token>",
					"code":  "INVALID_AUTH_FORMAT",
				})
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(config.Secret), nil
			})

			if err != nil || !token.Valid {
				config.Logger.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid or expired token",
					"code":  "INVALID_TOKEN",
				})
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid token claims",
					"code":  "INVALID_CLAIMS",
				})
			}

			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				config.Logger.Warn("Token missing subject claim", zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Token missing subject",
					"code":  "INVALID_CLAIMS",
				})
			}

			accountID, err := uuid.Parse(sub)
			if err != nil {
				config.Logger.Warn("Token subject is not a valid account id",
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Token subject is not a valid account id",
					"code":  "INVALID_CLAIMS",
				})
			}

			c.Set(accountContextKey, accountID)
			return next(c)
		}
	}
}

// AccountIDFromContext returns the authenticated account id set by
// JWTMiddleware.
func AccountIDFromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(accountContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoAccount
	}
	return id, nil
}
