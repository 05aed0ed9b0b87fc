package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func createValidJWT(accountID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountID,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, _ := token.SignedString([]byte(testSecret))
	return tokenString
}

func runMiddleware(t *testing.T, config JWTConfig, path, authHeader string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := JWTMiddleware(config)(next)
	require.NoError(t, handler(c))
	return rec
}

func TestJWTMiddleware_SuccessfulAuthentication(t *testing.T) {
	accountID := uuid.New()
	config := JWTConfig{Secret: testSecret, Logger: zap.NewNop()}

	rec := runMiddleware(t, config, "/api/v1/usage", "Bearer "+createValidJWT(accountID.String()),
		func(c echo.Context) error {
			got, err := AccountIDFromContext(c)
			assert.NoError(t, err)
			assert.Equal(t, accountID, got)
			return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
		})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTMiddleware_MissingAuthorizationHeader(t *testing.T) {
	config := JWTConfig{Secret: testSecret, Logger: zap.NewNop()}

	rec := runMiddleware(t, config, "/api/v1/usage", "", func(c echo.Context) error {
		t.Fatal("handler should not run")
		return nil
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_AUTH_HEADER")
}

func TestJWTMiddleware_InvalidHeaderFormat(t *testing.T) {
	config := JWTConfig{Secret: testSecret, Logger: zap.NewNop()}

	rec := runMiddleware(t, config, "/api/v1/usage", createValidJWT(uuid.NewString()),
		func(c echo.Context) error {
			t.Fatal("handler should not run")
			return nil
		})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_AUTH_FORMAT")
}

func TestJWTMiddleware_InvalidSignature(t *testing.T) {
	config := JWTConfig{Secret: testSecret, Logger: zap.NewNop()}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	rec := runMiddleware(t, config, "/api/v1/usage", "Bearer "+signed, func(c echo.Context) error {
		t.Fatal("handler should not run")
		return nil
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TOKEN")
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	config := JWTConfig{Secret: testSecret, Logger: zap.NewNop()}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec := runMiddleware(t, config, "/api/v1/usage", "Bearer "+signed, func(c echo.Context) error {
		t.Fatal("handler should not run")
		return nil
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddleware_SubjectMustBeUUID(t *testing.T) {
	config := JWTConfig{Secret: testSecret, Logger: zap.NewNop()}

	rec := runMiddleware(t, config, "/api/v1/usage", "Bearer "+createValidJWT("not-a-uuid"),
		func(c echo.Context) error {
			t.Fatal("handler should not run")
			return nil
		})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CLAIMS")
}

func TestJWTMiddleware_SkipPaths(t *testing.T) {
	config := JWTConfig{
		Secret:    testSecret,
		Logger:    zap.NewNop(),
		SkipPaths: []string{"/health", "/webhook"},
	}

	rec := runMiddleware(t, config, "/health", "", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "healthy"})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAccountIDFromContext_Missing(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	_, err := AccountIDFromContext(c)
	assert.ErrorIs(t, err, ErrNoAccount)
}
