package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/services"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

// principalEcho writes the username and role the middleware attached
func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Write([]byte(p.Username + "/" + p.Role))
	})
}

func TestAuthMiddleware(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 1)
	InitAuthMiddleware(nil)

	handler := AuthMiddleware(principalEcho())

	serve := func(header string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", "/api/v1/entries", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	t.Run("missing header", func(t *testing.T) {
		w := serve("")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Authorization header required")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("Basic abc").Code)
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer").Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer nope").Code)
	})

	t.Run("valid token attaches the principal", func(t *testing.T) {
		token, _, err := services.GenerateJWT(&models.User{Username: "alice", Role: models.RoleAdmin})
		require.NoError(t, err)

		w := serve("Bearer " + token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice/admin", w.Body.String())
	})

	t.Run("unknown role is treated as user", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{
			"username": "bob",
			"role":     "superuser",
			"exp":      time.Now().Add(time.Hour).Unix(),
		})

		w := serve("Bearer " + token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "bob/user", w.Body.String())
	})

	t.Run("username claim is required", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{
			"role": models.RoleAdmin,
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+token).Code)
	})
}

func TestAuthMiddleware_Revocation(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")
	redisClient, mock := redismock.NewClientMock()
	InitAuthMiddleware(redisClient)
	defer InitAuthMiddleware(nil)

	handler := AuthMiddleware(principalEcho())
	token := signedToken(t, jwt.MapClaims{
		"username": "alice",
		"role":     models.RoleUser,
		"jti":      "abc",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	request := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", "/api/v1/entries", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	mock.ExpectExists("blacklist:abc").SetVal(0)
	assert.Equal(t, http.StatusOK, request().Code)

	mock.ExpectExists("blacklist:abc").SetVal(1)
	assert.Equal(t, http.StatusUnauthorized, request().Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name      string
		principal *models.Principal
		want      int
	}{
		{"admin", &models.Principal{Username: "root", Role: models.RoleAdmin}, http.StatusNoContent},
		{"user", &models.Principal{Username: "alice", Role: models.RoleUser}, http.StatusForbidden},
		{"anonymous", nil, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/v1/games", nil)
			if tc.principal != nil {
				r = r.WithContext(WithPrincipal(r.Context(), *tc.principal))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Frame-Options"))
}
