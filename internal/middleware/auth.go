package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/services"
)

type contextKey string

const principalKey contextKey = "principal"

var redisClient *redis.Client

var errRevoked = errors.New("token has been revoked")

func errMissingClaim(name string) error {
	return fmt.Errorf("token is missing the %s claim", name)
}

// InitAuthMiddleware enables token revocation checks against Redis
func InitAuthMiddleware(client *redis.Client) {
	redisClient = client
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
			return
		}

		principal, err := validateToken(r.Context(), parts[1])
		if err != nil {
			log.Printf("[AUTH] Rejected token from %s: %v", r.RemoteAddr, err)
			services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin rejects callers without the admin role. It must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok || !principal.IsAdmin() {
			services.SendErrorResponse(w, "Admin role required", http.StatusForbidden, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal stores the authenticated caller on ctx
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller stored by AuthMiddleware
func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

func validateToken(ctx context.Context, tokenString string) (models.Principal, error) {
	claims, err := services.ParseJWT(tokenString)
	if err != nil {
		return models.Principal{}, err
	}

	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	if username == "" {
		return models.Principal{}, errMissingClaim("username")
	}
	if role != models.RoleAdmin {
		role = models.RoleUser
	}

	if jti, _ := claims["jti"].(string); jti != "" && redisClient != nil {
		revoked, err := redisClient.Exists(ctx, services.BlacklistKey(jti)).Result()
		if err != nil {
			log.Printf("[AUTH] Blacklist check failed: %v", err)
		} else if revoked > 0 {
			return models.Principal{}, errRevoked
		}
	}

	return models.Principal{Username: username, Role: role}, nil
}
