package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/coinledger/backend/internal/models"
	"github.com/coinledger/backend/internal/repository"
)

const (
	maxLoginAttempts   = 5
	loginAttemptWindow = 15 * time.Minute
)

type AuthService struct {
	users      repository.UserStore
	redis      *redis.Client
	validation *ValidationHelper
	now        func() time.Time
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=100" example:"operator1"` // Operator username
	Password string `json:"password" validate:"required,min=6" example:"password123"` // Operator password
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token     string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	ExpiresAt time.Time   `json:"expiresAt"`                                               // Token expiry
	User      models.User `json:"user"`                                                    // Operator information
}

func NewAuthService(users repository.UserStore, redisClient *redis.Client) *AuthService {
	return &AuthService{
		users:      users,
		redis:      redisClient,
		validation: NewValidationHelper(),
		now:        time.Now,
	}
}

func (s *AuthService) sendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	SendErrorResponse(w, message, statusCode, validationErr)
}

// Login handles operator authentication
// @Summary Login operator
// @Description Authenticate an operator with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 429 {object} ErrorResponse "Too many attempts"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Login failed - invalid request: %v", err)
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		s.sendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validation.Validate(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	username := strings.ToLower(strings.TrimSpace(req.Username))

	if s.tooManyAttempts(ctx, username) {
		log.Printf("[AUTH] Login rate limit hit for %s", username)
		s.sendErrorResponse(w, "Too many login attempts, try again later", http.StatusTooManyRequests, nil)
		return
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("[AUTH] User lookup failed for %s: %v", username, err)
			s.sendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
			return
		}
		log.Printf("[AUTH] User not found: %s", username)
		s.recordFailedAttempt(ctx, username)
		s.sendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifyPassword(req.Password, user.PasswordHash) {
		log.Printf("[AUTH] Invalid password for user: %s", username)
		s.recordFailedAttempt(ctx, username)
		s.sendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	s.clearAttempts(ctx, username)

	token, expiresAt, err := GenerateJWT(user)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %s: %v", username, err)
		s.sendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for user %s (%s)", user.Username, user.Role)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, ExpiresAt: expiresAt, User: *user})
}

// Logout handles operator logout
// @Summary Logout operator
// @Description Logout and blacklist the token until it expires
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if tokenString, ok := strings.CutPrefix(authHeader, "Bearer "); ok && s.redis != nil {
		claims, err := ParseJWT(tokenString)
		if err != nil {
			log.Printf("[AUTH] Logout with unusable token: %v", err)
		} else if jti, _ := claims["jti"].(string); jti != "" {
			ttl := claimExpiry(claims).Sub(s.now())
			if ttl > 0 {
				if err := s.redis.Set(r.Context(), BlacklistKey(jti), "1", ttl).Err(); err != nil {
					log.Printf("[AUTH] Failed to blacklist token: %v", err)
				}
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

func loginAttemptsKey(username string) string {
	return fmt.Sprintf("login_attempts:%s", username)
}

// BlacklistKey is the Redis key marking a revoked token id
func BlacklistKey(jti string) string {
	return fmt.Sprintf("blacklist:%s", jti)
}

func (s *AuthService) tooManyAttempts(ctx context.Context, username string) bool {
	if s.redis == nil {
		return false
	}

	count, err := s.redis.Get(ctx, loginAttemptsKey(username)).Int()
	if err != nil && err != redis.Nil {
		log.Printf("[AUTH] Failed to read login attempts for %s: %v", username, err)
		return false
	}
	return count >= maxLoginAttempts
}

func (s *AuthService) recordFailedAttempt(ctx context.Context, username string) {
	if s.redis == nil {
		return
	}

	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, loginAttemptsKey(username))
	pipe.Expire(ctx, loginAttemptsKey(username), loginAttemptWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[AUTH] Failed to record login attempt for %s: %v", username, err)
	}
}

func (s *AuthService) clearAttempts(ctx context.Context, username string) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, loginAttemptsKey(username))
}

// GenerateJWT issues a signed token carrying the operator's identity and role
func GenerateJWT(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      user.Username,
		"username": user.Username,
		"role":     user.Role,
		"jti":      uuid.NewString(),
		"exp":      expiresAt.Unix(),
	})

	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret_key")))
	return signed, expiresAt, err
}

// ParseJWT verifies an HS256 token and returns its claims
func ParseJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}

func claimExpiry(claims jwt.MapClaims) time.Time {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// HashPassword derives an argon2id hash encoded as "salt$hash"
func HashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
