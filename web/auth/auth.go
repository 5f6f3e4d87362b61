package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

// AuthMiddleware verifies the hosted identity provider's session JWT and adds
// user info to the request context. Tokens are HS256-signed with a shared
// secret; the subject claim is the user id.
type AuthMiddleware struct {
	secret   []byte
	userRepo models.UserRepository
}

// ContextKey is used to store user information in the request context
type ContextKey string

const (
	// UserIDKey is the context key for storing the user ID
	UserIDKey ContextKey = "user_id"
	// UserKey is the context key for storing the full user record
	UserKey ContextKey = "user"
	// AuthHeaderName is the name of the authentication header
	AuthHeaderName = "Authorization"
)

var ErrNotAuthenticated = errors.New("user not authenticated")

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtSecret string, userRepo models.UserRepository) (*AuthMiddleware, error) {
	if jwtSecret == "" {
		return nil, errors.New("jwt secret is required")
	}

	return &AuthMiddleware{
		secret:   []byte(jwtSecret),
		userRepo: userRepo,
	}, nil
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// VerifyToken parses and validates a session token, returning the subject and
// email claims.
func (m *AuthMiddleware) VerifyToken(token string) (userID, email string, err error) {
	var claims sessionClaims

	_, err = jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return m.secret, nil
	})
	if err != nil {
		return "", "", err
	}

	if claims.Subject == "" {
		return "", "", errors.New("token has no subject")
	}

	return claims.Subject, claims.Email, nil
}

// Authenticate is the middleware function for authentication
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get(AuthHeaderName)
		if authHeader == "" {
			http.Error(w, "Unauthorized: missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Unauthorized: invalid authorization format", http.StatusUnauthorized)
			return
		}

		userID, email, err := m.VerifyToken(parts[1])
		if err != nil {
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}

		// Mirror the identity provider's subject into our users table on
		// first sight.
		user, err := m.userRepo.GetByID(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				http.Error(w, "Failed to retrieve user information", http.StatusInternalServerError)
				return
			}

			if email == "" {
				http.Error(w, "User has no email address", http.StatusBadRequest)
				return
			}

			user = models.User{
				ID:    userID,
				Email: email,
			}
			if err := m.userRepo.Create(r.Context(), &user); err != nil {
				http.Error(w, "Failed to create user record", http.StatusInternalServerError)
				return
			}
		}

		if user.Status == models.UserStatusSuspended {
			http.Error(w, "Forbidden: account suspended", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		ctx = context.WithValue(ctx, UserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the user ID from the request context
func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok || userID == "" {
		return "", ErrNotAuthenticated
	}

	return userID, nil
}

// GetUser extracts the full user record from the request context
func GetUser(ctx context.Context) (models.User, error) {
	user, ok := ctx.Value(UserKey).(models.User)
	if !ok {
		return models.User{}, ErrNotAuthenticated
	}

	return user, nil
}
