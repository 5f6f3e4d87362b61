package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranquilae/Tranquilae-sub003/models"
)

const testSecret = "test-jwt-secret"

type stubUserRepo struct {
	users   map[string]models.User
	created []models.User
}

func newStubUserRepo(users ...models.User) *stubUserRepo {
	r := &stubUserRepo{users: make(map[string]models.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}

	return r
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}

	return u, nil
}

func (r *stubUserRepo) GetByEmail(context.Context, string) (models.User, error) {
	return models.User{}, models.ErrNotFound
}

func (r *stubUserRepo) GetByStripeCustomerID(context.Context, string) (models.User, error) {
	return models.User{}, models.ErrNotFound
}

func (r *stubUserRepo) Create(_ context.Context, user *models.User) error {
	user.Status = models.UserStatusActive
	r.users[user.ID] = *user
	r.created = append(r.created, *user)

	return nil
}

func (r *stubUserRepo) UpdateEmail(context.Context, string, string) error { return nil }

func (r *stubUserRepo) UpdateStatus(context.Context, string, string) error { return nil }

func (r *stubUserRepo) UpdateSubscription(context.Context, string, string, string, string) error {
	return nil
}

func signToken(t *testing.T, secret, subject, email string) string {
	t.Helper()

	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	return token
}

func TestNewAuthMiddleware(t *testing.T) {
	_, err := NewAuthMiddleware("", newStubUserRepo())
	assert.Error(t, err)

	mw, err := NewAuthMiddleware(testSecret, newStubUserRepo())
	require.NoError(t, err)
	assert.NotNil(t, mw)
}

func TestVerifyToken(t *testing.T) {
	mw, err := NewAuthMiddleware(testSecret, newStubUserRepo())
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		userID, email, err := mw.VerifyToken(signToken(t, testSecret, "user-1", "a@b.test"))
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)
		assert.Equal(t, "a@b.test", email)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, _, err := mw.VerifyToken(signToken(t, "other-secret", "user-1", "a@b.test"))
		assert.Error(t, err)
	})

	t.Run("no subject", func(t *testing.T) {
		_, _, err := mw.VerifyToken(signToken(t, testSecret, "", "a@b.test"))
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := mw.VerifyToken("not.a.token")
		assert.Error(t, err)
	})
}

func TestAuthenticate(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := GetUserID(r.Context())
		require.NoError(t, err)

		user, err := GetUser(r.Context())
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)

		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing header", func(t *testing.T) {
		mw, _ := NewAuthMiddleware(testSecret, newStubUserRepo())
		rec := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		mw, _ := NewAuthMiddleware(testSecret, newStubUserRepo())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AuthHeaderName, "Token abc")

		rec := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		mw, _ := NewAuthMiddleware(testSecret, newStubUserRepo())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AuthHeaderName, "Bearer "+signToken(t, "other-secret", "user-1", ""))

		rec := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("existing user", func(t *testing.T) {
		repo := newStubUserRepo(models.User{ID: "user-1", Email: "a@b.test", Status: models.UserStatusActive})
		mw, _ := NewAuthMiddleware(testSecret, repo)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AuthHeaderName, "Bearer "+signToken(t, testSecret, "user-1", "a@b.test"))

		rec := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, repo.created)
	})

	t.Run("unknown user is created from token claims", func(t *testing.T) {
		repo := newStubUserRepo()
		mw, _ := NewAuthMiddleware(testSecret, repo)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AuthHeaderName, "Bearer "+signToken(t, testSecret, "user-9", "new@b.test"))

		rec := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, repo.created, 1)
		assert.Equal(t, "user-9", repo.created[0].ID)
		assert.Equal(t, "new@b.test", repo.created[0].Email)
	})

	t.Run("unknown user without email claim", func(t *testing.T) {
		mw, _ := NewAuthMiddleware(testSecret, newStubUserRepo())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AuthHeaderName, "Bearer "+signToken(t, testSecret, "user-9", ""))

		rec := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("suspended user", func(t *testing.T) {
		repo := newStubUserRepo(models.User{ID: "user-1", Status: models.UserStatusSuspended})
		mw, _ := NewAuthMiddleware(testSecret, repo)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(AuthHeaderName, "Bearer "+signToken(t, testSecret, "user-1", "a@b.test"))

		rec := httptest.NewRecorder()
		mw.Authenticate(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGetUserIDMissing(t *testing.T) {
	_, err := GetUserID(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = GetUser(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
