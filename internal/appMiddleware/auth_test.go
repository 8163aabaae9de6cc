package appMiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VolunteerHub/server/internal/models"
)

var testSecret = []byte("test-secret")

func makeToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func TestParseToken(t *testing.T) {
	tokenStr := makeToken(t, jwt.MapClaims{
		"user_id":  float64(7),
		"username": "alice",
		"role":     "user",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	actor, username, err := ParseToken(tokenStr, testSecret)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{Role: models.RoleUser, ID: 7}, actor)
	assert.Equal(t, "alice", username)
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	tokenStr := makeToken(t, jwt.MapClaims{
		"user_id": float64(7),
		"role":    "superuser",
	})

	_, _, err := ParseToken(tokenStr, testSecret)
	assert.Error(t, err)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tokenStr := makeToken(t, jwt.MapClaims{
		"user_id": float64(7),
		"role":    "user",
	})

	_, _, err := ParseToken(tokenStr, []byte("other-secret"))
	assert.Error(t, err)
}

func TestAuthMiddlewareSetsActor(t *testing.T) {
	tokenStr := makeToken(t, jwt.MapClaims{
		"user_id": float64(3),
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	var got models.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		got = actor
	})

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	Auth(testSecret)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Actor{Role: models.RoleAdmin, ID: 3}, got)
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := httptest.NewRecorder()

	Auth(testSecret)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	tokenStr := makeToken(t, jwt.MapClaims{
		"user_id": float64(3),
		"role":    "admin",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	Auth(testSecret)(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
