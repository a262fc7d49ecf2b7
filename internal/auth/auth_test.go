package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/safar/electronics-store/internal/config"
	"github.com/safar/electronics-store/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *Resolver {
	return NewResolver(config.AuthConfig{
		JWTSecret:     "test-secret-key-at-least-32-chars",
		Issuer:        "electronics-store-test",
		TokenTTL:      time.Hour,
		SessionCookie: "session_token",
	})
}

func TestIssueAndResolveBearer(t *testing.T) {
	r := newTestResolver()

	token, err := r.IssueToken(42, models.RoleStaff)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	caller, err := r.Resolve(rec, req)

	require.NoError(t, err)
	id, ok := caller.Identity.CustomerID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.True(t, caller.IsAdmin())
	assert.Empty(t, rec.Header().Get(SessionHeader))
}

func TestResolve_ExpiredToken(t *testing.T) {
	r := newTestResolver()
	r.ttl = -time.Minute

	token, err := r.IssueToken(42, models.RoleCustomer)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = r.Resolve(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestResolve_WrongSecret(t *testing.T) {
	other := NewResolver(config.AuthConfig{JWTSecret: "another-secret", Issuer: "electronics-store-test", TokenTTL: time.Hour})
	token, err := other.IssueToken(42, models.RoleAdmin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = newTestResolver().Resolve(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolve_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", Issuer: "electronics-store-test"},
		Role:             models.RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = newTestResolver().Resolve(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolve_NonBearerScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	_, err := newTestResolver().Resolve(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolve_GuestFromHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/carts/", nil)
	req.Header.Set(SessionHeader, "sess-abc")
	rec := httptest.NewRecorder()

	caller, err := newTestResolver().Resolve(rec, req)

	require.NoError(t, err)
	token, ok := caller.Identity.SessionToken()
	assert.True(t, ok)
	assert.Equal(t, "sess-abc", token)
	assert.Equal(t, "sess-abc", rec.Header().Get(SessionHeader))
	assert.Empty(t, rec.Result().Cookies())
}

func TestResolve_GuestFromCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/carts/", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "sess-cookie"})

	caller, err := newTestResolver().Resolve(httptest.NewRecorder(), req)

	require.NoError(t, err)
	token, _ := caller.Identity.SessionToken()
	assert.Equal(t, "sess-cookie", token)
}

func TestResolve_MintsSessionToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/carts/", nil)
	rec := httptest.NewRecorder()

	caller, err := newTestResolver().Resolve(rec, req)

	require.NoError(t, err)
	token, ok := caller.Identity.SessionToken()
	require.True(t, ok)
	assert.Equal(t, token, rec.Header().Get(SessionHeader))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session_token", cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
}

func TestResolve_OversizedSessionTokenIsReplaced(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/carts/", nil)
	req.Header.Set(SessionHeader, strings.Repeat("x", 100))

	caller, err := newTestResolver().Resolve(httptest.NewRecorder(), req)

	require.NoError(t, err)
	token, _ := caller.Identity.SessionToken()
	assert.NotEqual(t, strings.Repeat("x", 100), token)
	assert.LessOrEqual(t, len(token), maxSessionTokenLen)
}
