package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	a := NewAuthenticator("secret", time.Hour)
	tok, err := a.IssueToken("u-1", booking.RoleTutor)
	require.NoError(t, err)

	caller, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, booking.Caller{UserID: "u-1", Role: booking.RoleTutor}, caller)
}

func TestAuthenticator_RejectsExpired(t *testing.T) {
	a := NewAuthenticator("secret", time.Minute)
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }
	tok, err := a.IssueToken("u-1", booking.RoleLearner)
	require.NoError(t, err)

	a.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = a.Parse(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuthenticator_RejectsUnknownRoleAndSystem(t *testing.T) {
	a := NewAuthenticator("secret", time.Hour)
	for _, role := range []booking.Role{"superuser", booking.RoleSystem} {
		tok, err := a.IssueToken("u-1", role)
		require.NoError(t, err)
		_, err = a.Parse(tok)
		assert.Error(t, err, role)
	}
}

func TestAuthenticator_RejectsOtherAlgorithms(t *testing.T) {
	a := NewAuthenticator("secret", time.Hour)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = a.Parse(tok)
	assert.Error(t, err)
}

func TestMiddleware_StoresCaller(t *testing.T) {
	a := NewAuthenticator("secret", time.Hour)
	tok, err := a.IssueToken("u-9", booking.RoleAdmin)
	require.NoError(t, err)

	var got booking.Caller
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CallerFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, booking.Caller{UserID: "u-9", Role: booking.RoleAdmin}, got)
}
