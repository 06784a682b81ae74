package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	auth, err := NewAuthenticator("secret", time.Hour, "operator", "pw", "")
	require.NoError(t, err)
	return auth
}

func TestNewAuthenticatorValidatesInputs(t *testing.T) {
	_, err := NewAuthenticator("", time.Hour, "operator", "pw", "admin")
	assert.Error(t, err)
	_, err = NewAuthenticator("secret", time.Hour, "", "pw", "admin")
	assert.Error(t, err)
	_, err = NewAuthenticator("secret", time.Hour, "operator", "", "admin")
	assert.Error(t, err)

	auth, err := NewAuthenticator("secret", 0, "operator", "pw", "")
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, auth.ttl)
	assert.Equal(t, "admin", auth.role)
	assert.NotEqual(t, []byte("pw"), auth.passwordHash)
}

func TestLoginAndVerifyRoundTrip(t *testing.T) {
	auth := newTestAuthenticator(t)

	token, expiresAt, err := auth.Login(" operator ", "pw")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	principal, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "operator", Role: "admin"}, principal)
}

func TestLoginRejectsWrongCredentials(t *testing.T) {
	auth := newTestAuthenticator(t)

	_, _, err := auth.Login("operator", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = auth.Login("someone", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	auth := newTestAuthenticator(t)
	issued := time.Now().Add(-2 * time.Hour)
	auth.now = func() time.Time { return issued }
	token, _, err := auth.Login("operator", "pw")
	require.NoError(t, err)

	auth.now = time.Now
	_, err = auth.Verify(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyRejectsForeignSignatureAndAlgorithm(t *testing.T) {
	auth := newTestAuthenticator(t)
	other, err := NewAuthenticator("other-secret", time.Hour, "operator", "pw", "admin")
	require.NoError(t, err)

	token, _, err := other.Login("operator", "pw")
	require.NoError(t, err)
	_, err = auth.Verify(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "admin",
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.Verify(raw)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRequireRoleAttachesPrincipal(t *testing.T) {
	auth := newTestAuthenticator(t)
	token, _, err := auth.Login("operator", "pw")
	require.NoError(t, err)

	var seen Principal
	handler := auth.RequireRole("admin", func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "operator", seen.UserID)

	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)
}
