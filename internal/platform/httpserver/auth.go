package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "tokendrip"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

type adminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type principalKey struct{}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID string
	Role   string
}

// Authenticator issues and verifies HS256 admin tokens for a single configured
// administrator whose password is held only as a bcrypt hash.
type Authenticator struct {
	secret       []byte
	ttl          time.Duration
	userID       string
	role         string
	passwordHash []byte
	now          func() time.Time
}

func NewAuthenticator(secret string, ttl time.Duration, userID string, password string, role string) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if strings.TrimSpace(userID) == "" || password == "" {
		return nil, errors.New("admin user id and password are required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if strings.TrimSpace(role) == "" {
		role = "admin"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Authenticator{
		secret:       []byte(secret),
		ttl:          ttl,
		userID:       strings.TrimSpace(userID),
		role:         strings.TrimSpace(role),
		passwordHash: hash,
		now:          time.Now,
	}, nil
}

func (a *Authenticator) Login(userID string, password string) (string, time.Time, error) {
	if strings.TrimSpace(userID) != a.userID {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := a.now().UTC()
	expiresAt := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   a.userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: a.role,
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

func (a *Authenticator) Verify(raw string) (Principal, error) {
	var claims adminClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	return Principal{UserID: claims.Subject, Role: claims.Role}, nil
}

// RequireRole rejects requests without a valid bearer token for role.
func (a *Authenticator) RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token is required")
			return
		}
		principal, err := a.Verify(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		if principal.Role != role {
			writeError(w, http.StatusForbidden, "forbidden", "admin role is required")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, principal)))
	}
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(Principal)
	return principal, ok
}
