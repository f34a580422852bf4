package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// CookieName is the cookie checked when no Authorization header is sent.
const CookieName = "auth_token"

// DefaultTokenTTL is used when an Authenticator has no TTL.
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrNoSecret     = errors.New("jwt secret not configured")
	ErrInvalidToken = errors.New("invalid token")
)

// User is the authenticated caller.
type User struct {
	Subject string `json:"sub"`
	Name    string `json:"name,omitempty"`
}

type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates HS256 bearer tokens.
type Authenticator struct {
	secret  []byte
	ttl     time.Duration
	enabled bool
	now     func() time.Time
}

// New returns an Authenticator. An enabled Authenticator requires a secret.
func New(secret string, ttl time.Duration, enabled bool) (*Authenticator, error) {
	if enabled && secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl, enabled: enabled, now: time.Now}, nil
}

// Enabled returns whether authentication is enforced
func (a *Authenticator) Enabled() bool {
	return a != nil && a.enabled
}

// Issue creates a signed token for subject.
func (a *Authenticator) Issue(subject, name string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrNoSecret
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject is required")
	}
	now := a.now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "lexora",
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Validate parses tokenString and returns its user.
func (a *Authenticator) Validate(tokenString string) (*User, error) {
	if len(a.secret) == 0 {
		return nil, ErrNoSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Subject != "" {
		return &User{Subject: claims.Subject, Name: claims.Name}, nil
	}
	return nil, ErrInvalidToken
}

// OptionalMiddleware extracts and validates a token if auth is enabled.
// If auth is disabled, it allows all requests through
func (a *Authenticator) OptionalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		// Authorization header first, then cookie
		var tokenString string
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tokenString = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		} else if cookie, err := r.Cookie(CookieName); err == nil {
			tokenString = cookie.Value
		}

		if tokenString == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		user, err := a.Validate(tokenString)
		if err != nil {
			http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext extracts user from request context
func UserFromContext(ctx context.Context) *User {
	if user, ok := ctx.Value(UserContextKey).(*User); ok {
		return user
	}
	return nil
}
