// Package session adapts the external session provider: it verifies the
// bearer tokens the provider issues and exposes the caller as a
// model.Principal on the request context.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
)

// ErrUnauthorized is returned for missing, malformed or expired sessions.
var ErrUnauthorized = errors.New("unauthorized")

type ctxKey int

const principalKey ctxKey = 1

// Claims is the session token payload. CMSToken is the caller's own token for
// the content store.
type Claims struct {
	UID      int    `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	CMSToken string `json:"jwt"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 session tokens against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Issue mints a session token for p that expires after ttl.
func (v *Verifier) Issue(p model.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:      p.ID,
		Email:    p.Email,
		Name:     p.Name,
		CMSToken: p.Token,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses token and returns the principal it identifies.
func (v *Verifier) Verify(token string) (model.Principal, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.UID <= 0 || c.CMSToken == "" {
		return model.Principal{}, ErrUnauthorized
	}
	return model.Principal{ID: c.UID, Email: c.Email, Name: c.Name, Token: c.CMSToken}, nil
}

// Middleware attaches the principal to the context when the request carries a
// valid bearer token. Requests without one pass through unchanged.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := bearerToken(r); tok != "" {
			if p, err := v.Verify(tok); err == nil {
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects requests that carry no valid session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(model.ErrorResponse{Message: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the principal attached by Middleware.
func FromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
