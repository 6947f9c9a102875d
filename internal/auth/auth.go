// Package auth resolves the Supabase user behind a request.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/catchsmart/catchsmart/internal/domain"
)

// DefaultAudience is the audience Supabase stamps on user access tokens.
const DefaultAudience = "authenticated"

// AccessTokenCookie is consulted when no Authorization header is present.
const AccessTokenCookie = "sb-access-token"

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens signed with the project JWT secret.
type Verifier struct {
	secret   []byte
	audience string
}

func NewVerifier(secret, audience string) *Verifier {
	if audience == "" {
		audience = DefaultAudience
	}
	return &Verifier{secret: []byte(secret), audience: audience}
}

// Authenticate returns the user for r, or an error wrapping
// domain.ErrUnauthorized when the session is absent or invalid.
func (v *Verifier) Authenticate(r *http.Request) (*domain.User, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, fmt.Errorf("%w: no access token", domain.ErrUnauthorized)
	}
	return v.Verify(token)
}

func (v *Verifier) Verify(tokenString string) (*domain.User, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: no verification secret configured", domain.ErrUnauthorized)
	}

	c := &claims{}
	_, err := jwt.ParseWithClaims(tokenString, c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}

	return &domain.User{ID: c.Subject, Email: c.Email}, nil
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
