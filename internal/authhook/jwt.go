package authhook

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"muster/internal/domain"
)

// JWTHook authenticates requests carrying an "Authorization: Bearer
// <token>" header, verifying the token's signature against a fixed
// secret and mapping its claims to a User.
type JWTHook struct {
	secret []byte
}

// NewJWTHook builds a JWTHook that verifies HMAC-signed tokens under
// secret.
func NewJWTHook(secret []byte) *JWTHook {
	return &JWTHook{secret: secret}
}

// claims is the expected JWT payload shape: subject as user id, plus an
// optional name and roles list.
type claims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

func (h *JWTHook) Authenticate(r *http.Request) (*User, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, &domain.AuthenticationError{Reason: "missing bearer token"}
	}
	tokenString := strings.TrimPrefix(header, prefix)

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil {
		return nil, &domain.AuthenticationError{Reason: err.Error()}
	}
	if !token.Valid {
		return nil, &domain.AuthenticationError{Reason: "invalid token"}
	}

	subject, err := c.GetSubject()
	if err != nil || subject == "" {
		return nil, &domain.AuthenticationError{Reason: "token missing subject"}
	}

	return &User{ID: subject, Name: c.Name, Roles: c.Roles}, nil
}
