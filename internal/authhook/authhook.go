// Package authhook defines the external auth boundary: turning an inbound
// request's bearer token, API key, or header into an authenticated User,
// gated per-project by sse_auth_required/message_auth_required.
package authhook

import "net/http"

// User is the authenticated identity attached to a request once a Hook
// accepts it.
type User struct {
	ID    string
	Name  string
	Roles []string
}

// Hook verifies an inbound request and returns the identity it resolves
// to, or an error if the request is unauthenticated/unauthorized.
type Hook interface {
	Authenticate(r *http.Request) (*User, error)
}

// NoopHook always succeeds with an anonymous User, used for
// projects/endpoints that don't require authentication.
type NoopHook struct{}

func (NoopHook) Authenticate(r *http.Request) (*User, error) {
	return &User{ID: "anonymous", Name: "anonymous"}, nil
}
