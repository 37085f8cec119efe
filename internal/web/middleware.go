// Package web provides the localhost HTTP status API for ClaudeWatch.
package web

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// TokenAuth enforces a bearer token on the API. The plaintext token is
// hashed at construction and dropped, so a heap dump of the server never
// exposes it. An empty token disables the check entirely; the API binds to
// localhost, so that is an acceptable default for a single-user tool.
type TokenAuth struct {
	hash []byte
}

// NewTokenAuth creates a bearer-token gate. token may be empty.
func NewTokenAuth(token string) (*TokenAuth, error) {
	if token == "" {
		return &TokenAuth{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &TokenAuth{hash: hash}, nil
}

// Enabled reports whether a token is configured.
func (a *TokenAuth) Enabled() bool {
	return len(a.hash) > 0
}

// Check validates a presented token.
func (a *TokenAuth) Check(token string) bool {
	if !a.Enabled() {
		return true
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(token)) == nil
}

// Middleware wraps handlers with the bearer check. /healthz always passes so
// liveness probes do not need credentials.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		if a.Check(extractBearer(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="ClaudeWatch"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

// extractBearer pulls the token from the Authorization header.
func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}
