// Package identity resolves and validates the client identity of a request.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ClientIDParam is the route parameter carrying the client ID.
const ClientIDParam = "clientID"

type contextKey int

const clientIDKey contextKey = iota

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ClientIDFromContext extracts the client ID from the request context.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDKey).(string); ok {
		return v
	}
	return ""
}

// WithClientID returns a context carrying clientID.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey, clientID)
}

// ValidClientID reports whether id is an acceptable client ID.
func ValidClientID(id string) bool {
	return clientIDPattern.MatchString(id)
}

// Middleware validates the {clientID} route parameter and injects it into
// the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := strings.TrimSpace(chi.URLParam(r, ClientIDParam))
		if !ValidClientID(clientID) {
			http.Error(w, `{"error":"invalid client id"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID)))
	})
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
