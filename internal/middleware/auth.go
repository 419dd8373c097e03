package middleware

import (
	"context"
	"net/http"

	"github.com/xelth-com/dmrelay/internal/auth"
)

type contextKey string

const SessionContextKey contextKey = "session"

// Auth verifies the session cookie and puts the verified session in
// the request context. Requests without a valid cookie get a 401.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := auth.VerifyRequest(r, secret)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), SessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom returns the verified session stored by Auth, or nil.
func SessionFrom(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(SessionContextKey).(*auth.Session)
	return sess
}
