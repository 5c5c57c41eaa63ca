package middleware

import (
	"context"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// Authorizer is the read-only view of a session the guards need.
type Authorizer interface {
	User() *goSession.UserRecord
	HasRole(required string) bool
	HasPermission(perm string) bool
}

type userContextKey struct{}

// UserFromContext returns the user a guard admitted.
func UserFromContext(ctx context.Context) (*goSession.UserRecord, bool) {
	u, ok := ctx.Value(userContextKey{}).(*goSession.UserRecord)
	return u, ok
}

func RequireAuthenticated(auth Authorizer) func(http.Handler) http.Handler {
	return guard(auth, func(Authorizer) bool { return true })
}

func RequireRole(auth Authorizer, role string) func(http.Handler) http.Handler {
	return guard(auth, func(a Authorizer) bool { return a.HasRole(role) })
}

func RequirePermission(auth Authorizer, perm string) func(http.Handler) http.Handler {
	return guard(auth, func(a Authorizer) bool { return a.HasPermission(perm) })
}

func guard(auth Authorizer, allow func(Authorizer) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			user := auth.User()
			if user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !allow(auth) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
