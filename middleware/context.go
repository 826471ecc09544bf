package middleware

import (
	"net/http"

	"github.com/upb/book-feed/services/permissions"
)

// PermissionCache gives every request its own rule decision cache, so
// contextual rules run at most once per operation.
func PermissionCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(permissions.NewContext(r.Context())))
	})
}
