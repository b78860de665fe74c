// Package requesttime captures one "now" per HTTP request so that domain
// timestamps and the audit entry of a mutation agree exactly.
package requesttime

import (
	"net/http"
	"time"

	"compliancehub/pkg/requestcontext"
)

// Middleware stores the request start time (UTC) on the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
