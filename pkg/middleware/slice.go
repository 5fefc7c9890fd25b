package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// SliceHeader selects a slice explicitly, overriding any subdomain match.
const SliceHeader = "NCBO-Slice"

type sliceContextKey struct{}

// SliceResolver reports whether a slice acronym exists. Satisfied by
// services.SliceService via Resolve.
type SliceResolver interface {
	Exists(ctx context.Context, acronym string) bool
}

// WithSlice returns middleware that resolves the requested slice from the
// NCBO-Slice header or the first subdomain label and stores its acronym in
// the request context. Unknown slices are ignored: the request proceeds
// unscoped rather than failing.
func WithSlice(resolver SliceResolver, enabled bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acronym := requestedSlice(r)
			if acronym == "" || !resolver.Exists(r.Context(), acronym) {
				next.ServeHTTP(w, r)
				return
			}

			logger.Debug("Scoping request to slice", zap.String("slice", acronym))
			ctx := context.WithValue(r.Context(), sliceContextKey{}, acronym)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SliceFrom returns the slice acronym the request was scoped to, or "".
func SliceFrom(ctx context.Context) string {
	acronym, _ := ctx.Value(sliceContextKey{}).(string)
	return acronym
}

func requestedSlice(r *http.Request) string {
	if header := r.Header.Get(SliceHeader); header != "" {
		return header
	}

	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	// The first subdomain label selects the slice: test-group.example.org
	// scopes to "test-group".
	if i := strings.Index(host, "."); i > 0 {
		return host[:i]
	}
	return ""
}
