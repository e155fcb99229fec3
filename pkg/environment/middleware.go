package environment

import "net/http"

// Middleware stamps every request context with the deployment environment.
// Downstream consumers such as the tenant resolver read it to gate
// development-only behavior, so install this ahead of tenant resolution.
func Middleware(env Environment) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithContext(r.Context(), env)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
