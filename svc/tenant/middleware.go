package tenant

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/poskit/poskit/core"
	"github.com/poskit/poskit/pkg/metrics"
)

// Middleware resolves the tenant for every request, rejects unknown or
// inactive tenants, checks out the tenant's database connection, and runs
// the wrapped handler with the tenant and its connection in the request
// context. Each request holds its own pool reference, released when the
// handler returns, even on panic; the router's active-tenant slot is never
// touched, so concurrent requests for different tenants do not interfere.
func Middleware(resolver *Resolver, router *ConnRouter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, strategy, err := resolver.Resolve(r.Context(), r)
			if err != nil {
				if strategy == "" {
					strategy = "none"
				}
				metrics.ResolutionOutcomes.WithLabelValues("not_found", strategy).Inc()
				core.JSONErrorBody(w, http.StatusNotFound, core.ErrorResponse{
					Message: "Tenant not found.",
					Error:   "invalid_tenant",
				})
				return
			}

			if !t.IsActive() {
				metrics.ResolutionOutcomes.WithLabelValues("inactive", strategy).Inc()
				core.JSONErrorBody(w, http.StatusForbidden, core.ErrorResponse{
					Message: "Tenant account is not active.",
					Error:   "tenant_inactive",
					Status:  string(t.Status),
				})
				return
			}

			conn, err := router.Acquire(r.Context(), t)
			if err != nil {
				metrics.ResolutionOutcomes.WithLabelValues("activation_failed", strategy).Inc()
				log.ErrorContext(r.Context(), "failed to acquire tenant connection",
					slog.String("tenant_id", t.ID.String()),
					slog.String("database", t.Database),
					slog.Any("error", err))
				core.JSONError(w, errors.Join(core.ErrServiceUnavailable, err))
				return
			}
			defer router.Release(conn)

			metrics.ResolutionOutcomes.WithLabelValues("resolved", strategy).Inc()

			ctx := WithConn(WithTenant(r.Context(), t), conn)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
