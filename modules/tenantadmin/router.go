package tenantadmin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/poskit/poskit/svc/tenant"
)

// Lifecycle is the subset of the tenant provisioner the admin API drives.
type Lifecycle interface {
	CreateTenant(ctx context.Context, params tenant.CreateParams) (*tenant.Tenant, error)
	Deprovision(ctx context.Context, t *tenant.Tenant) bool
}

// Service exposes tenant administration over HTTP. It is mounted on the
// central (non-tenant) side of the router and is expected to sit behind
// operator authentication.
type Service struct {
	registry  tenant.Registry
	lifecycle Lifecycle
	log       *slog.Logger
}

// NewService creates the tenant administration service.
func NewService(registry tenant.Registry, lifecycle Lifecycle, log *slog.Logger) *Service {
	return &Service{
		registry:  registry,
		lifecycle: lifecycle,
		log:       log,
	}
}

// Handle returns the module router.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/api/tenants", tenantadmin.NewService(registry, provisioner, log).Handle())
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/", s.create)
	r.Get("/", s.list)
	r.Get("/{id}", s.get)
	r.Patch("/{id}", s.update)
	r.Delete("/{id}", s.delete)
	r.Post("/{id}/activate", s.activate)
	r.Post("/{id}/suspend", s.suspend)

	return r
}
