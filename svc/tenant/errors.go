package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when no registry record matches a lookup.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantInactive is returned when a resolved tenant's status is not active.
	ErrTenantInactive = errors.New("tenant is not active")

	// ErrNoCandidate signals that a resolution strategy found no candidate
	// key in the request, so the next strategy in the chain may run. It never
	// escapes Resolve.
	ErrNoCandidate = errors.New("no tenant candidate in request")

	// ErrNoTenantInContext is returned when a handler requires a tenant but
	// none was attached to the request context.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrNoActiveTenant is returned by router operations that require an
	// activated tenant connection.
	ErrNoActiveTenant = errors.New("no active tenant")

	// ErrDatabaseExists is returned when provisioning would create a database
	// that already exists in the catalog.
	ErrDatabaseExists = errors.New("tenant database already exists")

	// ErrCreateDatabase wraps failures of the CREATE DATABASE step.
	ErrCreateDatabase = errors.New("failed to create tenant database")

	// ErrMigrateDatabase wraps failures of the tenant migration step.
	ErrMigrateDatabase = errors.New("failed to migrate tenant database")

	// ErrSeedDatabase wraps failures of the tenant seeding step.
	ErrSeedDatabase = errors.New("failed to seed tenant database")
)
