// Package tenant implements multi-tenant resolution, per-tenant database
// routing, and tenant lifecycle management for the platform.
//
// Each tenant owns a dedicated Postgres database recorded in the central
// registry. Inbound requests are matched to a tenant by subdomain, custom
// domain, X-Tenant-ID header, or (outside production) a query parameter; the
// Middleware then activates the tenant's connection pool and carries the
// tenant and its connection through the request context.
//
// The Provisioner creates, migrates, seeds, and drops tenant databases. All
// lifecycle transitions are explicit calls; there is no background
// reconciliation.
package tenant
