// Package migrations embeds the goose SQL migrations and seed fixtures.
//
// Central holds the platform registry schema (the tenants table). Tenant
// holds the per-tenant POS schema applied by the provisioner to every newly
// created tenant database.
package migrations

import "embed"

//go:embed central/*.sql
var Central embed.FS

//go:embed tenant/*.sql
var Tenant embed.FS

//go:embed seed/defaults.yml
var Seed embed.FS

const (
	// CentralDir is the directory inside Central passed to the migrator.
	CentralDir = "central"
	// TenantDir is the directory inside Tenant passed to the migrator.
	TenantDir = "tenant"
	// SeedFile is the path of the default seed fixture inside Seed.
	SeedFile = "seed/defaults.yml"
)
