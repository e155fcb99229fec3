// Package pg wraps pgx with the connection, migration, and error-classification
// helpers the platform needs.
//
// The Config struct doubles as the base connection template for tenant
// databases: Config.WithDatabase derives a tenant-specific config that keeps
// host, credentials, and pool settings while overriding only the database
// name. Migrations run through goose from an embedded filesystem so a freshly
// created tenant database can be migrated without touching disk paths.
package pg
