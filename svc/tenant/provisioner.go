package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poskit/poskit/core"
	"github.com/poskit/poskit/migrations"
	"github.com/poskit/poskit/pkg/metrics"
	"github.com/poskit/poskit/pkg/pg"
	"github.com/poskit/poskit/pkg/slug"
)

// AdminDB executes database-administration statements against the central
// server. *pgxpool.Pool satisfies it.
type AdminDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Migrator applies the tenant schema to the database the config points at.
type Migrator func(ctx context.Context, cfg pg.Config) error

// Seeder populates a freshly migrated tenant database with initial data.
type Seeder func(ctx context.Context, pool *pgxpool.Pool, t *Tenant) error

// Config carries the provisioner's tunables.
type Config struct {
	DatabasePrefix   string        `env:"TENANT_DB_PREFIX" envDefault:"tenant_"`          // DatabasePrefix prefixes every tenant's physical database name.
	BaseDomain       string        `env:"TENANT_BASE_DOMAIN" envDefault:"posapp.com"`     // BaseDomain builds the default <slug>.<BaseDomain> domain.
	TrialPeriod      time.Duration `env:"TENANT_TRIAL_PERIOD" envDefault:"336h"`          // TrialPeriod is stamped on new tenants (14 days).
	CleanupOnFailure bool          `env:"TENANT_CLEANUP_ON_FAILURE" envDefault:"false"`   // CleanupOnFailure removes the pending registry row when provisioning fails.
	CacheTTL         time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`               // CacheTTL bounds resolution cache entries.
}

// CreateParams are the caller-supplied fields for tenant creation.
type CreateParams struct {
	Name     string
	Email    string
	Domain   string
	Plan     Plan
	Settings map[string]any
}

// Provisioner drives a tenant's physical database lifecycle: creation,
// migration, seeding, and teardown. There is no background reconciliation;
// every transition is an explicit call.
type Provisioner struct {
	registry Registry
	admin    AdminDB
	base     pg.Config
	cfg      Config
	log      *slog.Logger

	migrate Migrator
	seed    Seeder
}

// ProvisionerOption configures a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithMigrator replaces the default tenant-schema migrator.
func WithMigrator(m Migrator) ProvisionerOption {
	return func(p *Provisioner) { p.migrate = m }
}

// WithSeeder registers a seeding routine run after migration. Without one,
// provisioning skips the seed step.
func WithSeeder(s Seeder) ProvisionerOption {
	return func(p *Provisioner) { p.seed = s }
}

// WithCleanupOnFailure controls whether a provisioning failure removes the
// pending registry row. The default retains it for inspection and retry.
func WithCleanupOnFailure(cleanup bool) ProvisionerOption {
	return func(p *Provisioner) { p.cfg.CleanupOnFailure = cleanup }
}

// NewProvisioner creates a Provisioner. admin must be connected to the
// central database with privileges to create and drop databases; base is the
// connection template tenant databases inherit.
func NewProvisioner(registry Registry, admin AdminDB, base pg.Config, cfg Config, log *slog.Logger, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		registry: registry,
		admin:    admin,
		base:     base,
		cfg:      cfg,
		log:      log,
	}
	p.migrate = p.defaultMigrator
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateTenant runs the full creation flow: derive a unique slug, insert a
// pending registry row, provision the physical database, then activate.
// Any provisioning failure aborts the whole creation; whether the pending
// registry row survives is governed by CleanupOnFailure.
func (p *Provisioner) CreateTenant(ctx context.Context, params CreateParams) (*Tenant, error) {
	if err := validateCreateParams(params); err != nil {
		return nil, err
	}

	uniqueSlug, err := p.uniqueSlug(ctx, slug.Make(params.Name))
	if err != nil {
		return nil, err
	}

	domain := params.Domain
	if domain == "" {
		domain = uniqueSlug + "." + p.cfg.BaseDomain
	}

	plan := params.Plan
	if plan == "" {
		plan = PlanFree
	}

	settings := params.Settings
	if settings == nil {
		settings = DefaultSettings()
	}

	trialEnd := time.Now().Add(p.cfg.TrialPeriod)
	t := &Tenant{
		ID:          uuid.New(),
		Name:        params.Name,
		Slug:        uniqueSlug,
		Domain:      domain,
		Database:    p.cfg.DatabasePrefix + strings.ReplaceAll(uniqueSlug, "-", "_"),
		Email:       params.Email,
		Status:      StatusPending,
		Plan:        plan,
		Settings:    settings,
		TrialEndsAt: &trialEnd,
	}

	if err := p.registry.Create(ctx, t); err != nil {
		return nil, err
	}

	if err := p.Provision(ctx, t); err != nil {
		if p.cfg.CleanupOnFailure {
			if delErr := p.registry.SoftDelete(ctx, t.ID); delErr != nil {
				p.log.ErrorContext(ctx, "failed to remove pending tenant after provisioning failure",
					slog.String("tenant_id", t.ID.String()), slog.Any("error", delErr))
			}
		}
		return nil, err
	}

	activated, err := p.registry.SetStatus(ctx, t.ID, StatusActive)
	if err != nil {
		return nil, err
	}

	p.log.InfoContext(ctx, "tenant created",
		slog.String("tenant_id", activated.ID.String()), slog.String("slug", activated.Slug))

	return activated, nil
}

// Provision creates the tenant's physical database, applies the tenant
// schema, and runs the registered seeder. If any step fails, the database
// created in step one is force-dropped — drop failures are logged, never
// surfaced — and the original step failure is returned. The registry row is
// left as-is for the caller.
func (p *Provisioner) Provision(ctx context.Context, t *Tenant) error {
	start := time.Now()

	err := p.provision(ctx, t)
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.ProvisioningDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())

	return err
}

func (p *Provisioner) provision(ctx context.Context, t *Tenant) error {
	if err := p.createDatabase(ctx, t.Database); err != nil {
		return err
	}

	if err := p.migrate(ctx, p.tenantConfig(t)); err != nil {
		p.compensate(ctx, t, err)
		return errors.Join(ErrMigrateDatabase, err)
	}

	if p.seed != nil {
		if err := p.runSeeder(ctx, t); err != nil {
			p.compensate(ctx, t, err)
			return errors.Join(ErrSeedDatabase, err)
		}
	}

	p.log.InfoContext(ctx, "tenant provisioned",
		slog.String("tenant_id", t.ID.String()), slog.String("database", t.Database))

	return nil
}

// compensate force-drops the partially provisioned database. Best effort:
// the original failure is what the caller must see, so a secondary drop
// failure is only logged.
func (p *Provisioner) compensate(ctx context.Context, t *Tenant, cause error) {
	p.log.ErrorContext(ctx, "provisioning failed, rolling back tenant database",
		slog.String("tenant_id", t.ID.String()),
		slog.String("database", t.Database),
		slog.Any("error", cause))

	if err := p.DropDatabase(ctx, t.Database); err != nil {
		p.log.ErrorContext(ctx, "rollback drop failed",
			slog.String("database", t.Database), slog.Any("error", err))
	}
}

// Deprovision terminates live connections to the tenant's database and drops
// it. A database already absent from the catalog counts as deprovisioned.
// Failure is logged and reported as false, never raised: a failed physical
// cleanup must not block deleting the tenant record.
func (p *Provisioner) Deprovision(ctx context.Context, t *Tenant) bool {
	exists, err := p.DatabaseExists(ctx, t.Database)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to deprovision tenant",
			slog.String("tenant_id", t.ID.String()),
			slog.String("database", t.Database),
			slog.Any("error", err))
		return false
	}
	if !exists {
		p.log.InfoContext(ctx, "tenant database already absent",
			slog.String("tenant_id", t.ID.String()), slog.String("database", t.Database))
		return true
	}

	if err := p.DropDatabase(ctx, t.Database); err != nil {
		p.log.ErrorContext(ctx, "failed to deprovision tenant",
			slog.String("tenant_id", t.ID.String()),
			slog.String("database", t.Database),
			slog.Any("error", err))
		return false
	}

	p.log.InfoContext(ctx, "tenant deprovisioned",
		slog.String("tenant_id", t.ID.String()), slog.String("database", t.Database))

	return true
}

// DatabaseExists checks the central catalog for the database name. Consulted
// before destructive operations.
func (p *Provisioner) DatabaseExists(ctx context.Context, name string) (bool, error) {
	name = SanitizeIdentifier(name)

	var exists bool
	err := p.admin.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check database existence: %w", err)
	}
	return exists, nil
}

func (p *Provisioner) createDatabase(ctx context.Context, name string) error {
	name = SanitizeIdentifier(name)

	// CREATE DATABASE cannot take bound parameters; the sanitized identifier
	// is the injection defense here.
	if _, err := p.admin.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %q`, name)); err != nil {
		if pg.IsDuplicateDatabaseError(err) {
			return errors.Join(ErrCreateDatabase, ErrDatabaseExists, err)
		}
		return errors.Join(ErrCreateDatabase, err)
	}

	p.log.InfoContext(ctx, "tenant database created", slog.String("database", name))
	return nil
}

// DropDatabase terminates all connections to the named database and drops
// it. The identifier is sanitized on this path too, including when invoked
// from the provisioning rollback.
func (p *Provisioner) DropDatabase(ctx context.Context, name string) error {
	name = SanitizeIdentifier(name)

	if _, err := p.admin.Exec(ctx, `
		SELECT pg_terminate_backend(pg_stat_activity.pid)
		FROM pg_stat_activity
		WHERE pg_stat_activity.datname = $1
		  AND pid <> pg_backend_pid()`, name); err != nil {
		return fmt.Errorf("terminate connections to %s: %w", name, err)
	}

	if _, err := p.admin.Exec(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %q`, name)); err != nil {
		return fmt.Errorf("drop database %s: %w", name, err)
	}

	p.log.InfoContext(ctx, "tenant database dropped", slog.String("database", name))
	return nil
}

// tenantConfig derives the tenant's connection config from the base template.
func (p *Provisioner) tenantConfig(t *Tenant) pg.Config {
	cfg, err := p.base.WithDatabase(SanitizeIdentifier(t.Database))
	if err != nil {
		// base template is validated at startup; an invalid DSN here means
		// the sanitized name was empty, surfaced by the connect attempt
		return p.base
	}
	return cfg
}

// defaultMigrator connects to the freshly created database and applies the
// embedded tenant schema.
func (p *Provisioner) defaultMigrator(ctx context.Context, cfg pg.Config) error {
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return pg.Migrate(ctx, pool, migrations.Tenant, migrations.TenantDir, cfg, p.log)
}

func (p *Provisioner) runSeeder(ctx context.Context, t *Tenant) error {
	pool, err := pg.Connect(ctx, p.tenantConfig(t))
	if err != nil {
		return err
	}
	defer pool.Close()

	return p.seed(ctx, pool, t)
}

// uniqueSlug appends -1, -2, … to the base slug until the registry reports
// no collision. This loop is an optimization: the partial unique index on
// tenants.slug is the final arbiter under concurrent creation.
func (p *Provisioner) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for counter := 1; ; counter++ {
		exists, err := p.registry.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}

var identifierPattern = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// SanitizeIdentifier reduces a database name to [A-Za-z0-9_]. Applied on
// every path that interpolates a caller-influenced name into a
// database-administration statement.
func SanitizeIdentifier(name string) string {
	return identifierPattern.ReplaceAllString(name, "")
}

func validateCreateParams(params CreateParams) error {
	valErr := core.NewValidationError()
	if strings.TrimSpace(params.Name) == "" {
		valErr.Add("name", "The name field is required.")
	}
	if strings.TrimSpace(params.Email) == "" {
		valErr.Add("email", "The email field is required.")
	} else if !strings.Contains(params.Email, "@") {
		valErr.Add("email", "The email must be a valid email address.")
	}
	if params.Plan != "" && !params.Plan.Valid() {
		valErr.Add("plan", "The selected plan is invalid.")
	}
	if valErr.IsEmpty() {
		return nil
	}
	return valErr
}
