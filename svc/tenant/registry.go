package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poskit/poskit/core"
	"github.com/poskit/poskit/pkg/pg"
)

// Filter narrows List results. Zero values mean "no filter".
type Filter struct {
	Status  Status
	Plan    Plan
	Page    int
	PerPage int
}

// DefaultPerPage bounds List results when the caller doesn't specify a size.
const DefaultPerPage = 15

// Registry is the durable store of tenant records. All lookups exclude
// soft-deleted tenants; uniqueness of slug, domain, database, and email is
// ultimately enforced by partial unique indexes in the central store, not by
// application-level checks.
type Registry interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	GetByDomain(ctx context.Context, domain string) (*Tenant, error)
	// FindBySlugOrDomain matches either the slug or the full host domain in a
	// single lookup, the shape subdomain resolution needs.
	FindBySlugOrDomain(ctx context.Context, slug, domain string) (*Tenant, error)
	List(ctx context.Context, f Filter) ([]*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	// UpdateSettings replaces only the settings document, leaving every other
	// column untouched.
	UpdateSettings(ctx context.Context, id uuid.UUID, settings map[string]any) error
	// SetStatus transitions the tenant to the given status. Transitioning to
	// active stamps activated_at; every other transition leaves it untouched.
	SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Tenant, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// PGRegistry is the pgx implementation of Registry backed by the central
// platform database.
type PGRegistry struct {
	pool *pgxpool.Pool
}

// NewPGRegistry creates a registry over the central database pool.
func NewPGRegistry(pool *pgxpool.Pool) *PGRegistry {
	return &PGRegistry{pool: pool}
}

const tenantColumns = `id, name, slug, domain, database, email, status, plan, settings, trial_ends_at, activated_at, created_at, updated_at`

func (r *PGRegistry) Create(ctx context.Context, t *Tenant) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err = r.pool.Exec(ctx, `
		INSERT INTO tenants (id, name, slug, domain, email, database, status, plan, settings, trial_ends_at, activated_at, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.Name, t.Slug, t.Domain, t.Email, t.Database, t.Status, t.Plan,
		settings, t.TrialEndsAt, t.ActivatedAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return translateUniqueViolation(err)
	}
	return nil
}

func (r *PGRegistry) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return r.get(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *PGRegistry) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return r.get(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1 AND deleted_at IS NULL`, slug)
}

func (r *PGRegistry) GetByDomain(ctx context.Context, domain string) (*Tenant, error) {
	return r.get(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE domain = $1 AND deleted_at IS NULL`, domain)
}

func (r *PGRegistry) FindBySlugOrDomain(ctx context.Context, slug, domain string) (*Tenant, error) {
	return r.get(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE (slug = $1 OR domain = $2) AND deleted_at IS NULL`, slug, domain)
}

func (r *PGRegistry) List(ctx context.Context, f Filter) ([]*Tenant, error) {
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE deleted_at IS NULL
		  AND ($1 = '' OR status = $1)
		  AND ($2 = '' OR plan = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		string(f.Status), string(f.Plan), perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *PGRegistry) Update(ctx context.Context, t *Tenant) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	t.UpdatedAt = time.Now()

	tag, err := r.pool.Exec(ctx, `
		UPDATE tenants
		SET name = $2, domain = NULLIF($3, ''), email = $4, status = $5, plan = $6,
		    settings = $7, trial_ends_at = $8, activated_at = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL`,
		t.ID, t.Name, t.Domain, t.Email, t.Status, t.Plan,
		settings, t.TrialEndsAt, t.ActivatedAt, t.UpdatedAt,
	)
	if err != nil {
		return translateUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *PGRegistry) UpdateSettings(ctx context.Context, id uuid.UUID, settings map[string]any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET settings = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id, raw)
	if err != nil {
		return fmt.Errorf("update tenant settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *PGRegistry) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Tenant, error) {
	t, err := r.get(ctx, `
		UPDATE tenants
		SET status = $2,
		    activated_at = CASE WHEN $2 = 'active' THEN now() ELSE activated_at END,
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+tenantColumns,
		id, status,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *PGRegistry) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (r *PGRegistry) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE slug = $1 AND deleted_at IS NULL)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func (r *PGRegistry) get(ctx context.Context, query string, args ...any) (*Tenant, error) {
	row := r.pool.QueryRow(ctx, query, args...)
	t, err := scanTenant(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return t, nil
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var (
		t        Tenant
		domain   *string
		settings []byte
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &domain, &t.Database, &t.Email, &t.Status, &t.Plan,
		&settings, &t.TrialEndsAt, &t.ActivatedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if domain != nil {
		t.Domain = *domain
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	return &t, nil
}

// uniqueConstraintFields maps central-store constraint names to the tenant
// field reported to administrative callers.
var uniqueConstraintFields = map[string]string{
	"tenants_slug_unique":     "slug",
	"tenants_domain_unique":   "domain",
	"tenants_database_unique": "database",
	"tenants_email_unique":    "email",
}

func translateUniqueViolation(err error) error {
	if !pg.IsDuplicateKeyError(err) {
		return fmt.Errorf("tenant registry: %w", err)
	}

	field, ok := uniqueConstraintFields[pg.ConstraintName(err)]
	if !ok {
		field = "tenant"
	}

	valErr := core.NewValidationError()
	valErr.Add(field, fmt.Sprintf("The %s has already been taken.", field))
	return errors.Join(valErr, err)
}
