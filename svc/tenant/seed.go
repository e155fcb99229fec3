package tenant

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/poskit/poskit/migrations"
)

// SeedData is the parsed shape of a seed fixture file.
type SeedData struct {
	Categories []SeedCategory `yaml:"categories"`
	Settings   map[string]any `yaml:"settings"`
}

// SeedCategory is one default product category from the fixture.
type SeedCategory struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
	SortOrder   int    `yaml:"sort_order"`
}

// LoadSeedData reads and parses a YAML seed fixture from fsys.
func LoadSeedData(fsys fs.FS, path string) (*SeedData, error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read seed fixture %s: %w", path, err)
	}

	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse seed fixture %s: %w", path, err)
	}
	return &data, nil
}

// DefaultSeeder returns a Seeder that inserts the embedded default fixture
// into a freshly migrated tenant database. The fixture's settings section is
// informational here; new tenants already carry it via DefaultSettings.
func DefaultSeeder() Seeder {
	return func(ctx context.Context, pool *pgxpool.Pool, _ *Tenant) error {
		data, err := LoadSeedData(migrations.Seed, migrations.SeedFile)
		if err != nil {
			return err
		}
		return seedCategories(ctx, pool, data.Categories)
	}
}

func seedCategories(ctx context.Context, pool *pgxpool.Pool, categories []SeedCategory) error {
	for _, c := range categories {
		_, err := pool.Exec(ctx, `
			INSERT INTO categories (id, name, slug, description, sort_order)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5)
			ON CONFLICT (slug) DO NOTHING`,
			uuid.New(), c.Name, c.Slug, c.Description, c.SortOrder)
		if err != nil {
			return fmt.Errorf("seed category %s: %w", c.Slug, err)
		}
	}
	return nil
}
