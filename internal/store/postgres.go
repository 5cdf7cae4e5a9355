package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/beanatlas/coffee-cli/internal/db"
	"github.com/beanatlas/coffee-cli/internal/model"
)

// PostgresStore publishes accepted products to the coffee directory database.
// Publishing is additive: records are upserted by (roaster_id, normalized_url)
// and products missing from the latest scrape have availability flipped off,
// never deleted.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used publish operations.
var preparedStatements = map[string]string{
	"upsert_roaster": `INSERT INTO roasters (id, name, slug, website_url, country, city, state, platform, is_active, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			name = $2, slug = $3, website_url = $4, country = $5, city = $6,
			state = $7, platform = $8, is_active = $9, updated_at = $10`,
	"mark_unavailable": `UPDATE products SET is_available = FALSE, updated_at = now()
		 WHERE roaster_id = $1 AND is_available AND NOT (normalized_url = ANY($2))`,
	"count_products": `SELECT COUNT(*) FROM products WHERE roaster_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS roasters (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	slug        TEXT,
	website_url TEXT NOT NULL,
	country     TEXT,
	city        TEXT,
	state       TEXT,
	platform    TEXT,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id                 TEXT PRIMARY KEY,
	roaster_id         TEXT NOT NULL REFERENCES roasters(id),
	normalized_url     TEXT NOT NULL,
	name               TEXT NOT NULL,
	slug               TEXT,
	description        TEXT,
	source_url         TEXT NOT NULL,
	image_url          TEXT,
	roast_level        TEXT,
	bean_type          TEXT,
	processing_method  TEXT,
	region_name        TEXT,
	is_single_origin   BOOLEAN,
	is_seasonal        BOOLEAN,
	is_available       BOOLEAN NOT NULL DEFAULT TRUE,
	is_featured        BOOLEAN NOT NULL DEFAULT FALSE,
	prices             JSONB NOT NULL DEFAULT '[]',
	price_250g         DOUBLE PRECISION,
	tags               JSONB,
	flavor_profiles    JSONB,
	brew_methods       JSONB,
	acidity            TEXT,
	body               TEXT,
	sweetness          TEXT,
	aroma              TEXT,
	with_milk_suitable BOOLEAN,
	varietals          JSONB,
	altitude_meters    INTEGER,
	field_provenance   JSONB,
	scraped_at         TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (roaster_id, normalized_url)
);

CREATE INDEX IF NOT EXISTS idx_products_roaster_id ON products(roaster_id);
CREATE INDEX IF NOT EXISTS idx_products_available ON products(roaster_id, is_available);
CREATE INDEX IF NOT EXISTS idx_products_roast_level ON products(roast_level);
CREATE INDEX IF NOT EXISTS idx_products_bean_type ON products(bean_type);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// productColumns is the publish column set, in COPY order. ConflictKeys and id
// are excluded from the on-conflict update so identity and first-seen data
// survive re-publishing.
var productColumns = []string{
	"id", "roaster_id", "normalized_url", "name", "slug", "description",
	"source_url", "image_url", "roast_level", "bean_type", "processing_method",
	"region_name", "is_single_origin", "is_seasonal", "is_available",
	"is_featured", "prices", "price_250g", "tags", "flavor_profiles",
	"brew_methods", "acidity", "body", "sweetness", "aroma",
	"with_milk_suitable", "varietals", "altitude_meters", "field_provenance",
	"scraped_at", "updated_at",
}

// PublishResult reports what one publish call changed.
type PublishResult struct {
	Upserted          int64 `json:"upserted"`
	MarkedUnavailable int64 `json:"marked_unavailable"`
}

func (s *PostgresStore) UpsertRoaster(ctx context.Context, r model.Roaster) error {
	if r.ID == "" {
		return eris.New("postgres: roaster id required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO roasters (id, name, slug, website_url, country, city, state, platform, is_active, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
			name = $2, slug = $3, website_url = $4, country = $5, city = $6,
			state = $7, platform = $8, is_active = $9, updated_at = $10`,
		r.ID, r.Name, r.Slug, r.WebsiteURL, r.Country, r.City, r.State,
		r.Platform, r.IsActive, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert roaster %s", r.ID)
}

// PublishProducts upserts the roaster and its accepted products, then flips
// availability off for previously published products absent from this set.
func (s *PostgresStore) PublishProducts(ctx context.Context, roaster model.Roaster, products []*model.Product) (*PublishResult, error) {
	if err := s.UpsertRoaster(ctx, roaster); err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(products))
	seen := make([]string, 0, len(products))
	for _, p := range products {
		row, normalized, err := productRow(roaster.ID, p)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		seen = append(seen, normalized)
	}

	updateCols := make([]string, 0, len(productColumns))
	for _, c := range productColumns {
		switch c {
		case "id", "roaster_id", "normalized_url":
		default:
			updateCols = append(updateCols, c)
		}
	}

	upserted, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "products",
		Columns:      productColumns,
		ConflictKeys: []string{"roaster_id", "normalized_url"},
		UpdateCols:   updateCols,
	}, rows)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: publish products for %s", roaster.ID)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET is_available = FALSE, updated_at = now()
		 WHERE roaster_id = $1 AND is_available AND NOT (normalized_url = ANY($2))`,
		roaster.ID, seen,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: mark unavailable for %s", roaster.ID)
	}

	return &PublishResult{Upserted: upserted, MarkedUnavailable: tag.RowsAffected()}, nil
}

func (s *PostgresStore) CountProducts(ctx context.Context, roasterID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE roaster_id = $1`,
		roasterID,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count products")
}

// productRow converts a product to COPY values in productColumns order.
func productRow(roasterID string, p *model.Product) ([]any, string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	normalized := p.NormalizedURL
	if normalized == "" {
		normalized = p.SourceURL
	}

	pricesJSON, err := json.Marshal(p.Prices)
	if err != nil {
		return nil, "", eris.Wrapf(err, "postgres: marshal prices for %s", p.Name)
	}
	provenanceJSON, err := json.Marshal(p.Provenance)
	if err != nil {
		return nil, "", eris.Wrapf(err, "postgres: marshal provenance for %s", p.Name)
	}

	row := []any{
		p.ID, roasterID, normalized, p.Name, p.Slug, p.Description,
		p.SourceURL, p.ImageURL, string(p.RoastLevel), string(p.BeanType),
		string(p.ProcessingMethod), p.RegionName, p.IsSingleOrigin,
		p.IsSeasonal, p.IsAvailable, p.IsFeatured, pricesJSON,
		nullIfZeroFloat(p.Price250g), jsonOrNull(p.Tags),
		jsonOrNull(p.FlavorProfiles), jsonOrNull(p.BrewMethods),
		p.Acidity, p.Body, p.Sweetness, p.Aroma, p.WithMilkSuitable,
		jsonOrNull(p.Varietals), nullIfZeroInt(p.AltitudeMeters),
		provenanceJSON, nullIfZeroTime(p.ScrapedAt), time.Now().UTC(),
	}
	return row, normalized, nil
}

func nullIfZeroFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

func nullIfZeroInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullIfZeroTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func jsonOrNull(vals []string) any {
	if len(vals) == 0 {
		return nil
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return nil
	}
	return b
}
