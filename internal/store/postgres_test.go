package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanatlas/coffee-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func driftRoaster() model.Roaster {
	return model.Roaster{
		ID:         "roaster-drift",
		Name:       "Drift Coffee Roasters",
		Slug:       "drift-coffee-roasters",
		WebsiteURL: "https://drift.example",
		Country:    "US",
		Platform:   "shopify",
		IsActive:   true,
	}
}

func TestPostgresStore_UpsertRoaster(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO roasters .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("roaster-drift", "Drift Coffee Roasters", "drift-coffee-roasters",
			"https://drift.example", "US", "", "", "shopify", true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertRoaster(context.Background(), driftRoaster())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRoaster_MissingID(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.UpsertRoaster(context.Background(), model.Roaster{Name: "No ID"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roaster id required")
}

func TestPostgresStore_PublishProducts_FullFlow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO roasters`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_products"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_products"}, productColumns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "products" .* ON CONFLICT \("roaster_id", "normalized_url"\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectExec(`UPDATE products SET is_available = FALSE`).
		WithArgs("roaster-drift", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	products := []*model.Product{
		{
			Name:          "Ethiopia Yirgacheffe",
			SourceURL:     "https://drift.example/products/ethiopia",
			NormalizedURL: "https://drift.example/products/ethiopia",
			RoastLevel:    model.RoastLight,
			BeanType:      model.BeanArabica,
			IsAvailable:   true,
			Prices:        []model.PriceEntry{{SizeGrams: 250, Price: 450}},
		},
		{
			Name:          "House Blend",
			SourceURL:     "https://drift.example/products/house",
			NormalizedURL: "https://drift.example/products/house",
			RoastLevel:    model.RoastMedium,
			BeanType:      model.BeanBlend,
			IsAvailable:   true,
			Prices:        []model.PriceEntry{{SizeGrams: 250, Price: 380}},
		},
	}

	result, err := s.PublishProducts(context.Background(), driftRoaster(), products)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Upserted)
	assert.Equal(t, int64(1), result.MarkedUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PublishProducts_AssignsIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO roasters`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_products"}, productColumns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "products"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectExec(`UPDATE products SET is_available = FALSE`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	p := &model.Product{
		Name:      "Seasonal Geisha",
		SourceURL: "https://drift.example/products/geisha",
	}
	_, err := s.PublishProducts(context.Background(), driftRoaster(), []*model.Product{p})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID, "publish assigns an id when the product has none")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountProducts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products`).
		WithArgs("roaster-drift").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))

	count, err := s.CountProducts(context.Background(), "roaster-drift")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS roasters`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
