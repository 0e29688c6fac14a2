package persistence

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/dbtest"
	"boxradar/pkg/errcodes"
)

// Интеграционные тесты гоняются против живого Postgres; без TEST_PG_DSN
// пропускаются.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}

	db, err := sqlx.Connect("pgx", dsn)
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, dbtest.MigrateFromFile(db, "../../../migrations/001_init.sql"))

	for _, table := range []string{"listing_enrichments", "listings", "market_aggregates", "price_models", "jobs"} {
		_, err = db.Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}

	return db
}

func strPtr(s string) *string   { return &s }
func f64Ptr(v float64) *float64 { return &v }

func testListing(n int) *entity.Listing {
	return &entity.Listing{
		ID:                fmt.Sprintf("l%d", n),
		Source:            "mock",
		ExternalID:        fmt.Sprintf("ext_%d", n),
		Title:             fmt.Sprintf("Garage %d", n),
		Price:             10000 + float64(n)*1000,
		Surface:           f64Ptr(14),
		City:              strPtr("Lyon"),
		AccessibilityTags: []string{"digicode"},
		ScrapedAt:         time.Now().UTC().Truncate(time.Second),
	}
}

func TestListingRepositoryUpsertSkipsKnownPairs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewListingRepository(db)

	inserted, err := repo.UpsertBatch(ctx, []*entity.Listing{testListing(1), testListing(2)})
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	dup := testListing(1)
	dup.ID = "l1-copy"
	dup.Price = 99999

	inserted, err = repo.UpsertBatch(ctx, []*entity.Listing{dup, testListing(3)})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	got, err := repo.GetByID(ctx, "l1")
	require.NoError(t, err)
	require.Equal(t, 11000.0, got.Price)
	require.Equal(t, []string{"digicode"}, got.AccessibilityTags)
}

func TestListingRepositoryGetByIDNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewListingRepository(db)

	_, err := repo.GetByID(context.Background(), "nope")
	code, ok := domain.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errcodes.ListingNotFound, code)
}

func TestListingRepositoryListFiltersAndJoins(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewListingRepository(db)
	enrichments := NewEnrichmentRepository(db)

	paris := testListing(1)
	paris.City = strPtr("Paris")
	lyon := testListing(2)

	_, err := repo.UpsertBatch(ctx, []*entity.Listing{paris, lyon})
	require.NoError(t, err)

	require.NoError(t, enrichments.Upsert(ctx, &entity.Enrichment{
		ListingID:  "l2",
		EdgeScore:  f64Ptr(81),
		GrossYield: f64Ptr(9.5),
		ComputedAt: time.Now().UTC(),
	}))

	items, total, err := repo.List(ctx, entity.ListingFilter{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, items, 2)
	// enriched row sorts first
	require.Equal(t, "l2", items[0].Listing.ID)
	require.NotNil(t, items[0].Enrichment)
	require.Nil(t, items[1].Enrichment)

	items, total, err = repo.List(ctx, entity.ListingFilter{City: strPtr("Paris"), Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "l1", items[0].Listing.ID)

	items, total, err = repo.List(ctx, entity.ListingFilter{MinEdge: f64Ptr(80), Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "l2", items[0].Listing.ID)
}

func TestPriceModelRepositoryVersioningAndActivation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewPriceModelRepository(db)

	_, err := repo.GetActive(ctx)
	code, ok := domain.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errcodes.ModelNotFound, code)

	first := &entity.PriceModel{
		Features:    []string{"surface"},
		Weights:     []float64{1, 2},
		SampleCount: 120,
		TrainedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, first))
	require.Equal(t, 1, first.Version)

	second := &entity.PriceModel{
		Features:    []string{"surface"},
		Weights:     []float64{1.1, 2.2},
		SampleCount: 150,
		TrainedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, second))
	require.Equal(t, 2, second.Version)

	require.NoError(t, repo.Activate(ctx, 2))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, active.Version)

	// activation swaps atomically
	require.NoError(t, repo.Activate(ctx, 1))

	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, active.Version)

	err = repo.Activate(ctx, 42)
	code, ok = domain.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errcodes.ModelNotFound, code)
}

func TestJobRepositoryLatestByKind(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewJobRepository(db)

	older := &entity.Job{
		ID:        "j1",
		Kind:      entity.JobIngest,
		State:     entity.JobSucceeded,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	newer := &entity.Job{
		ID:        "j2",
		Kind:      entity.JobIngest,
		State:     entity.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	latest, err := repo.GetLatestByKind(ctx, entity.JobIngest)
	require.NoError(t, err)
	require.Equal(t, "j2", latest.ID)

	_, err = repo.GetLatestByKind(ctx, entity.JobTrain)
	code, ok := domain.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errcodes.JobNotFound, code)
}

func TestMarketAggregateRepositoryCreateIfAbsent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewMarketAggregateRepository(db)

	agg := &entity.MarketAggregate{
		Area:          "Lyon",
		AvgRentPerSqm: 12,
		AvgSellPerSqm: 1400,
		UpdatedAt:     time.Now().UTC(),
	}

	created, err := repo.CreateIfAbsent(ctx, agg)
	require.NoError(t, err)
	require.True(t, created)

	created, err = repo.CreateIfAbsent(ctx, agg)
	require.NoError(t, err)
	require.False(t, created)

	require.NoError(t, repo.UpdateSellPrice(ctx, "Lyon", 1525))

	got, err := repo.GetByArea(ctx, "Lyon")
	require.NoError(t, err)
	require.Equal(t, 1525.0, got.AvgSellPerSqm)

	err = repo.UpdateSellPrice(ctx, "Nantes", 1000)
	code, ok := domain.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errcodes.AggregateNotFound, code)
}
