package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/errcodes"
)

type fakeAggRepo struct {
	rows     map[string]entity.MarketAggregate
	getCalls int
}

func newFakeAggRepo(rows ...entity.MarketAggregate) *fakeAggRepo {
	r := &fakeAggRepo{rows: map[string]entity.MarketAggregate{}}
	for _, row := range rows {
		r.rows[row.Area] = row
	}
	return r
}

func (r *fakeAggRepo) GetByArea(_ context.Context, area string) (*entity.MarketAggregate, error) {
	r.getCalls++
	row, ok := r.rows[area]
	if !ok {
		return nil, domain.NewError(errcodes.AggregateNotFound, area)
	}
	return &row, nil
}

func (r *fakeAggRepo) CreateIfAbsent(_ context.Context, agg *entity.MarketAggregate) (bool, error) {
	if _, ok := r.rows[agg.Area]; ok {
		return false, nil
	}
	r.rows[agg.Area] = *agg
	return true, nil
}

func (r *fakeAggRepo) UpdateSellPrice(_ context.Context, area string, sellPerSqm float64) error {
	row, ok := r.rows[area]
	if !ok {
		return domain.NewError(errcodes.AggregateNotFound, area)
	}
	row.AvgSellPerSqm = sellPerSqm
	r.rows[area] = row
	return nil
}

func strPtr(s string) *string { return &s }

func TestGetByAreaKnownCity(t *testing.T) {
	repo := newFakeAggRepo(
		entity.MarketAggregate{Area: "Lyon", AvgRentPerSqm: 13},
		entity.MarketAggregate{Area: "default", AvgRentPerSqm: 9},
	)
	p := NewProvider(repo, time.Minute)

	agg := p.GetByArea(context.Background(), strPtr("Lyon"))

	require.NotNil(t, agg)
	require.Equal(t, "Lyon", agg.Area)
	require.InDelta(t, 13.0, agg.AvgRentPerSqm, 1e-9)
}

func TestGetByAreaFallsBackToDefault(t *testing.T) {
	repo := newFakeAggRepo(entity.MarketAggregate{Area: "default", AvgRentPerSqm: 9})
	p := NewProvider(repo, time.Minute)

	agg := p.GetByArea(context.Background(), strPtr("Perpignan"))
	require.NotNil(t, agg)
	require.Equal(t, "default", agg.Area)

	agg = p.GetByArea(context.Background(), nil)
	require.NotNil(t, agg)
	require.Equal(t, "default", agg.Area)
}

func TestGetByAreaNothingKnown(t *testing.T) {
	p := NewProvider(newFakeAggRepo(), time.Minute)

	require.Nil(t, p.GetByArea(context.Background(), strPtr("Lyon")))
	require.Nil(t, p.GetByArea(context.Background(), nil))
}

func TestGetByAreaCaches(t *testing.T) {
	repo := newFakeAggRepo(entity.MarketAggregate{Area: "Lyon", AvgRentPerSqm: 13})
	p := NewProvider(repo, time.Minute)

	p.GetByArea(context.Background(), strPtr("Lyon"))
	p.GetByArea(context.Background(), strPtr("Lyon"))

	require.Equal(t, 1, repo.getCalls)
}

func TestRefreshSellPriceInvalidatesCache(t *testing.T) {
	repo := newFakeAggRepo(entity.MarketAggregate{Area: "Lyon", AvgRentPerSqm: 13, AvgSellPerSqm: 1400})
	p := NewProvider(repo, time.Minute)

	agg := p.GetByArea(context.Background(), strPtr("Lyon"))
	require.InDelta(t, 1400.0, agg.AvgSellPerSqm, 1e-9)

	require.NoError(t, p.RefreshSellPrice(context.Background(), "Lyon", 1525))

	agg = p.GetByArea(context.Background(), strPtr("Lyon"))
	require.InDelta(t, 1525.0, agg.AvgSellPerSqm, 1e-9)
}

func TestSeedDefaultsIdempotent(t *testing.T) {
	repo := newFakeAggRepo(entity.MarketAggregate{Area: "Lyon", AvgRentPerSqm: 13, AvgSellPerSqm: 1525})
	p := NewProvider(repo, time.Minute)

	require.NoError(t, p.SeedDefaults(context.Background()))
	require.NoError(t, p.SeedDefaults(context.Background()))

	// existing rows keep their refreshed values
	require.InDelta(t, 1525.0, repo.rows["Lyon"].AvgSellPerSqm, 1e-9)
	require.Contains(t, repo.rows, "Paris")
	require.Contains(t, repo.rows, "default")
}
