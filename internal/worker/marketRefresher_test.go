package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubTransactions struct {
	cities []string
	prices map[string]*float64
	errs   map[string]error
}

func (s *stubTransactions) Cities() []string { return s.cities }

func (s *stubTransactions) MedianSellPerSqm(_ context.Context, city string) (*float64, error) {
	if err := s.errs[city]; err != nil {
		return nil, err
	}
	return s.prices[city], nil
}

type stubAggregates struct {
	mu      sync.Mutex
	updates map[string]float64
}

func newStubAggregates() *stubAggregates {
	return &stubAggregates{updates: map[string]float64{}}
}

func (s *stubAggregates) RefreshSellPrice(_ context.Context, area string, sellPerSqm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[area] = sellPerSqm
	return nil
}

func fptr(v float64) *float64 { return &v }

func TestRefreshAllUpdatesCitiesWithData(t *testing.T) {
	source := &stubTransactions{
		cities: []string{"Lyon", "Bordeaux", "Nice"},
		prices: map[string]*float64{
			"Lyon":     fptr(1525),
			"Bordeaux": nil, // too few transactions
			"Nice":     fptr(1710),
		},
	}
	aggs := newStubAggregates()

	w := NewMarketRefresher(source, aggs, time.Hour).WithRequestInterval(time.Millisecond)
	w.RefreshAll(context.Background())

	require.Equal(t, map[string]float64{"Lyon": 1525, "Nice": 1710}, aggs.updates)
}

func TestRefreshAllContinuesPastFailures(t *testing.T) {
	source := &stubTransactions{
		cities: []string{"Lyon", "Bordeaux"},
		prices: map[string]*float64{"Bordeaux": fptr(1300)},
		errs:   map[string]error{"Lyon": errors.New("mirror down")},
	}
	aggs := newStubAggregates()

	w := NewMarketRefresher(source, aggs, time.Hour).WithRequestInterval(time.Millisecond)
	w.RefreshAll(context.Background())

	require.Equal(t, map[string]float64{"Bordeaux": 1300}, aggs.updates)
}

func TestStartStopLifecycle(t *testing.T) {
	source := &stubTransactions{cities: nil}
	w := NewMarketRefresher(source, newStubAggregates(), time.Hour)

	require.False(t, w.IsRunning())
	require.NoError(t, w.Start(context.Background()))
	require.True(t, w.IsRunning())
	require.Error(t, w.Start(context.Background()), "double start must fail")

	w.Stop()
	require.False(t, w.IsRunning())

	// restart after stop is allowed
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
}
