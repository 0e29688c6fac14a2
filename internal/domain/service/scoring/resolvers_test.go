package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"boxradar/internal/domain/entity"
	"boxradar/internal/domain/service/scoring"
	"boxradar/internal/domain/value"
)

func fptr(v float64) *float64 { return &v }

func TestTransportScore(t *testing.T) {
	rq := require.New(t)

	rq.Nil(scoring.TransportScore(nil, 12))

	testCases := []struct {
		name     string
		stations int
		want     float64
	}{
		{name: "no stations", stations: 0, want: 0},
		{name: "a few stations", stations: 3, want: 36},
		{name: "saturates at ten stations", stations: 10, want: 100},
		{name: "stays saturated", stations: 25, want: 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := scoring.TransportScore(&value.GeoSample{Stations: tc.stations}, 12)
			require.NotNil(t, got)
			require.Equal(t, tc.want, *got)
		})
	}
}

func TestAccessibilityScore(t *testing.T) {
	rq := require.New(t)

	rq.Equal(0.0, scoring.AccessibilityScore(value.NewTagSet(nil), 0))

	tags := value.NewTagSet([]string{"digicode", "électricité"})
	rq.Equal(40.0, scoring.AccessibilityScore(tags, 0))
	rq.Equal(50.0, scoring.AccessibilityScore(tags, 3))

	// capped at 100
	all := value.NewTagSet([]string{
		"digicode", "télécommande", "électricité", "eau", "vidéosurveillance", "accès 24h/24",
	})
	rq.Equal(100.0, scoring.AccessibilityScore(all, 5))
}

func TestLiquidityScoreMonotonic(t *testing.T) {
	rq := require.New(t)

	tags := value.NewTagSet([]string{"digicode"})

	base := scoring.LiquidityScore(2, tags, fptr(10))
	morePhotos := scoring.LiquidityScore(4, tags, fptr(10))
	moreTags := scoring.LiquidityScore(2, value.NewTagSet([]string{"digicode", "gardiennage"}), fptr(10))
	bigger := scoring.LiquidityScore(2, tags, fptr(16))

	rq.GreaterOrEqual(morePhotos, base)
	rq.GreaterOrEqual(moreTags, base)
	rq.GreaterOrEqual(bigger, base)
}

func TestVerticalStoragePotentialTiers(t *testing.T) {
	rq := require.New(t)

	height := value.NewTagSet([]string{"hauteur 2.5m"})
	none := value.NewTagSet(nil)

	rq.Equal(80.0, scoring.VerticalStoragePotential(fptr(14), height))
	rq.Equal(45.0, scoring.VerticalStoragePotential(fptr(14), none))
	rq.Equal(45.0, scoring.VerticalStoragePotential(fptr(9), height))
	rq.Equal(45.0, scoring.VerticalStoragePotential(nil, height))
	rq.Equal(20.0, scoring.VerticalStoragePotential(fptr(9), none))
	rq.Equal(20.0, scoring.VerticalStoragePotential(nil, none))
}

func TestPricePerSqm(t *testing.T) {
	rq := require.New(t)

	rq.Nil(scoring.PricePerSqm(8000, nil))
	rq.Nil(scoring.PricePerSqm(8000, fptr(0)))
	rq.Nil(scoring.PricePerSqm(8000, fptr(-3)))

	got := scoring.PricePerSqm(8000, fptr(15))
	rq.NotNil(got)
	rq.InDelta(533.33, *got, 0.01)
}

// The Lyon example: price 8000, surface 15, avg rent 12 €/m². Base rent is
// 180 €/month, the range is ±15% around it and the gross yield annualizes the
// mid-point.
func TestRentEstimateAndYieldLyon(t *testing.T) {
	rq := require.New(t)

	agg := &entity.MarketAggregate{Area: "Lyon", AvgRentPerSqm: 12}
	surface := fptr(15.0)

	low, high := scoring.RentEstimate(agg, surface)
	rq.NotNil(low)
	rq.NotNil(high)
	rq.InDelta(153.0, *low, 0.001)
	rq.InDelta(207.0, *high, 0.001)

	yield := scoring.GrossYield(low, high, 8000)
	rq.NotNil(yield)
	rq.InDelta(27.0, *yield, 0.001) // 180 × 12 / 8000 × 100

	storage := scoring.StorageYieldEstimate(yield, 45)
	rq.NotNil(storage)
	rq.InDelta(30.645, *storage, 0.001) // 27 × (1 + 0.30 × 0.45)
}

func TestRentEstimateUnknowns(t *testing.T) {
	rq := require.New(t)

	agg := &entity.MarketAggregate{Area: "Lyon", AvgRentPerSqm: 12}

	low, high := scoring.RentEstimate(nil, fptr(15))
	rq.Nil(low)
	rq.Nil(high)

	low, high = scoring.RentEstimate(agg, nil)
	rq.Nil(low)
	rq.Nil(high)

	rq.Nil(scoring.GrossYield(nil, fptr(207), 8000))
	rq.Nil(scoring.GrossYield(fptr(153), fptr(207), 0))
	rq.Nil(scoring.StorageYieldEstimate(nil, 45))
}
