package entity

import "time"

// Enrichment holds every derived metric for one listing. Each numeric field is
// independently nullable: a missing input leaves its field nil without
// touching the others. The whole record is rewritten on every enrichment run.
type Enrichment struct {
	ListingID string `json:"listing_id" db:"listing_id"`

	// Market context
	AvgRentArea       *float64 `json:"avg_rent_area" db:"avg_rent_area"`
	PopulationDensity *float64 `json:"population_density" db:"population_density"`
	CommercialDensity *float64 `json:"commercial_density" db:"commercial_density"`

	// Sub-scores (0-100)
	TransportScore           *float64 `json:"transport_score" db:"transport_score"`
	LiquidityScore           *float64 `json:"liquidity_score" db:"liquidity_score"`
	AccessibilityScore       *float64 `json:"accessibility_score" db:"accessibility_score"`
	VerticalStoragePotential *float64 `json:"vertical_storage_potential" db:"vertical_storage_potential"`

	// Financial metrics
	PricePerSqm          *float64 `json:"price_per_sqm" db:"price_per_sqm"`
	EstimatedRentLow     *float64 `json:"estimated_rent_low" db:"estimated_rent_low"`
	EstimatedRentHigh    *float64 `json:"estimated_rent_high" db:"estimated_rent_high"`
	GrossYield           *float64 `json:"gross_yield" db:"gross_yield"`
	StorageYieldEstimate *float64 `json:"storage_yield_estimate" db:"storage_yield_estimate"`

	// ML
	MLEstimatedPrice *float64 `json:"ml_estimated_price" db:"ml_estimated_price"`
	MLPriceDeviation *float64 `json:"ml_price_deviation" db:"ml_price_deviation"`

	// The score
	EdgeScore        *float64 `json:"edge_score" db:"edge_score"`
	EdgeScorePartial bool     `json:"edge_score_partial" db:"edge_score_partial"`

	ComputedAt time.Time `json:"computed_at" db:"computed_at"`
}

// EdgeBucket is the display bucket, derived on read and never stored.
type EdgeBucket string

const (
	BucketGreen  EdgeBucket = "green"
	BucketYellow EdgeBucket = "yellow"
	BucketOrange EdgeBucket = "orange"
	BucketRed    EdgeBucket = "red"
)

func (e *Enrichment) Bucket() *EdgeBucket {
	if e.EdgeScore == nil {
		return nil
	}

	var b EdgeBucket
	switch s := *e.EdgeScore; {
	case s >= 75:
		b = BucketGreen
	case s >= 55:
		b = BucketYellow
	case s >= 35:
		b = BucketOrange
	default:
		b = BucketRed
	}

	return &b
}
