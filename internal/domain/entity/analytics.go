package entity

// ListingFilter narrows a listing query. Nil fields are ignored.
type ListingFilter struct {
	City       *string
	Source     *string
	PriceMin   *float64
	PriceMax   *float64
	SurfaceMin *float64
	SurfaceMax *float64
	MinYield   *float64
	MinEdge    *float64
	Limit      int
	Offset     int
}

// EnrichedListing joins a listing with its enrichment, nil when the listing
// was never processed.
type EnrichedListing struct {
	Listing    Listing
	Enrichment *Enrichment
}

// CityStat is one row of the per-city breakdown.
type CityStat struct {
	City     string   `db:"city"`
	Listings int      `db:"listings"`
	AvgEdge  *float64 `db:"avg_edge"`
}

// SummaryStats aggregates the whole inventory for the analytics endpoint.
type SummaryStats struct {
	TotalListings int        `db:"total_listings"`
	EnrichedCount int        `db:"enriched_count"`
	AvgEdgeScore  *float64   `db:"avg_edge_score"`
	AvgGrossYield *float64   `db:"avg_gross_yield"`
	AvgPrice      *float64   `db:"avg_price"`
	TopCities     []CityStat `db:"-"`
}
