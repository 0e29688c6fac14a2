package entity

import "time"

// MarketAggregate carries the slow-changing reference statistics for one area
// (a city). Read-only to the scoring components; refreshed independently of
// per-listing enrichment.
type MarketAggregate struct {
	Area              string    `json:"area" db:"area"`
	AvgRentPerSqm     float64   `json:"avg_rent_per_sqm" db:"avg_rent_per_sqm"`
	PopulationDensity float64   `json:"population_density" db:"population_density"`
	CommercialDensity float64   `json:"commercial_density" db:"commercial_density"`
	AvgSellPerSqm     float64   `json:"avg_sell_per_sqm" db:"avg_sell_per_sqm"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
