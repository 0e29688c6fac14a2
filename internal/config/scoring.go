package config

// Scoring carries the fixed edge-score weights and the saturation constants.
// The weights must sum to 1.0.
type Scoring struct {
	WeightPriceDeviation float64 `env:"WEIGHT_PRICE_DEVIATION" envDefault:"0.30"`
	WeightYield          float64 `env:"WEIGHT_YIELD" envDefault:"0.25"`
	WeightStorage        float64 `env:"WEIGHT_STORAGE_POTENTIAL" envDefault:"0.20"`
	WeightDemand         float64 `env:"WEIGHT_DEMAND" envDefault:"0.15"`
	WeightLiquidity      float64 `env:"WEIGHT_LIQUIDITY" envDefault:"0.10"`

	// Saturating linear mapping from ml_price_deviation to a 0-100 score:
	// 0% deviation maps to 50, DeviationSlope points per deviation percent.
	DeviationSlope float64 `env:"SCORING_DEVIATION_SLOPE" envDefault:"1.67"`

	// Transport saturation: PointsPerStation per transit stop inside the
	// search radius, ceiling at 100.
	PointsPerStation float64 `env:"SCORING_POINTS_PER_STATION" envDefault:"12"`

	// POI count within the search radius considered fully "dense".
	CommercialDensityCeiling float64 `env:"SCORING_COMMERCIAL_CEILING" envDefault:"30"`

	YieldPoorPct      float64 `env:"SCORING_YIELD_POOR_PCT" envDefault:"2"`
	YieldExcellentPct float64 `env:"SCORING_YIELD_EXCELLENT_PCT" envDefault:"12"`
}
