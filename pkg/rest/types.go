// Package rest holds the wire models served by the HTTP API.
package rest

type Listing struct {
	ID                string      `json:"id"`
	Source            string      `json:"source"`
	ExternalID        string      `json:"externalId"`
	URL               *string     `json:"url"`
	Title             string      `json:"title"`
	Description       *string     `json:"description"`
	Price             float64     `json:"price"`
	Surface           *float64    `json:"surface"`
	City              *string     `json:"city"`
	PostalCode        *string     `json:"postalCode"`
	Address           *string     `json:"address"`
	Lat               *float64    `json:"lat"`
	Lon               *float64    `json:"lon"`
	PhotosCount       int         `json:"photosCount"`
	FloorLevel        *int        `json:"floorLevel"`
	AccessibilityTags []string    `json:"accessibilityTags"`
	ScrapedAt         string      `json:"scrapedAt"`
	Enrichment        *Enrichment `json:"enrichment"`
}

type Enrichment struct {
	AvgRentArea              *float64 `json:"avgRentArea"`
	PopulationDensity        *float64 `json:"populationDensity"`
	CommercialDensity        *float64 `json:"commercialDensity"`
	TransportScore           *float64 `json:"transportScore"`
	LiquidityScore           *float64 `json:"liquidityScore"`
	AccessibilityScore       *float64 `json:"accessibilityScore"`
	VerticalStoragePotential *float64 `json:"verticalStoragePotential"`
	PricePerSqm              *float64 `json:"pricePerSqm"`
	EstimatedRentLow         *float64 `json:"estimatedRentLow"`
	EstimatedRentHigh        *float64 `json:"estimatedRentHigh"`
	GrossYield               *float64 `json:"grossYield"`
	StorageYieldEstimate     *float64 `json:"storageYieldEstimate"`
	MLEstimatedPrice         *float64 `json:"mlEstimatedPrice"`
	MLPriceDeviation         *float64 `json:"mlPriceDeviation"`
	EdgeScore                *float64 `json:"edgeScore"`
	EdgeScorePartial         bool     `json:"edgeScorePartial"`
	EdgeBucket               *string  `json:"edgeBucket"`
	ComputedAt               string   `json:"computedAt"`
}

type ListingsPage struct {
	Total int       `json:"total"`
	Items []Listing `json:"items"`
}

// GeoJSON point features for map rendering.

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string            `json:"type"`
	Geometry   PointGeometry     `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

type PointGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // lon, lat
}

type FeatureProperties struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Price       float64  `json:"price"`
	Surface     *float64 `json:"surface"`
	City        *string  `json:"city"`
	URL         *string  `json:"url"`
	EdgeScore   *float64 `json:"edge_score"`
	GrossYield  *float64 `json:"gross_yield"`
	PricePerSqm *float64 `json:"price_per_sqm"`
}

type Summary struct {
	TotalListings    int       `json:"totalListings"`
	EnrichedListings int       `json:"enrichedListings"`
	AvgEdgeScore     *float64  `json:"avgEdgeScore"`
	AvgGrossYield    *float64  `json:"avgGrossYield"`
	AvgPrice         *float64  `json:"avgPrice"`
	TopCities        []CityTop `json:"topCities"`
}

type CityTop struct {
	City    string   `json:"city"`
	Count   int      `json:"count"`
	AvgEdge *float64 `json:"avgEdge"`
}

type TopOpportunity struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	City       *string  `json:"city"`
	Price      float64  `json:"price"`
	Surface    *float64 `json:"surface"`
	GrossYield *float64 `json:"grossYield"`
	EdgeScore  float64  `json:"edgeScore"`
	URL        *string  `json:"url"`
}

type Job struct {
	JobID      string  `json:"jobId"`
	Kind       string  `json:"kind"`
	State      string  `json:"state"`
	StartedAt  *string `json:"startedAt"`
	FinishedAt *string `json:"finishedAt"`
	Error      *string `json:"error"`
	Processed  int     `json:"processed"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
}

// Error Модель ошибок
type Error struct {
	// Code Код ошибки
	Code ErrorCode `json:"code"`

	// Message Сообщение об ошибке (для отображения в UI в будущем)
	Message string `json:"message"`
}

// ErrorCode Код ошибки
type ErrorCode string
