package persistence

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"boxradar/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// listingSchema — представление таблицы listings в БД.
type listingSchema struct {
	ID          string    `db:"id"`
	Source      string    `db:"source"`
	ExternalID  string    `db:"external_id"`
	URL         *string   `db:"url"`
	Title       string    `db:"title"`
	Description *string   `db:"description"`
	Price       float64   `db:"price"`
	Surface     *float64  `db:"surface"`
	Lat         *float64  `db:"lat"`
	Lon         *float64  `db:"lon"`
	City        *string   `db:"city"`
	PostalCode  *string   `db:"postal_code"`
	Address     *string   `db:"address"`
	PhotosCount int       `db:"photos_count"`
	FloorLevel  *int      `db:"floor_level"`
	Tags        []byte    `db:"accessibility_tags"`
	ScrapedAt   time.Time `db:"scraped_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (s *listingSchema) toDomain() (*entity.Listing, error) {
	tags, err := s.parseTags()
	if err != nil {
		return nil, err
	}

	return &entity.Listing{
		ID:                s.ID,
		Source:            s.Source,
		ExternalID:        s.ExternalID,
		URL:               s.URL,
		Title:             s.Title,
		Description:       s.Description,
		Price:             s.Price,
		Surface:           s.Surface,
		Lat:               s.Lat,
		Lon:               s.Lon,
		City:              s.City,
		PostalCode:        s.PostalCode,
		Address:           s.Address,
		PhotosCount:       s.PhotosCount,
		FloorLevel:        s.FloorLevel,
		AccessibilityTags: tags,
		ScrapedAt:         s.ScrapedAt,
		UpdatedAt:         s.UpdatedAt,
	}, nil
}

func (s *listingSchema) parseTags() ([]string, error) {
	if len(s.Tags) == 0 {
		return nil, nil
	}

	var tags []string
	if err := json.Unmarshal(s.Tags, &tags); err != nil {
		return nil, err
	}

	return tags, nil
}

// enrichmentSchema — представление таблицы listing_enrichments в БД.
type enrichmentSchema struct {
	ListingID                string    `db:"listing_id"`
	AvgRentArea              *float64  `db:"avg_rent_area"`
	PopulationDensity        *float64  `db:"population_density"`
	CommercialDensity        *float64  `db:"commercial_density"`
	TransportScore           *float64  `db:"transport_score"`
	LiquidityScore           *float64  `db:"liquidity_score"`
	AccessibilityScore       *float64  `db:"accessibility_score"`
	VerticalStoragePotential *float64  `db:"vertical_storage_potential"`
	PricePerSqm              *float64  `db:"price_per_sqm"`
	EstimatedRentLow         *float64  `db:"estimated_rent_low"`
	EstimatedRentHigh        *float64  `db:"estimated_rent_high"`
	GrossYield               *float64  `db:"gross_yield"`
	StorageYieldEstimate     *float64  `db:"storage_yield_estimate"`
	MLEstimatedPrice         *float64  `db:"ml_estimated_price"`
	MLPriceDeviation         *float64  `db:"ml_price_deviation"`
	EdgeScore                *float64  `db:"edge_score"`
	EdgeScorePartial         bool      `db:"edge_score_partial"`
	ComputedAt               time.Time `db:"computed_at"`
}

func fromEnrichment(e *entity.Enrichment) *enrichmentSchema {
	return &enrichmentSchema{
		ListingID:                e.ListingID,
		AvgRentArea:              e.AvgRentArea,
		PopulationDensity:        e.PopulationDensity,
		CommercialDensity:        e.CommercialDensity,
		TransportScore:           e.TransportScore,
		LiquidityScore:           e.LiquidityScore,
		AccessibilityScore:       e.AccessibilityScore,
		VerticalStoragePotential: e.VerticalStoragePotential,
		PricePerSqm:              e.PricePerSqm,
		EstimatedRentLow:         e.EstimatedRentLow,
		EstimatedRentHigh:        e.EstimatedRentHigh,
		GrossYield:               e.GrossYield,
		StorageYieldEstimate:     e.StorageYieldEstimate,
		MLEstimatedPrice:         e.MLEstimatedPrice,
		MLPriceDeviation:         e.MLPriceDeviation,
		EdgeScore:                e.EdgeScore,
		EdgeScorePartial:         e.EdgeScorePartial,
		ComputedAt:               e.ComputedAt,
	}
}

func (s *enrichmentSchema) toDomain() *entity.Enrichment {
	return &entity.Enrichment{
		ListingID:                s.ListingID,
		AvgRentArea:              s.AvgRentArea,
		PopulationDensity:        s.PopulationDensity,
		CommercialDensity:        s.CommercialDensity,
		TransportScore:           s.TransportScore,
		LiquidityScore:           s.LiquidityScore,
		AccessibilityScore:       s.AccessibilityScore,
		VerticalStoragePotential: s.VerticalStoragePotential,
		PricePerSqm:              s.PricePerSqm,
		EstimatedRentLow:         s.EstimatedRentLow,
		EstimatedRentHigh:        s.EstimatedRentHigh,
		GrossYield:               s.GrossYield,
		StorageYieldEstimate:     s.StorageYieldEstimate,
		MLEstimatedPrice:         s.MLEstimatedPrice,
		MLPriceDeviation:         s.MLPriceDeviation,
		EdgeScore:                s.EdgeScore,
		EdgeScorePartial:         s.EdgeScorePartial,
		ComputedAt:               s.ComputedAt,
	}
}

// priceModelSchema — представление таблицы price_models в БД.
type priceModelSchema struct {
	Version     int       `db:"version"`
	Features    []byte    `db:"features"`
	Weights     []byte    `db:"weights"`
	SampleCount int       `db:"sample_count"`
	Active      bool      `db:"active"`
	TrainedAt   time.Time `db:"trained_at"`
}

func (s *priceModelSchema) toDomain() (*entity.PriceModel, error) {
	var features []string
	if err := json.Unmarshal(s.Features, &features); err != nil {
		return nil, err
	}

	var weights []float64
	if err := json.Unmarshal(s.Weights, &weights); err != nil {
		return nil, err
	}

	return &entity.PriceModel{
		Version:     s.Version,
		Features:    features,
		Weights:     weights,
		SampleCount: s.SampleCount,
		Active:      s.Active,
		TrainedAt:   s.TrainedAt,
	}, nil
}
