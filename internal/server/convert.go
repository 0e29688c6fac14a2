package server

import (
	"time"

	"git.appkode.ru/pub/go/failure"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/errcodes"
	"boxradar/pkg/lox"
	"boxradar/pkg/rest"
)

func newRESTListing(el entity.EnrichedListing) rest.Listing {
	l := el.Listing

	out := rest.Listing{
		ID:                l.ID,
		Source:            l.Source,
		ExternalID:        l.ExternalID,
		URL:               l.URL,
		Title:             l.Title,
		Description:       l.Description,
		Price:             l.Price,
		Surface:           l.Surface,
		City:              l.City,
		PostalCode:        l.PostalCode,
		Address:           l.Address,
		Lat:               l.Lat,
		Lon:               l.Lon,
		PhotosCount:       l.PhotosCount,
		FloorLevel:        l.FloorLevel,
		AccessibilityTags: l.AccessibilityTags,
		ScrapedAt:         l.ScrapedAt.Format(time.RFC3339),
	}
	if el.Enrichment != nil {
		out.Enrichment = newRESTEnrichment(el.Enrichment)
	}

	return out
}

func newRESTEnrichment(e *entity.Enrichment) *rest.Enrichment {
	out := &rest.Enrichment{
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
		ComputedAt:               e.ComputedAt.Format(time.RFC3339),
	}
	if b := e.Bucket(); b != nil {
		s := string(*b)
		out.EdgeBucket = &s
	}

	return out
}

func newRESTFeature(el entity.EnrichedListing) rest.Feature {
	l := el.Listing

	props := rest.FeatureProperties{
		ID:      l.ID,
		Title:   l.Title,
		Price:   l.Price,
		Surface: l.Surface,
		City:    l.City,
		URL:     l.URL,
	}
	if el.Enrichment != nil {
		props.EdgeScore = el.Enrichment.EdgeScore
		props.GrossYield = el.Enrichment.GrossYield
		props.PricePerSqm = el.Enrichment.PricePerSqm
	}

	return rest.Feature{
		Type: "Feature",
		Geometry: rest.PointGeometry{
			Type:        "Point",
			Coordinates: [2]float64{*l.Lon, *l.Lat},
		},
		Properties: props,
	}
}

func newRESTSummary(stats *entity.SummaryStats) rest.Summary {
	return rest.Summary{
		TotalListings:    stats.TotalListings,
		EnrichedListings: stats.EnrichedCount,
		AvgEdgeScore:     stats.AvgEdgeScore,
		AvgGrossYield:    stats.AvgGrossYield,
		AvgPrice:         stats.AvgPrice,
		TopCities: lox.Map(stats.TopCities, func(c entity.CityStat) rest.CityTop {
			return rest.CityTop{
				City:    c.City,
				Count:   c.Listings,
				AvgEdge: c.AvgEdge,
			}
		}),
	}
}

func newRESTTopOpportunity(el entity.EnrichedListing) rest.TopOpportunity {
	l := el.Listing

	out := rest.TopOpportunity{
		ID:      l.ID,
		Title:   l.Title,
		City:    l.City,
		Price:   l.Price,
		Surface: l.Surface,
		URL:     l.URL,
	}
	if el.Enrichment != nil {
		out.GrossYield = el.Enrichment.GrossYield
		if el.Enrichment.EdgeScore != nil {
			out.EdgeScore = *el.Enrichment.EdgeScore
		}
	}

	return out
}

func newRESTJob(job *entity.Job) rest.Job {
	out := rest.Job{
		JobID:     job.ID,
		Kind:      string(job.Kind),
		State:     string(job.State),
		Error:     job.Error,
		Processed: job.Processed,
		Skipped:   job.Skipped,
		Failed:    job.Failed,
	}
	if job.StartedAt != nil {
		s := job.StartedAt.Format(time.RFC3339)
		out.StartedAt = &s
	}
	if job.FinishedAt != nil {
		s := job.FinishedAt.Format(time.RFC3339)
		out.FinishedAt = &s
	}

	return out
}

// asFailure переводит доменную ошибку в категорию failure для корректного HTTP-статуса.
func asFailure(err error) error {
	code, ok := domain.GetCode(err)
	if !ok {
		return err
	}

	switch code {
	case errcodes.ListingNotFound,
		errcodes.EnrichmentNotFound,
		errcodes.AggregateNotFound,
		errcodes.ModelNotFound,
		errcodes.JobNotFound:
		return failure.NewNotFoundError(err.Error(), failure.WithCode(code), failure.WithDescription(err.Error()))
	case errcodes.InvalidListingID,
		errcodes.InvalidListing,
		errcodes.InvalidJobKind,
		errcodes.InvalidPaging,
		errcodes.ValidationError:
		return failure.NewInvalidArgumentError(err.Error(), failure.WithCode(code), failure.WithDescription(err.Error()))
	case errcodes.JobAlreadyRunning:
		return failure.NewConflictError(err.Error(), failure.WithCode(code), failure.WithDescription(err.Error()))
	default:
		return err
	}
}
