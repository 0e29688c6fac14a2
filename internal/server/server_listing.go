package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/errcodes"
	"boxradar/pkg/httpx/reply"
	"boxradar/pkg/lox"
	"boxradar/pkg/rest"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type listingProvider interface {
	GetByID(ctx context.Context, id string) (*entity.Listing, error)
	List(ctx context.Context, filter entity.ListingFilter) ([]entity.EnrichedListing, int, error)
	SelectLocated(ctx context.Context) ([]entity.EnrichedListing, error)
}

type enrichmentProvider interface {
	GetByListingID(ctx context.Context, listingID string) (*entity.Enrichment, error)
}

type ListingServer struct {
	listings    listingProvider
	enrichments enrichmentProvider
}

func NewListingServer(listings listingProvider, enrichments enrichmentProvider) ListingServer {
	return ListingServer{
		listings:    listings,
		enrichments: enrichments,
	}
}

func (s ListingServer) getV1Listings(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	filter, err := parseListingFilter(r)
	if err != nil {
		return asFailure(err)
	}

	items, total, err := s.listings.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("listings.List: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, rest.ListingsPage{
		Total: total,
		Items: lox.Map(items, newRESTListing),
	})

	return nil
}

func (s ListingServer) getV1Listing(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id := r.PathValue("id")
	if id == "" {
		return asFailure(domain.NewError(errcodes.InvalidListingID, "empty listing id"))
	}

	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return asFailure(fmt.Errorf("listings.GetByID: %w", err))
	}

	enrichment, err := s.enrichments.GetByListingID(ctx, id)
	if err != nil {
		// Объявление без обогащения остаётся валидным ответом.
		if code, ok := domain.GetCode(err); !ok || code != errcodes.EnrichmentNotFound {
			return fmt.Errorf("enrichments.GetByListingID: %w", err)
		}

		enrichment = nil
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTListing(entity.EnrichedListing{
		Listing:    *listing,
		Enrichment: enrichment,
	}))

	return nil
}

func (s ListingServer) getV1ListingsGeojson(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	items, err := s.listings.SelectLocated(ctx)
	if err != nil {
		return fmt.Errorf("listings.SelectLocated: %w", err)
	}

	collection := rest.FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]rest.Feature, 0, len(items)),
	}
	for _, item := range items {
		if !item.Listing.HasLocation() {
			continue
		}

		collection.Features = append(collection.Features, newRESTFeature(item))
	}

	reply.JSON(ctx, w, http.StatusOK, collection)

	return nil
}

func parseListingFilter(r *http.Request) (entity.ListingFilter, error) {
	query := r.URL.Query()

	filter := entity.ListingFilter{
		City:   queryString(r, "city"),
		Source: queryString(r, "source"),
		Limit:  defaultPageLimit,
	}

	for param, dest := range map[string]**float64{
		"price_min":   &filter.PriceMin,
		"price_max":   &filter.PriceMax,
		"surface_min": &filter.SurfaceMin,
		"surface_max": &filter.SurfaceMax,
		"min_yield":   &filter.MinYield,
		"min_edge":    &filter.MinEdge,
	} {
		value, err := queryFloat(r, param)
		if err != nil {
			return entity.ListingFilter{}, err
		}

		*dest = value
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return entity.ListingFilter{}, domain.NewError(errcodes.InvalidPaging,
				fmt.Sprintf("limit must be an integer in [1, %d]", maxPageLimit))
		}

		filter.Limit = limit
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return entity.ListingFilter{}, domain.NewError(errcodes.InvalidPaging, "offset must be a non-negative integer")
		}

		filter.Offset = offset
	}

	return filter, nil
}

func queryString(r *http.Request, param string) *string {
	value := r.URL.Query().Get(param)
	if value == "" {
		return nil
	}

	return &value
}

func queryFloat(r *http.Request, param string) (*float64, error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return nil, nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.NewError(errcodes.ValidationError, fmt.Sprintf("%s must be a number", param))
	}

	return &value, nil
}
