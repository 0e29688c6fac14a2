// Package source acquires raw listings from external marketplaces and
// normalizes them into entities. Acquisition only inserts: a listing is never
// mutated after its first ingest.
package source

import (
	"context"

	"boxradar/internal/domain/entity"
)

type Source interface {
	Name() string
	Fetch(ctx context.Context, maxListings int) ([]*entity.Listing, error)
}
