// Package ingest затягивает объявления из настроенных источников в хранилище.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"boxradar/internal/domain/entity"
	"boxradar/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

type Source interface {
	Name() string
	Fetch(ctx context.Context, maxListings int) ([]*entity.Listing, error)
}

type ListingStore interface {
	UpsertBatch(ctx context.Context, listings []*entity.Listing) (int, error)
}

// Result подсчитывает один прогон по всем источникам.
type Result struct {
	Fetched  int
	Inserted int
}

type Service struct {
	sources     []Source
	store       ListingStore
	maxListings int
}

func NewService(store ListingStore, maxListings int, sources ...Source) *Service {
	return &Service{
		sources:     sources,
		store:       store,
		maxListings: maxListings,
	}
}

// Ingest опрашивает каждый источник и вставляет ранее не виденные
// объявления. Сломанный источник не прерывает остальные; прогон падает,
// только когда упали все.
func (s *Service) Ingest(ctx context.Context) (Result, error) {
	var (
		res     Result
		errs    []error
		fetched bool
	)

	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		listings, err := src.Fetch(ctx, s.maxListings)
		if err != nil {
			logger(ctx).Error("source fetch failed",
				slog.String("source", src.Name()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}

		fetched = true

		for _, listing := range listings {
			if listing.ID == "" {
				listing.ID = xid.New().String()
			}
		}

		inserted, err := s.store.UpsertBatch(ctx, listings)
		if err != nil {
			return res, fmt.Errorf("store %s listings: %w", src.Name(), err)
		}

		res.Fetched += len(listings)
		res.Inserted += inserted

		logger(ctx).Info("source ingested",
			slog.String("source", src.Name()),
			slog.Int("fetched", len(listings)),
			slog.Int("inserted", inserted))
	}

	if !fetched && len(errs) > 0 {
		return res, errors.Join(errs...)
	}

	return res, nil
}
