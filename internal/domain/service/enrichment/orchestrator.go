// Package enrichment вычисляет все хранимые метрики объявления и сводит их
// в итоговый edge score.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/internal/domain/service/pricemodel"
	"boxradar/internal/domain/service/scoring"
	"boxradar/internal/domain/value"
	"boxradar/pkg/contextx"
	"boxradar/pkg/errcodes"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

//nolint:gochecknoglobals
var (
	enrichedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxradar_enrichments_total",
		Help: "Listings processed by the enrichment pipeline.",
	}, []string{"outcome"})

	geoFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxradar_geo_sample_failures_total",
		Help: "Geo samples that failed and degraded to unknown.",
	})
)

type ListingSelector interface {
	SelectForEnrichment(ctx context.Context, staleBefore time.Time, limit int) ([]*entity.Listing, error)
}

type EnrichmentStore interface {
	Upsert(ctx context.Context, enrichment *entity.Enrichment) error
}

type MarketProvider interface {
	GetByArea(ctx context.Context, city *string) *entity.MarketAggregate
}

type GeoSampler interface {
	Sample(ctx context.Context, lat, lon float64) (*value.GeoSample, error)
}

type PriceEstimator interface {
	Predict(ctx context.Context, in pricemodel.PredictInput) *float64
}

// OpportunityHandler получает объявления, чей свежий балл попал в зелёную
// зону. Вызывается синхронно из горутины воркера; реализация не должна
// блокировать.
type OpportunityHandler func(ctx context.Context, opp entity.Opportunity)

// BatchResult подсчитывает исходы одного прогона пачки.
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
}

type Orchestrator struct {
	listings  ListingSelector
	store     EnrichmentStore
	market    MarketProvider
	geo       GeoSampler
	estimator PriceEstimator

	params        scoring.Params
	workers       int
	batchSize     int
	staleness     time.Duration
	clock         func() time.Time
	onOpportunity OpportunityHandler

	flight singleflight.Group
}

func NewOrchestrator(
	listings ListingSelector,
	store EnrichmentStore,
	market MarketProvider,
	geo GeoSampler,
	estimator PriceEstimator,
) *Orchestrator {
	return &Orchestrator{
		listings:  listings,
		store:     store,
		market:    market,
		geo:       geo,
		estimator: estimator,
		params:    scoring.DefaultParams(),
		workers:   4,
		batchSize: 200,
		staleness: 7 * 24 * time.Hour,
		clock:     time.Now,
	}
}

func (o *Orchestrator) WithParams(params scoring.Params) *Orchestrator {
	o.params = params
	return o
}

func (o *Orchestrator) WithWorkers(n int) *Orchestrator {
	o.workers = n
	return o
}

func (o *Orchestrator) WithBatchSize(n int) *Orchestrator {
	o.batchSize = n
	return o
}

func (o *Orchestrator) WithStaleness(d time.Duration) *Orchestrator {
	o.staleness = d
	return o
}

func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

func (o *Orchestrator) WithOpportunityHandler(h OpportunityHandler) *Orchestrator {
	o.onOpportunity = h
	return o
}

// EnrichBatch отбирает необогащённые и устаревшие объявления и обрабатывает
// их с ограниченным параллелизмом. Отмена прекращает запуск новых объявлений;
// уже сохранённые обогащения остаются. Счётчики покрывают всё, что пачка
// успела попробовать до остановки.
func (o *Orchestrator) EnrichBatch(ctx context.Context) (BatchResult, error) {
	staleBefore := o.clock().Add(-o.staleness)

	batch, err := o.listings.SelectForEnrichment(ctx, staleBefore, o.batchSize)
	if err != nil {
		return BatchResult{}, fmt.Errorf("select batch: %w", err)
	}

	logger(ctx).Info("enrichment batch selected", slog.Int("listings", len(batch)))

	results := make([]error, len(batch))
	for i := range results {
		results[i] = errNotScheduled
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.workers)

	for i, listing := range batch {
		if groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			results[i] = o.EnrichOne(groupCtx, listing)
			return nil
		})
	}

	_ = group.Wait()

	var res BatchResult

	for i, listing := range batch {
		err := results[i]
		switch {
		case err == nil:
			res.Processed++
		case errors.Is(err, errNotScheduled), errors.Is(err, context.Canceled), isSkip(err):
			res.Skipped++
		default:
			res.Failed++
			logger(ctx).Error("listing enrichment failed",
				slog.String("listing-id", listing.ID), slog.Any("error", err))
		}
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	return res, nil
}

// errNotScheduled помечает слоты пачки, брошенные из-за отмены.
var errNotScheduled = errors.New("not scheduled") //nolint:gochecknoglobals

// EnrichOne вычисляет и сохраняет полную запись обогащения объявления.
// Конкурентные вызовы по одному объявлению склеиваются в одно вычисление.
func (o *Orchestrator) EnrichOne(ctx context.Context, listing *entity.Listing) error {
	_, err, _ := o.flight.Do(listing.ID, func() (any, error) {
		return nil, o.enrich(ctx, listing)
	})

	if err != nil {
		enrichedTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return err
	}

	enrichedTotal.WithLabelValues("ok").Inc()

	return nil
}

func (o *Orchestrator) enrich(ctx context.Context, listing *entity.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if listing.Price <= 0 {
		return domain.NewError(errcodes.InvalidListing, "non-positive price")
	}

	e := o.compute(ctx, listing)

	if err := o.store.Upsert(ctx, e); err != nil {
		return fmt.Errorf("persist enrichment: %w", err)
	}

	if o.onOpportunity != nil {
		if bucket := e.Bucket(); bucket != nil && *bucket == entity.BucketGreen {
			o.onOpportunity(ctx, entity.Opportunity{Listing: listing, Enrichment: e})
		}
	}

	return nil
}

// compute доводит каждый резолвер до конца перед свёрткой: формула балла
// никогда не видит полузаполненную запись.
func (o *Orchestrator) compute(ctx context.Context, listing *entity.Listing) *entity.Enrichment {
	tags := value.NewTagSet(listing.AccessibilityTags)

	e := &entity.Enrichment{
		ListingID:  listing.ID,
		ComputedAt: o.clock(),
	}

	// Рыночный контекст
	agg := o.market.GetByArea(ctx, listing.City)
	if agg != nil {
		e.AvgRentArea = &agg.AvgRentPerSqm
		e.PopulationDensity = &agg.PopulationDensity
	}

	// Гео: недоступный провайдер оставляет транспорт и коммерческую
	// плотность неизвестными, а не нулевыми
	var sample *value.GeoSample

	if listing.HasLocation() {
		var err error
		sample, err = o.geo.Sample(ctx, *listing.Lat, *listing.Lon)
		if err != nil {
			geoFailures.Inc()
			logger(ctx).Warn("geo sample failed",
				slog.String("listing-id", listing.ID), slog.Any("error", err))
		}
	}

	e.TransportScore = scoring.TransportScore(sample, o.params.PointsPerStation)
	if sample != nil {
		density := float64(sample.POIs)
		e.CommercialDensity = &density
	}

	// Суб-баллы по тегам и фото вычислимы всегда
	accessibility := scoring.AccessibilityScore(tags, listing.PhotosCount)
	e.AccessibilityScore = &accessibility

	liquidity := scoring.LiquidityScore(listing.PhotosCount, tags, listing.Surface)
	e.LiquidityScore = &liquidity

	vertical := scoring.VerticalStoragePotential(listing.Surface, tags)
	e.VerticalStoragePotential = &vertical

	// Финансовые метрики
	e.PricePerSqm = scoring.PricePerSqm(listing.Price, listing.Surface)
	e.EstimatedRentLow, e.EstimatedRentHigh = scoring.RentEstimate(agg, listing.Surface)
	e.GrossYield = scoring.GrossYield(e.EstimatedRentLow, e.EstimatedRentHigh, listing.Price)
	e.StorageYieldEstimate = scoring.StorageYieldEstimate(e.GrossYield, vertical)

	// Оценка справедливой цены
	in := pricemodel.PredictInput{
		Surface:            listing.Surface,
		City:               listing.City,
		TransportScore:     e.TransportScore,
		AccessibilityScore: e.AccessibilityScore,
		PhotosCount:        listing.PhotosCount,
	}
	if agg != nil {
		in.CitySellPerSqm = &agg.AvgSellPerSqm
	}

	e.MLEstimatedPrice = o.estimator.Predict(ctx, in)
	e.MLPriceDeviation = pricemodel.Deviation(listing.Price, e.MLEstimatedPrice)

	// Пять взвешенных компонентов
	storage := scoring.StorageScore(vertical, tags)

	result := scoring.CombineEdgeScore(o.params.Weights, scoring.Components{
		PriceDeviation: scoring.PriceDeviationScore(e.MLPriceDeviation, o.params.DeviationSlope),
		Yield:          scoring.YieldScore(e.GrossYield, o.params.YieldPoorPct, o.params.YieldExcellentPct),
		Storage:        &storage,
		Demand:         scoring.DemandScore(e.TransportScore, e.CommercialDensity, o.params.CommercialDensityCeiling),
		Liquidity:      &liquidity,
	})

	e.EdgeScore = result.Score
	e.EdgeScorePartial = result.Partial

	return e
}

func isSkip(err error) bool {
	code, ok := domain.GetCode(err)
	return ok && code == errcodes.InvalidListing
}

func outcomeLabel(err error) string {
	if isSkip(err) {
		return "skipped"
	}
	return "failed"
}
