// Package market отдаёт справочную статистику по зонам из медленно
// меняющегося кэша над таблицей агрегатов.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/contextx"
	"boxradar/pkg/errcodes"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

const defaultArea = "default"

type AggregateRepository interface {
	GetByArea(ctx context.Context, area string) (*entity.MarketAggregate, error)
	CreateIfAbsent(ctx context.Context, agg *entity.MarketAggregate) (created bool, err error)
	UpdateSellPrice(ctx context.Context, area string, sellPerSqm float64) error
}

type Provider struct {
	repo  AggregateRepository
	cache *gocache.Cache
}

func NewProvider(repo AggregateRepository, ttl time.Duration) *Provider {
	return &Provider{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// GetByArea находит агрегат города, откатываясь на строку зоны по умолчанию
// при неизвестном городе. Возвращает nil (не ошибку), только когда нет даже
// строки по умолчанию — тогда скоринг деградирует в неизвестные поля.
func (p *Provider) GetByArea(ctx context.Context, city *string) *entity.MarketAggregate {
	area := defaultArea
	if city != nil && *city != "" {
		area = *city
	}

	if agg := p.lookup(ctx, area); agg != nil {
		return agg
	}

	if area == defaultArea {
		return nil
	}

	return p.lookup(ctx, defaultArea)
}

func (p *Provider) lookup(ctx context.Context, area string) *entity.MarketAggregate {
	if cached, found := p.cache.Get(area); found {
		agg := cached.(entity.MarketAggregate)
		return &agg
	}

	agg, err := p.repo.GetByArea(ctx, area)
	if err != nil {
		var appErr *domain.AppError
		if !errors.As(err, &appErr) || appErr.Code != errcodes.AggregateNotFound {
			logger(ctx).Error("aggregate lookup failed", slog.String("area", area), slog.Any("error", err))
		}
		return nil
	}

	p.cache.Set(area, *agg, gocache.DefaultExpiration)

	return agg
}

// RefreshSellPrice подменяет среднюю цену продажи зоны свежевычисленной и
// сбрасывает её запись в кэше, чтобы читатели увидели новую строку целиком.
func (p *Provider) RefreshSellPrice(ctx context.Context, area string, sellPerSqm float64) error {
	if err := p.repo.UpdateSellPrice(ctx, area, sellPerSqm); err != nil {
		return fmt.Errorf("update sell price: %w", err)
	}

	p.cache.Delete(area)

	return nil
}

// SeedDefaults вставляет справочник городов там, где строк ещё нет.
// Существующие строки не трогаем, чтобы обновлённые цены пережили рестарт.
func (p *Provider) SeedDefaults(ctx context.Context) error {
	seeded := 0

	for _, agg := range defaultAggregates() {
		created, err := p.repo.CreateIfAbsent(ctx, &agg)
		if err != nil {
			return fmt.Errorf("seed %s: %w", agg.Area, err)
		}
		if created {
			seeded++
		}
	}

	if seeded > 0 {
		logger(ctx).Info("market aggregates seeded", slog.Int("count", seeded))
	}

	return nil
}

// Справочные значения отслеживаемых французских городов. Цены продажи позже
// замещаются медианами из истории сделок, когда обновление успешно.
func defaultAggregates() []entity.MarketAggregate {
	return []entity.MarketAggregate{
		{Area: "Paris", AvgRentPerSqm: 25.0, PopulationDensity: 21000, CommercialDensity: 28.0, AvgSellPerSqm: 2800},
		{Area: "Lyon", AvgRentPerSqm: 13.0, PopulationDensity: 10500, CommercialDensity: 18.0, AvgSellPerSqm: 1400},
		{Area: "Marseille", AvgRentPerSqm: 10.0, PopulationDensity: 3500, CommercialDensity: 14.0, AvgSellPerSqm: 900},
		{Area: "Bordeaux", AvgRentPerSqm: 12.0, PopulationDensity: 5000, CommercialDensity: 16.0, AvgSellPerSqm: 1300},
		{Area: "Toulouse", AvgRentPerSqm: 11.0, PopulationDensity: 4000, CommercialDensity: 15.0, AvgSellPerSqm: 1100},
		{Area: "Nantes", AvgRentPerSqm: 12.0, PopulationDensity: 4500, CommercialDensity: 15.0, AvgSellPerSqm: 1200},
		{Area: "Strasbourg", AvgRentPerSqm: 11.5, PopulationDensity: 3400, CommercialDensity: 14.0, AvgSellPerSqm: 1050},
		{Area: "Montpellier", AvgRentPerSqm: 10.5, PopulationDensity: 3200, CommercialDensity: 13.0, AvgSellPerSqm: 950},
		{Area: "Lille", AvgRentPerSqm: 9.5, PopulationDensity: 7000, CommercialDensity: 20.0, AvgSellPerSqm: 900},
		{Area: "Rennes", AvgRentPerSqm: 11.0, PopulationDensity: 3900, CommercialDensity: 13.0, AvgSellPerSqm: 1050},
		{Area: "Nice", AvgRentPerSqm: 15.0, PopulationDensity: 4800, CommercialDensity: 17.0, AvgSellPerSqm: 1500},
		{Area: "Grenoble", AvgRentPerSqm: 10.0, PopulationDensity: 4400, CommercialDensity: 14.0, AvgSellPerSqm: 950},
		{Area: defaultArea, AvgRentPerSqm: 9.0, PopulationDensity: 2000, CommercialDensity: 8.0, AvgSellPerSqm: 800},
	}
}
