package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/errcodes"
)

type MarketAggregateRepository struct {
	db *sqlx.DB
}

// NewMarketAggregateRepository создаёт новый экземпляр репозитория.
func NewMarketAggregateRepository(db *sqlx.DB) *MarketAggregateRepository {
	return &MarketAggregateRepository{db: db}
}

// GetByArea возвращает агрегат по названию района.
func (r *MarketAggregateRepository) GetByArea(ctx context.Context, area string) (*entity.MarketAggregate, error) {
	query := `
		SELECT area, avg_rent_per_sqm, population_density, commercial_density,
			avg_sell_per_sqm, updated_at
		FROM market_aggregates
		WHERE area = $1`

	var agg entity.MarketAggregate
	if err := r.db.GetContext(ctx, &agg, query, area); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.AggregateNotFound, "aggregate not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get aggregate")
	}

	return &agg, nil
}

// CreateIfAbsent вставляет агрегат, не трогая уже существующую строку.
func (r *MarketAggregateRepository) CreateIfAbsent(ctx context.Context, agg *entity.MarketAggregate) (bool, error) {
	query := `
		INSERT INTO market_aggregates
			(area, avg_rent_per_sqm, population_density, commercial_density, avg_sell_per_sqm, updated_at)
		VALUES (:area, :avg_rent_per_sqm, :population_density, :commercial_density, :avg_sell_per_sqm, :updated_at)
		ON CONFLICT (area) DO NOTHING`

	row := *agg
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now()
	}

	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return false, domain.WrapError(err, errcodes.InternalServerError, "failed to insert aggregate")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
	}

	return rows > 0, nil
}

// UpdateSellPrice обновляет среднюю цену продажи района.
func (r *MarketAggregateRepository) UpdateSellPrice(ctx context.Context, area string, sellPerSqm float64) error {
	query := `
		UPDATE market_aggregates
		SET avg_sell_per_sqm = $1, updated_at = $2
		WHERE area = $3`

	res, err := r.db.ExecContext(ctx, query, sellPerSqm, time.Now(), area)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to update sell price")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
	}

	if rows == 0 {
		return domain.NewError(errcodes.AggregateNotFound, "aggregate not found")
	}

	return nil
}
