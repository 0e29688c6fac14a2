package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/errcodes"
)

type EnrichmentRepository struct {
	db *sqlx.DB
}

// NewEnrichmentRepository создаёт новый экземпляр репозитория.
func NewEnrichmentRepository(db *sqlx.DB) *EnrichmentRepository {
	return &EnrichmentRepository{db: db}
}

// Upsert полностью перезаписывает обогащение объявления.
func (r *EnrichmentRepository) Upsert(ctx context.Context, enrichment *entity.Enrichment) error {
	query := `
		INSERT INTO listing_enrichments (` + enrichmentColumns + `)
		VALUES (:listing_id, :avg_rent_area, :population_density, :commercial_density,
			:transport_score, :liquidity_score, :accessibility_score, :vertical_storage_potential,
			:price_per_sqm, :estimated_rent_low, :estimated_rent_high, :gross_yield,
			:storage_yield_estimate, :ml_estimated_price, :ml_price_deviation,
			:edge_score, :edge_score_partial, :computed_at)
		ON CONFLICT (listing_id) DO UPDATE SET
			avg_rent_area = EXCLUDED.avg_rent_area,
			population_density = EXCLUDED.population_density,
			commercial_density = EXCLUDED.commercial_density,
			transport_score = EXCLUDED.transport_score,
			liquidity_score = EXCLUDED.liquidity_score,
			accessibility_score = EXCLUDED.accessibility_score,
			vertical_storage_potential = EXCLUDED.vertical_storage_potential,
			price_per_sqm = EXCLUDED.price_per_sqm,
			estimated_rent_low = EXCLUDED.estimated_rent_low,
			estimated_rent_high = EXCLUDED.estimated_rent_high,
			gross_yield = EXCLUDED.gross_yield,
			storage_yield_estimate = EXCLUDED.storage_yield_estimate,
			ml_estimated_price = EXCLUDED.ml_estimated_price,
			ml_price_deviation = EXCLUDED.ml_price_deviation,
			edge_score = EXCLUDED.edge_score,
			edge_score_partial = EXCLUDED.edge_score_partial,
			computed_at = EXCLUDED.computed_at`

	if _, err := r.db.NamedExecContext(ctx, query, fromEnrichment(enrichment)); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to upsert enrichment")
	}

	return nil
}

// GetByListingID возвращает обогащение объявления.
func (r *EnrichmentRepository) GetByListingID(ctx context.Context, listingID string) (*entity.Enrichment, error) {
	query := `SELECT ` + enrichmentColumns + ` FROM listing_enrichments WHERE listing_id = $1`

	var schema enrichmentSchema
	if err := r.db.GetContext(ctx, &schema, query, listingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.EnrichmentNotFound, "enrichment not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get enrichment")
	}

	return schema.toDomain(), nil
}
