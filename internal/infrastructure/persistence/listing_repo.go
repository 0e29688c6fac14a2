package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/internal/domain/service/pricemodel"
	"boxradar/pkg/errcodes"
)

const listingColumns = `id, source, external_id, url, title, description, price, surface,
	lat, lon, city, postal_code, address, photos_count, floor_level,
	accessibility_tags, scraped_at, updated_at`

const enrichmentColumns = `listing_id, avg_rent_area, population_density, commercial_density,
	transport_score, liquidity_score, accessibility_score, vertical_storage_potential,
	price_per_sqm, estimated_rent_low, estimated_rent_high, gross_yield,
	storage_yield_estimate, ml_estimated_price, ml_price_deviation,
	edge_score, edge_score_partial, computed_at`

type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository создаёт новый экземпляр репозитория.
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// withTx выполняет функцию в транзакции.
func (r *ListingRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return domain.WrapError(
				fmt.Errorf("%w; rollback: %v", err, rbErr),
				errcodes.InternalServerError,
				"transaction failed",
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to commit")
	}

	return nil
}

// UpsertBatch атомарно сохраняет пачку объявлений. Уже известные пары
// (source, external_id) пропускаются без изменения существующей строки.
func (r *ListingRepository) UpsertBatch(ctx context.Context, listings []*entity.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	inserted := 0

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		for i, listing := range listings {
			n, err := r.insertTx(ctx, tx, listing)
			if err != nil {
				return domain.WrapError(err, errcodes.InternalServerError,
					fmt.Sprintf("failed at index %d", i))
			}
			inserted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

func (r *ListingRepository) insertTx(ctx context.Context, tx *sqlx.Tx, listing *entity.Listing) (int, error) {
	tagsBytes, err := json.Marshal(listing.AccessibilityTags)
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}

	updatedAt := listing.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES (:id, :source, :external_id, :url, :title, :description, :price, :surface,
			:lat, :lon, :city, :postal_code, :address, :photos_count, :floor_level,
			:accessibility_tags, :scraped_at, :updated_at)
		ON CONFLICT (source, external_id) DO NOTHING`

	params := map[string]any{
		"id":                 listing.ID,
		"source":             listing.Source,
		"external_id":        listing.ExternalID,
		"url":                listing.URL,
		"title":              listing.Title,
		"description":        listing.Description,
		"price":              listing.Price,
		"surface":            listing.Surface,
		"lat":                listing.Lat,
		"lon":                listing.Lon,
		"city":               listing.City,
		"postal_code":        listing.PostalCode,
		"address":            listing.Address,
		"photos_count":       listing.PhotosCount,
		"floor_level":        listing.FloorLevel,
		"accessibility_tags": tagsBytes,
		"scraped_at":         listing.ScrapedAt,
		"updated_at":         updatedAt,
	}

	res, err := tx.NamedExecContext(ctx, query, params)
	if err != nil {
		return 0, fmt.Errorf("insert listing: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(rows), nil
}

// GetByID возвращает объявление по идентификатору.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	var schema listingSchema
	if err := r.db.GetContext(ctx, &schema, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.ListingNotFound, "listing not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get listing")
	}

	return schema.toDomain()
}

// List возвращает страницу объявлений с их обогащением, отсортированную по
// edge score (неоценённые в конце), и общее число подходящих строк.
func (r *ListingRepository) List(ctx context.Context, filter entity.ListingFilter) ([]entity.EnrichedListing, int, error) {
	where, args := buildListingFilter(filter)

	countQuery := `
		SELECT count(*)
		FROM listings l
		LEFT JOIN listing_enrichments e ON e.listing_id = l.id` + where

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, domain.WrapError(err, errcodes.InternalServerError, "failed to count listings")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM listings l
		LEFT JOIN listing_enrichments e ON e.listing_id = l.id
		%s
		ORDER BY e.edge_score DESC NULLS LAST, l.scraped_at DESC
		LIMIT $%d OFFSET $%d`,
		joinedColumns(), where, len(args)+1, len(args)+2)

	rows, err := r.db.QueryxContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, domain.WrapError(err, errcodes.InternalServerError, "failed to list listings")
	}
	defer rows.Close()

	items, err := scanEnrichedRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// SelectForEnrichment возвращает объявления без обогащения или с устаревшим
// обогащением.
func (r *ListingRepository) SelectForEnrichment(ctx context.Context, staleBefore time.Time, limit int) ([]*entity.Listing, error) {
	query := `
		SELECT ` + prefixedListingColumns() + `
		FROM listings l
		LEFT JOIN listing_enrichments e ON e.listing_id = l.id
		WHERE e.listing_id IS NULL OR e.computed_at < $1
		ORDER BY l.scraped_at
		LIMIT $2`

	var schemas []listingSchema
	if err := r.db.SelectContext(ctx, &schemas, query, staleBefore, limit); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to select enrichment batch")
	}

	listings := make([]*entity.Listing, 0, len(schemas))
	for _, s := range schemas {
		listing, err := s.toDomain()
		if err != nil {
			return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to convert listing")
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

// SelectLocated возвращает объявления с координатами для geojson-выдачи.
func (r *ListingRepository) SelectLocated(ctx context.Context) ([]entity.EnrichedListing, error) {
	query := `
		SELECT ` + joinedColumns() + `
		FROM listings l
		LEFT JOIN listing_enrichments e ON e.listing_id = l.id
		WHERE l.lat IS NOT NULL AND l.lon IS NOT NULL
		ORDER BY e.edge_score DESC NULLS LAST`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to select located listings")
	}
	defer rows.Close()

	return scanEnrichedRows(rows)
}

// SelectTop возвращает лучшие предложения по edge score.
func (r *ListingRepository) SelectTop(ctx context.Context, limit int) ([]entity.EnrichedListing, error) {
	query := `
		SELECT ` + joinedColumns() + `
		FROM listings l
		JOIN listing_enrichments e ON e.listing_id = l.id
		WHERE e.edge_score IS NOT NULL
		ORDER BY e.edge_score DESC
		LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to select top listings")
	}
	defer rows.Close()

	return scanEnrichedRows(rows)
}

// Summary считает агрегаты по всем объявлениям и топ-5 городов.
func (r *ListingRepository) Summary(ctx context.Context) (*entity.SummaryStats, error) {
	query := `
		SELECT
			count(*)            AS total_listings,
			count(e.listing_id) AS enriched_count,
			avg(e.edge_score)   AS avg_edge_score,
			avg(e.gross_yield)  AS avg_gross_yield,
			avg(l.price)        AS avg_price
		FROM listings l
		LEFT JOIN listing_enrichments e ON e.listing_id = l.id`

	var stats entity.SummaryStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to compute summary")
	}

	cityQuery := `
		SELECT l.city AS city, count(*) AS listings, avg(e.edge_score) AS avg_edge
		FROM listings l
		LEFT JOIN listing_enrichments e ON e.listing_id = l.id
		WHERE l.city IS NOT NULL
		GROUP BY l.city
		ORDER BY count(*) DESC
		LIMIT 5`

	if err := r.db.SelectContext(ctx, &stats.TopCities, cityQuery); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to compute city breakdown")
	}

	return &stats, nil
}

// SelectTrainingRows снимает срез обогащённых объявлений для обучения модели.
// Обязательные для обучения поля отфильтрованы на стороне БД.
func (r *ListingRepository) SelectTrainingRows(ctx context.Context) ([]pricemodel.TrainingRow, error) {
	query := `
		SELECT
			l.price                AS price,
			l.surface              AS surface,
			m.avg_sell_per_sqm     AS city_sell_per_sqm,
			e.transport_score      AS transport_score,
			e.accessibility_score  AS accessibility_score,
			l.photos_count         AS photos_count
		FROM listings l
		JOIN listing_enrichments e ON e.listing_id = l.id
		JOIN market_aggregates m ON m.area = l.city
		WHERE l.price > 0 AND l.surface IS NOT NULL`

	var schemas []trainingRowSchema
	if err := r.db.SelectContext(ctx, &schemas, query); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to select training rows")
	}

	rows := make([]pricemodel.TrainingRow, 0, len(schemas))
	for _, s := range schemas {
		rows = append(rows, pricemodel.TrainingRow(s))
	}

	return rows, nil
}

type trainingRowSchema struct {
	Price              float64  `db:"price"`
	Surface            float64  `db:"surface"`
	CitySellPerSqm     float64  `db:"city_sell_per_sqm"`
	TransportScore     *float64 `db:"transport_score"`
	AccessibilityScore *float64 `db:"accessibility_score"`
	PhotosCount        int      `db:"photos_count"`
}

func buildListingFilter(filter entity.ListingFilter) (string, []any) {
	conds := make([]string, 0, 8)
	args := make([]any, 0, 8)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.City != nil {
		add("l.city = $%d", *filter.City)
	}
	if filter.Source != nil {
		add("l.source = $%d", *filter.Source)
	}
	if filter.PriceMin != nil {
		add("l.price >= $%d", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		add("l.price <= $%d", *filter.PriceMax)
	}
	if filter.SurfaceMin != nil {
		add("l.surface >= $%d", *filter.SurfaceMin)
	}
	if filter.SurfaceMax != nil {
		add("l.surface <= $%d", *filter.SurfaceMax)
	}
	if filter.MinYield != nil {
		add("e.gross_yield >= $%d", *filter.MinYield)
	}
	if filter.MinEdge != nil {
		add("e.edge_score >= $%d", *filter.MinEdge)
	}

	if len(conds) == 0 {
		return "", args
	}

	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

// joinedRowSchema — строка join-а listings × listing_enrichments.
type joinedRowSchema struct {
	listingSchema

	EListingID               *string    `db:"e_listing_id"`
	AvgRentArea              *float64   `db:"avg_rent_area"`
	PopulationDensity        *float64   `db:"population_density"`
	ECommercialDensity       *float64   `db:"commercial_density"`
	TransportScore           *float64   `db:"transport_score"`
	LiquidityScore           *float64   `db:"liquidity_score"`
	AccessibilityScore       *float64   `db:"accessibility_score"`
	VerticalStoragePotential *float64   `db:"vertical_storage_potential"`
	PricePerSqm              *float64   `db:"price_per_sqm"`
	EstimatedRentLow         *float64   `db:"estimated_rent_low"`
	EstimatedRentHigh        *float64   `db:"estimated_rent_high"`
	GrossYield               *float64   `db:"gross_yield"`
	StorageYieldEstimate     *float64   `db:"storage_yield_estimate"`
	MLEstimatedPrice         *float64   `db:"ml_estimated_price"`
	MLPriceDeviation         *float64   `db:"ml_price_deviation"`
	EdgeScore                *float64   `db:"edge_score"`
	EdgeScorePartial         *bool      `db:"edge_score_partial"`
	ComputedAt               *time.Time `db:"computed_at"`
}

func (s *joinedRowSchema) toDomain() (*entity.EnrichedListing, error) {
	listing, err := s.listingSchema.toDomain()
	if err != nil {
		return nil, err
	}

	item := &entity.EnrichedListing{Listing: *listing}

	if s.EListingID != nil {
		item.Enrichment = &entity.Enrichment{
			ListingID:                *s.EListingID,
			AvgRentArea:              s.AvgRentArea,
			PopulationDensity:        s.PopulationDensity,
			CommercialDensity:        s.ECommercialDensity,
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
		}
		if s.EdgeScorePartial != nil {
			item.Enrichment.EdgeScorePartial = *s.EdgeScorePartial
		}
		if s.ComputedAt != nil {
			item.Enrichment.ComputedAt = *s.ComputedAt
		}
	}

	return item, nil
}

func joinedColumns() string {
	return prefixedListingColumns() + `,
		e.listing_id AS e_listing_id, e.avg_rent_area, e.population_density,
		e.commercial_density, e.transport_score, e.liquidity_score,
		e.accessibility_score, e.vertical_storage_potential, e.price_per_sqm,
		e.estimated_rent_low, e.estimated_rent_high, e.gross_yield,
		e.storage_yield_estimate, e.ml_estimated_price, e.ml_price_deviation,
		e.edge_score, e.edge_score_partial, e.computed_at`
}

func prefixedListingColumns() string {
	return `l.id, l.source, l.external_id, l.url, l.title, l.description, l.price,
		l.surface, l.lat, l.lon, l.city, l.postal_code, l.address, l.photos_count,
		l.floor_level, l.accessibility_tags, l.scraped_at, l.updated_at`
}

func scanEnrichedRows(rows *sqlx.Rows) ([]entity.EnrichedListing, error) {
	var items []entity.EnrichedListing

	for rows.Next() {
		var schema joinedRowSchema
		if err := rows.StructScan(&schema); err != nil {
			return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to scan listing row")
		}

		item, err := schema.toDomain()
		if err != nil {
			return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to convert listing row")
		}

		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to iterate listing rows")
	}

	return items, nil
}
