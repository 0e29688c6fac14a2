package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/errcodes"
)

type PriceModelRepository struct {
	db *sqlx.DB
}

// NewPriceModelRepository создаёт новый экземпляр репозитория.
func NewPriceModelRepository(db *sqlx.DB) *PriceModelRepository {
	return &PriceModelRepository{db: db}
}

// withTx выполняет функцию в транзакции.
func (r *PriceModelRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
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

// Create сохраняет новый артефакт и присваивает ему следующий номер версии.
func (r *PriceModelRepository) Create(ctx context.Context, model *entity.PriceModel) error {
	featuresBytes, err := json.Marshal(model.Features)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal features")
	}

	weightsBytes, err := json.Marshal(model.Weights)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal weights")
	}

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO price_models (version, features, weights, sample_count, active, trained_at)
			SELECT coalesce(max(version), 0) + 1, $1, $2, $3, false, $4
			FROM price_models
			RETURNING version`

		row := tx.QueryRowxContext(ctx, query, featuresBytes, weightsBytes, model.SampleCount, model.TrainedAt)
		if err := row.Scan(&model.Version); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to insert model")
		}

		return nil
	})
}

// GetActive возвращает активную версию модели.
func (r *PriceModelRepository) GetActive(ctx context.Context) (*entity.PriceModel, error) {
	query := `
		SELECT version, features, weights, sample_count, active, trained_at
		FROM price_models
		WHERE active
		LIMIT 1`

	var schema priceModelSchema
	if err := r.db.GetContext(ctx, &schema, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.ModelNotFound, "no active model")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get active model")
	}

	model, err := schema.toDomain()
	if err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to convert model")
	}

	return model, nil
}

// Activate атомарно переключает активную версию.
func (r *PriceModelRepository) Activate(ctx context.Context, version int) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE price_models SET active = (version = $1)`, version)
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to activate model")
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
		}

		if rows == 0 {
			return domain.NewError(errcodes.ModelNotFound, "model version not found")
		}

		var active bool
		if err := tx.GetContext(ctx, &active,
			`SELECT EXISTS(SELECT 1 FROM price_models WHERE version = $1)`, version); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to verify version")
		}

		if !active {
			return domain.NewError(errcodes.ModelNotFound, "model version not found")
		}

		return nil
	})
}
