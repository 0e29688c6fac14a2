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

const jobColumns = `id, kind, state, started_at, finished_at, error, processed, skipped, failed, created_at`

type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository создаёт новый экземпляр репозитория.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create сохраняет новую запись о запуске.
func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (:id, :kind, :state, :started_at, :finished_at, :error, :processed, :skipped, :failed, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to insert job")
	}

	return nil
}

// Update перезаписывает изменяемые поля записи.
func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	query := `
		UPDATE jobs
		SET state = :state, started_at = :started_at, finished_at = :finished_at,
			error = :error, processed = :processed, skipped = :skipped, failed = :failed
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, job)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to update job")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
	}

	if rows == 0 {
		return domain.NewError(errcodes.JobNotFound, "job not found")
	}

	return nil
}

// GetByID возвращает запись о запуске.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	var job entity.Job
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.JobNotFound, "job not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get job")
	}

	return &job, nil
}

// GetLatestByKind возвращает последний запуск данного вида.
func (r *JobRepository) GetLatestByKind(ctx context.Context, kind entity.JobKind) (*entity.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var job entity.Job
	if err := r.db.GetContext(ctx, &job, query, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.JobNotFound, "no runs for kind")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get latest job")
	}

	return &job, nil
}
