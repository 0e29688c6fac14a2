// Package jobs запускает конвейеры ingest, enrich и train как фоновые
// задания, единственные в своём виде.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/xid"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/internal/domain/service/enrichment"
	"boxradar/internal/domain/service/ingest"
	"boxradar/pkg/contextx"
	"boxradar/pkg/errcodes"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

//nolint:gochecknoglobals
var (
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "boxradar_job_duration_seconds",
		Help:    "Wall time of finished jobs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
	}, []string{"kind"})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxradar_jobs_total",
		Help: "Finished jobs by kind and terminal state.",
	}, []string{"kind", "state"})
)

type JobStore interface {
	Create(ctx context.Context, job *entity.Job) error
	Update(ctx context.Context, job *entity.Job) error
	GetByID(ctx context.Context, id string) (*entity.Job, error)
	GetLatestByKind(ctx context.Context, kind entity.JobKind) (*entity.Job, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, kind entity.JobKind, jobID string) error
}

type Ingestor interface {
	Ingest(ctx context.Context) (ingest.Result, error)
}

type Enricher interface {
	EnrichBatch(ctx context.Context) (enrichment.BatchResult, error)
}

type Trainer interface {
	Train(ctx context.Context) (*entity.PriceModel, error)
	Activate(ctx context.Context, version int) error
}

// Controller держит не более одного живого задания на вид. Повторный запуск
// вида, который уже pending или running, возвращает существующее задание.
type Controller struct {
	store    JobStore
	enqueuer Enqueuer

	ingestor Ingestor
	enricher Enricher
	trainer  Trainer

	clock func() time.Time

	mu      sync.Mutex
	running map[entity.JobKind]string
}

func NewController(
	store JobStore,
	enqueuer Enqueuer,
	ingestor Ingestor,
	enricher Enricher,
	trainer Trainer,
) *Controller {
	return &Controller{
		store:    store,
		enqueuer: enqueuer,
		ingestor: ingestor,
		enricher: enricher,
		trainer:  trainer,
		clock:    time.Now,
		running:  map[entity.JobKind]string{},
	}
}

func (c *Controller) WithClock(clock func() time.Time) *Controller {
	c.clock = clock
	return c
}

// Trigger ставит задание вида в очередь или возвращает живое. Второй
// результат сообщает, было ли создано новое.
func (c *Controller) Trigger(ctx context.Context, kind entity.JobKind) (*entity.Job, bool, error) {
	c.mu.Lock()

	if id, ok := c.running[kind]; ok {
		c.mu.Unlock()

		job, err := c.store.GetByID(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("load live job: %w", err)
		}

		return job, false, nil
	}

	job := &entity.Job{
		ID:        xid.New().String(),
		Kind:      kind,
		State:     entity.JobPending,
		CreatedAt: c.clock(),
	}

	// Резервируем вид до снятия блокировки, чтобы конкурентный запуск
	// склеился с этим заданием
	c.running[kind] = job.ID
	c.mu.Unlock()

	if err := c.store.Create(ctx, job); err != nil {
		c.release(kind)
		return nil, false, fmt.Errorf("persist job: %w", err)
	}

	if err := c.enqueuer.Enqueue(ctx, kind, job.ID); err != nil {
		c.finishEarly(ctx, job, fmt.Errorf("enqueue: %w", err))
		return nil, false, fmt.Errorf("enqueue job: %w", err)
	}

	logger(ctx).Info("job triggered",
		slog.String("job-id", job.ID), slog.String("kind", string(kind)))

	return job, true, nil
}

// Status возвращает живое задание вида либо последнее завершённое.
func (c *Controller) Status(ctx context.Context, kind entity.JobKind) (*entity.Job, error) {
	c.mu.Lock()
	id, ok := c.running[kind]
	c.mu.Unlock()

	if ok {
		return c.store.GetByID(ctx, id)
	}

	return c.store.GetLatestByKind(ctx, kind)
}

// Handle выполняет задание. Вызывается воркером очереди; повторы там
// отключены, поэтому любой сбой финален и записывается в строку задания.
// Вид приходит из payload задачи, чтобы резерв снимался даже когда строку
// задания не удалось загрузить.
func (c *Controller) Handle(ctx context.Context, jobID string, kind entity.JobKind) error {
	defer c.release(kind)

	job, err := c.store.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	started := c.clock()
	job.State = entity.JobRunning
	job.StartedAt = &started

	if err := c.store.Update(ctx, job); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	runErr := c.run(ctx, job)

	finished := c.clock()
	job.FinishedAt = &finished

	jobDuration.WithLabelValues(string(job.Kind)).Observe(finished.Sub(started).Seconds())

	if runErr != nil {
		job.State = entity.JobFailed
		msg := runErr.Error()
		job.Error = &msg

		logger(ctx).Error("job failed",
			slog.String("job-id", job.ID),
			slog.String("kind", string(job.Kind)),
			slog.Any("error", runErr))
	} else {
		job.State = entity.JobSucceeded

		logger(ctx).Info("job succeeded",
			slog.String("job-id", job.ID),
			slog.String("kind", string(job.Kind)),
			slog.Int("processed", job.Processed),
			slog.Int("skipped", job.Skipped),
			slog.Int("failed", job.Failed))
	}

	jobsTotal.WithLabelValues(string(job.Kind), string(job.State)).Inc()

	if err := c.store.Update(ctx, job); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	return nil
}

func (c *Controller) run(ctx context.Context, job *entity.Job) error {
	switch job.Kind {
	case entity.JobIngest:
		res, err := c.ingestor.Ingest(ctx)
		job.Processed = res.Inserted
		job.Skipped = res.Fetched - res.Inserted
		return err

	case entity.JobEnrich:
		res, err := c.enricher.EnrichBatch(ctx)
		job.Processed = res.Processed
		job.Skipped = res.Skipped
		job.Failed = res.Failed
		return err

	case entity.JobTrain:
		model, err := c.trainer.Train(ctx)
		if err != nil {
			if code, ok := domain.GetCode(err); ok && code == errcodes.InsufficientTrainingData {
				// Снимок отклонён до обучения, строка модели не записана
				return domain.WrapError(err, code, "rejected before fitting")
			}
			return err
		}

		if err := c.trainer.Activate(ctx, model.Version); err != nil {
			return fmt.Errorf("activate version %d: %w", model.Version, err)
		}

		job.Processed = model.SampleCount
		return nil

	default:
		return domain.NewError(errcodes.InvalidJobKind, fmt.Sprintf("unknown kind %q", job.Kind))
	}
}

func (c *Controller) release(kind entity.JobKind) {
	c.mu.Lock()
	delete(c.running, kind)
	c.mu.Unlock()
}

// finishEarly фиксирует задание, которое так и не попало в очередь.
func (c *Controller) finishEarly(ctx context.Context, job *entity.Job, cause error) {
	c.release(job.Kind)

	finished := c.clock()
	msg := cause.Error()
	job.State = entity.JobFailed
	job.FinishedAt = &finished
	job.Error = &msg

	if err := c.store.Update(ctx, job); err != nil {
		logger(ctx).Error("record early failure",
			slog.String("job-id", job.ID), slog.Any("error", err))
	}
}
