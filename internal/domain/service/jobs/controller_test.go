package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/internal/domain/service/enrichment"
	"boxradar/internal/domain/service/ingest"
	"boxradar/pkg/errcodes"
)

type memJobStore struct {
	mu          sync.Mutex
	jobs        map[string]*entity.Job
	seq         []string
	failNextGet error
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: map[string]*entity.Job{}}
}

func (s *memJobStore) Create(_ context.Context, job *entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	s.seq = append(s.seq, job.ID)
	return nil
}

func (s *memJobStore) Update(_ context.Context, job *entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return domain.NewError(errcodes.JobNotFound, "job not found")
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memJobStore) GetByID(_ context.Context, id string) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextGet != nil {
		err := s.failNextGet
		s.failNextGet = nil
		return nil, err
	}
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.NewError(errcodes.JobNotFound, "job not found")
	}
	copied := *job
	return &copied, nil
}

func (s *memJobStore) GetLatestByKind(_ context.Context, kind entity.JobKind) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.seq) - 1; i >= 0; i-- {
		if job := s.jobs[s.seq[i]]; job.Kind == kind {
			copied := *job
			return &copied, nil
		}
	}
	return nil, domain.NewError(errcodes.JobNotFound, "no runs for kind")
}

type recordingEnqueuer struct {
	enqueued []string
	err      error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, _ entity.JobKind, jobID string) error {
	if e.err != nil {
		return e.err
	}
	e.enqueued = append(e.enqueued, jobID)
	return nil
}

type stubIngestor struct {
	res ingest.Result
	err error
}

func (s *stubIngestor) Ingest(_ context.Context) (ingest.Result, error) { return s.res, s.err }

type stubEnricher struct {
	res enrichment.BatchResult
	err error
}

func (s *stubEnricher) EnrichBatch(_ context.Context) (enrichment.BatchResult, error) {
	return s.res, s.err
}

type stubTrainer struct {
	model     *entity.PriceModel
	trainErr  error
	activated []int
}

func (s *stubTrainer) Train(_ context.Context) (*entity.PriceModel, error) {
	return s.model, s.trainErr
}

func (s *stubTrainer) Activate(_ context.Context, version int) error {
	s.activated = append(s.activated, version)
	return nil
}

func testController(store JobStore, enq Enqueuer) (*Controller, *stubIngestor, *stubEnricher, *stubTrainer) {
	ing := &stubIngestor{res: ingest.Result{Fetched: 10, Inserted: 7}}
	enr := &stubEnricher{res: enrichment.BatchResult{Processed: 5, Skipped: 1, Failed: 2}}
	trn := &stubTrainer{model: &entity.PriceModel{Version: 3, SampleCount: 120}}

	c := NewController(store, enq, ing, enr, trn).
		WithClock(func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) })

	return c, ing, enr, trn
}

func TestTriggerCreatesPendingJob(t *testing.T) {
	store := newMemJobStore()
	enq := &recordingEnqueuer{}
	c, _, _, _ := testController(store, enq)

	job, created, err := c.Trigger(context.Background(), entity.JobEnrich)

	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, entity.JobPending, job.State)
	require.Equal(t, []string{job.ID}, enq.enqueued)
}

func TestTriggerIsIdempotentWhileLive(t *testing.T) {
	store := newMemJobStore()
	enq := &recordingEnqueuer{}
	c, _, _, _ := testController(store, enq)

	first, created, err := c.Trigger(context.Background(), entity.JobEnrich)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := c.Trigger(context.Background(), entity.JobEnrich)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	// a different kind is independent
	_, created, err = c.Trigger(context.Background(), entity.JobIngest)
	require.NoError(t, err)
	require.True(t, created)

	require.Len(t, enq.enqueued, 2)
}

func TestTriggerAgainAfterCompletion(t *testing.T) {
	store := newMemJobStore()
	c, _, _, _ := testController(store, &recordingEnqueuer{})

	first, _, err := c.Trigger(context.Background(), entity.JobEnrich)
	require.NoError(t, err)
	require.NoError(t, c.Handle(context.Background(), first.ID, entity.JobEnrich))

	second, created, err := c.Trigger(context.Background(), entity.JobEnrich)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, first.ID, second.ID)
}

func TestHandleLoadFailureReleasesKind(t *testing.T) {
	store := newMemJobStore()
	c, _, _, _ := testController(store, &recordingEnqueuer{})

	first, _, err := c.Trigger(context.Background(), entity.JobEnrich)
	require.NoError(t, err)

	store.failNextGet = errors.New("connection reset")
	require.Error(t, c.Handle(context.Background(), first.ID, entity.JobEnrich))

	// the kind is free again: a new job, not the wedged one
	second, created, err := c.Trigger(context.Background(), entity.JobEnrich)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, first.ID, second.ID)
}

func TestTriggerEnqueueFailureMarksJobFailed(t *testing.T) {
	store := newMemJobStore()
	c, _, _, _ := testController(store, &recordingEnqueuer{err: errors.New("redis down")})

	job, _, err := c.Trigger(context.Background(), entity.JobEnrich)
	require.Error(t, err)
	require.Nil(t, job)

	latest, err := store.GetLatestByKind(context.Background(), entity.JobEnrich)
	require.NoError(t, err)
	require.Equal(t, entity.JobFailed, latest.State)

	// the kind is free again
	_, created, err := c.Trigger(context.Background(), entity.JobEnrich)
	require.NoError(t, err)
	require.True(t, created)
}

func TestHandleEnrichRecordsCounts(t *testing.T) {
	store := newMemJobStore()
	c, _, _, _ := testController(store, &recordingEnqueuer{})

	job, _, err := c.Trigger(context.Background(), entity.JobEnrich)
	require.NoError(t, err)

	require.NoError(t, c.Handle(context.Background(), job.ID, entity.JobEnrich))

	done, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobSucceeded, done.State)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.FinishedAt)
	require.Equal(t, 5, done.Processed)
	require.Equal(t, 1, done.Skipped)
	require.Equal(t, 2, done.Failed)
}

func TestHandleIngestCounts(t *testing.T) {
	store := newMemJobStore()
	c, _, _, _ := testController(store, &recordingEnqueuer{})

	job, _, err := c.Trigger(context.Background(), entity.JobIngest)
	require.NoError(t, err)
	require.NoError(t, c.Handle(context.Background(), job.ID, entity.JobIngest))

	done, _ := store.GetByID(context.Background(), job.ID)
	require.Equal(t, 7, done.Processed)
	require.Equal(t, 3, done.Skipped)
}

func TestHandleTrainActivatesNewVersion(t *testing.T) {
	store := newMemJobStore()
	c, _, _, trn := testController(store, &recordingEnqueuer{})

	job, _, err := c.Trigger(context.Background(), entity.JobTrain)
	require.NoError(t, err)
	require.NoError(t, c.Handle(context.Background(), job.ID, entity.JobTrain))

	done, _ := store.GetByID(context.Background(), job.ID)
	require.Equal(t, entity.JobSucceeded, done.State)
	require.Equal(t, 120, done.Processed)
	require.Equal(t, []int{3}, trn.activated)
}

func TestHandleTrainInsufficientDataFails(t *testing.T) {
	store := newMemJobStore()
	c, _, _, trn := testController(store, &recordingEnqueuer{})
	trn.model = nil
	trn.trainErr = domain.NewError(errcodes.InsufficientTrainingData, "not enough samples to train (42 < 100)")

	job, _, err := c.Trigger(context.Background(), entity.JobTrain)
	require.NoError(t, err)
	require.NoError(t, c.Handle(context.Background(), job.ID, entity.JobTrain))

	done, _ := store.GetByID(context.Background(), job.ID)
	require.Equal(t, entity.JobFailed, done.State)
	require.NotNil(t, done.Error)
	require.Contains(t, *done.Error, "rejected before fitting")
	require.Contains(t, *done.Error, "42 < 100")
	require.Empty(t, trn.activated, "no artifact may be activated")
}

func TestStatusPrefersLiveJob(t *testing.T) {
	store := newMemJobStore()
	c, _, _, _ := testController(store, &recordingEnqueuer{})

	_, err := c.Status(context.Background(), entity.JobEnrich)
	code, ok := domain.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errcodes.JobNotFound, code)

	job, _, err := c.Trigger(context.Background(), entity.JobEnrich)
	require.NoError(t, err)

	live, err := c.Status(context.Background(), entity.JobEnrich)
	require.NoError(t, err)
	require.Equal(t, job.ID, live.ID)
	require.Equal(t, entity.JobPending, live.State)

	require.NoError(t, c.Handle(context.Background(), job.ID, entity.JobEnrich))

	latest, err := c.Status(context.Background(), entity.JobEnrich)
	require.NoError(t, err)
	require.Equal(t, entity.JobSucceeded, latest.State)
}
