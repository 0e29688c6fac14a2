// Package queue bridges the job controller to asynq. Jobs are enqueued with
// retries disabled: a failed run is recorded on the job row, never replayed.
package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"

	"boxradar/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

const (
	TaskJobRun = "jobs:run"
	QueueJobs  = "jobs"
)

type jobPayload struct {
	JobID string `json:"job_id"`
	Kind  string `json:"kind"`
}

type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(redisOpt asynq.RedisClientOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(redisOpt)}
}

func (e *Enqueuer) Enqueue(ctx context.Context, kind entity.JobKind, jobID string) error {
	payload, err := json.Marshal(jobPayload{JobID: jobID, Kind: string(kind)})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	task := asynq.NewTask(TaskJobRun, payload)

	if _, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueJobs),
		asynq.MaxRetry(0),
	); err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskJobRun, err)
	}

	return nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// DecodeTask extracts the job reference from a queued task.
func DecodeTask(task *asynq.Task) (jobID string, kind entity.JobKind, err error) {
	var payload jobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return "", "", fmt.Errorf("unmarshal payload: %w", err)
	}

	parsed, ok := entity.ParseJobKind(payload.Kind)
	if !ok {
		return "", "", fmt.Errorf("unknown job kind %q", payload.Kind)
	}

	return payload.JobID, parsed, nil
}
