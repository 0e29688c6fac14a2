package server

import (
	"context"
	"fmt"
	"net/http"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/errcodes"
	"boxradar/pkg/httpx/reply"
)

type jobController interface {
	Trigger(ctx context.Context, kind entity.JobKind) (*entity.Job, bool, error)
	Status(ctx context.Context, kind entity.JobKind) (*entity.Job, error)
}

type JobServer struct {
	controller jobController
}

func NewJobServer(controller jobController) JobServer {
	return JobServer{
		controller: controller,
	}
}

func (s JobServer) postV1Job(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	kind, err := parseJobKind(r)
	if err != nil {
		return asFailure(err)
	}

	job, created, err := s.controller.Trigger(ctx, kind)
	if err != nil {
		return asFailure(fmt.Errorf("controller.Trigger: %w", err))
	}

	status := http.StatusOK
	if created {
		status = http.StatusAccepted
	}

	reply.JSON(ctx, w, status, newRESTJob(job))

	return nil
}

func (s JobServer) getV1Job(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	kind, err := parseJobKind(r)
	if err != nil {
		return asFailure(err)
	}

	job, err := s.controller.Status(ctx, kind)
	if err != nil {
		return asFailure(fmt.Errorf("controller.Status: %w", err))
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTJob(job))

	return nil
}

func parseJobKind(r *http.Request) (entity.JobKind, error) {
	kind, ok := entity.ParseJobKind(r.PathValue("kind"))
	if !ok {
		return "", domain.NewError(errcodes.InvalidJobKind,
			fmt.Sprintf("unknown job kind %q", r.PathValue("kind")))
	}

	return kind, nil
}
