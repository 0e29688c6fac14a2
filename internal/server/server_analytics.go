package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"boxradar/internal/domain"
	"boxradar/internal/domain/entity"
	"boxradar/pkg/errcodes"
	"boxradar/pkg/httpx/reply"
	"boxradar/pkg/lox"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 50
)

type analyticsProvider interface {
	Summary(ctx context.Context) (*entity.SummaryStats, error)
	SelectTop(ctx context.Context, limit int) ([]entity.EnrichedListing, error)
}

type AnalyticsServer struct {
	analytics analyticsProvider
}

func NewAnalyticsServer(analytics analyticsProvider) AnalyticsServer {
	return AnalyticsServer{
		analytics: analytics,
	}
}

func (s AnalyticsServer) getV1AnalyticsSummary(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	stats, err := s.analytics.Summary(ctx)
	if err != nil {
		return fmt.Errorf("analytics.Summary: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTSummary(stats))

	return nil
}

func (s AnalyticsServer) getV1AnalyticsTop(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxTopLimit {
			return asFailure(domain.NewError(errcodes.InvalidPaging,
				fmt.Sprintf("limit must be an integer in [1, %d]", maxTopLimit)))
		}

		limit = parsed
	}

	items, err := s.analytics.SelectTop(ctx, limit)
	if err != nil {
		return fmt.Errorf("analytics.SelectTop: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, lox.Map(items, newRESTTopOpportunity))

	return nil
}
