package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"boxradar/pkg/httpx/reply"
)

func (s Server) RegisterRoutes(r chi.Router) { //nolint:funlen
	r.Route("/", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			// unauthorized zone
			r.Route("/listings", func(r chi.Router) {
				r.Get("/", handler(s.getV1Listings))
				r.Get("/geojson", handler(s.getV1ListingsGeojson))
				r.Get("/{id}", handler(s.getV1Listing))
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/summary", handler(s.getV1AnalyticsSummary))
				r.Get("/top", handler(s.getV1AnalyticsTop))
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Post("/{kind}", handler(s.postV1Job))
				r.Get("/{kind}", handler(s.getV1Job))
			})
		})
	})
}

func handler(f func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			reply.Error(r.Context(), w, err)
		}
	}
}
