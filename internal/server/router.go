package server

import (
	"net/http"

	"github.com/cutroom-ai/cutroom/internal/api"
	"github.com/cutroom-ai/cutroom/internal/api/handlers"
	"github.com/cutroom-ai/cutroom/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	ProjectHandler    *handlers.ProjectHandler
	SegmentHandler    *handlers.SegmentHandler
	RedundancyHandler *handlers.RedundancyHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/projects", func(r chi.Router) {
		r.Post("/", cfg.ProjectHandler.Create)
		r.Get("/", cfg.ProjectHandler.List)

		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", cfg.ProjectHandler.Get)

			r.Post("/workflows", cfg.ProjectHandler.CreateWorkflow)
			r.Get("/workflows", cfg.ProjectHandler.ListWorkflows)

			r.Post("/segments", cfg.SegmentHandler.Create)
			r.Get("/segments", cfg.SegmentHandler.List)

			r.Route("/redundancy", func(r chi.Router) {
				r.Post("/analyze", cfg.RedundancyHandler.Analyze)
				r.Get("/recommendations", cfg.RedundancyHandler.Recommendations)
				r.Post("/apply", cfg.RedundancyHandler.Apply)
				r.Post("/report", cfg.RedundancyHandler.ExportReport)
			})
		})
	})

	r.Get("/segments/{segmentID}", cfg.SegmentHandler.Get)

	return r
}
