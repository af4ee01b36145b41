package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the operator API. When reportDir is set its screenshots
// and HTML report are served under /reports/.
func NewRouter(h *Handlers, reportDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/challenge", h.GetChallenge)
		r.Post("/challenge/ack", h.AcknowledgeChallenge)
		r.Get("/results", h.GetResults)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/stats", h.GetRunStats)
		r.Get("/runs/{id}", h.GetRun)
		r.Get("/solves/{site}/stats", h.GetSolveStats)
	})

	if reportDir != "" {
		r.Handle("/reports/*", http.StripPrefix("/reports/", http.FileServer(http.Dir(reportDir))))
	}

	return r
}
