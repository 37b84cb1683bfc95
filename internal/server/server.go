// Package server exposes the dispatcher over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/howard-nolan/llminvoke/internal/dispatch"
)

// Invoker runs one invocation. *dispatch.Dispatcher satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error)
}

// Server holds the HTTP router and everything the handlers need.
type Server struct {
	router   chi.Router
	invoker  Invoker
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New creates a Server with its routes wired up, ready to use as an
// http.Handler. gatherer backs /metrics; nil leaves the route out.
func New(invoker Invoker, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{invoker: invoker, gatherer: gatherer, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Post("/invoke", s.handleInvoke)
	})

	s.router = r
}

// ServeHTTP delegates to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
