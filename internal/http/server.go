// Package http exposes the assessment service, the decision trees and the
// doctor summary feed over REST.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"earcheck/internal/core"
	"earcheck/internal/logger"
	"earcheck/internal/trees"
)

// DefaultMaxBodyBytes caps request bodies when Options leaves it unset.
const DefaultMaxBodyBytes = 50000

// Listener yields the session IDs of newly accepted summaries until ctx
// ends.  db.Notifier and db.Broadcaster implement it.
type Listener interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// Options carries the server's dependencies.  TreeSummarizer, Listener
// and Limiter may be nil.
type Options struct {
	Assessments    *core.AssessmentService
	Trees          *trees.Catalog
	TreeSummarizer *core.TreeSummarizer
	Listener       Listener
	Limiter        *RateLimiter
	MaxBodyBytes   int64
	KeepAlive      time.Duration
	Log            *logger.Logger
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler.
type Server struct {
	Options
	router chi.Router
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	s := &Server{Options: opts}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/assessments", func(r chi.Router) {
			r.Post("/", s.handleStart)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleState)
				r.Post("/answers", s.handleAnswer)
				r.Post("/back", s.handleBack)
				r.Post("/restart", s.handleRestart)
				r.Get("/summary", s.handleLatestSummary)
				r.With(s.rateLimited).Post("/summary", s.handleSummarize)
			})
		})
		r.With(s.rateLimited).Post("/summary", s.handleGenerate)

		r.Route("/trees", func(r chi.Router) {
			r.Get("/", s.handleListTrees)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTree)
				r.Post("/walk", s.handleWalk)
				r.With(s.rateLimited).Post("/summary", s.handleTreeSummary)
			})
		})

		r.Get("/doctor/summaries/stream", s.handleSummaryStream)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// decodeJSON reads at most MaxBodyBytes of JSON into dst.  An empty body
// leaves dst untouched when allowEmpty is set.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	var tooBig *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &tooBig):
		return newAPIError(http.StatusRequestEntityTooLarge, "payload_too_large",
			fmt.Errorf("request payload exceeds %d bytes", tooBig.Limit))
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	}
	return newAPIError(http.StatusBadRequest, "invalid_json", fmt.Errorf("invalid JSON payload: %w", err))
}
