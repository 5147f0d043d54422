// Package server exposes schema validation over HTTP.
//
//	GET  /healthz                         liveness and database ping
//	GET  /v1/tables                       declared tables
//	GET  /v1/tables/{table}/validation    validate one table (?strict=true)
//	POST /v1/validations                  validate many tables
//	GET  /v1/watch                        scheduled watch status
//	GET  /v1/reports                      archived reports, newest first
//	GET  /v1/reports/*                    one archived report by key
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/dbkit/internal/filestore"
	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/report"
	"github.com/koustreak/dbkit/internal/validator"
	"github.com/koustreak/dbkit/internal/watch"
)

// Pinger checks the database connection. database.DB implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReportStore reads archived reports. *report.Archiver implements it.
type ReportStore interface {
	List(ctx context.Context, limit int) ([]filestore.ObjectInfo, error)
	Load(ctx context.Context, key string) (*report.Report, error)
}

// WatchStatus is implemented by *watch.Watcher.
type WatchStatus interface {
	Status() watch.Status
}

type Server struct {
	validator *validator.Validator
	tables    []*model.Table
	byName    map[string]*model.Table
	meta      report.Meta

	db      Pinger
	reports ReportStore
	watch   WatchStatus

	log            *logger.Logger
	requestTimeout time.Duration
	http           *http.Server
}

type Option func(*Server)

func WithPinger(p Pinger) Option {
	return func(s *Server) { s.db = p }
}

func WithReports(r ReportStore) Option {
	return func(s *Server) { s.reports = r }
}

func WithWatch(w WatchStatus) Option {
	return func(s *Server) { s.watch = w }
}

func WithMeta(m report.Meta) Option {
	return func(s *Server) { s.meta = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithRequestTimeout bounds every request. Default 60s.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

func New(v *validator.Validator, tables []*model.Table, opts ...Option) *Server {
	s := &Server{
		validator:      v,
		tables:         tables,
		byName:         make(map[string]*model.Table, len(tables)),
		log:            logger.Nop(),
		requestTimeout: time.Minute,
	}
	for _, t := range tables {
		s.byName[t.Name] = t
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)
		r.Get("/tables/{table}/validation", s.handleValidateTable)
		r.Post("/validations", s.handleValidateMany)
		r.Get("/watch", s.handleWatchStatus)
		r.Get("/reports", s.handleListReports)
		r.Get("/reports/*", s.handleGetReport)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("http api listening on %s", addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Infof("http api shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.HTTPEvent().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
