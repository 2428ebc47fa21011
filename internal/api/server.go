package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rankscope/rankscope/internal/config"
	"github.com/rankscope/rankscope/internal/jobs"
	"github.com/rankscope/rankscope/internal/pipeline"
	"github.com/rankscope/rankscope/internal/seo"
	"github.com/rankscope/rankscope/internal/telemetry"
)

// Pinger reports readiness of a downstream dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the scheduler, processor, and pipeline.
type Server struct {
	router    chi.Router
	jobStore  seo.JobStore
	scheduler *jobs.Scheduler
	processor *jobs.Processor
	pipe      *pipeline.Pipeline
	pinger    Pinger
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. pinger may be
// nil when no downstream readiness check is available.
func NewServer(
	jobStore seo.JobStore,
	scheduler *jobs.Scheduler,
	processor *jobs.Processor,
	pipe *pipeline.Pipeline,
	pinger Pinger,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobStore:  jobStore,
		scheduler: scheduler,
		processor: processor,
		pipe:      pipe,
		pinger:    pinger,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(10 * time.Minute))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(bearerAuthMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/jobs/schedule", s.scheduleJobs)
		r.Post("/jobs/process", s.processJobs)
		r.Get("/jobs/{job_id}", s.getJob)

		r.Route("/websites/{website_id}", func(r chi.Router) {
			r.Post("/analyze", s.analyzeWebsite)
			r.Post("/queries/{query_id}/serp", s.checkQuerySerp)
			r.Get("/competitors/scores", s.competitorScores)
		})
		r.Post("/competitors/{competitor_id}/pages", s.scrapeCompetitorPages)
		r.Post("/serp-results/{result_id}/reanalyze", s.reanalyzeSerpResult)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store not reachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) scheduleJobs(w http.ResponseWriter, r *http.Request) {
	created, err := s.scheduler.SchedulePeriodicJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

func (s *Server) processJobs(w http.ResponseWriter, r *http.Request) {
	result, err := s.processor.ProcessJobQueue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, seo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

type analyzeRequest struct {
	Force bool `json:"force"`
}

func (s *Server) analyzeWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "website_id")

	var req analyzeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	jobID, err := s.scheduler.ScheduleInitialAnalysis(r.Context(), websiteID, req.Force)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobOpen):
			writeError(w, http.StatusConflict, "analysis already in progress")
		case errors.Is(err, seo.ErrNotFound):
			writeError(w, http.StatusNotFound, "website not found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) checkQuerySerp(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "website_id")
	queryID := chi.URLParam(r, "query_id")

	jobID, err := s.scheduler.ScheduleSerpCheck(r.Context(), websiteID, queryID)
	if err != nil {
		if errors.Is(err, seo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "query not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

type scrapeRequest struct {
	URLs []string `json:"urls"`
}

func (s *Server) scrapeCompetitorPages(w http.ResponseWriter, r *http.Request) {
	competitorID := chi.URLParam(r, "competitor_id")

	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls required")
		return
	}

	jobID, err := s.scheduler.SchedulePageScrape(r.Context(), competitorID, req.URLs)
	if err != nil {
		if errors.Is(err, seo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "competitor not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) reanalyzeSerpResult(w http.ResponseWriter, r *http.Request) {
	resultID := chi.URLParam(r, "result_id")

	result, err := s.pipe.ReanalyzeSerpResult(r.Context(), resultID)
	if err != nil {
		if errors.Is(err, seo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "serp result not found")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) competitorScores(w http.ResponseWriter, r *http.Request) {
	websiteID := chi.URLParam(r, "website_id")

	scores, err := s.pipe.CompetitorScores(r.Context(), websiteID)
	if err != nil {
		if errors.Is(err, seo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "website not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scores": scores})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func bearerAuthMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token != expected {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
