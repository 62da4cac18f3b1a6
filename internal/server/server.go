// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"repo-sentinel/internal/aggregator"
	"repo-sentinel/internal/inspection"
	"repo-sentinel/internal/narrative"
	"repo-sentinel/internal/observability"
	"repo-sentinel/internal/rpcpool"
)

// DefaultRequestTimeout bounds one end-to-end analysis request.
const DefaultRequestTimeout = 90 * time.Second

// Fixed user-facing error messages. Internal error detail is logged, never
// echoed into the response body.
const (
	msgRepoURLRequired  = "Repository URL is required"
	msgInvalidProgramID = "Invalid program identifier"
	msgProgramNotFound  = "Program account not found"
	msgAnalysisFailed   = "Failed to analyze repository"
	msgMalformedRequest = "Request body must be valid JSON"
	msgMethodNotAllowed = "Method not allowed"
)

// Options for creating a Server.
type Options struct {
	Aggregator *aggregator.Aggregator
	// RequestTimeout bounds each request. Defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration
	Logger         *log.Logger
}

// Server handles the HTTP surface: the analyze endpoint plus
// health/metrics/status.
type Server struct {
	aggregator     *aggregator.Aggregator
	requestTimeout time.Duration
	logger         *log.Logger

	mu       sync.Mutex
	started  time.Time
	requests int
	failures int
	degraded int
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[server] ", log.LstdFlags|log.Lshortfile)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Server{
		aggregator:     opts.Aggregator,
		requestTimeout: timeout,
		logger:         logger,
		started:        time.Now(),
	}
}

// Routes returns the HTTP mux for the service.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/analyze", s.handleAnalyze)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	return mux
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// handleAnalyze runs one analysis request.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	start := time.Now()

	var req aggregator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, msgMalformedRequest)
		s.record("bad_request", start, true, false)
		return
	}

	// Derive from the request context so a client disconnect cancels
	// in-flight RPC and generator calls.
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	result, err := s.aggregator.Handle(ctx, req)
	if err != nil {
		status, msg := classifyError(err)
		if status == http.StatusInternalServerError {
			s.logger.Printf("analysis failed for %q: %v", req.RepoURL, err)
		}
		s.writeError(w, status, msg)
		s.record(httpStatusLabel(status), start, true, false)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Printf("write response: %v", err)
	}
	s.record("ok", start, false, len(result.Degraded) > 0)
}

// classifyError maps aggregator errors onto HTTP status and a fixed
// user-facing message.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, aggregator.ErrMissingRepoURL):
		return http.StatusBadRequest, msgRepoURLRequired
	case errors.Is(err, inspection.ErrInvalidProgramID):
		return http.StatusBadRequest, msgInvalidProgramID
	case errors.Is(err, inspection.ErrProgramNotFound):
		return http.StatusNotFound, msgProgramNotFound
	case errors.Is(err, rpcpool.ErrNoEndpointAvailable),
		errors.Is(err, narrative.ErrUpstream),
		errors.Is(err, narrative.ErrSchemaViolation):
		return http.StatusInternalServerError, msgAnalysisFailed
	default:
		return http.StatusInternalServerError, msgAnalysisFailed
	}
}

func httpStatusLabel(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	default:
		return "error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func (s *Server) record(status string, start time.Time, failed, degraded bool) {
	observability.RecordRequest(status, time.Since(start).Seconds())

	s.mu.Lock()
	s.requests++
	if failed {
		s.failures++
	}
	if degraded {
		s.degraded++
	}
	s.mu.Unlock()
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Requests int    `json:"requests"`
	Failures int    `json:"failures"`
	Degraded int    `json:"degraded"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:   "running",
		Uptime:   time.Since(s.started).String(),
		Requests: s.requests,
		Failures: s.failures,
		Degraded: s.degraded,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
