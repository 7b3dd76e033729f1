// Package server exposes ingestion, whale activity, narratives and address
// classification over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"whalewatch/internal/address"
	"whalewatch/internal/alert"
	"whalewatch/internal/ingest"
	"whalewatch/internal/retrieval"
	"whalewatch/internal/storage"
)

const (
	defaultMaxBodyBytes   = 1 << 20
	defaultMaxRecentLimit = 200
)

// Ingester accepts alert submissions and lists what it accepted.
type Ingester interface {
	Submit(ctx context.Context, sub ingest.Submission) ingest.Result
	Recent(ctx context.Context, q storage.RecordQuery) ([]alert.RawAlertMessage, error)
}

// ActivityFetcher serves recent normalized whale activity.
type ActivityFetcher interface {
	FetchRecent(ctx context.Context, q retrieval.Query) ([]alert.WhaleActivity, error)
}

// NarrativeService reads and writes token narratives.
type NarrativeService interface {
	Get(ctx context.Context, address string) (storage.TokenNarrative, error)
	Upsert(ctx context.Context, n storage.TokenNarrative) (storage.TokenNarrative, error)
	Recent(ctx context.Context, limit int) ([]storage.TokenNarrative, error)
	Search(ctx context.Context, query string, limit int) ([]storage.TokenNarrative, error)
}

// AddressClassifier resolves whether an address is a wallet or a token.
type AddressClassifier interface {
	Classify(ctx context.Context, addr string) (address.Classification, error)
}

// Pinger reports durable storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP API serves. Nil members disable
// their endpoints, which then answer 503.
type Deps struct {
	Ingester   Ingester
	Activity   ActivityFetcher
	Narratives NarrativeService
	Addresses  AddressClassifier
	Health     Pinger
	Metrics    http.Handler
}

// Options tune request handling.
type Options struct {
	// BearerToken guards write endpoints. Empty disables the check.
	BearerToken  string
	MaxBodyBytes int64
	// IngestRPS limits POST /api/messages; zero disables limiting.
	IngestRPS   float64
	IngestBurst int
	// MaxRecentLimit caps limit on GET /api/messages/recent.
	MaxRecentLimit int
}

// Server provides the HTTP API.
type Server struct {
	deps    Deps
	opts    Options
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a server.
func New(deps Deps, opts Options, logger zerolog.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.MaxRecentLimit <= 0 {
		opts.MaxRecentLimit = defaultMaxRecentLimit
	}
	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("component", "http_server").Logger(),
	}
	if opts.IngestRPS > 0 {
		burst := opts.IngestBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.IngestRPS), burst)
	}
	if opts.BearerToken == "" {
		s.logger.Warn().Msg("bearer token not configured, write endpoints are unauthenticated")
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/messages", s.requireBearer(s.rateLimited(http.HandlerFunc(s.handleSubmitMessage))))
	mux.HandleFunc("GET /api/messages/recent", s.handleRecentMessages)
	mux.HandleFunc("GET /api/whale-activity", s.handleWhaleActivity)

	mux.Handle("POST /api/narratives", s.requireBearer(http.HandlerFunc(s.handleUpsertNarrative)))
	mux.HandleFunc("GET /api/narratives", s.handleListNarratives)
	mux.HandleFunc("GET /api/narratives/search", s.handleSearchNarratives)
	mux.HandleFunc("GET /api/narratives/{address}", s.handleGetNarrative)

	mux.HandleFunc("GET /api/addresses/{address}/kind", s.handleAddressKind)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}
	return s.logRequests(mux)
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// decodeJSONBody reads and decodes a JSON request body into v.
// Returns false (and writes an error response) if decoding fails.
func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// parseLimit reads the limit query parameter. Absent means zero, which
// downstream components treat as their default.
func parseLimit(r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	if s.opts.BearerToken == "" {
		return next
	}
	want := []byte("Bearer " + s.opts.BearerToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			s.logger.Warn().Str("path", r.URL.Path).Str("remote_addr", r.RemoteAddr).Msg("ingest rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(started)).
			Msg("request served")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "durable": false})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Health.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "durable": true, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "durable": true})
}
