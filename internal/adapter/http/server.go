package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// StatusReporter exposes the outcome of the last tagging run.
type StatusReporter interface {
	Summaries() []domain.SetSummary
}

// Server exposes health, readiness, metrics and job status while a tagging
// job runs.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /status routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, status StatusReporter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", handleStatus(status))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type setStatus struct {
	Set        string         `json:"set"`
	Blobs      int            `json:"blobs"`
	Pairings   map[string]int `json:"pairings"`
	Labels     map[string]int `json:"labels"`
	Slices     int            `json:"slices"`
	Partitions []string       `json:"partitions,omitempty"`
}

func handleStatus(status StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		summaries := status.Summaries()
		out := make([]setStatus, 0, len(summaries))
		for _, s := range summaries {
			st := setStatus{
				Set:        s.Set,
				Blobs:      s.Blobs,
				Pairings:   make(map[string]int, len(s.Pairings)),
				Labels:     make(map[string]int, len(s.Labels)),
				Slices:     s.Slices,
				Partitions: s.Partitions,
			}
			for method, n := range s.Pairings {
				st.Pairings[method.String()] = n
			}
			for _, lc := range s.Labels {
				st.Labels[lc.Label.Name] = lc.Blobs
			}
			out = append(out, st)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"sets": out}) //nolint:errcheck // best-effort status response
	}
}
