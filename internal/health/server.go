// Package health serves liveness and readiness probes for the pipeline
// process.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Check is one named readiness probe. Probe returns nil when the dependency
// is usable.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server exposes /healthz and /readyz.
type Server struct {
	addr         string
	probeTimeout time.Duration
	checks       []Check
	logger       zerolog.Logger
	router       chi.Router
}

type status struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewServer constructs a Server listening on port. probeTimeout bounds the
// whole readiness evaluation.
func NewServer(port int, probeTimeout time.Duration, logger zerolog.Logger, checks ...Check) *Server {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	if probeTimeout <= 0 {
		probeTimeout = 500 * time.Millisecond
	}
	s := &Server{
		addr:         fmt.Sprintf(":%d", port),
		probeTimeout: probeTimeout,
		checks:       checks,
		logger:       logger.With().Str("component", "health").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	s.router = r
	return s
}

// Handler returns the probe router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("health: server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("health: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health: shutdown: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, status{Status: "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.probeTimeout)
	defer cancel()

	results := make(map[string]string, len(s.checks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, c := range s.checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()
			res := "ok"
			if err := c.Probe(ctx); err != nil {
				res = err.Error()
			}
			mu.Lock()
			results[c.Name] = res
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	code, overall := http.StatusOK, "ready"
	for name, res := range results {
		if res != "ok" {
			code, overall = http.StatusServiceUnavailable, "not_ready"
			s.logger.Warn().Str("check", name).Str("error", res).Msg("health: readiness check failed")
		}
	}
	writeJSON(w, code, status{Status: overall, Checks: results})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// BrokerCheck adapts a connection flag such as queue.Broker.Ready.
func BrokerCheck(name string, ready func() bool) Check {
	return Check{Name: name, Probe: func(context.Context) error {
		if !ready() {
			return errors.New("not connected")
		}
		return nil
	}}
}
