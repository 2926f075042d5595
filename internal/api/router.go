package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout bounds each component check of the health endpoint.
const healthCheckTimeout = 3 * time.Second

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/invoke", s.handleInvoke)
			r.Get("/operations", s.handleOperations)
			r.Get("/ws", s.handleWebSocket)

			r.Route("/processes", func(r chi.Router) {
				r.Get("/", s.handleListProcesses)
				r.Get("/history", s.handleHistory)
			})
		})
	})

	return r
}

// handleHealth reports version, live process count and every component
// check. Checks run concurrently; any failure makes the status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := s.runChecks(r.Context())

	status := "ok"
	for _, v := range results {
		if v != "ok" {
			status = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"version":   s.version,
		"processes": len(s.processes.List()),
		"clients":   s.hub.ClientCount(),
		"checks":    results,
	})
}

func (s *Server) runChecks(ctx context.Context) map[string]string {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(names))
		g       errgroup.Group
	)
	for _, name := range names {
		name := name
		check := s.checks[name]
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()
			res := "ok"
			if err := check.HealthCheck(cctx); err != nil {
				res = err.Error()
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // checks report through results, never through the group
	return results
}
