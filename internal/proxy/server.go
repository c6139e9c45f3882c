package proxy

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"maitred/internal/config"
	"maitred/internal/middleware"
	"maitred/internal/routes"
)

// shutdownTimeout bounds graceful shutdown so a hung client connection
// cannot keep the process alive past the orchestrator's stop window.
const shutdownTimeout = 15 * time.Second

// Server is the request router: it classifies every inbound request against
// the route table and dispatches it to exactly one destination. It holds no
// mutable state beyond the readiness checker.
type Server struct {
	config   *config.Config
	table    *routes.Table
	upstream http.Handler
	checker  *Checker
}

func NewServer(cfg *config.Config) (*Server, error) {
	table, err := routes.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:  cfg,
		table:   table,
		checker: NewChecker(cfg),
	}

	for _, rule := range table.Rules() {
		if rule.Dest.Kind == routes.KindUpstream {
			s.upstream = newUpstreamProxy(rule.Dest.Target, cfg.Server.UpstreamTimeout)
			break
		}
	}

	for _, rule := range table.Rules() {
		log.Debug().
			Str("prefix", rule.Prefix).
			Str("destination", rule.Dest.Kind.String()).
			Msg("Configured route")
	}
	log.Info().Int("rules", len(table.Rules())).Msg("Route table built")

	return s, nil
}

// Table exposes the evaluation order, mainly for tests and the status
// endpoint.
func (s *Server) Table() *routes.Table {
	return s.table
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rule, ok := s.table.Match(r.URL.Path)
	if !ok {
		log.Warn().Str("path", r.URL.Path).Msg("No route rule matched")
		http.NotFound(w, r)
		return
	}

	inFlight.Inc()
	defer inFlight.Dec()

	rw := middleware.NewResponseWriter(w)

	switch rule.Dest.Kind {
	case routes.KindUpstream:
		s.upstream.ServeHTTP(rw, r)
	case routes.KindDocs:
		s.serveDocs(rw, r, rule)
	case routes.KindStatic:
		s.serveStatic(rw, r, rule)
	case routes.KindMedia:
		s.serveMedia(rw, r, rule)
	case routes.KindSPA:
		s.serveSPA(rw, r, rule)
	}

	requestsTotal.WithLabelValues(rule.Dest.Kind.String(), statusClass(rw.StatusCode())).Inc()
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// Start runs the public router and the admin mux (health + metrics) until
// the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	handler := middleware.Chain(
		middleware.PanicRecovery,
		middleware.RequestLogger,
		middleware.MaxBodyBytes(s.config.Server.MaxBodyBytes),
	)(s)

	server := &http.Server{
		Addr:    s.config.Server.Listen,
		Handler: handler,
	}

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /healthz", s.checker.LivenessHandler)
	adminMux.HandleFunc("GET /readyz", s.checker.ReadinessHandler)
	adminMux.Handle("GET /metrics", promhttp.Handler())

	adminServer := &http.Server{
		Addr:    s.config.Server.AdminListen,
		Handler: adminMux,
	}

	go s.checker.Watch(ctx)

	errChan := make(chan error, 2)
	go func() {
		log.Info().Str("address", server.Addr).Msg("Router listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	go func() {
		log.Info().Str("address", adminServer.Addr).Msg("Admin endpoints listening")
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info().Msg("Router shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Admin server shutdown error")
		}
		return server.Shutdown(shutdownCtx)
	}
}
