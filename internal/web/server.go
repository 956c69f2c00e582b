// Package web provides the HTTP API for the viewing scheduler.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/evcraddock/viewing-scheduler/internal/agent"
	"github.com/evcraddock/viewing-scheduler/internal/logging"
	"github.com/evcraddock/viewing-scheduler/internal/metrics"
	"github.com/evcraddock/viewing-scheduler/internal/notify"
	"github.com/evcraddock/viewing-scheduler/internal/property"
	"github.com/evcraddock/viewing-scheduler/internal/tenant"
	"github.com/evcraddock/viewing-scheduler/internal/viewing"
)

// Deps wires a Server.
type Deps struct {
	Manager     *viewing.Manager
	Properties  *property.Repository
	PropService *property.Service
	Agents      *agent.Repository
	Tenants     *tenant.Repository
	Metrics     *metrics.Service
	History     *notify.History
}

// Server is the API HTTP server.
type Server struct {
	manager     *viewing.Manager
	propRepo    *property.Repository
	propService *property.Service
	agents      *agent.Repository
	tenants     *tenant.Repository
	metrics     *metrics.Service
	history     *notify.History
	router      *mux.Router
}

// NewServer creates an API server.
func NewServer(d Deps) *Server {
	s := &Server{
		manager:     d.Manager,
		propRepo:    d.Properties,
		propService: d.PropService,
		agents:      d.Agents,
		tenants:     d.Tenants,
		metrics:     d.Metrics,
		history:     d.History,
		router:      mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apiError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	r.Use(logging.RequestLogger)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/properties", s.apiListProperties).Methods(http.MethodGet)
	r.HandleFunc("/api/properties", s.apiAddProperty).Methods(http.MethodPost)
	r.HandleFunc("/api/properties/{id:[0-9]+}", s.apiGetProperty).Methods(http.MethodGet)
	r.HandleFunc("/api/properties/{id:[0-9]+}/slots", s.apiAvailableSlots).Methods(http.MethodGet)
	r.HandleFunc("/api/properties/{id:[0-9]+}/alternative", s.apiFindAlternative).Methods(http.MethodGet)
	r.HandleFunc("/api/feasibility", s.apiCheckFeasibility).Methods(http.MethodPost)

	r.HandleFunc("/api/agents", s.apiListAgents).Methods(http.MethodGet)
	r.HandleFunc("/api/agents/{id:[0-9]+}/calendar", s.apiAgentCalendar).Methods(http.MethodGet)
	r.HandleFunc("/api/tenants", s.apiListTenants).Methods(http.MethodGet)
	r.HandleFunc("/api/tenants", s.apiAddTenant).Methods(http.MethodPost)

	r.HandleFunc("/api/viewings", s.apiListViewings).Methods(http.MethodGet)
	r.HandleFunc("/api/viewings", s.apiRequestViewing).Methods(http.MethodPost)
	r.HandleFunc("/api/viewings/{id:[0-9]+}", s.apiGetViewing).Methods(http.MethodGet)
	r.HandleFunc("/api/viewings/{id:[0-9]+}/feasibility", s.apiViewingFeasibility).Methods(http.MethodGet)
	r.HandleFunc("/api/viewings/{id:[0-9]+}/suggest", s.apiSuggest).Methods(http.MethodPost)
	r.HandleFunc("/api/viewings/{id:[0-9]+}/{action:confirm|accept|decline|decline-suggestion}", s.apiTransition).
		Methods(http.MethodPost)

	r.HandleFunc("/api/metrics", s.apiMetrics).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.apiEvents).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ShutdownTimeout bounds how long in-flight requests may run after the
// server is asked to stop.
const ShutdownTimeout = 10 * time.Second

// Run listens on port and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", port, err)
	}
	slog.Info("starting server", "addr", fmt.Sprintf("http://localhost:%d", port))
	return serve(ctx, ln, s, ShutdownTimeout)
}

// serve runs handler on ln until ctx is cancelled, then stops accepting
// connections and waits up to timeout for in-flight requests.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, timeout time.Duration) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
