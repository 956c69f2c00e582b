package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evcraddock/viewing-scheduler/internal/agent"
	"github.com/evcraddock/viewing-scheduler/internal/config"
	"github.com/evcraddock/viewing-scheduler/internal/db"
	"github.com/evcraddock/viewing-scheduler/internal/feasibility"
	"github.com/evcraddock/viewing-scheduler/internal/geocode"
	"github.com/evcraddock/viewing-scheduler/internal/logging"
	"github.com/evcraddock/viewing-scheduler/internal/metrics"
	"github.com/evcraddock/viewing-scheduler/internal/notify"
	"github.com/evcraddock/viewing-scheduler/internal/property"
	"github.com/evcraddock/viewing-scheduler/internal/reschedule"
	"github.com/evcraddock/viewing-scheduler/internal/tenant"
	"github.com/evcraddock/viewing-scheduler/internal/viewing"
	"github.com/evcraddock/viewing-scheduler/internal/web"
)

// eventHistorySize bounds the recent-events ring served at /api/events.
const eventHistorySize = 200

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP API server. Configuration comes from --config, VS_* environment variables and .env.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Flags().Changed("port"), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (overrides config)")

	return cmd
}

func runServe(portSet bool, port int) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}
	if portSet {
		cfg.Port = port
	}

	logging.Setup(cfg.DevMode)

	database, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeDB(database)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := notify.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			slog.Warn("closing event bus", "error", err)
		}
	}()

	srv, dispatcher, err := newApp(database, cfg, bus)
	if err != nil {
		return err
	}

	events, err := bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	go dispatcher.Run(ctx, events)

	return srv.Run(ctx, cfg.Port)
}

// newApp wires the scheduling engine and the HTTP server over database.
func newApp(database *db.DB, cfg *config.Config, bus *notify.Bus) (*web.Server, *notify.Dispatcher, error) {
	agents := agent.NewRepository(database)
	tenants := tenant.NewRepository(database)
	props := property.NewRepository(database)
	coordRepo := property.NewCoordRepository(database)
	store := viewing.NewRepository(database)

	coords, err := coordRepo.LoadOrDefault()
	if err != nil {
		return nil, nil, fmt.Errorf("loading postcode coordinates: %w", err)
	}
	grid, err := cfg.Agency.Grid()
	if err != nil {
		return nil, nil, fmt.Errorf("building slot grid: %w", err)
	}

	policy := cfg.Agency.Policy()
	travel := cfg.Agency.TravelTimer(coords)
	checker := feasibility.NewChecker(policy, travel, props)
	finder := reschedule.NewFinder(checker, grid, cfg.Agency.SameClusterWindowSlots, coords)

	manager := viewing.NewManager(viewing.Deps{
		Store:      store,
		Properties: props,
		Tenants:    tenants,
		Checker:    checker,
		TenantRule: feasibility.NewTenantRule(cfg.Agency.TenantPolicy(), policy, travel),
		Finder:     finder,
		Events:     bus,
	})

	var geocoder property.Geocoder
	if cfg.GeocodeURL != "" {
		geocoder = geocode.NewClient(cfg.GeocodeURL)
	}

	history := notify.NewHistory(eventHistorySize)
	dispatcher := notify.NewDispatcher(history, notify.NewMailer(cfg.SMTP, cfg.DevMode), directory{tenants: tenants, properties: props})

	srv := web.NewServer(web.Deps{
		Manager:     manager,
		Properties:  props,
		PropService: property.NewService(props, coordRepo, geocoder),
		Agents:      agents,
		Tenants:     tenants,
		Metrics:     metrics.NewService(store, props, cfg.Agency.BaseTravel(coords), finder),
		History:     history,
	})

	slog.Info("scheduler ready",
		"duration_minutes", policy.DurationMinutes,
		"buffer_minutes", policy.BufferMinutes,
		"tenant_rule", cfg.Agency.TenantRuleEnabled,
		"randomized_travel", cfg.Agency.Travel.Randomized,
		"postcodes", len(coords),
	)
	return srv, dispatcher, nil
}

// directory resolves notification addressing from the repositories.
type directory struct {
	tenants    *tenant.Repository
	properties *property.Repository
}

func (d directory) TenantEmail(tenantID int64) (string, error) {
	t, err := d.tenants.GetByID(tenantID)
	if err != nil {
		return "", err
	}
	return t.Email, nil
}

func (d directory) PropertyName(propertyID int64) (string, error) {
	p, err := d.properties.GetByID(propertyID)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}
