// Package config loads server and per-agency scheduling configuration from
// defaults, an optional YAML file, a .env file and VS_* environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/evcraddock/viewing-scheduler/internal/db"
	"github.com/evcraddock/viewing-scheduler/internal/feasibility"
	"github.com/evcraddock/viewing-scheduler/internal/geotime"
	"github.com/evcraddock/viewing-scheduler/internal/notify"
)

// EnvPrefix prefixes every environment variable, e.g. VS_PORT or
// VS_AGENCY_TRAVEL_BUFFER_MINUTES.
const EnvPrefix = "VS"

// Config is the server configuration.
type Config struct {
	DB         string            `mapstructure:"db" yaml:"db"`
	Port       int               `mapstructure:"port" yaml:"port"`
	DevMode    bool              `mapstructure:"dev_mode" yaml:"dev_mode"`
	BaseURL    string            `mapstructure:"base_url" yaml:"base_url"`
	GeocodeURL string            `mapstructure:"geocode_url" yaml:"geocode_url"`
	SMTP       notify.SMTPConfig `mapstructure:"smtp" yaml:"smtp"`
	Agency     Agency            `mapstructure:"agency" yaml:"agency"`
}

// WorkingHours bounds the bookable day as HH:MM, end exclusive.
type WorkingHours struct {
	Start string `mapstructure:"start" yaml:"start"`
	End   string `mapstructure:"end" yaml:"end"`
}

// Travel configures travel-time estimation.
type Travel struct {
	SpeedKmh        float64 `mapstructure:"speed_kmh" yaml:"speed_kmh"`
	OverheadMinutes int     `mapstructure:"overhead_minutes" yaml:"overhead_minutes"`
	FallbackMinutes int     `mapstructure:"fallback_minutes" yaml:"fallback_minutes"`
	Randomized      bool    `mapstructure:"randomized" yaml:"randomized"`
	JitterMinutes   int     `mapstructure:"jitter_minutes" yaml:"jitter_minutes"`
	MinMinutes      int     `mapstructure:"min_minutes" yaml:"min_minutes"`
	Seed            uint64  `mapstructure:"seed" yaml:"seed"`
}

// Agency holds the per-agency scheduling constants.
type Agency struct {
	ViewingDurationMinutes int          `mapstructure:"viewing_duration_minutes" yaml:"viewing_duration_minutes"`
	TravelBufferMinutes    int          `mapstructure:"travel_buffer_minutes" yaml:"travel_buffer_minutes"`
	TenantRuleEnabled      bool         `mapstructure:"tenant_rule_enabled" yaml:"tenant_rule_enabled"`
	TravelToleranceMinutes int          `mapstructure:"travel_tolerance_minutes" yaml:"travel_tolerance_minutes"`
	WorkingHours           WorkingHours `mapstructure:"working_hours" yaml:"working_hours"`
	SlotStepMinutes        int          `mapstructure:"slot_step_minutes" yaml:"slot_step_minutes"`
	SameClusterWindowSlots int          `mapstructure:"same_cluster_window_slots" yaml:"same_cluster_window_slots"`
	Travel                 Travel       `mapstructure:"travel" yaml:"travel"`
}

func setDefaults(v *viper.Viper) {
	if path, err := db.DefaultPath(); err == nil {
		v.SetDefault("db", path)
	} else {
		v.SetDefault("db", "")
	}
	v.SetDefault("port", 8080)
	v.SetDefault("dev_mode", false)
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("geocode_url", "")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", "587")
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.pass", "")
	v.SetDefault("smtp.from", "")

	v.SetDefault("agency.viewing_duration_minutes", feasibility.DefaultPolicy.DurationMinutes)
	v.SetDefault("agency.travel_buffer_minutes", feasibility.DefaultPolicy.BufferMinutes)
	v.SetDefault("agency.tenant_rule_enabled", feasibility.DefaultTenantPolicy.Enabled)
	v.SetDefault("agency.travel_tolerance_minutes", feasibility.DefaultTenantPolicy.ToleranceMinutes)
	v.SetDefault("agency.working_hours.start", "09:00")
	v.SetDefault("agency.working_hours.end", "18:00")
	v.SetDefault("agency.slot_step_minutes", 30)
	v.SetDefault("agency.same_cluster_window_slots", 6)
	v.SetDefault("agency.travel.speed_kmh", geotime.DefaultTravelModel.SpeedKmh)
	v.SetDefault("agency.travel.overhead_minutes", geotime.DefaultTravelModel.OverheadMinutes)
	v.SetDefault("agency.travel.fallback_minutes", geotime.DefaultTravelModel.FallbackMinutes)
	v.SetDefault("agency.travel.randomized", true)
	v.SetDefault("agency.travel.jitter_minutes", 10)
	v.SetDefault("agency.travel.min_minutes", 5)
	v.SetDefault("agency.travel.seed", 0)
}

// Load reads configuration. path names an optional YAML file; an empty
// path uses defaults and the environment only. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configuration the engine cannot schedule with.
func (c *Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if err := c.Agency.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate rejects non-positive durations and steps, negative buffers and
// tolerances, and malformed or inverted working hours.
func (a Agency) Validate() error {
	var errs []error
	positive := func(name string, n int) {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, n))
		}
	}
	nonNegative := func(name string, n int) {
		if n < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, n))
		}
	}

	positive("viewing_duration_minutes", a.ViewingDurationMinutes)
	nonNegative("travel_buffer_minutes", a.TravelBufferMinutes)
	nonNegative("travel_tolerance_minutes", a.TravelToleranceMinutes)
	positive("same_cluster_window_slots", a.SameClusterWindowSlots)
	if _, err := a.Grid(); err != nil {
		errs = append(errs, err)
	}

	if a.Travel.SpeedKmh <= 0 {
		errs = append(errs, fmt.Errorf("travel.speed_kmh must be positive, got %v", a.Travel.SpeedKmh))
	}
	nonNegative("travel.overhead_minutes", a.Travel.OverheadMinutes)
	positive("travel.fallback_minutes", a.Travel.FallbackMinutes)
	nonNegative("travel.jitter_minutes", a.Travel.JitterMinutes)
	nonNegative("travel.min_minutes", a.Travel.MinMinutes)

	return errors.Join(errs...)
}

// Policy returns the agent-side feasibility policy.
func (a Agency) Policy() feasibility.Policy {
	return feasibility.Policy{
		DurationMinutes: a.ViewingDurationMinutes,
		BufferMinutes:   a.TravelBufferMinutes,
	}
}

// TenantPolicy returns the tenant-side conflict rule policy.
func (a Agency) TenantPolicy() feasibility.TenantPolicy {
	return feasibility.TenantPolicy{
		Enabled:          a.TenantRuleEnabled,
		ToleranceMinutes: a.TravelToleranceMinutes,
	}
}

// Grid returns the slot grid for the working hours.
func (a Agency) Grid() (geotime.Grid, error) {
	return geotime.NewGrid(a.WorkingHours.Start, a.WorkingHours.End, a.SlotStepMinutes)
}

// BaseTravel returns the deterministic estimator over coords.
func (a Agency) BaseTravel(coords geotime.CoordTable) *geotime.Estimator {
	return geotime.NewEstimator(coords, geotime.TravelModel{
		SpeedKmh:        a.Travel.SpeedKmh,
		OverheadMinutes: a.Travel.OverheadMinutes,
		FallbackMinutes: a.Travel.FallbackMinutes,
		RoundToMinutes:  geotime.DefaultTravelModel.RoundToMinutes,
	})
}

// TravelTimer returns the timer used for feasibility: the base estimate,
// jittered when randomized. A zero seed draws from the runtime source.
func (a Agency) TravelTimer(coords geotime.CoordTable) geotime.TravelTimer {
	base := a.BaseTravel(coords)
	if !a.Travel.Randomized {
		return base
	}
	if a.Travel.Seed != 0 {
		return geotime.NewSeededJittered(base, a.Travel.JitterMinutes, a.Travel.MinMinutes, a.Travel.Seed)
	}
	return geotime.NewJittered(base, a.Travel.JitterMinutes, a.Travel.MinMinutes, nil)
}
