// Package cli defines the cobra command tree for the viewing scheduler.
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/evcraddock/viewing-scheduler/internal/client"
	"github.com/evcraddock/viewing-scheduler/internal/config"
	"github.com/evcraddock/viewing-scheduler/internal/db"
)

var (
	flagFormat string
	flagDB     string
	flagConfig string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vs",
		Short:         "Schedule property viewings",
		Long:          "Schedule property viewings for letting agents. Tenants request slots, agents confirm or suggest alternatives, and every booking is checked against travel time between properties.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "database path or postgres:// DSN (default: ~/.viewing-scheduler/viewings.db)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "server config file (YAML)")

	root.AddCommand(
		newServeCmd(),
		newSeedCmd(),
		newPropertiesCmd(),
		newAddCmd(),
		newSlotsCmd(),
		newCheckCmd(),
		newAlternativeCmd(),
		newRequestCmd(),
		newViewingsCmd(),
		newShowCmd(),
		newCalendarCmd(),
		newMetricsCmd(),
		newConfigCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
	root.AddCommand(newLifecycleCmds()...)

	return root
}

// loadServerConfig reads the server configuration from --config and the
// environment.
func loadServerConfig() (*config.Config, error) {
	return config.Load(flagConfig)
}

// openDB opens the database from the --db flag, the config, or the
// default path, in that order.
func openDB(cfg *config.Config) (*db.DB, error) {
	dsn := flagDB
	if dsn == "" && cfg != nil {
		dsn = cfg.DB
	}
	if dsn == "" {
		var err error
		dsn, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return db.Open(dsn)
}

// newAPIClient creates an HTTP client for the scheduler API.
func newAPIClient() *client.Client {
	return client.New(getServerURL())
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *db.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}

// parseID parses a positive numeric ID argument.
func parseID(what, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, arg)
	}
	return id, nil
}
