package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jgoulah/dukescraper/internal/config"
	"github.com/jgoulah/dukescraper/internal/database"
	"github.com/jgoulah/dukescraper/pkg/dukeenergy"
)

var (
	cfgFile  string
	dbPath   string
	logDebug bool
	logTrace bool
)

var rootCmd = &cobra.Command{
	Use:   "dukescraper",
	Short: "Collect billing and electricity usage data from the Duke Energy portal",
	Long: `DukeScraper signs in to the Duke Energy customer portal, discovers the meters of the
active account and stores billing and daily kWh usage in a local SQLite database.
Stored usage can be published to Home Assistant or an MQTT broker.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
	rootCmd.PersistentFlags().BoolVar(&logDebug, "debug", false, "log portal requests")
	rootCmd.PersistentFlags().BoolVar(&logTrace, "trace", false, "log portal requests and response bodies")
}

func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	switch {
	case logTrace:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case logDebug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "data.db"
}

// loadConfig loads the configuration file and checks it
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", getConfigPath(), err)
	}
	return cfg, nil
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// newClient logs in to the portal. reg may be nil.
func newClient(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*dukeenergy.Client, error) {
	opts := []dukeenergy.Option{dukeenergy.WithLogger(log.Logger)}
	if cfg.Duke.BaseURL != "" {
		opts = append(opts, dukeenergy.WithBaseURL(cfg.Duke.BaseURL))
	}
	if d := cfg.UpdateInterval(); d > 0 {
		opts = append(opts, dukeenergy.WithUpdateInterval(d))
	}
	if reg != nil {
		opts = append(opts, dukeenergy.WithRegisterer(reg))
	}

	client, err := dukeenergy.New(ctx, cfg.Duke.Email, cfg.Duke.Password, opts...)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	return client, nil
}
