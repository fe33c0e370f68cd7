package main

import (
	"fmt"
	"os"
	"time"

	"github.com/amu255/nightscout-cgm-skill/cgm"
	"github.com/amu255/nightscout-cgm-skill/cgm/defs"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/nightscout"
	"github.com/amu255/nightscout-cgm-skill/cgm/pkg/sqlstore"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "cgm",
	Short: "Nightscout CGM analytics",
	Long: `cgm pulls glucose readings from a Nightscout instance into a local
SQLite file and computes clinical analytics: time in range, variability,
estimated A1c, and hour/day patterns.

  $ cgm fetch --days 7          # Pull the last week into the local store
  $ cgm analyze --days 7        # Full report over the window
  $ cgm patterns --days 14      # Best/worst hours and weekdays
  $ cgm day yesterday           # One day's readings, band-tagged
  $ cgm worst --days 30         # Days ranked by glucose peak`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", "config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}

// app bundles the wired components behind one command run.
type app struct {
	cfg      defs.Config
	logger   *zap.Logger
	location *time.Location
	store    *sqlstore.Store
	client   *nightscout.Client
	fetcher  *cgm.Fetcher
	analyzer *cgm.Analyzer
}

func newApp() (*app, error) {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}

	cfg := defs.Config{Logger: logger}
	file, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read config: %w", err)
	}
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config: %w", err)
	}
	logger.Debug("loaded config file", zap.String("file", configFile))

	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unable to load timezone: %w", err)
		}
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = defs.DefaultDBFile
	}
	store, err := sqlstore.Open(dbPath, loc, logger)
	if err != nil {
		return nil, err
	}

	client := nightscout.New(cfg.Nightscout.URL, cfg.Nightscout.Token, logger)
	fetcher := &cgm.Fetcher{Source: client, Store: store, Logger: logger}
	analyzer := &cgm.Analyzer{
		Store:    store,
		Ingestor: fetcher,
		Settings: client,
		Logger:   logger,
		Location: loc,
		Fallback: cfg.Glucose.Thresholds(),
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		location: loc,
		store:    store,
		client:   client,
		fetcher:  fetcher,
		analyzer: analyzer,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Debug("unable to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// hourPtr treats negative flag values as "not set".
func hourPtr(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}
