package main

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/sawpanic/sentinel/internal/adapters/httpsource"
	"github.com/sawpanic/sentinel/internal/adapters/parquetstore"
	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
	"github.com/sawpanic/sentinel/internal/engine"
)

// deployment bundles everything a subcommand needs to run the engine: the
// loaded config, the constructed engine, and its settings watcher (for
// ReloadAndDiff during the serve loop).
type deployment struct {
	cfg      config.EngineConfig
	eng      *engine.Engine
	settings *config.SettingsWatcher

	// prevEventCount lets the serve loop report only newly emitted events
	// to the events-total metric, since Snapshot returns the full log.
	prevEventCount int
}

// buildDeployment loads config, the sensor registry, and runtime settings,
// then wires the HTTP fetch adapter and Parquet persister into a fresh
// Engine. Shared by serve, backfill, and snapshot so every entrypoint sees
// identical wiring.
func buildDeployment(configPath string) (*deployment, error) {
	cfg, err := config.LoadEngineConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}

	sensors, err := config.LoadSensors(cfg.SensorsPath)
	if err != nil {
		return nil, fmt.Errorf("load sensor registry: %w", err)
	}

	settings, err := config.NewSettingsWatcher(cfg.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("load runtime settings: %w", err)
	}

	fetcher := httpsource.New(cfg.APIBaseURL, cfg.APIKey, cfg.APISystemID, rate.Limit(5), 10)
	persister := parquetstore.New(cfg.PersistencePath)

	eng := engine.New(cfg, sensors, fetcher, persister, settings)

	return &deployment{cfg: cfg, eng: eng, settings: settings}, nil
}

func loadSensors(sensorsPath string) ([]domain.Sensor, error) {
	return config.LoadSensors(sensorsPath)
}
