// Package config holds the engine's configuration surface. Every threshold
// and window size the analyzers use is a plain field here, passed into
// each analyzer call rather than mutated at the package level, so a single
// process can run multiple configurations without interference.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig bundles every analyzer threshold and window size. A single
// value is constructed at startup (DefaultEngineConfig, optionally
// overridden from YAML and the environment) and passed by value into every
// analyzer call for the lifetime of the process.
type EngineConfig struct {
	// Retention and aggregation
	RetentionDays   int           `yaml:"retention_days"`
	BucketInterval  time.Duration `yaml:"bucket_interval"`
	IdleFloorG      float64       `yaml:"idle_floor_g"`
	RundownMinutes  int           `yaml:"rundown_minutes"`
	WarmupMinutes   int           `yaml:"warmup_minutes"`
	GapFillMaxTicks int           `yaml:"gap_fill_max_ticks"`

	// C3 SKF crest factor
	SKFStandardWarn float64 `yaml:"skf_standard_warn"`
	SKFStandardCrit float64 `yaml:"skf_standard_crit"`
	SKFHeavyWarn    float64 `yaml:"skf_heavy_warn"`
	SKFHeavyCrit    float64 `yaml:"skf_heavy_crit"`
	SKFNormalMax    float64 `yaml:"skf_normal_max"` // cf < this -> MONITORING regardless of warn/crit

	// C4 adaptive baseline
	BaselineWindow          time.Duration `yaml:"baseline_window"`
	SteadyStateWindowTicks  int           `yaml:"steady_state_window_ticks"`
	SteadyStateMaxCV        float64       `yaml:"steady_state_max_cv"`
	BaselineSigmaWarning    float64       `yaml:"baseline_sigma_warning"`
	BaselineSigmaCritical   float64       `yaml:"baseline_sigma_critical"`
	BaselineMinCriticalRMS  float64       `yaml:"baseline_min_critical_rms"` // supplemented: floor below which band breaches never escalate past PLAN_SERVICE

	// C5 thermal gradient
	GradientWindowTicks    int     `yaml:"gradient_window_ticks"` // 12 x 5min = 1h
	GradientWarning        float64 `yaml:"gradient_warning"`
	GradientCritical       float64 `yaml:"gradient_critical"`
	GradientFireExtreme    float64 `yaml:"gradient_fire_extreme"`
	GradientMinFireTempC   float64 `yaml:"gradient_min_fire_temp_c"`

	// C6 isolation forest
	IsoForestMinRows      int     `yaml:"iso_forest_min_rows"`
	IsoForestTrees        int     `yaml:"iso_forest_trees"`
	IsoForestSampleSize   int     `yaml:"iso_forest_sample_size"`
	IsoForestWarningPct   float64 `yaml:"iso_forest_warning_pct"`  // P1
	IsoForestCriticalPct  float64 `yaml:"iso_forest_critical_pct"` // P0.1
	IsoForestVibFloorMult float64 `yaml:"iso_forest_vib_floor_mult"`
	IsoForestSeed         int64   `yaml:"iso_forest_seed"`

	// C7 alarm fuser
	FirePersistenceTicks  int `yaml:"fire_persistence_ticks"`
	AlarmPersistenceTicks int `yaml:"alarm_persistence_ticks"`
	HeavyPersistenceTicks int `yaml:"heavy_persistence_ticks"`

	// C8 health index
	HISeizureVibRMS     float64 `yaml:"hi_seizure_vib_rms"`
	HISeizureGradient   float64 `yaml:"hi_seizure_gradient"`
	HICFCritical        float64 `yaml:"hi_cf_critical"`
	HIHardCapTempMean   float64 `yaml:"hi_hard_cap_temp_mean"`
	HIHardCapGradient   float64 `yaml:"hi_hard_cap_gradient"`
	HITrendLookback     time.Duration `yaml:"hi_trend_lookback"`
	RULMaxHours         float64 `yaml:"rul_max_hours"`

	// Events
	EventTimezone string `yaml:"event_timezone"`

	// Inbound fetch
	APIBaseURL       string        `yaml:"api_base_url" env:"SENTINEL_API_BASE_URL"`
	APIKey           string        `yaml:"api_key" env:"SENTINEL_API_KEY"`
	APISystemID      string        `yaml:"api_system_id" env:"SENTINEL_API_SYSTEM_ID"`
	TagFilter        string        `yaml:"tag_filter" env:"SENTINEL_TAG_FILTER"`
	PollInterval     time.Duration `yaml:"poll_interval" env:"SENTINEL_POLL_INTERVAL"`
	MaxConcurrency   int           `yaml:"max_concurrency" env:"SENTINEL_MAX_CONCURRENCY"`
	HallSensorID     string        `yaml:"hall_sensor_id" env:"SENTINEL_HALL_SENSOR_ID"`
	SnapshotPath     string        `yaml:"snapshot_path" env:"SENTINEL_SNAPSHOT_PATH"`
	PersistencePath  string        `yaml:"persistence_path" env:"SENTINEL_PERSISTENCE_PATH"`
	SensorsPath      string        `yaml:"sensors_path" env:"SENTINEL_SENSORS_PATH"`
	SettingsPath     string        `yaml:"settings_path" env:"SENTINEL_SETTINGS_PATH"`
}

// DefaultEngineConfig returns the engine's built-in thresholds, unmodified —
// the values the system ships with before any YAML override.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RetentionDays:   60,
		BucketInterval:  5 * time.Minute,
		IdleFloorG:      0.1,
		RundownMinutes:  15,
		WarmupMinutes:   60,
		GapFillMaxTicks: 3,

		SKFStandardWarn: 5.0,
		SKFStandardCrit: 6.0,
		SKFHeavyWarn:    6.0,
		SKFHeavyCrit:    8.0,
		SKFNormalMax:    3.0,

		BaselineWindow:         30 * 24 * time.Hour,
		SteadyStateWindowTicks: 6,
		SteadyStateMaxCV:       0.15,
		BaselineSigmaWarning:   2.0,
		BaselineSigmaCritical:  3.0,
		BaselineMinCriticalRMS: 0.3,

		GradientWindowTicks:  12,
		GradientWarning:      10.0,
		GradientCritical:     15.0,
		GradientFireExtreme:  30.0,
		GradientMinFireTempC: 45.0,

		IsoForestMinRows:      500,
		IsoForestTrees:        100,
		IsoForestSampleSize:   256,
		IsoForestWarningPct:   0.01,
		IsoForestCriticalPct:  0.001,
		IsoForestVibFloorMult: 0.8,
		IsoForestSeed:         42,

		FirePersistenceTicks:  1,
		AlarmPersistenceTicks: 2,
		HeavyPersistenceTicks: 5,

		HISeizureVibRMS:   0.01,
		HISeizureGradient: 12.0,
		HICFCritical:      6.0,
		HIHardCapTempMean: 80.0,
		HIHardCapGradient: 20.0,
		HITrendLookback:   2 * time.Hour,
		RULMaxHours:       168.0,

		EventTimezone: "Europe/Warsaw",

		PollInterval:   120 * time.Second,
		MaxConcurrency: 20,
		SettingsPath:   "./settings.json",
	}
}

// LoadEngineConfig reads a YAML file, merges it over DefaultEngineConfig,
// and applies any matching environment variable overrides declared via the
// `env` struct tag. A missing file leaves the defaults in place; the env
// overrides and validation still apply.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse engine config yaml: %w", err)
			}
		case !os.IsNotExist(err):
			return cfg, fmt.Errorf("read engine config: %w", err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *EngineConfig) {
	if v := os.Getenv("SENTINEL_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("SENTINEL_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("SENTINEL_API_SYSTEM_ID"); v != "" {
		cfg.APISystemID = v
	}
	if v := os.Getenv("SENTINEL_TAG_FILTER"); v != "" {
		cfg.TagFilter = v
	}
	if v := os.Getenv("SENTINEL_HALL_SENSOR_ID"); v != "" {
		cfg.HallSensorID = v
	}
	if v := os.Getenv("SENTINEL_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("SENTINEL_PERSISTENCE_PATH"); v != "" {
		cfg.PersistencePath = v
	}
	if v := os.Getenv("SENTINEL_SENSORS_PATH"); v != "" {
		cfg.SensorsPath = v
	}
	if v := os.Getenv("SENTINEL_SETTINGS_PATH"); v != "" {
		cfg.SettingsPath = v
	}
	if v := os.Getenv("SENTINEL_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("SENTINEL_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrency = n
		}
	}
}

// Validate treats invalid configuration as fatal: startup refuses to run
// rather than limping along.
func (c EngineConfig) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("engine config: api_base_url is required")
	}
	if c.SnapshotPath == "" {
		return fmt.Errorf("engine config: snapshot_path is required")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("engine config: max_concurrency must be positive")
	}
	if c.SensorsPath == "" {
		return fmt.Errorf("engine config: sensors_path is required")
	}
	return nil
}
