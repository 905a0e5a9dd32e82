// Package config loads pertsim settings from defaults, an optional YAML
// file, an optional .env file and PERTSIM_* environment variables, in
// increasing order of precedence. Command-line flags are applied on top by
// the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/joshharrison/pertsim/internal/logging"
)

// EnvPrefix namespaces environment overrides, e.g. PERTSIM_SIMULATION_RUNS.
const EnvPrefix = "PERTSIM"

var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete pertsim configuration
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Logging    logging.Config   `mapstructure:"logging"`
	State      StateConfig      `mapstructure:"state"`
}

// SimulationConfig controls the Monte Carlo run
type SimulationConfig struct {
	// Runs is the number of iterations per simulation
	Runs int `mapstructure:"runs" validate:"gt=0"`
	// Seed makes runs reproducible
	Seed uint64 `mapstructure:"seed"`
	// Workers is the number of goroutines sharing the runs (0 or 1 = sequential)
	Workers int `mapstructure:"workers" validate:"gte=0"`
	// Sampler selects the duration distribution: "beta4" or "pert".
	// There is no default; simulating without one is an error.
	Sampler string `mapstructure:"sampler" validate:"omitempty,oneof=beta4 pert"`
	// ProgressEvery logs progress every N iterations at debug level (0 = disabled)
	ProgressEvery int `mapstructure:"progress_every" validate:"gte=0"`
}

// AnalysisConfig controls post-simulation statistics
type AnalysisConfig struct {
	ConfidenceLevels     []float64 `mapstructure:"confidence_levels" validate:"min=1,dive,gt=0,lt=1"`
	CriticalityThreshold float64   `mapstructure:"criticality_threshold" validate:"gt=0,lte=100"`
	// TopN limits the critical task and risk driver lists in the summary
	TopN          int `mapstructure:"top_n" validate:"gt=0"`
	HistogramBins int `mapstructure:"histogram_bins" validate:"gt=0"`
}

// StateConfig controls where reports are persisted
type StateConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Runs:          10000,
			Workers:       1,
			ProgressEvery: 1000,
		},
		Analysis: AnalysisConfig{
			ConfidenceLevels:     []float64{0.80, 0.90, 0.95},
			CriticalityThreshold: 50,
			TopN:                 5,
			HistogramBins:        50,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		State: StateConfig{
			Dir: ".pertsim",
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("simulation.runs", defaults.Simulation.Runs)
	v.SetDefault("simulation.seed", defaults.Simulation.Seed)
	v.SetDefault("simulation.workers", defaults.Simulation.Workers)
	v.SetDefault("simulation.sampler", defaults.Simulation.Sampler)
	v.SetDefault("simulation.progress_every", defaults.Simulation.ProgressEvery)

	v.SetDefault("analysis.confidence_levels", defaults.Analysis.ConfidenceLevels)
	v.SetDefault("analysis.criticality_threshold", defaults.Analysis.CriticalityThreshold)
	v.SetDefault("analysis.top_n", defaults.Analysis.TopN)
	v.SetDefault("analysis.histogram_bins", defaults.Analysis.HistogramBins)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("state.dir", defaults.State.Dir)
}

// Load builds a Config. configFile and envFile are optional; a missing
// envFile is ignored but a missing configFile is an error.
func Load(configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint and reports all violations at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
