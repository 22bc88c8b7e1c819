// Package config provides configuration management for sphdoa-sim
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"github.com/tphakala/go-sphdoa"
)

// Grid types
const (
	GridFibonacci   = "fibonacci"
	GridEquiangular = "equiangular"
)

// Config is the root configuration structure
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SimulationConfig configures the synthetic sound field
type SimulationConfig struct {
	Order      int            `mapstructure:"order"`
	SampleRate int            `mapstructure:"sample_rate"`
	NumFrames  int            `mapstructure:"num_frames"`
	NoisePower float64        `mapstructure:"noise_power"`
	Seed       uint64         `mapstructure:"seed"`
	Sources    []SourceConfig `mapstructure:"sources"`
}

// SourceConfig describes one plane-wave source
type SourceConfig struct {
	Azimuth   float64 `mapstructure:"azimuth"`   // degrees
	Elevation float64 `mapstructure:"elevation"` // degrees
	Power     float64 `mapstructure:"power"`
}

// AnalysisConfig configures the estimators
type AnalysisConfig struct {
	Methods  []string   `mapstructure:"methods"`
	ESPRIT   bool       `mapstructure:"esprit"`
	Parallel bool       `mapstructure:"parallel"`
	RegPar   float64    `mapstructure:"reg_par"`
	Lambda   float64    `mapstructure:"lambda"`
	LogScale bool       `mapstructure:"log_scale"`
	FFTSize  int        `mapstructure:"fft_size"` // 0 selects the broadband covariance
	Bin      int        `mapstructure:"bin"`
	Grid     GridConfig `mapstructure:"grid"`
	Peaks    PeakConfig `mapstructure:"peaks"`
}

// GridConfig configures the scanning grid
type GridConfig struct {
	Type   string  `mapstructure:"type"` // fibonacci, equiangular
	Points int     `mapstructure:"points"`
	Step   float64 `mapstructure:"step"` // degrees, equiangular only
}

// PeakConfig configures peak suppression
type PeakConfig struct {
	Kappa   float64 `mapstructure:"kappa"`
	Epsilon float64 `mapstructure:"epsilon"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Order:      4,
			SampleRate: 48000,
			NumFrames:  16384,
			NoisePower: 0.01,
			Seed:       1,
			Sources: []SourceConfig{
				{Azimuth: 40, Elevation: 20, Power: 1},
				{Azimuth: -110, Elevation: -30, Power: 0.7},
			},
		},
		Analysis: AnalysisConfig{
			Methods:  []string{"pwd", "mvdr", "cropac", "music", "minnorm"},
			ESPRIT:   true,
			Parallel: true,
			RegPar:   1e-3,
			Lambda:   0.2,
			Grid: GridConfig{
				Type:   GridFibonacci,
				Points: sphdoa.GridMedium,
				Step:   5,
			},
			Peaks: PeakConfig{
				Kappa:   50,
				Epsilon: 1e-5,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from file and environment
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			// Missing file is okay, use defaults
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix("SPHDOA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	// Simulation defaults
	v.SetDefault("simulation.order", d.Simulation.Order)
	v.SetDefault("simulation.sample_rate", d.Simulation.SampleRate)
	v.SetDefault("simulation.num_frames", d.Simulation.NumFrames)
	v.SetDefault("simulation.noise_power", d.Simulation.NoisePower)
	v.SetDefault("simulation.seed", d.Simulation.Seed)
	sources := make([]map[string]any, len(d.Simulation.Sources))
	for i, s := range d.Simulation.Sources {
		sources[i] = map[string]any{"azimuth": s.Azimuth, "elevation": s.Elevation, "power": s.Power}
	}
	v.SetDefault("simulation.sources", sources)

	// Analysis defaults
	v.SetDefault("analysis.methods", d.Analysis.Methods)
	v.SetDefault("analysis.esprit", d.Analysis.ESPRIT)
	v.SetDefault("analysis.parallel", d.Analysis.Parallel)
	v.SetDefault("analysis.reg_par", d.Analysis.RegPar)
	v.SetDefault("analysis.lambda", d.Analysis.Lambda)
	v.SetDefault("analysis.log_scale", d.Analysis.LogScale)
	v.SetDefault("analysis.fft_size", d.Analysis.FFTSize)
	v.SetDefault("analysis.bin", d.Analysis.Bin)

	// Grid defaults
	v.SetDefault("analysis.grid.type", d.Analysis.Grid.Type)
	v.SetDefault("analysis.grid.points", d.Analysis.Grid.Points)
	v.SetDefault("analysis.grid.step", d.Analysis.Grid.Step)

	// Peak defaults
	v.SetDefault("analysis.peaks.kappa", d.Analysis.Peaks.Kappa)
	v.SetDefault("analysis.peaks.epsilon", d.Analysis.Peaks.Epsilon)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Order < 1 {
		return fmt.Errorf("order must be at least 1, got %d", s.Order)
	}

	if s.SampleRate < 1 || s.NumFrames < 1 {
		return fmt.Errorf("sample_rate and num_frames must be positive, got %d and %d", s.SampleRate, s.NumFrames)
	}

	if s.NoisePower < 0 {
		return fmt.Errorf("noise_power must be non-negative, got %f", s.NoisePower)
	}

	if len(s.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	for i, src := range s.Sources {
		if src.Elevation < -90 || src.Elevation > 90 {
			return fmt.Errorf("source %d elevation must be between -90 and 90, got %f", i, src.Elevation)
		}
		if src.Power <= 0 {
			return fmt.Errorf("source %d power must be positive, got %f", i, src.Power)
		}
	}

	if _, err := c.Analysis.ParseMethods(); err != nil {
		return err
	}

	a := c.Analysis
	if a.FFTSize != 0 && (a.Bin < 0 || a.Bin > a.FFTSize/2) {
		return fmt.Errorf("bin must be between 0 and %d, got %d", a.FFTSize/2, a.Bin)
	}

	switch a.Grid.Type {
	case GridFibonacci:
		if a.Grid.Points < 1 {
			return fmt.Errorf("grid points must be positive, got %d", a.Grid.Points)
		}
	case GridEquiangular:
		if a.Grid.Step <= 0 || a.Grid.Step > 90 {
			return fmt.Errorf("grid step must be between 0 and 90, got %f", a.Grid.Step)
		}
	default:
		return fmt.Errorf("unknown grid type %q", a.Grid.Type)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

// ParseMethods converts the configured method names.
func (a *AnalysisConfig) ParseMethods() ([]sphdoa.Method, error) {
	methods := make([]sphdoa.Method, 0, len(a.Methods))
	for _, name := range a.Methods {
		m, err := sphdoa.ParseMethod(name)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, nil
}
