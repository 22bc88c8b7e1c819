// Command sphdoa-sim simulates plane-wave sources in a spherical-harmonic
// sound field and localises them with every estimator.
//
// Usage:
//
//	sphdoa-sim                              # Built-in defaults
//	sphdoa-sim -config scene.yaml           # YAML scene and analysis settings
//	SPHDOA_SIMULATION_ORDER=2 sphdoa-sim    # Environment overrides
//	sphdoa-sim -v -cpuprofile cpu.pprof     # Debug logging and profiling
//
// The simulated recording is reduced to one covariance matrix, broadband by
// default or a single STFT bin when analysis.fft_size is set.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"runtime/pprof"
	"time"

	"github.com/tphakala/go-sphdoa"
	"github.com/tphakala/go-sphdoa/internal/config"
	"github.com/tphakala/go-sphdoa/internal/sim"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "YAML configuration file (missing file uses defaults)")
	verbose := flag.Bool("v", false, "Verbose output (debug logging)")
	cpuprofile := flag.String("cpuprofile", "", "Write CPU profile to file (for PGO)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(os.Stderr, cfg.Logging, *verbose)

	// Start CPU profiling if requested (for PGO)
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	methods, err := cfg.Analysis.ParseMethods()
	if err != nil {
		return err
	}
	grid, err := buildGrid(cfg.Analysis.Grid)
	if err != nil {
		return err
	}

	s := cfg.Simulation
	sources := simSources(s.Sources)
	truth := sourceDirs(sources)

	logger.Info("simulating sound field",
		"order", s.Order,
		"sources", len(sources),
		"frames", s.NumFrames,
		"sample_rate", s.SampleRate,
		"noise_power", s.NoisePower,
		"seed", s.Seed)

	start := time.Now()
	buf := sim.PlaneWaves(s.Order, sources, s.NumFrames, s.SampleRate, s.NoisePower,
		rand.NewPCG(s.Seed, s.Seed^seedStreamMix))
	cx, err := estimateCovariance(buf, cfg.Analysis)
	if err != nil {
		return err
	}
	logger.Debug("covariance estimated", "elapsed", time.Since(start), "fft_size", cfg.Analysis.FFTSize, "bin", cfg.Analysis.Bin)

	base := sphdoa.DefaultConfig(s.Order, grid)
	base.RegPar = cfg.Analysis.RegPar
	base.Lambda = cfg.Analysis.Lambda
	base.NumSources = len(sources)
	base.LogScale = cfg.Analysis.LogScale
	base.Peaks = sphdoa.PeakConfig{Kappa: cfg.Analysis.Peaks.Kappa, Epsilon: cfg.Analysis.Peaks.Epsilon}
	base.Logger = logger

	results, err := runMethods(base, methods, cx, truth, cfg.Analysis.Parallel)
	if err != nil {
		return err
	}

	if cfg.Analysis.ESPRIT {
		res, err := runESPRIT(s.Order, cx, truth, logger)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	for _, r := range results {
		logger.Info("estimate",
			"method", r.name,
			"directions", r.dirs,
			"errors_deg", r.errors,
			"mean_error_deg", r.meanError(),
			"elapsed", r.elapsed)
	}

	// Print summary
	fmt.Printf("Order %d, %d sources, %d grid directions\n", s.Order, len(sources), grid.Len())
	fmt.Printf("  %-8s %s\n", "truth", formatDirs(truth))
	for _, r := range results {
		fmt.Printf("  %-8s %s  mean error "+degreesFormat+"°\n", r.name, formatDirs(r.dirs), r.meanError())
	}

	return nil
}
