package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/go-sphdoa"
	"github.com/tphakala/go-sphdoa/internal/config"
	"github.com/tphakala/go-sphdoa/internal/sh"
	"github.com/tphakala/go-sphdoa/internal/sim"
)

// methodResult holds the outcome of one estimator.
type methodResult struct {
	name    string
	dirs    [][2]float64
	errors  []float64 // degrees, matched to the true sources
	elapsed time.Duration
}

// meanError returns the mean angular error in degrees.
func (r methodResult) meanError() float64 {
	if len(r.errors) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, e := range r.errors {
		sum += e
	}
	return sum / float64(len(r.errors))
}

// newLogger builds a slog logger from the logging configuration.
func newLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// buildGrid creates the scanning grid.
func buildGrid(cfg config.GridConfig) (*sphdoa.Grid, error) {
	switch cfg.Type {
	case config.GridEquiangular:
		return sphdoa.EquiangularGrid(cfg.Step, cfg.Step)
	default:
		return sphdoa.FibonacciGrid(cfg.Points)
	}
}

// simSources converts the configured sources.
func simSources(cfg []config.SourceConfig) []sim.Source {
	out := make([]sim.Source, len(cfg))
	for i, s := range cfg {
		out[i] = sim.Source{Azimuth: s.Azimuth, Elevation: s.Elevation, Power: s.Power}
	}
	return out
}

// sourceDirs returns the source directions in degrees.
func sourceDirs(sources []sim.Source) [][2]float64 {
	out := make([][2]float64, len(sources))
	for i, s := range sources {
		out[i] = [2]float64{s.Azimuth, s.Elevation}
	}
	return out
}

// estimateCovariance computes the broadband covariance, or the narrow-band
// covariance of one bin when an FFT size is configured.
func estimateCovariance(buf *audio.FloatBuffer, cfg config.AnalysisConfig) (*mat.CDense, error) {
	if cfg.FFTSize > 0 {
		return sphdoa.BinCovariance(buf, cfg.FFTSize, cfg.Bin)
	}
	return sphdoa.SampleCovariance(buf)
}

// matchErrors pairs each estimate with the closest unmatched true
// direction, closest pairs first, and returns the pair distances.
func matchErrors(truth, est [][2]float64) []float64 {
	usedT := make([]bool, len(truth))
	usedE := make([]bool, len(est))
	n := min(len(truth), len(est))
	out := make([]float64, 0, n)
	for range n {
		best, bi, bj := math.Inf(1), -1, -1
		for i, t := range truth {
			if usedT[i] {
				continue
			}
			for j, e := range est {
				if usedE[j] {
					continue
				}
				if d := sh.AngularDistanceDeg(t, e); d < best {
					best, bi, bj = d, i, j
				}
			}
		}
		usedT[bi], usedE[bj] = true, true
		out = append(out, best)
	}
	return out
}

// runMethod localises nSrcs sources with one grid-based method.
func runMethod(base *sphdoa.Config, method sphdoa.Method, cx mat.CMatrix, truth [][2]float64) (methodResult, error) {
	cfg := *base
	cfg.Method = method

	start := time.Now()
	dirs, err := sphdoa.LocateSources(&cfg, cx, len(truth))
	if err != nil {
		return methodResult{}, fmt.Errorf("%s: %w", method, err)
	}
	return methodResult{
		name:    method.String(),
		dirs:    dirs,
		errors:  matchErrors(truth, dirs),
		elapsed: time.Since(start),
	}, nil
}

// runMethods evaluates every method. Handles both parallel and sequential
// modes.
func runMethods(base *sphdoa.Config, methods []sphdoa.Method, cx mat.CMatrix, truth [][2]float64, parallel bool) ([]methodResult, error) {
	if parallel && len(methods) > 1 {
		return runParallel(base, methods, cx, truth)
	}
	return runSequential(base, methods, cx, truth)
}

// runParallel evaluates methods concurrently, one engine per method.
func runParallel(base *sphdoa.Config, methods []sphdoa.Method, cx mat.CMatrix, truth [][2]float64) ([]methodResult, error) {
	results := make([]methodResult, len(methods))
	var wg sync.WaitGroup
	var runErr error
	var errMu sync.Mutex

	for i, m := range methods {
		wg.Add(1)
		go func(idx int, method sphdoa.Method) {
			defer wg.Done()
			res, err := runMethod(base, method, cx, truth)
			if err != nil {
				errMu.Lock()
				if runErr == nil {
					runErr = err
				}
				errMu.Unlock()
				return
			}
			results[idx] = res
		}(i, m)
	}
	wg.Wait()

	if runErr != nil {
		return nil, runErr
	}

	return results, nil
}

// runSequential evaluates methods one by one.
func runSequential(base *sphdoa.Config, methods []sphdoa.Method, cx mat.CMatrix, truth [][2]float64) ([]methodResult, error) {
	results := make([]methodResult, len(methods))
	for i, m := range methods {
		res, err := runMethod(base, m, cx, truth)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

// runESPRIT estimates up to N² directions from the signal subspace of cx.
func runESPRIT(order int, cx mat.CMatrix, truth [][2]float64, logger *slog.Logger) (methodResult, error) {
	k := min(len(truth), order*order)

	start := time.Now()
	est, err := sphdoa.NewESPRIT(order)
	if err != nil {
		return methodResult{}, err
	}
	defer est.Close()
	est.SetLogger(logger)

	us, err := sphdoa.SignalSubspace(cx, k)
	if err != nil {
		return methodResult{}, fmt.Errorf("esprit: %w", err)
	}
	dirs, err := est.EstimateDirsReal(us, k)
	if err != nil {
		return methodResult{}, fmt.Errorf("esprit: %w", err)
	}
	return methodResult{
		name:    "esprit",
		dirs:    dirs,
		errors:  matchErrors(truth, dirs),
		elapsed: time.Since(start),
	}, nil
}

// formatDirs renders directions as "(az, el)" pairs.
func formatDirs(dirs [][2]float64) string {
	parts := make([]string, len(dirs))
	for i, d := range dirs {
		parts[i] = fmt.Sprintf("("+degreesFormat+", "+degreesFormat+")", d[0], d[1])
	}
	return strings.Join(parts, " ")
}
