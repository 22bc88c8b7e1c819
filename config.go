package sphdoa

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/tphakala/go-sphdoa/internal/peak"
)

// Method enumerates the grid-based power-map estimators.
type Method int

const (
	// MethodPWD is plane-wave decomposition, the steered response power
	// y_dᴴ·Cx·y_d. Cheapest, with the widest main lobe.
	MethodPWD Method = iota

	// MethodMVDR is the minimum-variance distortionless-response beamformer.
	// Its weights pass each look direction with unit gain while minimising
	// output power from the rest of the sphere.
	MethodMVDR

	// MethodCroPaC scales the MVDR weights by a cross-pattern coherence gain
	// bounded below by Config.Lambda.
	MethodCroPaC

	// MethodMUSIC is the MUSIC pseudo-spectrum over the noise subspace.
	MethodMUSIC

	// MethodMinNorm is the minimum-norm pseudo-spectrum using the single
	// noise eigenvector next to the signal subspace.
	//
	// One eigenvector vanishes on a curve of directions rather than at the
	// source directions alone, so the map can hold spurious maxima and its
	// peaks depend on the grid. Prefer MethodMUSIC when peak positions
	// matter, especially at low orders or with several sources.
	MethodMinNorm
)

var methodNames = [...]string{
	MethodPWD:     "pwd",
	MethodMVDR:    "mvdr",
	MethodCroPaC:  "cropac",
	MethodMUSIC:   "music",
	MethodMinNorm: "minnorm",
}

// String returns the lower-case method name accepted by ParseMethod.
func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// Methods returns every supported method in declaration order.
func Methods() []Method {
	return []Method{MethodPWD, MethodMVDR, MethodCroPaC, MethodMUSIC, MethodMinNorm}
}

// ParseMethod parses a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range methodNames {
		if n == name {
			return Method(m), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown method %q", ErrInvalidConfiguration, s)
}

// usesWeights reports whether the method produces per-direction beamforming
// weights.
func (m Method) usesWeights() bool {
	return m == MethodMVDR || m == MethodCroPaC
}

// usesSubspace reports whether the method needs the number of sources.
func (m Method) usesSubspace() bool {
	return m == MethodMUSIC || m == MethodMinNorm
}

// PeakConfig holds the parameters of the peak extractor's suppression
// window. Zero values select the defaults.
type PeakConfig struct {
	// Kappa is the von Mises concentration of the window placed on each
	// found peak. Larger values suppress a narrower region.
	Kappa float64

	// Epsilon is added to the window before it is inverted, bounding the
	// suppression factor at each found peak.
	Epsilon float64
}

func (p PeakConfig) withDefaults() PeakConfig {
	if p.Kappa == 0 {
		p.Kappa = peak.DefaultKappa
	}
	if p.Epsilon == 0 {
		p.Epsilon = peak.DefaultEpsilon
	}
	return p
}

// Config holds power-map engine configuration.
type Config struct {
	// Order is the spherical-harmonic expansion order N. The covariance
	// passed to Compute must be (N+1)²×(N+1)².
	Order int

	// Grid is the scanning grid. It is shared, not copied.
	Grid *Grid

	// Method selects the estimator.
	Method Method

	// RegPar is the diagonal loading applied by MVDR and CroPaC, relative to
	// the mean of the covariance diagonal. Zero disables loading apart from
	// a small numerical floor.
	RegPar float64

	// Lambda is the CroPaC spectral floor in [0, 1]. One reproduces MVDR.
	Lambda float64

	// NumSources is the assumed signal subspace dimension for MUSIC and
	// MinNorm. It is clamped to (N+1)²/2.
	NumSources int

	// LogScale stores the natural logarithm of the MUSIC and MinNorm
	// pseudo-spectra.
	LogScale bool

	// Peaks configures the peak extractor.
	Peaks PeakConfig

	// MaxBufferBytes bounds the scratch memory an engine may allocate.
	// Set to 0 to use the default limit.
	MaxBufferBytes int

	// Logger receives construction parameters and numerical-degeneracy
	// events at debug level. Nil discards them.
	Logger *slog.Logger
}

// Common errors returned by the engines.
var (
	// ErrInvalidConfiguration indicates invalid parameters or mismatched
	// input dimensions.
	ErrInvalidConfiguration = errors.New("invalid sphdoa configuration")

	// ErrAllocationFailure indicates the engine buffers would exceed the
	// configured memory budget.
	ErrAllocationFailure = errors.New("sphdoa allocation failure")

	// ErrClosed indicates use of an engine after Close.
	ErrClosed = errors.New("sphdoa engine closed")
)

// DefaultConfig returns a PWD configuration with default parameters for the
// other methods, so that only Method needs changing.
func DefaultConfig(order int, grid *Grid) *Config {
	return &Config{
		Order:      order,
		Grid:       grid,
		Method:     MethodPWD,
		RegPar:     defaultRegPar,
		Lambda:     defaultLambda,
		NumSources: defaultNumSources,
		Peaks: PeakConfig{
			Kappa:   peak.DefaultKappa,
			Epsilon: peak.DefaultEpsilon,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validateOrder(c.Order); err != nil {
		return err
	}

	if c.Grid == nil || c.Grid.Len() == 0 {
		return fmt.Errorf("%w: grid must contain at least one direction", ErrInvalidConfiguration)
	}

	if c.Method < MethodPWD || c.Method > MethodMinNorm {
		return fmt.Errorf("%w: unknown method %d", ErrInvalidConfiguration, int(c.Method))
	}

	if c.RegPar < 0 || math.IsNaN(c.RegPar) || math.IsInf(c.RegPar, 0) {
		return fmt.Errorf("%w: regPar must be finite and non-negative, got %v", ErrInvalidConfiguration, c.RegPar)
	}

	if !(c.Lambda >= 0 && c.Lambda <= 1) {
		return fmt.Errorf("%w: lambda must be in [0, 1], got %v", ErrInvalidConfiguration, c.Lambda)
	}

	if c.Method.usesSubspace() && c.NumSources < 1 {
		return fmt.Errorf("%w: %s needs at least one source, got %d", ErrInvalidConfiguration, c.Method, c.NumSources)
	}

	if c.Peaks.Kappa < 0 || math.IsNaN(c.Peaks.Kappa) || math.IsInf(c.Peaks.Kappa, 0) {
		return fmt.Errorf("%w: peak kappa must be finite and non-negative", ErrInvalidConfiguration)
	}

	if c.Peaks.Epsilon < 0 || math.IsNaN(c.Peaks.Epsilon) || math.IsInf(c.Peaks.Epsilon, 0) {
		return fmt.Errorf("%w: peak epsilon must be finite and non-negative", ErrInvalidConfiguration)
	}

	if c.MaxBufferBytes < 0 {
		return fmt.Errorf("%w: max buffer bytes must be non-negative", ErrInvalidConfiguration)
	}

	return nil
}

func validateOrder(order int) error {
	if order < minOrder || order > maxOrder {
		return fmt.Errorf("%w: order must be %d-%d, got %d", ErrInvalidConfiguration, minOrder, maxOrder, order)
	}
	return nil
}

// bufferLimit returns the effective scratch budget.
func (c *Config) bufferLimit() int {
	if c.MaxBufferBytes == 0 {
		return defaultMaxBufferBytes
	}
	return c.MaxBufferBytes
}

// logger returns the configured logger or a discarding one.
func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return discardLogger
	}
	return c.Logger
}

var discardLogger = slog.New(slog.DiscardHandler)
