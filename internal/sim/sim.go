// Package sim generates synthetic spherical-harmonic domain recordings and
// covariance matrices of plane-wave sources in a diffuse noise field.
//
// Signals are encoded with real orthonormal (N3D) spherical harmonics in ACN
// channel order, the same basis the power-map steering vectors use.
package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/go-audio/audio"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tphakala/go-sphdoa/internal/sh"
)

// ErrInvalidInput indicates a malformed buffer or analysis parameters.
var ErrInvalidInput = errors.New("sim: invalid input")

// Source is a plane-wave source.
type Source struct {
	// Azimuth and Elevation are in degrees.
	Azimuth   float64
	Elevation float64

	// Power is the source signal variance.
	Power float64
}

// steering returns the nSH×len(sources) real steering matrix.
func steering(order int, sources []Source) *mat.Dense {
	dirs := make([][2]float64, len(sources))
	for i, s := range sources {
		dirs[i] = [2]float64{s.Azimuth, s.Elevation}
	}
	return sh.Real(order, sh.AziElevDegToAziIncl(dirs))
}

// PlaneWaves simulates numFrames frames of independent Gaussian source
// signals encoded into (order+1)² channels, plus spatially white Gaussian
// noise of variance noisePower on every channel. The result is interleaved.
func PlaneWaves(order int, sources []Source, numFrames, sampleRate int, noisePower float64, src rand.Source) *audio.FloatBuffer {
	nSH := sh.NumSH(order)
	y := steering(order, sources)

	buf := &audio.FloatBuffer{
		Format: &audio.Format{NumChannels: nSH, SampleRate: sampleRate},
		Data:   make([]float64, numFrames*nSH),
	}

	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: sqrt(noisePower), Src: src}
	amps := make([]float64, len(sources))
	for k, s := range sources {
		amps[k] = sqrt(s.Power)
	}

	sig := make([]float64, len(sources))
	for t := 0; t < numFrames; t++ {
		for k := range sig {
			sig[k] = amps[k] * unit.Rand()
		}
		frame := buf.Data[t*nSH : (t+1)*nSH]
		for ch := range frame {
			var v float64
			for k, s := range sig {
				v += y.At(ch, k) * s
			}
			if noisePower > 0 {
				v += noise.Rand()
			}
			frame[ch] = v
		}
	}
	return buf
}

// Covariance returns the broadband spatial covariance (1/T)·Σ_t x_t·x_tᵀ of
// an interleaved multichannel buffer as a complex matrix.
func Covariance(buf *audio.FloatBuffer) (*mat.CDense, error) {
	nCh, frames, err := dims(buf)
	if err != nil {
		return nil, err
	}
	x := mat.NewDense(frames, nCh, buf.Data[:frames*nCh])
	var s mat.SymDense
	s.SymOuterK(1/float64(frames), x.T())
	return toComplex(&s), nil
}

// BinCovariance returns the narrow-band covariance of one STFT bin: the
// buffer is cut into Hann-windowed frames of fftSize samples with 50%
// overlap, and the outer products of the bin's channel spectra are averaged.
func BinCovariance(buf *audio.FloatBuffer, fftSize, bin int) (*mat.CDense, error) {
	nCh, frames, err := dims(buf)
	if err != nil {
		return nil, err
	}
	if fftSize < minFFTSize || bin < 0 || bin > fftSize/2 {
		return nil, fmt.Errorf("%w: fft size %d or bin %d", ErrInvalidInput, fftSize, bin)
	}
	hop := fftSize / 2
	if frames < fftSize {
		return nil, fmt.Errorf("%w: %d frames shorter than fft size %d", ErrInvalidInput, frames, fftSize)
	}

	win := window.Hann(fftSize)
	fft := fourier.NewFFT(fftSize)
	seq := make([]float64, fftSize)
	coeff := make([]complex128, fftSize/2+1)
	snap := make([]complex128, nCh)
	cx := mat.NewCDense(nCh, nCh, nil)

	count := 0
	for start := 0; start+fftSize <= frames; start += hop {
		for ch := 0; ch < nCh; ch++ {
			for n := 0; n < fftSize; n++ {
				seq[n] = buf.Data[(start+n)*nCh+ch] * win[n]
			}
			fft.Coefficients(coeff, seq)
			snap[ch] = coeff[bin]
		}
		for i := 0; i < nCh; i++ {
			for j := 0; j < nCh; j++ {
				cx.Set(i, j, cx.At(i, j)+snap[i]*complex(real(snap[j]), -imag(snap[j])))
			}
		}
		count++
	}

	scale := complex(1/float64(count), 0)
	for i := 0; i < nCh; i++ {
		for j := 0; j < nCh; j++ {
			cx.Set(i, j, cx.At(i, j)*scale)
		}
	}
	return cx, nil
}

// ModelCovariance returns the exact covariance Σ_k p_k·y_k·y_kᵀ + σ²·I of
// uncorrelated plane-wave sources in white noise of power noisePower.
func ModelCovariance(order int, sources []Source, noisePower float64) *mat.CDense {
	nSH := sh.NumSH(order)
	y := steering(order, sources)

	s := mat.NewSymDense(nSH, nil)
	col := make([]float64, nSH)
	for k, src := range sources {
		mat.Col(col, k, y)
		s.SymRankOne(s, src.Power, mat.NewVecDense(nSH, col))
	}
	for i := 0; i < nSH; i++ {
		s.SetSym(i, i, s.At(i, i)+noisePower)
	}
	return toComplex(s)
}

func toComplex(s mat.Symmetric) *mat.CDense {
	n := s.SymmetricDim()
	out := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Set(i, j, complex(s.At(i, j), 0))
		}
	}
	return out
}

func dims(buf *audio.FloatBuffer) (channels, frames int, err error) {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return 0, 0, fmt.Errorf("%w: buffer has no channel format", ErrInvalidInput)
	}
	channels = buf.Format.NumChannels
	frames = len(buf.Data) / channels
	if frames == 0 {
		return 0, 0, fmt.Errorf("%w: empty buffer", ErrInvalidInput)
	}
	return channels, frames, nil
}
