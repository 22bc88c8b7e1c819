package sphdoa

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// ComputeFrames evaluates one power map per covariance matrix, for example
// one per STFT frame or frequency bin. Each result is a new slice.
//
// With workers > 1, frames are split across that many goroutines, each with
// its own engine built from config. Otherwise frames are processed
// sequentially on a single engine.
func ComputeFrames(config *Config, frames []mat.CMatrix, workers int) ([][]float64, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	workers = max(1, min(workers, len(frames)))
	output := make([][]float64, len(frames))

	// Sequential processing
	if workers == 1 {
		p, err := NewPowerMap(config)
		if err != nil {
			return nil, err
		}
		defer p.Close()
		for f, cx := range frames {
			result, err := p.Compute(cx)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", f, err)
			}
			output[f] = append([]float64(nil), result...)
		}
		return output, nil
	}

	// Parallel processing: one engine per worker, frames strided across them
	engines := make([]*PowerMap, workers)
	for w := range engines {
		p, err := NewPowerMap(config)
		if err != nil {
			for _, e := range engines[:w] {
				e.Close()
			}
			return nil, err
		}
		engines[w] = p
	}

	var wg sync.WaitGroup
	errChan := make(chan error, workers)

	for w, p := range engines {
		wg.Add(1)
		go func(worker int, p *PowerMap) {
			defer wg.Done()
			defer p.Close()

			for f := worker; f < len(frames); f += workers {
				result, err := p.Compute(frames[f])
				if err != nil {
					errChan <- fmt.Errorf("frame %d: %w", f, err)
					return
				}
				output[f] = append([]float64(nil), result...)
			}
		}(w, p)
	}

	wg.Wait()
	close(errChan)

	// Check for errors
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	return output, nil
}
