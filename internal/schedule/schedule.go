// Package schedule builds the warped diffusion time grid and its
// sinusoidal embedding. The numbers here condition the generative
// model directly: the warp, the sign conventions, and the fact that
// only the first N of the N+1 warped points are embedded must all
// reproduce the training-time construction exactly.
package schedule

import (
	"fmt"
	"math"
)

// Reference defaults: 32 denoising steps, 256-wide embedding.
const (
	DefaultSteps = 32
	DefaultDim   = 256

	embedScale    = 1000.0
	embedFreqBase = 10000.0
)

// Schedule holds the warped time grid, the per-step deltas, and the
// per-step sinusoidal embedding with logical shape (1, Steps, Dim).
type Schedule struct {
	Steps int
	Dim   int

	// Times has Steps+1 warped points t'_i in [0, 1].
	Times []float32
	// DeltaT has Steps consecutive differences t'_{i+1} − t'_i.
	DeltaT []float32
	// Embedding is row-major (Steps × Dim): row i is
	// concat(sin(t'_i·freq), cos(t'_i·freq)).
	Embedding []float32
}

// New computes the schedule for the given step count and embedding
// width. Dim must be even; each row splits into sin and cos halves.
func New(steps, dim int) (*Schedule, error) {
	if steps < 1 {
		return nil, fmt.Errorf("schedule: step count %d must be >= 1", steps)
	}
	if dim < 2 || dim%2 != 0 {
		return nil, fmt.Errorf("schedule: embedding width %d must be even and >= 2", dim)
	}

	// Cosine warp: t'_i = 1 − cos(π/2 · i/N). Keeps t'_0 = 0 and
	// t'_N = 1 while spending more steps near t = 0.
	warped := make([]float64, steps+1)
	times := make([]float32, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		warped[i] = 1.0 - math.Cos(math.Pi*0.5*t)
		times[i] = float32(warped[i])
	}

	deltas := make([]float32, steps)
	for i := 0; i < steps; i++ {
		deltas[i] = float32(warped[i+1] - warped[i])
	}

	half := dim / 2
	freqs := make([]float64, half)
	logStep := 0.0
	if half > 1 {
		logStep = math.Log(embedFreqBase) / float64(half-1)
	}
	for k := 0; k < half; k++ {
		freqs[k] = embedScale * math.Exp(-float64(k)*logStep)
	}

	// Only the first Steps warped points are embedded; the final point
	// t'_N = 1 has no row.
	emb := make([]float32, steps*dim)
	for i := 0; i < steps; i++ {
		row := emb[i*dim : (i+1)*dim]
		for k, f := range freqs {
			phase := warped[i] * f
			row[k] = float32(math.Sin(phase))
			row[half+k] = float32(math.Cos(phase))
		}
	}

	return &Schedule{
		Steps:     steps,
		Dim:       dim,
		Times:     times,
		DeltaT:    deltas,
		Embedding: emb,
	}, nil
}

// EmbeddingShape returns the logical tensor shape (1, Steps, Dim).
func (s *Schedule) EmbeddingShape() []int64 {
	return []int64{1, int64(s.Steps), int64(s.Dim)}
}
