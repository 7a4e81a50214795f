package schedule

import (
	"math"
	"testing"
)

const tolerance = 1e-6

func TestNew_BoundaryPoints(t *testing.T) {
	for _, steps := range []int{1, 8, 32, 100} {
		s, err := New(steps, DefaultDim)
		if err != nil {
			t.Fatalf("New(%d, %d): %v", steps, DefaultDim, err)
		}

		if len(s.Times) != steps+1 {
			t.Fatalf("steps=%d: len(Times) = %d, want %d", steps, len(s.Times), steps+1)
		}
		if math.Abs(float64(s.Times[0])) > tolerance {
			t.Errorf("steps=%d: t'_0 = %v, want 0", steps, s.Times[0])
		}
		if math.Abs(float64(s.Times[steps])-1.0) > tolerance {
			t.Errorf("steps=%d: t'_N = %v, want 1", steps, s.Times[steps])
		}
	}
}

func TestNew_DeltaSumsToOne(t *testing.T) {
	s, err := New(DefaultSteps, DefaultDim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if len(s.DeltaT) != DefaultSteps {
		t.Fatalf("len(DeltaT) = %d, want %d", len(s.DeltaT), DefaultSteps)
	}
	sum := 0.0
	for _, d := range s.DeltaT {
		if d < 0 {
			t.Errorf("negative delta %v; the warped grid must be monotonic", d)
		}
		sum += float64(d)
	}
	if math.Abs(sum-1.0) > tolerance {
		t.Errorf("sum(DeltaT) = %v, want 1.0", sum)
	}
}

func TestNew_WarpIsMonotonicAndFrontLoaded(t *testing.T) {
	s, err := New(DefaultSteps, DefaultDim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < DefaultSteps; i++ {
		if s.Times[i+1] <= s.Times[i] {
			t.Fatalf("Times[%d]=%v >= Times[%d]=%v", i, s.Times[i], i+1, s.Times[i+1])
		}
	}
	// Cosine warp spends small deltas early and larger ones late.
	if s.DeltaT[0] >= s.DeltaT[DefaultSteps-1] {
		t.Errorf("DeltaT[0]=%v not smaller than DeltaT[last]=%v", s.DeltaT[0], s.DeltaT[DefaultSteps-1])
	}
}

func TestNew_EmbeddingShapeAndHalves(t *testing.T) {
	s, err := New(DefaultSteps, DefaultDim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	shape := s.EmbeddingShape()
	if shape[0] != 1 || shape[1] != DefaultSteps || shape[2] != DefaultDim {
		t.Fatalf("EmbeddingShape = %v, want [1 %d %d]", shape, DefaultSteps, DefaultDim)
	}
	if len(s.Embedding) != DefaultSteps*DefaultDim {
		t.Fatalf("len(Embedding) = %d, want %d", len(s.Embedding), DefaultSteps*DefaultDim)
	}

	// Row i must satisfy sin(x)^2 + cos(x)^2 = 1 pairwise across halves.
	half := DefaultDim / 2
	for i := 0; i < DefaultSteps; i++ {
		row := s.Embedding[i*DefaultDim : (i+1)*DefaultDim]
		for k := 0; k < half; k++ {
			sq := float64(row[k])*float64(row[k]) + float64(row[half+k])*float64(row[half+k])
			if math.Abs(sq-1.0) > 1e-5 {
				t.Fatalf("row %d freq %d: sin²+cos² = %v, want 1", i, k, sq)
			}
		}
	}
}

func TestNew_FirstRowIsZeroTime(t *testing.T) {
	s, err := New(DefaultSteps, DefaultDim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// t'_0 = 0, so the first row is sin(0)=0 for the first half and
	// cos(0)=1 for the second.
	half := DefaultDim / 2
	row := s.Embedding[:DefaultDim]
	for k := 0; k < half; k++ {
		if math.Abs(float64(row[k])) > tolerance {
			t.Fatalf("row0 sin[%d] = %v, want 0", k, row[k])
		}
		if math.Abs(float64(row[half+k])-1.0) > tolerance {
			t.Fatalf("row0 cos[%d] = %v, want 1", k, row[half+k])
		}
	}
}

func TestNew_FrequenciesMatchReference(t *testing.T) {
	s, err := New(2, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// half = 4 → freq_k = 1000·exp(−k·ln(10000)/3). Check the second
	// embedded row (i = 1, t'_1 = 1 − cos(π/4)).
	warped := 1.0 - math.Cos(math.Pi*0.5*0.5)
	for k := 0; k < 4; k++ {
		freq := 1000.0 * math.Exp(-float64(k)*math.Log(10000.0)/3.0)
		wantSin := float32(math.Sin(warped * freq))
		wantCos := float32(math.Cos(warped * freq))
		row := s.Embedding[8:16]
		if diff := math.Abs(float64(row[k] - wantSin)); diff > tolerance {
			t.Errorf("row1 sin[%d] = %v, want %v", k, row[k], wantSin)
		}
		if diff := math.Abs(float64(row[4+k] - wantCos)); diff > tolerance {
			t.Errorf("row1 cos[%d] = %v, want %v", k, row[4+k], wantCos)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, DefaultDim); err == nil {
		t.Error("New(0, dim) succeeded, want error")
	}
	if _, err := New(DefaultSteps, 255); err == nil {
		t.Error("New(steps, odd) succeeded, want error")
	}
	if _, err := New(DefaultSteps, 0); err == nil {
		t.Error("New(steps, 0) succeeded, want error")
	}
}
