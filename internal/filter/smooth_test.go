package filter

import (
	"math"
	"math/rand"
	"testing"

	"github.com/fmritools/niftidecomp/internal/niftiio"
)

func TestGaussKernelUnitSum(t *testing.T) {
	for _, pitch := range []float64{0.5, 1.0, 2.5} {
		kernel := gaussKernel(2.0, pitch)
		sum := 0.0
		for _, w := range kernel {
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-12 {
			t.Errorf("pitch %g: kernel sums to %g, want 1", pitch, sum)
		}
		if len(kernel)%2 != 1 {
			t.Errorf("pitch %g: kernel length %d, want odd", pitch, len(kernel))
		}
	}
}

func TestSmoothConstantInvariant(t *testing.T) {
	dims := niftiio.Dims{X: 5, Y: 4, Slices: 3, Timepoints: 1}
	frame := make([]float64, dims.NumSpatialLocs())
	for i := range frame {
		frame[i] = 7.5
	}

	Smooth(1.0, 1.0, 1.0, 2.0, frame, dims)

	for i, v := range frame {
		if math.Abs(v-7.5) > 1e-10 {
			t.Fatalf("voxel %d = %g after smoothing a constant field, want 7.5", i, v)
		}
	}
}

func TestSmoothReducesVariance(t *testing.T) {
	dims := niftiio.Dims{X: 8, Y: 8, Slices: 4, Timepoints: 1}
	rng := rand.New(rand.NewSource(5))
	frame := make([]float64, dims.NumSpatialLocs())
	for i := range frame {
		frame[i] = rng.NormFloat64()
	}

	variance := func(x []float64) float64 {
		mean := 0.0
		for _, v := range x {
			mean += v
		}
		mean /= float64(len(x))
		acc := 0.0
		for _, v := range x {
			acc += (v - mean) * (v - mean)
		}
		return acc / float64(len(x))
	}

	before := variance(frame)
	Smooth(1.0, 1.0, 1.0, 1.5, frame, dims)
	after := variance(frame)

	if after >= before {
		t.Errorf("variance %g -> %g, want smoothing to reduce it", before, after)
	}
}

func TestSmoothZeroSigmaNoOp(t *testing.T) {
	dims := niftiio.Dims{X: 3, Y: 3, Slices: 2, Timepoints: 1}
	frame := make([]float64, dims.NumSpatialLocs())
	for i := range frame {
		frame[i] = float64(i)
	}

	Smooth(1.0, 1.0, 1.0, 0.0, frame, dims)

	for i, v := range frame {
		if v != float64(i) {
			t.Fatalf("voxel %d changed with sigma 0", i)
		}
	}
}
