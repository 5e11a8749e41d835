package filter

import (
	"math"

	"github.com/fmritools/niftidecomp/internal/niftiio"
)

// gaussKernel samples a unit-sum Gaussian at the voxel pitch, truncated at
// four standard deviations. sigma and pitch are both in mm.
func gaussKernel(sigma, pitch float64) []float64 {
	if pitch <= 0.0 {
		pitch = 1.0
	}
	radius := int(math.Ceil(4.0 * sigma / pitch))
	if radius < 1 {
		radius = 1
	}

	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		d := float64(i) * pitch
		w := math.Exp(-d * d / (2.0 * sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect maps an out-of-range line index back inside [0, n).
func reflect(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}

// convolveAxis runs the kernel along one axis of the flattened frame. The
// axis is described by its length, the stride between neighbors along it,
// and the number of perpendicular lines. An index decomposes as
// hi*(length*stride) + axis*stride + lo with lo < stride, so line hi*stride+lo
// starts at (line/stride)*(length*stride) + line%stride.
func convolveAxis(frame []float64, kernel []float64, length, stride, lines int) {
	radius := (len(kernel) - 1) / 2
	buf := make([]float64, length)

	for line := 0; line < lines; line++ {
		base := (line/stride)*stride*length + line%stride
		for i := 0; i < length; i++ {
			buf[i] = frame[base+i*stride]
		}
		for i := 0; i < length; i++ {
			acc := 0.0
			for k := -radius; k <= radius; k++ {
				acc += kernel[k+radius] * buf[reflect(i+k, length)]
			}
			frame[base+i*stride] = acc
		}
	}
}

// Smooth applies an isotropic Gaussian of width sigma (mm) to one 3-D frame
// stored in the niftiio flat layout, honoring the physical voxel dimensions.
// The frame is smoothed in place and also returned. A non-positive sigma is
// a no-op.
func Smooth(xdim, ydim, slicethickness, sigma float64, frame []float64, dims niftiio.Dims) []float64 {
	if sigma <= 0.0 {
		return frame
	}

	// flat layout: loc = (x*Y + y)*Slices + z
	nx, ny, nz := dims.X, dims.Y, dims.Slices

	// z axis: contiguous, stride 1
	convolveAxis(frame, gaussKernel(sigma, slicethickness), nz, 1, nx*ny)
	// y axis: stride Slices
	convolveAxis(frame, gaussKernel(sigma, ydim), ny, nz, nx*nz)
	// x axis: stride Y*Slices
	convolveAxis(frame, gaussKernel(sigma, xdim), nx, ny*nz, ny*nz)

	return frame
}
