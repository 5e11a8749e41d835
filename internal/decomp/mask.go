package decomp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/fmritools/niftidecomp/internal/niftiio"
)

// A VoxelSelector chooses the spatial indices (proclocs) to decompose. The
// two policies are picked once at pipeline start: a mask threshold when a
// mask file was given, a nonzero temporal range otherwise.
type VoxelSelector interface {
	// Select returns the chosen spatial indices given the stacked
	// (spatial locs x timepoints) data.
	Select(stacked *mat.Dense) ([]int, error)
}

// MaskSelector selects voxels whose mask value exceeds a threshold. The
// mask volume is loaded up front, before any data file is touched.
type MaskSelector struct {
	Path   string
	Thresh float64

	dims   niftiio.Dims
	values []float64
}

// LoadMask reads the mask volume and validates that it is purely 3-D.
func LoadMask(path string, thresh float64) (*MaskSelector, error) {
	img, _, dims, _, err := niftiio.ReadFromNifti(path)
	if err != nil {
		return nil, err
	}
	if dims.Timepoints != 1 {
		return nil, &DimensionalityError{Path: path, Timepoints: dims.Timepoints}
	}

	flat := niftiio.FlattenVolume(img, dims)
	values := make([]float64, dims.NumSpatialLocs())
	for i := range values {
		values[i] = flat.At(i, 0)
	}

	return &MaskSelector{Path: path, Thresh: thresh, dims: dims, values: values}, nil
}

// Dims returns the mask's spatial geometry for validation against the data.
func (m *MaskSelector) Dims() niftiio.Dims { return m.dims }

// Select returns the indices where the mask exceeds the threshold. The
// stacked data must share the mask's spatial geometry.
func (m *MaskSelector) Select(stacked *mat.Dense) ([]int, error) {
	rows, _ := stacked.Dims()
	if rows != m.dims.NumSpatialLocs() {
		return nil, &DimensionMismatchError{
			Path: m.Path,
			Want: fmt.Sprintf("%d spatial locations", rows),
			Got:  fmt.Sprintf("%d spatial locations", m.dims.NumSpatialLocs()),
		}
	}

	var locs []int
	for i, v := range m.values {
		if v > m.Thresh {
			locs = append(locs, i)
		}
	}
	return locs, nil
}

// RangeSelector selects voxels whose time course has a strictly positive
// max-min range, the fallback when no mask is supplied.
type RangeSelector struct{}

// Select scans every row of the stacked data for a nonzero temporal range.
func (RangeSelector) Select(stacked *mat.Dense) ([]int, error) {
	rows, cols := stacked.Dims()

	var locs []int
	for i := 0; i < rows; i++ {
		lo, hi := stacked.At(i, 0), stacked.At(i, 0)
		for t := 1; t < cols; t++ {
			v := stacked.At(i, t)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi-lo > 0.0 {
			locs = append(locs, i)
		}
	}
	return locs, nil
}
