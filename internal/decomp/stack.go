package decomp

import (
	"fmt"

	"github.com/KyungWonPark/nifti"
	"gonum.org/v1/gonum/mat"

	"github.com/fmritools/niftidecomp/internal/filter"
	"github.com/fmritools/niftidecomp/internal/niftiio"
)

// StackResult is the concatenated voxel-time matrix and the canonical
// geometry captured from the first input file.
type StackResult struct {
	// Data is (spatial locs x file count * per-file timepoints).
	Data   *mat.Dense
	Header nifti.Nifti1Header
	Dims   niftiio.Dims
	Sizes  niftiio.Sizes
}

// TotalTimepoints returns the time extent of the stacked matrix.
func (s *StackResult) TotalTimepoints() int {
	_, cols := s.Data.Dims()
	return cols
}

// StackVolumes reads the 4-D series in order and concatenates them along
// time. The first file fixes the geometry; every later file must match it
// in space and time. Each file is optionally smoothed frame by frame
// (sigma > 0, in mm) and temporally prefiltered voxel by voxel at sampling
// rate 1/TR before being placed into its time slot.
func StackVolumes(paths []string, sigma float64, prefilter filter.TemporalFilter) (*StackResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no data files given")
	}

	var out *StackResult
	for idx, path := range paths {
		fmt.Printf("reading %s...\n", path)
		img, hdr, dims, sizes, err := niftiio.ReadFromNifti(path)
		if err != nil {
			return nil, err
		}

		if idx == 0 {
			out = &StackResult{
				Data:   mat.NewDense(dims.NumSpatialLocs(), dims.Timepoints*len(paths), nil),
				Header: hdr,
				Dims:   dims,
				Sizes:  sizes,
			}
		} else if !dims.SpaceMatches(out.Dims) || !dims.TimeMatches(out.Dims) {
			return nil, &DimensionMismatchError{
				Path: path,
				Want: dimString(out.Dims),
				Got:  dimString(dims),
			}
		}

		block := niftiio.FlattenVolume(img, dims)

		if sigma > 0.0 {
			fmt.Println("\tsmoothing data")
			frame := make([]float64, dims.NumSpatialLocs())
			for t := 0; t < dims.Timepoints; t++ {
				mat.Col(frame, t, block)
				filter.Smooth(sizes.XDim, sizes.YDim, sizes.SliceThickness, sigma, frame, dims)
				block.SetCol(t, frame)
			}
		}

		if prefilter != nil {
			fmt.Println("\ttemporally filtering data")
			for i := 0; i < dims.NumSpatialLocs(); i++ {
				block.SetRow(i, prefilter.Apply(1.0/out.Sizes.TR, block.RawRowView(i)))
			}
		}

		slot := out.Data.Slice(0, dims.NumSpatialLocs(), idx*dims.Timepoints, (idx+1)*dims.Timepoints).(*mat.Dense)
		slot.Copy(block)
	}

	return out, nil
}

func dimString(d niftiio.Dims) string {
	return fmt.Sprintf("%dx%dx%dx%d", d.X, d.Y, d.Slices, d.Timepoints)
}
