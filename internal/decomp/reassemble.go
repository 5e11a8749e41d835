package decomp

import (
	"gonum.org/v1/gonum/mat"

	"github.com/fmritools/niftidecomp/internal/niftiio"
)

// Volume is a voxel-indexed result scattered back to the full spatial
// extent, one feature (component or timepoint) per column. Voxels outside
// proclocs stay zero.
type Volume struct {
	Data *mat.Dense
	Dims niftiio.Dims
}

// At reads one voxel of one feature slice.
func (v *Volume) At(x, y, z, feature int) float64 {
	return v.Data.At(v.Dims.LocIndex(x, y, z), feature)
}

// Features returns the number of feature slices.
func (v *Volume) Features() int {
	_, cols := v.Data.Dims()
	return cols
}

// Reassemble scatters the voxel-indexed rows into a zero-filled full-size
// volume via proclocs.
func Reassemble(rows *mat.Dense, proclocs []int, dims niftiio.Dims) *Volume {
	_, features := rows.Dims()
	full := mat.NewDense(dims.NumSpatialLocs(), features, nil)
	for i, loc := range proclocs {
		for f := 0; f < features; f++ {
			full.Set(loc, f, rows.At(i, f))
		}
	}
	return &Volume{Data: full, Dims: dims}
}
