// Package niftiio wraps NIfTI volume access for the decomposition pipeline.
// It loads 4-D series into gonum matrices, parses header geometry, and
// scatters result matrices back into NIfTI volumes for output.
package niftiio

import (
	"fmt"
	"os"
	"strings"

	"github.com/KyungWonPark/nifti"
	"gonum.org/v1/gonum/mat"
)

// Dims holds the spatial and temporal extent of a volume.
type Dims struct {
	X          int
	Y          int
	Slices     int
	Timepoints int
}

// Sizes holds the physical voxel dimensions in mm and the repetition time in
// seconds, from pixdim[1..4].
type Sizes struct {
	XDim           float64
	YDim           float64
	SliceThickness float64
	TR             float64
}

// NumSpatialLocs returns the number of voxels in one 3-D frame.
func (d Dims) NumSpatialLocs() int {
	return d.X * d.Y * d.Slices
}

// SpaceMatches reports whether two volumes share the same spatial extent.
func (d Dims) SpaceMatches(o Dims) bool {
	return d.X == o.X && d.Y == o.Y && d.Slices == o.Slices
}

// TimeMatches reports whether two volumes have the same number of timepoints.
func (d Dims) TimeMatches(o Dims) bool {
	return d.Timepoints == o.Timepoints
}

// LocIndex flattens a voxel coordinate to its spatial index. The stacker,
// the reassembler and WriteNifti all share this convention.
func (d Dims) LocIndex(x, y, z int) int {
	return (x*d.Y+y)*d.Slices + z
}

// ParseDims extracts the volume extent from the loaded image. A degenerate
// fourth dimension (0) is treated as a single timepoint, as for purely 3-D
// masks.
func ParseDims(img *nifti.Nifti1Image) Dims {
	dims := img.GetDims()
	tp := dims[3]
	if tp < 1 {
		tp = 1
	}
	return Dims{X: dims[0], Y: dims[1], Slices: dims[2], Timepoints: tp}
}

// ParseSizes extracts voxel sizes and TR from the header pixdim field.
func ParseSizes(hdr nifti.Nifti1Header) Sizes {
	return Sizes{
		XDim:           float64(hdr.Pixdim[1]),
		YDim:           float64(hdr.Pixdim[2]),
		SliceThickness: float64(hdr.Pixdim[3]),
		TR:             float64(hdr.Pixdim[4]),
	}
}

// ReadFromNifti loads a NIfTI volume with its data and returns the image,
// its header and the parsed geometry.
func ReadFromNifti(path string) (*nifti.Nifti1Image, nifti.Nifti1Header, Dims, Sizes, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nifti.Nifti1Header{}, Dims{}, Sizes{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var img nifti.Nifti1Image
	img.LoadImage(path, true)

	var hdr nifti.Nifti1Header
	hdr.LoadHeader(path)

	dims := ParseDims(&img)
	if dims.NumSpatialLocs() == 0 {
		return nil, hdr, dims, Sizes{}, fmt.Errorf("reading %s: empty spatial extent %dx%dx%d", path, dims.X, dims.Y, dims.Slices)
	}

	return &img, hdr, dims, ParseSizes(hdr), nil
}

// FlattenVolume reads the image data into a (spatial locs x timepoints)
// matrix using the LocIndex convention.
func FlattenVolume(img *nifti.Nifti1Image, dims Dims) *mat.Dense {
	out := mat.NewDense(dims.NumSpatialLocs(), dims.Timepoints, nil)
	for x := 0; x < dims.X; x++ {
		for y := 0; y < dims.Y; y++ {
			for z := 0; z < dims.Slices; z++ {
				loc := dims.LocIndex(x, y, z)
				for t := 0; t < dims.Timepoints; t++ {
					out.Set(loc, t, float64(img.GetAt(uint32(x), uint32(y), uint32(z), uint32(t))))
				}
			}
		}
	}
	return out
}

// WriteNifti scatters a (spatial locs x frames) matrix into a fresh volume
// carrying the source header, with the fourth header dimension rewritten to
// the frame count, and saves it gzipped at path. path must end in ".gz":
// Save appends that suffix itself, so the call strips it first.
func WriteNifti(path string, hdr nifti.Nifti1Header, dims Dims, data *mat.Dense) error {
	rows, frames := data.Dims()
	if rows != dims.NumSpatialLocs() {
		return fmt.Errorf("writing %s: %d rows for %d spatial locations", path, rows, dims.NumSpatialLocs())
	}
	if !strings.HasSuffix(path, ".gz") {
		return fmt.Errorf("writing %s: output name must end in .gz", path)
	}

	// rewrite the extent in place; the source Pixdim survives untouched
	hdr.Dim[0] = 4
	hdr.Dim[1] = int16(dims.X)
	hdr.Dim[2] = int16(dims.Y)
	hdr.Dim[3] = int16(dims.Slices)
	hdr.Dim[4] = int16(frames)

	img := nifti.NewImg(dims.X, dims.Y, dims.Slices, frames)
	img.SetNewHeader(hdr)

	for x := 0; x < dims.X; x++ {
		for y := 0; y < dims.Y; y++ {
			for z := 0; z < dims.Slices; z++ {
				loc := dims.LocIndex(x, y, z)
				for t := 0; t < frames; t++ {
					img.SetAt(uint32(x), uint32(y), uint32(z), uint32(t), float32(data.At(loc, t)))
				}
			}
		}
	}

	img.Save(strings.TrimSuffix(path, ".gz"))
	return nil
}
