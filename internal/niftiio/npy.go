package niftiio

import (
	"fmt"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/mat"
)

// MatToNpy writes a dense matrix to a numpy npy binary file.
func MatToNpy(path string, matrix *mat.Dense) error {
	rows, cols := matrix.Dims()
	raw := matrix.RawMatrix()

	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("npy write %s: %w", path, err)
	}
	w.Shape = []int{rows, cols}
	w.Version = 2
	if err := w.WriteFloat64(raw.Data); err != nil {
		return fmt.Errorf("npy write %s: %w", path, err)
	}

	return nil
}

// VecToNpy writes a float64 slice to a one-dimensional npy file.
func VecToNpy(path string, vec []float64) error {
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("npy write %s: %w", path, err)
	}
	w.Shape = []int{len(vec)}
	w.Version = 2
	if err := w.WriteFloat64(vec); err != nil {
		return fmt.Errorf("npy write %s: %w", path, err)
	}

	return nil
}

// NpyToMat reads a two-dimensional npy file as a dense matrix.
func NpyToMat(path string) (*mat.Dense, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("npy read %s: %w", path, err)
	}
	if len(r.Shape) != 2 {
		return nil, fmt.Errorf("npy read %s: want 2 dimensions, got %d", path, len(r.Shape))
	}

	data, err := r.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("npy read %s: %w", path, err)
	}

	return mat.NewDense(r.Shape[0], r.Shape[1], data), nil
}
