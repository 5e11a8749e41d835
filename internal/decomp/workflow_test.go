package decomp

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/KyungWonPark/nifti"
	"gonum.org/v1/gonum/mat"

	"github.com/fmritools/niftidecomp/internal/niftiio"
)

// writeVolume saves a (spatial locs x timepoints) matrix as a NIfTI file
// with a header generated for its geometry.
func writeVolume(t *testing.T, path string, dims niftiio.Dims, data *mat.Dense) {
	t.Helper()
	scratch := nifti.NewImg(dims.X, dims.Y, dims.Slices, dims.Timepoints)
	if err := niftiio.WriteNifti(path, scratch.GetHeader(), dims, data); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func onesMask(dims niftiio.Dims) *mat.Dense {
	m := mat.NewDense(dims.NumSpatialLocs(), 1, nil)
	for i := 0; i < dims.NumSpatialLocs(); i++ {
		m.Set(i, 0, 1.0)
	}
	return m
}

func TestRunEndToEndPCA(t *testing.T) {
	dir := t.TempDir()
	dims := niftiio.Dims{X: 4, Y: 4, Slices: 1, Timepoints: 10}
	maskDims := niftiio.Dims{X: 4, Y: 4, Slices: 1, Timepoints: 1}

	dataPath := filepath.Join(dir, "data.nii.gz")
	maskPath := filepath.Join(dir, "mask.nii.gz")
	writeVolume(t, dataPath, dims, testMatrix(16, 10, 101))
	writeVolume(t, maskPath, maskDims, onesMask(maskDims))

	outRoot := filepath.Join(dir, "out")
	result, err := Run(Config{
		DataFiles:     []string{dataPath},
		OutputRoot:    outRoot,
		MaskFile:      maskPath,
		DecompType:    DecompPCA,
		PCAComponents: 0.5,
		NormMethod:    NormNone,
		Demean:        true,
		MaskThresh:    DefaultMaskThresh,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.ProcLocs) != 16 {
		t.Errorf("selected %d voxels, want all 16 (mask is 1.0 > 0.25 everywhere)", len(result.ProcLocs))
	}

	k := result.Components.Features()
	if k < 1 {
		t.Fatalf("kept %d components, want at least 1", k)
	}
	if result.Components.Dims != dims {
		t.Errorf("component volume dims %+v, want the data dims", result.Components.Dims)
	}

	cr, cc := result.Coefficients.Dims()
	if cr != k || cc != 10 {
		t.Errorf("coefficients shape (%d, %d), want (%d, 10)", cr, cc, k)
	}

	if len(result.ExplainedVariancePct) != k {
		t.Fatalf("explained variance for %d components, want %d", len(result.ExplainedVariancePct), k)
	}
	sum := 0.0
	for _, v := range result.ExplainedVariancePct {
		sum += v
	}
	if sum < 50.0 {
		t.Errorf("retained components explain %g%%, want >= 50%%", sum)
	}

	if result.Reconstruction == nil || result.Reconstruction.Features() != 10 {
		t.Errorf("reconstruction missing or wrong shape")
	}

	// the fresh model is persisted before fitting
	if _, err := os.Stat(outRoot + ModelSuffix); err != nil {
		t.Errorf("model file not written: %v", err)
	}
}

func TestRunMaskThreshZeroHonored(t *testing.T) {
	dir := t.TempDir()
	dims := niftiio.Dims{X: 4, Y: 4, Slices: 1, Timepoints: 10}
	maskDims := niftiio.Dims{X: 4, Y: 4, Slices: 1, Timepoints: 1}

	// every mask voxel sits below the default threshold
	faint := mat.NewDense(maskDims.NumSpatialLocs(), 1, nil)
	for i := 0; i < maskDims.NumSpatialLocs(); i++ {
		faint.Set(i, 0, 0.1)
	}

	dataPath := filepath.Join(dir, "data.nii.gz")
	maskPath := filepath.Join(dir, "mask.nii.gz")
	writeVolume(t, dataPath, dims, testMatrix(16, 10, 31))
	writeVolume(t, maskPath, maskDims, faint)

	result, err := Run(Config{
		DataFiles:     []string{dataPath},
		OutputRoot:    filepath.Join(dir, "out"),
		MaskFile:      maskPath,
		DecompType:    DecompPCA,
		PCAComponents: 0.5,
		NormMethod:    NormNone,
		Demean:        true,
		MaskThresh:    0.0,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.ProcLocs) != 16 {
		t.Errorf("selected %d voxels, want all 16 with an explicit zero threshold", len(result.ProcLocs))
	}
}

func TestRunMaskMustBe3D(t *testing.T) {
	dir := t.TempDir()
	maskDims := niftiio.Dims{X: 4, Y: 4, Slices: 1, Timepoints: 2}
	maskPath := filepath.Join(dir, "mask4d.nii.gz")
	writeVolume(t, maskPath, maskDims, testMatrix(16, 2, 55))

	// the data path does not exist: the mask must be rejected first
	_, err := Run(Config{
		DataFiles:  []string{filepath.Join(dir, "missing.nii.gz")},
		OutputRoot: filepath.Join(dir, "out"),
		MaskFile:   maskPath,
		DecompType: DecompPCA,
		NormMethod: NormNone,
		Demean:     true,
	})

	var dimErr *DimensionalityError
	if !errors.As(err, &dimErr) {
		t.Fatalf("Run = %v, want DimensionalityError", err)
	}
	if dimErr.Timepoints != 2 {
		t.Errorf("reported %d timepoints, want 2", dimErr.Timepoints)
	}
}

func TestRunDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	dimsA := niftiio.Dims{X: 4, Y: 4, Slices: 1, Timepoints: 5}
	dimsB := niftiio.Dims{X: 3, Y: 4, Slices: 1, Timepoints: 5}

	pathA := filepath.Join(dir, "a.nii.gz")
	pathB := filepath.Join(dir, "b.nii.gz")
	writeVolume(t, pathA, dimsA, testMatrix(16, 5, 7))
	writeVolume(t, pathB, dimsB, testMatrix(12, 5, 8))

	_, err := Run(Config{
		DataFiles:     []string{pathA, pathB},
		OutputRoot:    filepath.Join(dir, "out"),
		DecompType:    DecompPCA,
		PCAComponents: 0.5,
		NormMethod:    NormNone,
		Demean:        true,
	})

	var mismatch *DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Run = %v, want DimensionMismatchError", err)
	}
}

func TestRunReconstructionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dims := niftiio.Dims{X: 4, Y: 4, Slices: 1, Timepoints: 10}

	original := testMatrix(16, 10, 77)
	dataPath := filepath.Join(dir, "data.nii.gz")
	writeVolume(t, dataPath, dims, original)

	result, err := Run(Config{
		DataFiles:     []string{dataPath},
		OutputRoot:    filepath.Join(dir, "out"),
		DecompType:    DecompPCA,
		PCAComponents: 1.0, // retain everything
		NormMethod:    NormNone,
		Demean:        true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// with all components and trivial normalization the denormalized
	// reconstruction is the input, up to float32 storage precision
	for loc := 0; loc < dims.NumSpatialLocs(); loc++ {
		for tp := 0; tp < 10; tp++ {
			got := result.Reconstruction.Data.At(loc, tp)
			want := original.At(loc, tp)
			if math.Abs(got-want) > 1e-3 {
				t.Fatalf("reconstruction[%d, %d] = %g, want %g", loc, tp, got, want)
			}
		}
	}
}

func TestRunTrainedModelMissing(t *testing.T) {
	dir := t.TempDir()
	dims := niftiio.Dims{X: 4, Y: 4, Slices: 1, Timepoints: 6}
	dataPath := filepath.Join(dir, "data.nii.gz")
	writeVolume(t, dataPath, dims, testMatrix(16, 6, 19))

	_, err := Run(Config{
		DataFiles:        []string{dataPath},
		OutputRoot:       filepath.Join(dir, "out"),
		DecompType:       DecompPCA,
		TrainedModelRoot: filepath.Join(dir, "never-trained"),
		NormMethod:       NormNone,
		Demean:           true,
	})

	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Run = %v, want ModelLoadError with no fallback to a fresh fit", err)
	}
}

func TestRunICA(t *testing.T) {
	dir := t.TempDir()
	dims := niftiio.Dims{X: 4, Y: 4, Slices: 1, Timepoints: 20}
	dataPath := filepath.Join(dir, "data.nii.gz")
	writeVolume(t, dataPath, dims, testMatrix(16, 20, 23))

	result, err := Run(Config{
		DataFiles:     []string{dataPath},
		OutputRoot:    filepath.Join(dir, "out"),
		DecompType:    DecompICA,
		ICAComponents: 3,
		NormMethod:    NormStddev,
		Demean:        true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if k := result.Components.Features(); k != 3 {
		t.Errorf("kept %d components, want 3", k)
	}
	if result.ExplainedVariancePct != nil {
		t.Errorf("ica reported explained variance, want none")
	}
	if result.Reconstruction == nil {
		t.Errorf("ica produced no reconstruction")
	}
	if _, err := os.Stat(filepath.Join(dir, "out"+ModelSuffix)); !os.IsNotExist(err) {
		t.Errorf("ica persisted a model, want none")
	}
}
