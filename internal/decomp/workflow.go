package decomp

import (
	"fmt"

	"github.com/KyungWonPark/nifti"
	"gonum.org/v1/gonum/mat"

	"github.com/fmritools/niftidecomp/internal/filter"
	"github.com/fmritools/niftidecomp/internal/niftiio"
)

// DefaultMaskThresh is the mask inclusion threshold the configuration layer
// applies when none is given. Run takes MaskThresh as-is, so an explicit
// zero threshold keeps every positive mask voxel.
const DefaultMaskThresh = 0.25

// Config is the full parameter set of one pipeline run.
type Config struct {
	DataFiles  []string
	OutputRoot string
	MaskFile   string

	DecompType    DecompType
	PCAComponents float64 // fraction (0,1], negative for MDL, else count
	ICAComponents int     // 0 keeps all

	TrainedModelRoot string

	NormMethod NormMethod
	Demean     bool

	Prefilter filter.TemporalFilter
	Sigma     float64

	MaskThresh float64
}

// Result is everything one run produces.
type Result struct {
	Components           *Volume
	Coefficients         *mat.Dense // components x total timepoints
	Reconstruction       *Volume
	ExplainedVariancePct []float64

	Header   nifti.Nifti1Header
	Dims     niftiio.Dims
	Sizes    niftiio.Sizes
	ProcLocs []int
}

// Run executes the whole pipeline: voxel selection, stacking, normalization,
// decomposition and reassembly. Any failure aborts the run; no partial
// outputs are produced.
func Run(cfg Config) (*Result, error) {
	fmt.Printf("will perform %s analysis along the spatial dimension\n", cfg.DecompType)

	// the mask is read and validated before any data file
	var selector VoxelSelector
	var mask *MaskSelector
	if cfg.MaskFile != "" {
		fmt.Println("reading in mask array")
		m, err := LoadMask(cfg.MaskFile, cfg.MaskThresh)
		if err != nil {
			return nil, err
		}
		mask = m
		selector = m
	} else {
		selector = RangeSelector{}
	}

	fmt.Println("reading in data files")
	stacked, err := StackVolumes(cfg.DataFiles, cfg.Sigma, cfg.Prefilter)
	if err != nil {
		return nil, err
	}

	if mask != nil {
		fmt.Println("checking mask dimensions")
		if !mask.Dims().SpaceMatches(stacked.Dims) {
			return nil, &DimensionMismatchError{
				Path: cfg.MaskFile,
				Want: dimString(stacked.Dims),
				Got:  dimString(mask.Dims()),
			}
		}
	}

	fmt.Println("masking arrays")
	proclocs, err := selector.Select(stacked.Data)
	if err != nil {
		return nil, err
	}
	if len(proclocs) == 0 {
		return nil, fmt.Errorf("no voxels selected for processing")
	}

	total := stacked.TotalTimepoints()
	procdata := mat.NewDense(len(proclocs), total, nil)
	for i, loc := range proclocs {
		procdata.SetRow(i, stacked.Data.RawRowView(loc))
	}
	fmt.Printf("data shapes:\n\t%d total voxels, %d time points\n\t%d valid voxels, %d time points\n",
		stacked.Dims.NumSpatialLocs(), total, len(proclocs), total)

	means, factors, err := Normalize(procdata, cfg.NormMethod, cfg.Demean)
	if err != nil {
		return nil, err
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return nil, err
	}

	// decompose along the spatial axis: samples are timepoints
	transposed := mat.DenseCopyOf(procdata.T())
	if err := engine.Fit(transposed); err != nil {
		return nil, err
	}

	coeffs, err := engine.Transform(transposed)
	if err != nil {
		return nil, err
	}
	components := engine.Components()
	_, ncomp := components.Dims()
	fmt.Printf("returning %d components\n", ncomp)

	result := &Result{
		Components:   Reassemble(components, proclocs, stacked.Dims),
		Coefficients: mat.DenseCopyOf(coeffs.T()),
		Header:       stacked.Header,
		Dims:         stacked.Dims,
		Sizes:        stacked.Sizes,
		ProcLocs:     proclocs,
	}

	if ev, ok := engine.(ExplainsVariance); ok {
		result.ExplainedVariancePct = ev.ExplainedVariancePct()
	}

	if inv, ok := engine.(Inverter); ok {
		reconT, err := inv.InverseTransform(coeffs)
		if err != nil {
			return nil, err
		}
		// back to (voxels x timepoints), then undo normalization and demeaning
		recon := mat.DenseCopyOf(reconT.T())
		rows, _ := recon.Dims()
		for t := 0; t < total; t++ {
			for i := 0; i < rows; i++ {
				recon.Set(i, t, factors[t]*recon.At(i, t)+means[t])
			}
		}
		result.Reconstruction = Reassemble(recon, proclocs, stacked.Dims)
	}

	return result, nil
}

// buildEngine picks the backend. On the PCA paths a trained-model root loads
// the persisted model with no fallback to a fresh fit; otherwise the fresh
// model is persisted under the output root before fitting.
func buildEngine(cfg Config) (Decomposer, error) {
	if cfg.DecompType == DecompICA {
		fmt.Println("performing ica decomposition")
		if cfg.ICAComponents <= 0 {
			fmt.Println("will return all significant components")
		} else {
			fmt.Printf("will return %d components\n", cfg.ICAComponents)
		}
		return NewICA(cfg.ICAComponents), nil
	}

	if cfg.TrainedModelRoot != "" {
		modelfile := cfg.TrainedModelRoot + ModelSuffix
		fmt.Printf("reading model from %s\n", modelfile)
		return LoadPCAModel(modelfile)
	}

	fmt.Printf("performing %s decomposition\n", cfg.DecompType)
	if cfg.PCAComponents > 0.0 && cfg.PCAComponents < 1.0 {
		fmt.Printf("will return the components accounting for %g%% of the variance\n", cfg.PCAComponents*100.0)
	} else if cfg.PCAComponents < 0.0 {
		fmt.Println("will select the component count by description length")
	}

	pca := NewPCA(cfg.DecompType == DecompSparsePCA, cfg.PCAComponents)
	if cfg.OutputRoot != "" {
		if err := pca.Save(cfg.OutputRoot + ModelSuffix); err != nil {
			return nil, err
		}
	}
	return pca, nil
}
