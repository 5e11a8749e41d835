package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fmritools/niftidecomp/internal/config"
	"github.com/fmritools/niftidecomp/internal/decomp"
	"github.com/fmritools/niftidecomp/internal/filter"
	"github.com/fmritools/niftidecomp/internal/niftiio"
)

func main() {
	dataFiles := flag.String("i", "", "Comma-separated list of 4D NIfTI data files (required)")
	outputRoot := flag.String("o", "", "Root name for all output files (required)")
	maskFile := flag.String("m", "", "3D NIfTI mask; without it, voxels with nonzero temporal range are used")
	decompType := flag.String("type", "", "Decomposition type: pca, sparsepca or ica")
	pcaComponents := flag.Float64("pcacomponents", 0.0, "PCA component count: a fraction of variance in (0,1], negative for automatic selection, else a count")
	icaComponents := flag.Int("icacomponents", -1, "ICA component count (0 keeps all)")
	trainedModelRoot := flag.String("trainedmodelroot", "", "Root of a previously persisted model to reuse (pca/sparsepca)")
	normMethod := flag.String("norm", "", "Normalization method: None, percent, stddev, z, p2p or mad")
	noDemean := flag.Bool("nodemean", false, "Do not subtract the per-timepoint mean")
	filterBand := flag.String("filterband", "", "Temporal prefilter band: none, vlf, lfo, resp or cardiac")
	sigma := flag.Float64("sigma", -1.0, "Spatial smoothing width in mm (0 disables)")
	maskThresh := flag.Float64("maskthresh", -1.0, "Mask inclusion threshold")
	configFile := flag.String("config", "", "Optional YAML configuration file")
	flag.Parse()

	if *dataFiles == "" || *outputRoot == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		loaded, err := config.LoadFromFile(*configFile)
		if err != nil {
			log.Fatalln(err)
		}
		cfg = loaded
	}

	// flags override the config file
	if *decompType != "" {
		cfg.Decomposition.Type = *decompType
	}
	if *pcaComponents != 0.0 {
		cfg.Decomposition.PCAComponents = *pcaComponents
	}
	if *icaComponents >= 0 {
		cfg.Decomposition.ICAComponents = *icaComponents
	}
	if *trainedModelRoot != "" {
		cfg.Decomposition.TrainedModelRoot = *trainedModelRoot
	}
	if *normMethod != "" {
		cfg.Preprocessing.NormMethod = *normMethod
	}
	if *noDemean {
		cfg.Preprocessing.Demean = false
	}
	if *filterBand != "" {
		cfg.Preprocessing.FilterBand = *filterBand
	}
	if *sigma >= 0.0 {
		cfg.Preprocessing.Sigma = *sigma
	}
	if *maskThresh >= 0.0 {
		cfg.Mask.Thresh = *maskThresh
	}

	runCfg, err := buildRunConfig(cfg, strings.Split(*dataFiles, ","), *outputRoot, *maskFile)
	if err != nil {
		log.Fatalln(err)
	}

	result, err := decomp.Run(runCfg)
	if err != nil {
		log.Fatalln(err)
	}

	if err := writeOutputs(*outputRoot, result); err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Finished.")
}

// buildRunConfig validates the string-valued options into the closed pipeline
// enums before anything touches the data.
func buildRunConfig(cfg *config.Config, files []string, outputRoot, maskFile string) (decomp.Config, error) {
	dtype, err := decomp.ParseDecompType(cfg.Decomposition.Type)
	if err != nil {
		return decomp.Config{}, err
	}
	norm, err := decomp.ParseNormMethod(cfg.Preprocessing.NormMethod)
	if err != nil {
		return decomp.Config{}, err
	}
	prefilter, err := filter.NewBandFilter(cfg.Preprocessing.FilterBand)
	if err != nil {
		return decomp.Config{}, err
	}

	return decomp.Config{
		DataFiles:        files,
		OutputRoot:       outputRoot,
		MaskFile:         maskFile,
		DecompType:       dtype,
		PCAComponents:    cfg.Decomposition.PCAComponents,
		ICAComponents:    cfg.Decomposition.ICAComponents,
		TrainedModelRoot: cfg.Decomposition.TrainedModelRoot,
		NormMethod:       norm,
		Demean:           cfg.Preprocessing.Demean,
		Prefilter:        prefilter,
		Sigma:            cfg.Preprocessing.Sigma,
		MaskThresh:       cfg.Mask.Thresh,
	}, nil
}

func writeOutputs(root string, result *decomp.Result) error {
	fmt.Println("writing fit data")

	if err := niftiio.WriteNifti(root+"_components.nii.gz", result.Header, result.Dims, result.Components.Data); err != nil {
		return err
	}
	if result.Reconstruction != nil {
		if err := niftiio.WriteNifti(root+"_reconstructed.nii.gz", result.Header, result.Dims, result.Reconstruction.Data); err != nil {
			return err
		}
	}
	if err := niftiio.MatToNpy(root+"_coefficients.npy", result.Coefficients); err != nil {
		return err
	}
	if result.ExplainedVariancePct != nil {
		if err := niftiio.VecToNpy(root+"_explained_variance_pct.npy", result.ExplainedVariancePct); err != nil {
			return err
		}
	}

	return nil
}
