// Package config provides configuration loading for the niftidecomp CLI.
// It handles YAML files and provides default values; command-line flags
// override whatever the file sets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fmritools/niftidecomp/internal/decomp"
)

// Config represents the run configuration loaded from YAML.
type Config struct {
	Decomposition struct {
		// Type is pca, sparsepca or ica.
		Type string `yaml:"type"`

		// PCAComponents selects the retained components: a
		// fraction in (0, 1] for a variance share, negative for automatic
		// order selection, any other positive value for an exact count.
		PCAComponents float64 `yaml:"pcaComponents"`

		// ICAComponents is the ICA component count; 0 keeps all.
		ICAComponents int `yaml:"icaComponents"`

		// TrainedModelRoot, when set, reuses a persisted model instead of
		// fitting a fresh one (pca/sparsepca only).
		TrainedModelRoot string `yaml:"trainedModelRoot"`
	} `yaml:"decomposition"`

	Preprocessing struct {
		// NormMethod is None, percent, stddev, z, p2p or mad.
		NormMethod string `yaml:"normMethod"`

		// Demean subtracts the per-timepoint mean before normalizing.
		Demean bool `yaml:"demean"`

		// FilterBand names a temporal prefilter band: none, vlf, lfo,
		// resp or cardiac.
		FilterBand string `yaml:"filterBand"`

		// Sigma is the spatial smoothing width in mm; 0 disables.
		Sigma float64 `yaml:"sigma"`
	} `yaml:"preprocessing"`

	Mask struct {
		// Thresh is the mask inclusion threshold.
		Thresh float64 `yaml:"thresh"`
	} `yaml:"mask"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Decomposition.Type = "pca"
	cfg.Decomposition.PCAComponents = 0.5
	cfg.Decomposition.ICAComponents = 0

	cfg.Preprocessing.NormMethod = "None"
	cfg.Preprocessing.Demean = true
	cfg.Preprocessing.FilterBand = "none"
	cfg.Preprocessing.Sigma = 0.0

	cfg.Mask.Thresh = decomp.DefaultMaskThresh

	return cfg
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
