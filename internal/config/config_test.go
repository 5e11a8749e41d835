package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Decomposition.Type != "pca" {
		t.Errorf("default type %q, want pca", cfg.Decomposition.Type)
	}
	if cfg.Decomposition.PCAComponents != 0.5 {
		t.Errorf("default pcaComponents %g, want 0.5", cfg.Decomposition.PCAComponents)
	}
	if !cfg.Preprocessing.Demean {
		t.Error("default demean false, want true")
	}
	if cfg.Preprocessing.NormMethod != "None" {
		t.Errorf("default normMethod %q, want None", cfg.Preprocessing.NormMethod)
	}
	if cfg.Mask.Thresh != 0.25 {
		t.Errorf("default mask threshold %g, want 0.25", cfg.Mask.Thresh)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
decomposition:
  type: ica
  icaComponents: 8
preprocessing:
  normMethod: stddev
  demean: true
  sigma: 2.5
mask:
  thresh: 0.4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Decomposition.Type != "ica" {
		t.Errorf("type %q, want ica", cfg.Decomposition.Type)
	}
	if cfg.Decomposition.ICAComponents != 8 {
		t.Errorf("icaComponents %d, want 8", cfg.Decomposition.ICAComponents)
	}
	if cfg.Preprocessing.NormMethod != "stddev" {
		t.Errorf("normMethod %q, want stddev", cfg.Preprocessing.NormMethod)
	}
	if cfg.Preprocessing.Sigma != 2.5 {
		t.Errorf("sigma %g, want 2.5", cfg.Preprocessing.Sigma)
	}
	if cfg.Mask.Thresh != 0.4 {
		t.Errorf("mask threshold %g, want 0.4", cfg.Mask.Thresh)
	}

	// unset fields keep their defaults
	if cfg.Decomposition.PCAComponents != 0.5 {
		t.Errorf("pcaComponents %g, want the 0.5 default", cfg.Decomposition.PCAComponents)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadFromFile succeeded on a missing file")
	}
}
