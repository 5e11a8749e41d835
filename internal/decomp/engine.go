package decomp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DecompType selects the decomposition backend.
type DecompType int

const (
	DecompPCA DecompType = iota
	DecompSparsePCA
	DecompICA
)

var decompNames = map[DecompType]string{
	DecompPCA:       "pca",
	DecompSparsePCA: "sparsepca",
	DecompICA:       "ica",
}

func (d DecompType) String() string {
	if s, ok := decompNames[d]; ok {
		return s
	}
	return fmt.Sprintf("DecompType(%d)", int(d))
}

// ParseDecompType rejects unknown decomposition names at configuration time.
func ParseDecompType(s string) (DecompType, error) {
	for d, name := range decompNames {
		if s == name {
			return d, nil
		}
	}
	return DecompPCA, &InvalidConfigError{Field: "decomposition type", Value: s}
}

// Decomposer is the capability every backend shares: fit on a
// (samples x features) matrix, project to component space, expose the
// loadings with one component per column.
type Decomposer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (*mat.Dense, error)
	Components() *mat.Dense
}

// Inverter reconstructs an approximation of the input from coefficients.
type Inverter interface {
	InverseTransform(T mat.Matrix) (*mat.Dense, error)
}

// Persistable models can be written to and reloaded from a file. Of the
// backends only PCA and SparsePCA qualify.
type Persistable interface {
	Save(path string) error
}

// ExplainsVariance models report the share of variance each retained
// component captures, as a percentage.
type ExplainsVariance interface {
	ExplainedVariancePct() []float64
}
