package decomp

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ModelSuffix is appended to the output root (or trained-model root) to form
// the persisted model file name.
const ModelSuffix = "_pca.model"

// DefaultSparseAlpha is the soft-threshold weight for sparse loadings.
const DefaultSparseAlpha = 1.0

// PCA is the principal-component backend, covering both the plain and the
// sparse variant. ComponentSpec selects how many components survive the
// fit: a fraction in (0, 1] keeps the smallest set explaining at least
// that share of variance, a negative value asks for automatic
// description-length order selection, any other positive value is an exact
// integer count.
type PCA struct {
	Sparse        bool
	ComponentSpec float64
	Alpha         float64

	fitted   bool
	mean     []float64
	vectors  *mat.Dense // d x k, loadings as columns
	keptVars []float64
	totalVar float64
}

// NewPCA constructs an unfit model.
func NewPCA(sparse bool, components float64) *PCA {
	return &PCA{Sparse: sparse, ComponentSpec: components, Alpha: DefaultSparseAlpha}
}

// selectCount resolves the requested component setting against the available
// variance spectrum. vars must be in decreasing order.
func (p *PCA) selectCount(vars []float64, nsamples int) int {
	avail := len(vars)
	switch {
	case p.ComponentSpec > 0.0 && p.ComponentSpec <= 1.0:
		total := 0.0
		for _, v := range vars {
			total += v
		}
		cum := 0.0
		for i, v := range vars {
			cum += v
			if cum >= p.ComponentSpec*total {
				return i + 1
			}
		}
		return avail
	case p.ComponentSpec < 0.0:
		return mdlComponents(vars, nsamples)
	default:
		k := int(p.ComponentSpec)
		if k < 1 {
			k = 1
		}
		if k > avail {
			k = avail
		}
		return k
	}
}

// mdlComponents picks the model order minimizing the Wax-Kailath minimum
// description length over the variance spectrum.
func mdlComponents(vars []float64, n int) int {
	m := len(vars)
	if m < 2 {
		return m
	}

	eps := 1e-12
	best, bestK := math.Inf(1), 1
	for k := 0; k < m; k++ {
		tail := vars[k:]
		logGeo, arith := 0.0, 0.0
		for _, v := range tail {
			if v < eps {
				v = eps
			}
			logGeo += math.Log(v)
			arith += v
		}
		logGeo /= float64(len(tail))
		arith /= float64(len(tail))

		score := -float64(n*len(tail))*(logGeo-math.Log(arith)) +
			0.5*float64(k*(2*m-k))*math.Log(float64(n))
		if score < best {
			best = score
			bestK = k
		}
	}
	if bestK < 1 {
		bestK = 1
	}
	return bestK
}

// Fit learns the loadings from X, shaped (samples x features). For the
// pipeline the samples are timepoints and the features masked voxels.
func (p *PCA) Fit(X mat.Matrix) error {
	n, d := X.Dims()
	if n < 2 {
		return fmt.Errorf("pca fit: need at least 2 samples, got %d", n)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return fmt.Errorf("pca fit: factorization failed for %dx%d input", n, d)
	}
	vars := pc.VarsTo(nil)

	p.mean = make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, X)
		p.mean[j] = stat.Mean(col, nil)
	}

	k := p.selectCount(vars, n)

	if p.Sparse {
		vecs, sparseVars := p.fitSparse(X, k)
		p.vectors = vecs
		p.keptVars = sparseVars
	} else {
		var all mat.Dense
		pc.VectorsTo(&all)
		p.vectors = mat.DenseCopyOf(all.Slice(0, d, 0, k))
		p.keptVars = append([]float64(nil), vars[:k]...)
	}

	p.totalVar = 0.0
	for _, v := range vars {
		p.totalVar += v
	}
	p.fitted = true
	return nil
}

// fitSparse extracts k sparse loadings by rank-one deflation with soft
// thresholding of the feature weights.
func (p *PCA) fitSparse(X mat.Matrix, k int) (*mat.Dense, []float64) {
	n, d := X.Dims()

	R := mat.NewDense(n, d, nil)
	R.Apply(func(_, j int, v float64) float64 { return v - p.mean[j] }, X)

	vecs := mat.NewDense(d, k, nil)
	vars := make([]float64, k)

	u := mat.NewVecDense(n, nil)
	v := mat.NewVecDense(d, nil)
	w := mat.NewVecDense(d, nil)

	for c := 0; c < k; c++ {
		// start from the feature-space image of a flat direction
		for i := 0; i < n; i++ {
			u.SetVec(i, 1.0)
		}
		normalize(u)

		for iter := 0; iter < 100; iter++ {
			w.MulVec(R.T(), u)
			softThreshold(w, p.Alpha)
			if mat.Norm(w, 2) == 0.0 {
				w.MulVec(R.T(), u)
			}
			prev := mat.NewVecDense(d, nil)
			prev.CopyVec(v)
			v.CopyVec(w)
			normalize(v)

			u.MulVec(R, v)
			normalize(u)

			prev.SubVec(prev, v)
			if mat.Norm(prev, 2) < 1e-8 {
				break
			}
		}

		var ruv mat.VecDense
		ruv.MulVec(R, v)
		scale := mat.Dot(u, &ruv)
		vars[c] = scale * scale / float64(n-1)

		// deflate
		var outer mat.Dense
		outer.Outer(scale, u, v)
		R.Sub(R, &outer)

		vecs.SetCol(c, rawVec(v))
	}

	return vecs, vars
}

func normalize(v *mat.VecDense) {
	n := mat.Norm(v, 2)
	if n > 0.0 {
		v.ScaleVec(1.0/n, v)
	}
}

func softThreshold(v *mat.VecDense, lambda float64) {
	for i := 0; i < v.Len(); i++ {
		x := v.AtVec(i)
		switch {
		case x > lambda:
			v.SetVec(i, x-lambda)
		case x < -lambda:
			v.SetVec(i, x+lambda)
		default:
			v.SetVec(i, 0.0)
		}
	}
}

func rawVec(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// Transform projects X onto the retained loadings, yielding
// (samples x components) coefficients.
func (p *PCA) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !p.fitted {
		return nil, fmt.Errorf("pca transform: model not fitted")
	}
	n, d := X.Dims()
	if d != len(p.mean) {
		return nil, fmt.Errorf("pca transform: %d features, model has %d", d, len(p.mean))
	}

	centered := mat.NewDense(n, d, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - p.mean[j] }, X)

	var T mat.Dense
	T.Mul(centered, p.vectors)
	return &T, nil
}

// InverseTransform maps coefficients back to the original feature space and
// re-adds the feature means.
func (p *PCA) InverseTransform(T mat.Matrix) (*mat.Dense, error) {
	if !p.fitted {
		return nil, fmt.Errorf("pca inverse transform: model not fitted")
	}

	var X mat.Dense
	X.Mul(T, p.vectors.T())
	X.Apply(func(_, j int, v float64) float64 { return v + p.mean[j] }, &X)
	return &X, nil
}

// Components returns the retained loadings, one component per column
// (features x components).
func (p *PCA) Components() *mat.Dense {
	return p.vectors
}

// ExplainedVariancePct reports the percentage of total variance captured by
// each retained component.
func (p *PCA) ExplainedVariancePct() []float64 {
	out := make([]float64, len(p.keptVars))
	for i, v := range p.keptVars {
		if p.totalVar > 0.0 {
			out[i] = 100.0 * v / p.totalVar
		}
	}
	return out
}

// pcaModelFile is the gob snapshot of a PCA model, fitted or not.
type pcaModelFile struct {
	Sparse     bool
	Components float64
	Alpha      float64
	Fitted     bool
	Mean       []float64
	VecRows    int
	VecCols    int
	VecData    []float64
	KeptVars   []float64
	TotalVar   float64
}

// Save persists the model, fitted or not, at path.
func (p *PCA) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving model %s: %w", path, err)
	}
	defer f.Close()

	file := pcaModelFile{
		Sparse:     p.Sparse,
		Components: p.ComponentSpec,
		Alpha:      p.Alpha,
		Fitted:     p.fitted,
		Mean:       p.mean,
		KeptVars:   p.keptVars,
		TotalVar:   p.totalVar,
	}
	if p.vectors != nil {
		r, c := p.vectors.Dims()
		file.VecRows, file.VecCols = r, c
		file.VecData = append([]float64(nil), p.vectors.RawMatrix().Data...)
	}

	if err := gob.NewEncoder(f).Encode(&file); err != nil {
		return fmt.Errorf("saving model %s: %w", path, err)
	}
	return nil
}

// LoadPCAModel reads a persisted model. A missing or corrupt file is a
// ModelLoadError; there is no fallback to a fresh fit.
func LoadPCAModel(path string) (*PCA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}
	defer f.Close()

	var file pcaModelFile
	if err := gob.NewDecoder(f).Decode(&file); err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}

	p := &PCA{
		Sparse:        file.Sparse,
		ComponentSpec: file.Components,
		Alpha:         file.Alpha,
		fitted:        file.Fitted,
		mean:          file.Mean,
		keptVars:      file.KeptVars,
		totalVar:      file.TotalVar,
	}
	if file.VecRows > 0 && file.VecCols > 0 {
		p.vectors = mat.NewDense(file.VecRows, file.VecCols, file.VecData)
	}
	return p, nil
}
