package decomp

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ICA is the independent-component backend: whitening through a thin SVD
// followed by parallel fixed-point iteration with a tanh contrast and
// symmetric decorrelation. It does not persist and reports no explained
// variance.
type ICA struct {
	// NComponents is the number of components to extract; zero keeps every
	// component the whitening admits.
	NComponents int
	MaxIter     int
	Tol         float64
	Seed        int64

	fitted   bool
	mean     []float64
	unmixing *mat.Dense // k x d
	mixing   *mat.Dense // d x k
}

// NewICA constructs an unfit model; components <= 0 keeps all.
func NewICA(components int) *ICA {
	return &ICA{NComponents: components, MaxIter: 200, Tol: 1e-4, Seed: 42}
}

// Fit learns the unmixing matrix from X, shaped (samples x features).
func (ica *ICA) Fit(X mat.Matrix) error {
	n, d := X.Dims()
	if n < 2 {
		return fmt.Errorf("ica fit: need at least 2 samples, got %d", n)
	}

	ica.mean = make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, X)
		ica.mean[j] = stat.Mean(col, nil)
	}

	centered := mat.NewDense(n, d, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - ica.mean[j] }, X)

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return fmt.Errorf("ica fit: svd failed for %dx%d input", n, d)
	}
	var U, V mat.Dense
	svd.UTo(&U)
	svd.VTo(&V)
	s := svd.Values(nil)

	avail := len(s)
	for avail > 0 && s[avail-1] < 1e-12 {
		avail--
	}
	if avail == 0 {
		return fmt.Errorf("ica fit: input has no variance")
	}

	k := ica.NComponents
	if k <= 0 || k > avail {
		k = avail
	}

	// whitened signals X1 = sqrt(n) * U[:, :k]^T, rows have unit variance
	X1 := mat.NewDense(k, n, nil)
	rootN := math.Sqrt(float64(n))
	for i := 0; i < k; i++ {
		for t := 0; t < n; t++ {
			X1.Set(i, t, rootN*U.At(t, i))
		}
	}

	rng := rand.New(rand.NewSource(ica.Seed))
	W := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			W.Set(i, j, rng.NormFloat64())
		}
	}
	if err := symDecorrelate(W); err != nil {
		return fmt.Errorf("ica fit: %w", err)
	}

	maxIter := ica.MaxIter
	if maxIter <= 0 {
		maxIter = 200
	}
	tol := ica.Tol
	if tol <= 0.0 {
		tol = 1e-4
	}

	var WX, G mat.Dense
	W1 := mat.NewDense(k, k, nil)
	for iter := 0; iter < maxIter; iter++ {
		WX.Mul(W, X1) // k x n

		G.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, &WX)

		// E[g(wx) x^T]
		W1.Mul(&G, X1.T())
		W1.Scale(1.0/float64(n), W1)

		// - E[g'(wx)] w, row by row
		for i := 0; i < k; i++ {
			gprime := 0.0
			for t := 0; t < n; t++ {
				th := G.At(i, t)
				gprime += 1.0 - th*th
			}
			gprime /= float64(n)
			for j := 0; j < k; j++ {
				W1.Set(i, j, W1.At(i, j)-gprime*W.At(i, j))
			}
		}

		if err := symDecorrelate(W1); err != nil {
			return fmt.Errorf("ica fit: %w", err)
		}

		// convergence: rotation between successive unmixing estimates
		var prod mat.Dense
		prod.Mul(W1, W.T())
		lim := 0.0
		for i := 0; i < k; i++ {
			dev := math.Abs(math.Abs(prod.At(i, i)) - 1.0)
			if dev > lim {
				lim = dev
			}
		}

		W.Copy(W1)
		if lim < tol {
			break
		}
	}

	// unmixing = W K with K = sqrt(n) diag(1/s) V[:, :k]^T
	K := mat.NewDense(k, d, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < d; j++ {
			K.Set(i, j, rootN/s[i]*V.At(j, i))
		}
	}
	ica.unmixing = mat.NewDense(k, d, nil)
	ica.unmixing.Mul(W, K)

	// mixing = pinv(unmixing) = V[:, :k] diag(s/sqrt(n)) W^T
	scaled := mat.NewDense(d, k, nil)
	for j := 0; j < d; j++ {
		for i := 0; i < k; i++ {
			scaled.Set(j, i, V.At(j, i)*s[i]/rootN)
		}
	}
	ica.mixing = mat.NewDense(d, k, nil)
	ica.mixing.Mul(scaled, W.T())

	ica.fitted = true
	return nil
}

// symDecorrelate replaces W with (W W^T)^(-1/2) W.
func symDecorrelate(W *mat.Dense) error {
	k, _ := W.Dims()

	var WWt mat.Dense
	WWt.Mul(W, W.T())

	sym := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			sym.SetSym(i, j, WWt.At(i, j))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return fmt.Errorf("symmetric decorrelation failed")
	}
	vals := eig.Values(nil)
	var Q mat.Dense
	eig.VectorsTo(&Q)

	inv := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			sum := 0.0
			for m := 0; m < k; m++ {
				if vals[m] <= 0.0 {
					return fmt.Errorf("symmetric decorrelation: non-positive eigenvalue")
				}
				sum += Q.At(i, m) * Q.At(j, m) / math.Sqrt(vals[m])
			}
			inv.Set(i, j, sum)
		}
	}

	var out mat.Dense
	out.Mul(inv, W)
	W.Copy(&out)
	return nil
}

// Transform recovers the source signals of X, shaped
// (samples x components).
func (ica *ICA) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !ica.fitted {
		return nil, fmt.Errorf("ica transform: model not fitted")
	}
	n, d := X.Dims()
	if d != len(ica.mean) {
		return nil, fmt.Errorf("ica transform: %d features, model has %d", d, len(ica.mean))
	}

	centered := mat.NewDense(n, d, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - ica.mean[j] }, X)

	var S mat.Dense
	S.Mul(centered, ica.unmixing.T())
	return &S, nil
}

// InverseTransform maps sources back through the mixing matrix and re-adds
// the feature means.
func (ica *ICA) InverseTransform(S mat.Matrix) (*mat.Dense, error) {
	if !ica.fitted {
		return nil, fmt.Errorf("ica inverse transform: model not fitted")
	}

	var X mat.Dense
	X.Mul(S, ica.mixing.T())
	X.Apply(func(_, j int, v float64) float64 { return v + ica.mean[j] }, &X)
	return &X, nil
}

// Components returns the transposed unmixing loadings, one component per
// column (features x components).
func (ica *ICA) Components() *mat.Dense {
	k, d := ica.unmixing.Dims()
	out := mat.NewDense(d, k, nil)
	out.Copy(ica.unmixing.T())
	return out
}
