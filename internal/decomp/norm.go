package decomp

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// NormMethod is the per-timepoint rescaling policy for the masked voxel
// vectors.
type NormMethod int

const (
	NormNone NormMethod = iota
	NormPercent
	NormStddev
	NormZ
	NormP2P
	NormMAD
)

var normNames = map[NormMethod]string{
	NormNone:    "None",
	NormPercent: "percent",
	NormStddev:  "stddev",
	NormZ:       "z",
	NormP2P:     "p2p",
	NormMAD:     "mad",
}

func (m NormMethod) String() string {
	if s, ok := normNames[m]; ok {
		return s
	}
	return fmt.Sprintf("NormMethod(%d)", int(m))
}

// ParseNormMethod rejects unknown method names at configuration time.
func ParseNormMethod(s string) (NormMethod, error) {
	for m, name := range normNames {
		if s == name {
			return m, nil
		}
	}
	return NormNone, &InvalidConfigError{Field: "normalization method", Value: s}
}

// Normalize demeans (when enabled) and rescales every timepoint of procdata
// in place. It returns the per-timepoint means computed before demeaning and
// the normalization factors used, for later denormalization of the
// reconstruction. Non-finite results are replaced with zero.
func Normalize(procdata *mat.Dense, method NormMethod, demean bool) (means, factors []float64, err error) {
	rows, cols := procdata.Dims()

	means = make([]float64, cols)
	col := make([]float64, rows)
	for t := 0; t < cols; t++ {
		mat.Col(col, t, procdata)
		means[t] = stat.Mean(col, nil)
	}

	if demean {
		fmt.Println("demeaning array")
		for i := 0; i < rows; i++ {
			for t := 0; t < cols; t++ {
				procdata.Set(i, t, procdata.At(i, t)-means[t])
			}
		}
	}

	factors = make([]float64, cols)
	for t := 0; t < cols; t++ {
		mat.Col(col, t, procdata)
		switch method {
		case NormNone:
			factors[t] = 1.0
		case NormPercent:
			factors[t] = means[t]
		case NormStddev:
			factors[t] = stat.StdDev(col, nil)
		case NormZ:
			factors[t] = stat.Variance(col, nil)
		case NormP2P:
			lo, hi := col[0], col[0]
			for _, v := range col {
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			factors[t] = hi - lo
		case NormMAD:
			factors[t], err = stats.MedianAbsoluteDeviation(col)
			if err != nil {
				return nil, nil, fmt.Errorf("mad normalization: %w", err)
			}
		default:
			return nil, nil, &InvalidConfigError{Field: "normalization method", Value: method.String()}
		}
	}

	for i := 0; i < rows; i++ {
		for t := 0; t < cols; t++ {
			v := procdata.At(i, t) / factors[t]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0.0
			}
			procdata.Set(i, t, v)
		}
	}

	return means, factors, nil
}
