package eval

import (
	"math"

	"github.com/gorgonia/belief"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Norm reduces every column of a matrix to one number.
type Norm string

// mean norms
const (
	ME   Norm = "ME" // mean absolute value
	MSE  Norm = "MSE"
	RMSE Norm = "RMSE"
	SSE  Norm = "SSE"
)

// deviation norms
const (
	SD  Norm = "SD"
	VAR Norm = "VAR"
)

// ApplyNorm applies n to every column of x.
func ApplyNorm(x mat.Matrix, n Norm) ([]float64, error) {
	r, c := x.Dims()
	retVal := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		v, err := norm(col, n)
		if err != nil {
			return nil, err
		}
		retVal[j] = v
	}
	return retVal, nil
}

func norm(col []float64, n Norm) (float64, error) {
	var sum float64
	switch n {
	case ME:
		for _, v := range col {
			sum += math.Abs(v)
		}
		return sum / float64(len(col)), nil
	case MSE, RMSE, SSE:
		for _, v := range col {
			sum += v * v
		}
		switch n {
		case MSE:
			return sum / float64(len(col)), nil
		case RMSE:
			return math.Sqrt(sum / float64(len(col))), nil
		}
		return sum, nil
	case SD, VAR:
		_, variance := stat.PopMeanVariance(col, nil)
		if n == SD {
			return math.Sqrt(variance), nil
		}
		return variance, nil
	}
	return 0, belief.Configurationf("unknown norm %q", n)
}

// IsDeviation reports whether n measures spread rather than magnitude.
func IsDeviation(n Norm) bool { return n == SD || n == VAR }
