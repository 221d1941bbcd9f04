package belief

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// sigmoid is the logistic function, split by sign so that neither branch overflows.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// ColumnMeans returns the mean of every column of a.
func ColumnMeans(a mat.Matrix) []float64 {
	r, c := a.Dims()
	retVal := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, a)
		retVal[j] = stat.Mean(col, nil)
	}
	return retVal
}

// ColumnStdDevs returns the population standard deviation of every column of a.
func ColumnStdDevs(a mat.Matrix) []float64 {
	r, c := a.Dims()
	retVal := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, a)
		_, v := stat.PopMeanVariance(col, nil)
		retVal[j] = math.Sqrt(v)
	}
	return retVal
}

// addRow adds v to every row of a in place.
func addRow(a *mat.Dense, v []float64) {
	r, _ := a.Dims()
	for i := 0; i < r; i++ {
		row := a.RawRowView(i)
		for j := range row {
			row[j] += v[j]
		}
	}
}

// IsFinite reports whether every entry of a is neither NaN nor infinite.
func IsFinite(a mat.Matrix) bool {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func finiteSlice(a []float64) bool {
	for _, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func cloneFloats(a []float64) []float64 {
	if a == nil {
		return nil
	}
	retVal := make([]float64, len(a))
	copy(retVal, a)
	return retVal
}

func expSlice(a []float64) []float64 {
	retVal := make([]float64, len(a))
	for i, v := range a {
		retVal[i] = math.Exp(v)
	}
	return retVal
}

func checkCols(a mat.Matrix, want int, what string) error {
	r, c := a.Dims()
	if c != want {
		return Dimensionf("%s: expected %d columns, got a (%d, %d) matrix", what, want, r, c)
	}
	return nil
}
