package eval

import (
	"math"

	"github.com/gorgonia/belief"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// Residuals returns target - Expect(mp, in, block).
func Residuals(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, block []int) (*mat.Dense, error) {
	if target == nil {
		return nil, belief.Dimensionf("residuals along %v: no target data", mp)
	}
	out, err := m.Expect(mp, in, block)
	if err != nil {
		return nil, err
	}
	or, oc := out.Dims()
	tr, tc := target.Dims()
	if or != tr || oc != tc {
		return nil, belief.Dimensionf("residuals: expectation is (%d, %d), target is (%d, %d)", or, oc, tr, tc)
	}
	retVal := mat.NewDense(tr, tc, nil)
	retVal.Sub(target, out)
	return retVal, nil
}

// Error returns the norm of the residuals of every unit of the target layer.
func Error(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, block []int, n Norm) ([]float64, error) {
	res, err := Residuals(m, mp, in, target, block)
	if err != nil {
		return nil, err
	}
	return ApplyNorm(res, n)
}

// Accuracy returns 1 - n(residuals)/n(target) per unit. Units whose target norm is zero get NaN.
func Accuracy(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, block []int, n Norm) ([]float64, error) {
	res, err := Residuals(m, mp, in, target, block)
	if err != nil {
		return nil, err
	}
	return relative(res, target, n, "accuracy")
}

// Precision returns 1 - dev(residuals)/dev(target) per unit, with a deviation norm dev.
// Units with a constant target get NaN.
func Precision(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, block []int, dev Norm) ([]float64, error) {
	if !IsDeviation(dev) {
		return nil, belief.Configurationf("precision needs a deviation norm, got %q", dev)
	}
	res, err := Residuals(m, mp, in, target, block)
	if err != nil {
		return nil, err
	}
	return relative(res, target, dev, "precision")
}

func relative(res, target mat.Matrix, n Norm, what string) ([]float64, error) {
	num, err := ApplyNorm(res, n)
	if err != nil {
		return nil, err
	}
	den, err := ApplyNorm(target, n)
	if err != nil {
		return nil, err
	}
	retVal := make([]float64, len(num))
	for i := range num {
		if den[i] == 0 {
			klog.Warningf("%s of unit %d is undefined: target %s is zero", what, i, n)
			retVal[i] = math.NaN()
			continue
		}
		retVal[i] = 1 - num[i]/den[i]
	}
	return retVal, nil
}

// Mean returns the mean expectation of every unit of the target layer.
func Mean(m *belief.Model, mp belief.Mapping, in mat.Matrix, block []int) ([]float64, error) {
	out, err := m.Expect(mp, in, block)
	if err != nil {
		return nil, err
	}
	return belief.ColumnMeans(out), nil
}

// Variance returns the population variance of the expectation of every unit of the target layer.
func Variance(m *belief.Model, mp belief.Mapping, in mat.Matrix, block []int) ([]float64, error) {
	out, err := m.Expect(mp, in, block)
	if err != nil {
		return nil, err
	}
	return ApplyNorm(out, VAR)
}

// UnitEnergy returns the energy of every unit of the target layer, evaluated at the expectation of in.
func UnitEnergy(m *belief.Model, mp belief.Mapping, in mat.Matrix, block []int) ([]float64, error) {
	out, err := m.Expect(mp, in, block)
	if err != nil {
		return nil, err
	}
	u, _ := m.Units(mp.Target())
	energy, err := u.Energy(out)
	return energy, errors.WithMessagef(err, "energy of %q", mp.Target())
}

// meanFinite is the mean over the finite entries of v.
func meanFinite(v []float64, what string) (float64, error) {
	var sum float64
	var n int
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN(), belief.Numericf("%s is undefined for every unit", what)
	}
	return sum / float64(n), nil
}

func byLabel(labels []string, v []float64) map[string]float64 {
	retVal := make(map[string]float64, len(labels))
	for i, l := range labels {
		retVal[l] = v[i]
	}
	return retVal
}
