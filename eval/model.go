package eval

import (
	"github.com/gorgonia/belief"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ModelError is the mean unit error of the target layer.
func ModelError(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, n Norm) (float64, error) {
	v, err := Error(m, mp, in, target, nil, n)
	if err != nil {
		return 0, err
	}
	return meanFinite(v, "error")
}

// ModelAccuracy is the mean unit accuracy of the target layer, over the units where it is defined.
func ModelAccuracy(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, n Norm) (float64, error) {
	v, err := Accuracy(m, mp, in, target, nil, n)
	if err != nil {
		return 0, err
	}
	return meanFinite(v, "accuracy")
}

// ModelPrecision is the mean unit precision of the target layer, over the units where it is defined.
func ModelPrecision(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, dev Norm) (float64, error) {
	v, err := Precision(m, mp, in, target, nil, dev)
	if err != nil {
		return 0, err
	}
	return meanFinite(v, "precision")
}

// LinkEnergy returns the energy of the links between the last two layers of mp, shaped like their weights.
//
// The source side is the expectation of in along mp without its last layer, the target side the values
// of the last layer given that.
func LinkEnergy(m *belief.Model, mp belief.Mapping, in mat.Matrix) (*mat.Dense, error) {
	if len(mp) < 2 {
		return nil, belief.Configurationf("link energy needs a mapping of at least two layers, got %v", mp)
	}
	last := len(mp) - 1
	dIn, err := m.Expect(mp[:last], in, nil)
	if err != nil {
		return nil, err
	}
	dOut, err := m.Values(mp[last-1:], dIn, nil, false)
	if err != nil {
		return nil, err
	}
	l, ok := m.Links(mp[last-1], mp[last])
	if !ok {
		return nil, belief.Configurationf("no links between %q and %q", mp[last-1], mp[last])
	}
	src, _ := m.Units(l.Source())
	if l.Source() != mp[last-1] {
		dIn, dOut = dOut, dIn
	}
	return l.Energy(dIn, dOut, src)
}

// ModelEnergy sums the unit energies of every layer of mp and the link energies of every link on it.
// Each layer is evaluated at the expectation of in along mp up to that layer.
func ModelEnergy(m *belief.Model, mp belief.Mapping, in mat.Matrix) (float64, error) {
	var total float64
	for k := range mp {
		prefix := mp[:k+1]
		data, err := m.Expect(prefix, in, nil)
		if err != nil {
			return 0, err
		}
		u, _ := m.Units(mp[k])
		energy, err := u.Energy(data)
		if err != nil {
			return 0, errors.WithMessagef(err, "energy of %q", mp[k])
		}
		total += floats.Sum(energy)
		if k == 0 {
			continue
		}
		le, err := LinkEnergy(m, prefix, in)
		if err != nil {
			return 0, err
		}
		total += mat.Sum(le)
	}
	return total, nil
}
