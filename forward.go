package belief

import (
	"gonum.org/v1/gonum/mat"
)

// step is one layer to layer propagation of a forward pass.
type step struct {
	source, target Units
	w              mat.Matrix // oriented source→target
	in             *mat.Dense // output of the source layer, before any scaling
	pre            *mat.Dense
	out            *mat.Dense // expectation of the target layer
}

// transform turns the expectation of a layer into what is fed to the next layer.
type transform func(u Units, expect *mat.Dense) *mat.Dense

func keepExpect(_ Units, e *mat.Dense) *mat.Dense { return e }

// prepare checks mp and data and returns a copy of data with the block columns set to their mean.
func (m *Model) prepare(mp Mapping, data mat.Matrix, block []int) (*mat.Dense, []Units, error) {
	if err := m.checkMapping(mp); err != nil {
		return nil, nil, err
	}
	if data == nil {
		return nil, nil, Dimensionf("mapping %v: no data", mp)
	}
	units := m.mappingUnits(mp)
	r, _ := data.Dims()
	if r == 0 {
		return nil, nil, Dimensionf("mapping %v: data has no rows", mp)
	}
	if err := checkCols(data, units[0].Len(), "input of "+units[0].Name()); err != nil {
		return nil, nil, err
	}
	x := mat.DenseCopyOf(data)
	if len(block) == 0 {
		return x, units, nil
	}
	means := ColumnMeans(x)
	for _, j := range block {
		if j < 0 || j >= units[0].Len() {
			return nil, nil, Dimensionf("mapping %v: cannot block unit %d of %d", mp, j, units[0].Len())
		}
		for i := 0; i < r; i++ {
			x.Set(i, j, means[j])
		}
	}
	return x, units, nil
}

// forward propagates x along mp. Between steps the expectation is passed through tf.
func (m *Model) forward(mp Mapping, units []Units, x *mat.Dense, tf transform) ([]step, error) {
	steps := make([]step, 0, len(mp)-1)
	prev := x
	for i := 1; i < len(mp); i++ {
		src, tgt := units[i-1], units[i]
		w, err := m.oriented(src.Name(), tgt.Name())
		if err != nil {
			return nil, err
		}
		s := step{source: src, target: tgt, w: w, in: prev}
		scaled, err := scaleInput(prev, src, tgt)
		if err != nil {
			return nil, err
		}
		if s.pre, err = tgt.Linear(scaled, w); err != nil {
			return nil, err
		}
		s.out = tgt.Activate(s.pre)
		steps = append(steps, s)
		if i < len(mp)-1 {
			prev = tf(tgt, s.out)
		}
	}
	return steps, nil
}

// Expect propagates expectations of data from the first to the last layer of mp. The block columns of
// data are replaced by their mean first. A single layer mapping returns the (blocked) data.
func (m *Model) Expect(mp Mapping, data mat.Matrix, block []int) (*mat.Dense, error) {
	x, units, err := m.prepare(mp, data, block)
	if err != nil {
		return nil, err
	}
	if len(mp) == 1 {
		return x, nil
	}
	steps, err := m.forward(mp, units, x, keepExpect)
	if err != nil {
		return nil, err
	}
	return steps[len(steps)-1].out, nil
}

// Values is like Expect but after every step the expectation is replaced by the most likely values.
// With expectLast the last layer returns expectations.
func (m *Model) Values(mp Mapping, data mat.Matrix, block []int, expectLast bool) (*mat.Dense, error) {
	return m.propagate(mp, data, block, expectLast, func(u Units, e *mat.Dense) *mat.Dense { return u.Values(e) })
}

// Samples is like Values but draws samples from every layer.
func (m *Model) Samples(mp Mapping, data mat.Matrix, block []int, expectLast bool) (*mat.Dense, error) {
	return m.propagate(mp, data, block, expectLast, func(u Units, e *mat.Dense) *mat.Dense { return u.Samples(e, m.rng) })
}

func (m *Model) propagate(mp Mapping, data mat.Matrix, block []int, expectLast bool, tf transform) (*mat.Dense, error) {
	x, units, err := m.prepare(mp, data, block)
	if err != nil {
		return nil, err
	}
	if len(mp) == 1 {
		if expectLast {
			return x, nil
		}
		return tf(units[0], x), nil
	}
	steps, err := m.forward(mp, units, x, tf)
	if err != nil {
		return nil, err
	}
	last := steps[len(steps)-1]
	if expectLast {
		return last.out, nil
	}
	return tf(last.target, last.out), nil
}
