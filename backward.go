package belief

import (
	"gonum.org/v1/gonum/mat"
)

// Gradient is the descent direction of every parameter along a mapping, the negative gradient
// of the loss. Applying it, scaled by a positive rate, lowers the loss.
//
// Units[i] belongs to layer Mapping[i+1]. Links[i] is shaped (|Mapping[i]|, |Mapping[i+1]|),
// i.e. oriented along the mapping, not along the stored links.
type Gradient struct {
	Mapping Mapping
	Units   []Params
	Links   []*mat.Dense

	// Output is the expectation of the last layer the gradient was computed from.
	Output *mat.Dense
}

// Gradient runs a forward pass of in along mp, backpropagates the deltas out-target and returns the
// gradient of every bias and weight on the way. Log variances get a zero gradient.
//
// The deltas are those of the cross entropy for Bernoulli outputs and of the squared error for
// Gauss outputs, averaged over the samples. They are backpropagated through the weights and local
// derivatives only, and weight gradients use the unscaled output of the source layer. Where a Gauss
// layer feeds a Bernoulli layer, the input scaling by its variance is therefore left out of the
// gradient.
func (m *Model) Gradient(mp Mapping, in, target mat.Matrix) (*Gradient, error) {
	if len(mp) < 2 {
		return nil, Configurationf("gradient needs a mapping of at least two layers, got %v", mp)
	}
	x, units, err := m.prepare(mp, in, nil)
	if err != nil {
		return nil, err
	}
	last := units[len(units)-1]
	if err := checkCols(target, last.Len(), "target of "+last.Name()); err != nil {
		return nil, err
	}
	if tr, _ := target.Dims(); tr != x.RawMatrix().Rows {
		return nil, Dimensionf("mapping %v: %d input rows and %d target rows", mp, x.RawMatrix().Rows, tr)
	}
	steps, err := m.forward(mp, units, x, keepExpect)
	if err != nil {
		return nil, err
	}
	out := steps[len(steps)-1].out
	if !IsFinite(out) {
		return nil, Numericf("mapping %v: non finite expectation", mp)
	}

	var mb maebe
	deltas := make([]*mat.Dense, len(steps))
	deltas[len(steps)-1] = mb.sub(out, target)
	for k := len(steps) - 2; k >= 0; k-- {
		next := steps[k+1]
		back := mb.mul(deltas[k+1], next.w.T())
		deltas[k] = mb.hadamard(back, steps[k].target.Derivative(steps[k].pre))
	}
	if mb.err != nil {
		return nil, mb.err
	}

	retVal := &Gradient{
		Mapping: append(Mapping(nil), mp...),
		Units:   make([]Params, len(steps)),
		Links:   make([]*mat.Dense, len(steps)),
		Output:  out,
	}
	for i, s := range steps {
		bias := ColumnMeans(deltas[i])
		for j := range bias {
			bias[j] = -bias[j]
		}
		p := Params{Bias: bias}
		if s.target.Distribution() == GaussDist {
			p.LogVar = make([]float64, len(bias))
		}
		retVal.Units[i] = p

		l, _, _ := m.link(s.source.Name(), s.target.Name())
		if retVal.Links[i], err = l.GradientFromDelta(s.in, deltas[i]); err != nil {
			return nil, err
		}
	}
	if !retVal.IsFinite() {
		return nil, Numericf("mapping %v: non finite gradient", mp)
	}
	return retVal, nil
}

// Vectors returns the backing slices of every parameter of g, in a fixed order.
// Writing into them modifies g.
func (g *Gradient) Vectors() [][]float64 {
	var retVal [][]float64
	for i := range g.Units {
		retVal = append(retVal, g.Units[i].Bias)
		if g.Units[i].LogVar != nil {
			retVal = append(retVal, g.Units[i].LogVar)
		}
		retVal = append(retVal, g.Links[i].RawMatrix().Data)
	}
	return retVal
}

// IsFinite reports whether every entry of g is finite.
func (g *Gradient) IsFinite() bool {
	for _, v := range g.Vectors() {
		if !finiteSlice(v) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of g.
func (g *Gradient) Clone() *Gradient {
	retVal := &Gradient{
		Mapping: append(Mapping(nil), g.Mapping...),
		Units:   make([]Params, len(g.Units)),
		Links:   make([]*mat.Dense, len(g.Links)),
	}
	for i := range g.Units {
		retVal.Units[i] = g.Units[i].Clone()
		retVal.Links[i] = mat.DenseCopyOf(g.Links[i])
	}
	if g.Output != nil {
		retVal.Output = mat.DenseCopyOf(g.Output)
	}
	return retVal
}

// Scale returns a copy of g with every entry multiplied by f.
func (g *Gradient) Scale(f float64) *Gradient {
	retVal := g.Clone()
	for _, v := range retVal.Vectors() {
		for i := range v {
			v[i] *= f
		}
	}
	return retVal
}

// Apply adds update to the parameters of m. Every part of update is checked before anything is changed.
func (m *Model) Apply(update *Gradient) error {
	if update == nil {
		return nil
	}
	mp := update.Mapping
	if err := m.checkMapping(mp); err != nil {
		return err
	}
	if len(update.Units) != len(mp)-1 || len(update.Links) != len(mp)-1 {
		return Dimensionf("update along %v has %d unit and %d link entries", mp, len(update.Units), len(update.Links))
	}
	if !update.IsFinite() {
		return Numericf("update along %v is not finite", mp)
	}
	units := m.mappingUnits(mp)
	for i := 1; i < len(mp); i++ {
		u := units[i]
		p := update.Units[i-1]
		if len(p.Bias) != u.Len() {
			return Dimensionf("%s: bias update of length %d, expected %d", u.Name(), len(p.Bias), u.Len())
		}
		if p.LogVar != nil && (u.Distribution() != GaussDist || len(p.LogVar) != u.Len()) {
			return Dimensionf("%s: unexpected log variance update of length %d", u.Name(), len(p.LogVar))
		}
		r, c := update.Links[i-1].Dims()
		if r != units[i-1].Len() || c != u.Len() {
			return Dimensionf("links %s→%s: update shaped (%d, %d), expected (%d, %d)", mp[i-1], mp[i], r, c, units[i-1].Len(), u.Len())
		}
	}

	for i := 1; i < len(mp); i++ {
		if err := units[i].Update(update.Units[i-1]); err != nil {
			return err // unreachable after the checks above
		}
		l, reversed, _ := m.link(mp[i-1], mp[i])
		var d mat.Matrix = update.Links[i-1]
		if reversed {
			d = d.T()
		}
		l.w.Add(l.w, d)
		if m.Adjacency {
			l.w.MulElem(l.w, l.adjacency)
		}
	}
	return nil
}
