package belief

import (
	"gonum.org/v1/gonum/mat"
)

// LinkSpec describes the links between two adjacent layers. A nil Adjacency connects every pair of units.
// Adjacency is indexed [source unit][target unit].
type LinkSpec struct {
	Source, Target string
	Adjacency      [][]bool
}

// Links holds the weights between a source and a target layer. Weights are shaped (|source|, |target|).
type Links struct {
	source, target string
	w              *mat.Dense
	adjacency      *mat.Dense // 0 or 1
}

func newLinks(source, target Units, adjacency [][]bool) (*Links, error) {
	r, c := source.Len(), target.Len()
	a := mat.NewDense(r, c, nil)
	switch {
	case adjacency == nil:
		a.Apply(func(_, _ int, _ float64) float64 { return 1 }, a)
	case len(adjacency) != r:
		return nil, Dimensionf("links %s→%s: adjacency has %d rows, expected %d", source.Name(), target.Name(), len(adjacency), r)
	default:
		for i, row := range adjacency {
			if len(row) != c {
				return nil, Dimensionf("links %s→%s: adjacency row %d has %d entries, expected %d", source.Name(), target.Name(), i, len(row), c)
			}
			for j, ok := range row {
				if ok {
					a.Set(i, j, 1)
				}
			}
		}
	}
	return &Links{
		source:    source.Name(),
		target:    target.Name(),
		w:         mat.NewDense(r, c, nil),
		adjacency: a,
	}, nil
}

func (l *Links) Source() string { return l.source }
func (l *Links) Target() string { return l.target }

// Weights returns a copy of the weight matrix.
func (l *Links) Weights() *mat.Dense { return mat.DenseCopyOf(l.w) }

// Adjacent reports whether source unit i is linked to target unit j.
func (l *Links) Adjacent(i, j int) bool { return l.adjacency.At(i, j) != 0 }

// Adjacency returns a copy of the 0/1 adjacency matrix.
func (l *Links) Adjacency() *mat.Dense { return mat.DenseCopyOf(l.adjacency) }

// Effective returns the weights with unlinked entries zeroed.
func (l *Links) Effective() *mat.Dense {
	r, c := l.w.Dims()
	retVal := mat.NewDense(r, c, nil)
	retVal.MulElem(l.w, l.adjacency)
	return retVal
}

func (l *Links) dims() (int, int) { return l.w.Dims() }

// Energy returns -(A ∘ W ∘ (in/var)ᵀ·out) / n, where var is the variance of a Gauss source and 1 otherwise.
// in is the data of the source layer and out the data of the target layer.
func (l *Links) Energy(in, out mat.Matrix, source Units) (*mat.Dense, error) {
	n, _ := in.Dims()
	if on, _ := out.Dims(); on != n {
		return nil, Dimensionf("links %s→%s: %d source rows and %d target rows", l.source, l.target, n, on)
	}
	var m maebe
	scaled := m.divCols(in, variance(source))
	prod := m.mul(scaled.T(), out)
	retVal := m.hadamard(l.w, prod)
	retVal = m.hadamard(l.adjacency, retVal)
	if m.err != nil {
		return nil, m.err
	}
	retVal.Scale(-1/float64(n), retVal)
	return retVal, nil
}

// GradientFromDelta returns -sᵀ·δ / n, the descent direction of the weights for the
// source activations s and target deltas δ.
func (l *Links) GradientFromDelta(s, delta mat.Matrix) (*mat.Dense, error) {
	n, _ := s.Dims()
	if dn, _ := delta.Dims(); dn != n {
		return nil, Dimensionf("links %s→%s: %d activation rows and %d delta rows", l.source, l.target, n, dn)
	}
	var m maebe
	retVal := m.mul(s.T(), delta)
	if m.err != nil {
		return nil, m.err
	}
	retVal.Scale(-1/float64(n), retVal)
	return retVal, nil
}

func (l *Links) clone() *Links {
	return &Links{
		source:    l.source,
		target:    l.target,
		w:         mat.DenseCopyOf(l.w),
		adjacency: mat.DenseCopyOf(l.adjacency),
	}
}
