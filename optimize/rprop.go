package optimize

import (
	"github.com/gorgonia/belief"
)

// RPropState is the per-entry state of RPROP: the previous gradient and the previous update magnitude.
// Both are laid out like belief.Gradient.Vectors of a gradient along Mapping.
type RPropState struct {
	Mapping  belief.Mapping
	Gradient [][]float64
	Rate     [][]float64
}

// newRPropState starts with the first gradient as the previous one and every magnitude at initial.
func newRPropState(g *belief.Gradient, initial float64) *RPropState {
	vs := g.Vectors()
	retVal := &RPropState{
		Mapping:  append(belief.Mapping(nil), g.Mapping...),
		Gradient: make([][]float64, len(vs)),
		Rate:     make([][]float64, len(vs)),
	}
	for k, v := range vs {
		retVal.Gradient[k] = append([]float64(nil), v...)
		retVal.Rate[k] = make([]float64, len(v))
		for i := range retVal.Rate[k] {
			retVal.Rate[k][i] = initial
		}
	}
	return retVal
}

// fits reports whether s was kept along the mapping of g and is laid out like it.
func (s *RPropState) fits(g *belief.Gradient) bool {
	if !s.Mapping.Equal(g.Mapping) {
		return false
	}
	vs := g.Vectors()
	if len(vs) != len(s.Gradient) || len(vs) != len(s.Rate) {
		return false
	}
	for k, v := range vs {
		if len(v) != len(s.Gradient[k]) || len(v) != len(s.Rate[k]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of s.
func (s *RPropState) Clone() *RPropState {
	retVal := &RPropState{
		Mapping:  append(belief.Mapping(nil), s.Mapping...),
		Gradient: make([][]float64, len(s.Gradient)),
		Rate:     make([][]float64, len(s.Rate)),
	}
	for k := range s.Gradient {
		retVal.Gradient[k] = append([]float64(nil), s.Gradient[k]...)
	}
	for k := range s.Rate {
		retVal.Rate[k] = append([]float64(nil), s.Rate[k]...)
	}
	return retVal
}

// update adapts the magnitudes to g and returns magnitude·sign(g) for every entry.
// The state then holds g as the previous gradient.
func (s *RPropState) update(g *belief.Gradient, conf Config) *belief.Gradient {
	retVal := g.Clone()
	for k, v := range retVal.Vectors() {
		adapt(s.Gradient[k], s.Rate[k], v, conf.Factors, conf.MinRate, conf.MaxRate)
		copy(s.Gradient[k], v)
		for i := range v {
			v[i] = s.Rate[k][i] * sign(v[i])
		}
	}
	return retVal
}

// adapt scales every rate by the factor chosen by the sign agreement of prev and grad, clamped to [min, max].
func adapt(prev, rate, grad []float64, f Factors, min, max float64) {
	for i, g := range grad {
		factor := f.Keep
		switch sign(prev[i]) * sign(g) {
		case -1:
			factor = f.Decrease
		case 1:
			factor = f.Increase
		}
		r := rate[i] * factor
		switch {
		case r < min:
			r = min
		case r > max:
			r = max
		}
		rate[i] = r
	}
}

func sign(a float64) float64 {
	switch {
	case a > 0:
		return 1
	case a < 0:
		return -1
	}
	return 0
}
