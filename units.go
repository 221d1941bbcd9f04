package belief

import (
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Distribution names the probability distribution of a unit layer.
type Distribution string

const (
	BernoulliDist Distribution = "bernoulli"
	GaussDist     Distribution = "gauss"
)

// ParseDistribution parses a distribution tag. "sigmoid" is accepted as an alias of "bernoulli".
func ParseDistribution(s string) (Distribution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bernoulli", "sigmoid":
		return BernoulliDist, nil
	case "gauss", "gaussian":
		return GaussDist, nil
	}
	return "", Configurationf("unknown distribution %q", s)
}

// Params are the per-unit parameters of a layer. LogVar is nil for layers without a variance.
type Params struct {
	Bias   []float64
	LogVar []float64
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	return Params{Bias: cloneFloats(p.Bias), LogVar: cloneFloats(p.LogVar)}
}

// Units is a layer of units sharing one distribution.
//
// Expect is Activate(Linear(...)); Linear and Derivative are exposed so that the
// backward pass can reuse the pre-activations of a forward pass.
type Units interface {
	Name() string
	Labels() []string
	Len() int
	Visible() bool
	Distribution() Distribution
	Params() Params

	// Initialize sets the parameters from data (one column per unit) or to neutral defaults when data is nil.
	Initialize(data *mat.Dense) error

	// Linear is the pre-activation bias + input·w, where input has already been scaled for this layer.
	Linear(input, w mat.Matrix) (*mat.Dense, error)
	Activate(pre *mat.Dense) *mat.Dense
	Derivative(pre *mat.Dense) *mat.Dense
	Expect(input mat.Matrix, source Units, w mat.Matrix) (*mat.Dense, error)
	Values(expect mat.Matrix) *mat.Dense
	Samples(expect mat.Matrix, src rand.Source) *mat.Dense

	// Energy returns the per-unit energy of data.
	Energy(data mat.Matrix) ([]float64, error)

	// Update adds delta to the parameters.
	Update(delta Params) error

	clone() Units
	restore(p Params) error
}

// UnitSpec describes a layer of a topology.
type UnitSpec struct {
	Name    string
	Class   string // distribution tag
	Visible bool
	Labels  []string
}

func newUnits(spec UnitSpec) (Units, error) {
	if spec.Name == "" {
		return nil, Configurationf("unit layer without a name")
	}
	if len(spec.Labels) == 0 {
		return nil, Configurationf("unit layer %q has no units", spec.Name)
	}
	seen := make(map[string]struct{}, len(spec.Labels))
	for _, l := range spec.Labels {
		if _, ok := seen[l]; ok {
			return nil, Configurationf("unit layer %q: duplicate label %q", spec.Name, l)
		}
		seen[l] = struct{}{}
	}
	dist, err := ParseDistribution(spec.Class)
	if err != nil {
		return nil, err
	}
	l := layer{
		name:    spec.Name,
		labels:  append([]string(nil), spec.Labels...),
		visible: spec.Visible,
		bias:    make([]float64, len(spec.Labels)),
	}
	switch dist {
	case GaussDist:
		return &Gauss{layer: l, logVar: make([]float64, len(spec.Labels))}, nil
	default:
		return &Bernoulli{layer: l}, nil
	}
}

// layer holds what both distributions share.
type layer struct {
	name    string
	labels  []string
	visible bool
	bias    []float64
}

func (l *layer) Name() string     { return l.name }
func (l *layer) Labels() []string { return append([]string(nil), l.labels...) }
func (l *layer) Len() int         { return len(l.labels) }
func (l *layer) Visible() bool    { return l.visible }

func (l *layer) linear(input, w mat.Matrix) (*mat.Dense, error) {
	var m maebe
	retVal := m.mul(input, w)
	if m.err != nil {
		return nil, m.err
	}
	if err := checkCols(retVal, len(l.bias), l.name); err != nil {
		return nil, err
	}
	addRow(retVal, l.bias)
	return retVal, nil
}

func (l *layer) copyLayer() layer {
	return layer{
		name:    l.name,
		labels:  append([]string(nil), l.labels...),
		visible: l.visible,
		bias:    cloneFloats(l.bias),
	}
}

// inputScale returns the per-unit divisor applied to the output of source before it is
// fed into target, or nil. Bernoulli units read a Gauss layer in units of its variance.
func inputScale(source, target Units) []float64 {
	if target.Distribution() != BernoulliDist {
		return nil
	}
	return variance(source)
}

// variance returns exp(logvar) of a Gauss layer, or nil.
func variance(u Units) []float64 {
	if g, ok := u.(*Gauss); ok {
		return expSlice(g.logVar)
	}
	return nil
}

func scaleInput(input mat.Matrix, source, target Units) (*mat.Dense, error) {
	if source == nil {
		return mat.DenseCopyOf(input), nil
	}
	var m maebe
	retVal := m.divCols(input, inputScale(source, target))
	return retVal, m.err
}
