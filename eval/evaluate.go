package eval

import (
	"sort"

	"github.com/gorgonia/belief"
	"gonum.org/v1/gonum/mat"
)

// Category groups the evaluation functions by what they describe.
type Category string

const (
	ModelCategory    Category = "model"
	UnitsCategory    Category = "units"
	LinksCategory    Category = "links"
	RelationCategory Category = "relation"
)

// Options are the optional arguments of Evaluate. Zero values pick the defaults of each function.
type Options struct {
	Mapping    belief.Mapping // defaults to the whole model
	Block      []int
	Norm       Norm
	ExpectLast bool
	Measure    string // unit measure of knockout
	Induction  InductionOptions
}

// Value is the result of Evaluate. Which field is set depends on the function.
type Value struct {
	Scalar float64
	Units  map[string]float64 // per unit of the target layer
	Matrix *mat.Dense
	Stats  *RelationStats // relations only
}

type evaluator func(m *belief.Model, in, target *mat.Dense, opts Options) (Value, error)

var defaults = map[Category]string{
	ModelCategory:    "accuracy",
	UnitsCategory:    "accuracy",
	LinksCategory:    "energy",
	RelationCategory: "correlation",
}

// inputOnly are the evaluations that don't look at target data.
var inputOnly = map[string]bool{
	"model/energy":              true,
	"units/mean":                true,
	"units/variance":            true,
	"units/energy":              true,
	"units/expect":              true,
	"units/values":              true,
	"units/samples":             true,
	"links/energy":              true,
	"relation/connectionweight": true,
}

var evaluators = map[Category]map[string]evaluator{
	ModelCategory: {
		"error":     modelScalar(ModelError, MSE),
		"accuracy":  modelScalar(ModelAccuracy, MSE),
		"precision": modelScalar(ModelPrecision, SD),
		"energy": func(m *belief.Model, in, _ *mat.Dense, opts Options) (Value, error) {
			e, err := ModelEnergy(m, opts.Mapping, in)
			return Value{Scalar: e}, err
		},
	},
	UnitsCategory: {
		"error":     unitVector(Error, MSE),
		"accuracy":  unitVector(Accuracy, MSE),
		"precision": unitVector(Precision, SD),
		"mean": unitVector(func(m *belief.Model, mp belief.Mapping, in, _ mat.Matrix, block []int, _ Norm) ([]float64, error) {
			return Mean(m, mp, in, block)
		}, ""),
		"variance": unitVector(func(m *belief.Model, mp belief.Mapping, in, _ mat.Matrix, block []int, _ Norm) ([]float64, error) {
			return Variance(m, mp, in, block)
		}, ""),
		"energy": unitVector(func(m *belief.Model, mp belief.Mapping, in, _ mat.Matrix, block []int, _ Norm) ([]float64, error) {
			return UnitEnergy(m, mp, in, block)
		}, ""),
		"expect": func(m *belief.Model, in, _ *mat.Dense, opts Options) (Value, error) {
			out, err := m.Expect(opts.Mapping, in, opts.Block)
			return Value{Matrix: out}, err
		},
		"values": func(m *belief.Model, in, _ *mat.Dense, opts Options) (Value, error) {
			out, err := m.Values(opts.Mapping, in, opts.Block, opts.ExpectLast)
			return Value{Matrix: out}, err
		},
		"samples": func(m *belief.Model, in, _ *mat.Dense, opts Options) (Value, error) {
			out, err := m.Samples(opts.Mapping, in, opts.Block, opts.ExpectLast)
			return Value{Matrix: out}, err
		},
		"residuals": func(m *belief.Model, in, target *mat.Dense, opts Options) (Value, error) {
			out, err := Residuals(m, opts.Mapping, in, target, opts.Block)
			return Value{Matrix: out}, err
		},
	},
	LinksCategory: {
		"energy": func(m *belief.Model, in, _ *mat.Dense, opts Options) (Value, error) {
			out, err := LinkEnergy(m, opts.Mapping, in)
			if err != nil {
				return Value{}, err
			}
			return Value{Scalar: mat.Sum(out), Matrix: out}, nil
		},
	},
	RelationCategory: {
		"correlation": relation(func(_ *belief.Model, in, target *mat.Dense, _ Options) (*mat.Dense, error) {
			return Correlation(in, target)
		}),
		"connectionweight": relation(func(m *belief.Model, _, _ *mat.Dense, opts Options) (*mat.Dense, error) {
			return ConnectionWeight(m, opts.Mapping)
		}),
		"knockout": relation(func(m *belief.Model, in, target *mat.Dense, opts Options) (*mat.Dense, error) {
			measure, err := Measure(m, opts.Mapping, in, target, opts.Measure, opts.Norm)
			if err != nil {
				return nil, err
			}
			return Knockout(m, opts.Mapping, measure)
		}),
		"induction": relation(func(m *belief.Model, in, target *mat.Dense, opts Options) (*mat.Dense, error) {
			iopts := opts.Induction
			if iopts == (InductionOptions{}) {
				iopts = DefaultInductionOptions()
			}
			return Induction(m, opts.Mapping, in, target, iopts)
		}),
		"coinduction": func(m *belief.Model, in, target *mat.Dense, opts Options) (Value, error) {
			r, err := Coinduction(m, opts.Mapping, in, target, opts.Induction)
			if err != nil {
				return Value{}, err
			}
			src, _ := m.Units(opts.Mapping.Source())
			retVal := Value{Matrix: r}
			if st, err := Stats(r, src.Labels(), src.Labels()); err == nil {
				retVal.Stats = &st
			}
			return retVal, nil
		},
	},
}

// Evaluate runs the evaluation function name of category on m. An empty name picks the default of
// the category: accuracy for model and units, energy for links and correlation for relations.
//
// in is the data of the first layer of the mapping, target the data of the last one.
func Evaluate(m *belief.Model, in, target *mat.Dense, category Category, name string, opts Options) (Value, error) {
	funcs, ok := evaluators[category]
	if !ok {
		return Value{}, belief.Configurationf("unknown evaluation category %q", category)
	}
	if name == "" {
		name = defaults[category]
	}
	fn, ok := funcs[name]
	if !ok {
		return Value{}, belief.Configurationf("unknown %s evaluation %q", category, name)
	}
	if in == nil {
		return Value{}, belief.Dimensionf("%s %s: no input data", category, name)
	}
	if target == nil && !inputOnly[string(category)+"/"+name] {
		return Value{}, belief.Dimensionf("%s %s: no target data", category, name)
	}
	if opts.Mapping == nil {
		opts.Mapping = m.FullMapping()
	}
	return fn(m, in, target, opts)
}

// Names lists the evaluation functions of category.
func Names(category Category) []string {
	var retVal []string
	for name := range evaluators[category] {
		retVal = append(retVal, name)
	}
	sort.Strings(retVal)
	return retVal
}

type unitFunc func(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, block []int, n Norm) ([]float64, error)

func unitVector(fn unitFunc, def Norm) evaluator {
	return func(m *belief.Model, in, target *mat.Dense, opts Options) (Value, error) {
		n := opts.Norm
		if n == "" {
			n = def
		}
		var tgt mat.Matrix
		if target != nil {
			tgt = target
		}
		v, err := fn(m, opts.Mapping, in, tgt, opts.Block, n)
		if err != nil {
			return Value{}, err
		}
		u, _ := m.Units(opts.Mapping.Target())
		return Value{Units: byLabel(u.Labels(), v)}, nil
	}
}

func modelScalar(fn func(*belief.Model, belief.Mapping, mat.Matrix, mat.Matrix, Norm) (float64, error), def Norm) evaluator {
	return func(m *belief.Model, in, target *mat.Dense, opts Options) (Value, error) {
		n := opts.Norm
		if n == "" {
			n = def
		}
		v, err := fn(m, opts.Mapping, in, target, n)
		return Value{Scalar: v}, err
	}
}

func relation(fn func(m *belief.Model, in, target *mat.Dense, opts Options) (*mat.Dense, error)) evaluator {
	return func(m *belief.Model, in, target *mat.Dense, opts Options) (Value, error) {
		r, err := fn(m, in, target, opts)
		if err != nil {
			return Value{}, err
		}
		src, _ := m.Units(opts.Mapping.Source())
		tgt, _ := m.Units(opts.Mapping.Target())
		retVal := Value{Matrix: r}
		if st, err := Stats(r, src.Labels(), tgt.Labels()); err == nil {
			retVal.Stats = &st
		}
		return retVal, nil
	}
}
