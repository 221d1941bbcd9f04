package eval

import (
	"math"
	"runtime"
	"sort"
	"strings"

	"github.com/gorgonia/belief"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Correlation returns the Pearson correlation of every column of in with every column of target,
// shaped (source units, target units). Constant columns give NaN.
func Correlation(in, target mat.Matrix) (*mat.Dense, error) {
	ir, ic := in.Dims()
	tr, tc := target.Dims()
	if ir != tr {
		return nil, belief.Dimensionf("correlation of %d source rows with %d target rows", ir, tr)
	}
	retVal := mat.NewDense(ic, tc, nil)
	x := make([]float64, ir)
	y := make([]float64, tr)
	for i := 0; i < ic; i++ {
		mat.Col(x, i, in)
		for j := 0; j < tc; j++ {
			mat.Col(y, j, target)
			retVal.Set(i, j, stat.Correlation(x, y, nil))
		}
	}
	return retVal, nil
}

// ConnectionWeight returns the product of the weight matrices along mp, shaped (source units, target units).
func ConnectionWeight(m *belief.Model, mp belief.Mapping) (*mat.Dense, error) {
	if len(mp) < 2 {
		return nil, belief.Configurationf("connection weight needs a mapping of at least two layers, got %v", mp)
	}
	var retVal *mat.Dense
	for i := 1; i < len(mp); i++ {
		l, ok := m.Links(mp[i-1], mp[i])
		if !ok {
			return nil, belief.Configurationf("no links between %q and %q", mp[i-1], mp[i])
		}
		var w mat.Matrix = l.Effective()
		if l.Source() != mp[i-1] {
			w = w.T()
		}
		if retVal == nil {
			retVal = mat.DenseCopyOf(w)
			continue
		}
		r, _ := retVal.Dims()
		_, c := w.Dims()
		prod := mat.NewDense(r, c, nil)
		prod.Mul(retVal, w)
		retVal = prod
	}
	return retVal, nil
}

// UnitMeasure evaluates a per-unit metric of the target layer with the given source units blocked.
type UnitMeasure func(block []int) ([]float64, error)

// Measure returns the unit measure of the given name: error, accuracy or precision.
// Only measures based on expectations are allowed, so that they can be evaluated concurrently.
func Measure(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, name string, n Norm) (UnitMeasure, error) {
	switch name {
	case "", "error":
		if n == "" {
			n = MSE
		}
		return func(block []int) ([]float64, error) { return Error(m, mp, in, target, block, n) }, nil
	case "accuracy":
		if n == "" {
			n = MSE
		}
		return func(block []int) ([]float64, error) { return Accuracy(m, mp, in, target, block, n) }, nil
	case "precision":
		if n == "" {
			n = SD
		}
		return func(block []int) ([]float64, error) { return Precision(m, mp, in, target, block, n) }, nil
	}
	return nil, belief.Configurationf("unknown knockout measure %q", name)
}

// Knockout returns, for every source unit i and target unit j, how much the measure of j changes
// when i is replaced by its mean. Source units are evaluated concurrently.
func Knockout(m *belief.Model, mp belief.Mapping, measure UnitMeasure) (*mat.Dense, error) {
	src, ok := m.Units(mp.Source())
	if !ok {
		return nil, belief.Configurationf("unknown layer %q", mp.Source())
	}
	base, err := measure(nil)
	if err != nil {
		return nil, err
	}
	retVal := mat.NewDense(src.Len(), len(base), nil)
	p := pool.New().WithErrors().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i := 0; i < src.Len(); i++ {
		i := i
		p.Go(func() error {
			knocked, err := measure([]int{i})
			if err != nil {
				return err
			}
			row := retVal.RawRowView(i)
			for j := range row {
				row[j] = knocked[j] - base[j]
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return retVal, nil
}

// InductionOptions configure Induction.
type InductionOptions struct {
	Points   int     // representative values per source unit
	Amplify  float64 // multiplier of the representative values
	Gauge    float64 // fraction of the strongest induced deviations that are averaged
	Contrast float64 // intensification factor
}

func DefaultInductionOptions() InductionOptions {
	return InductionOptions{Points: 10, Amplify: 1, Gauge: 0.25, Contrast: 20}
}

func (opts InductionOptions) IsValid() bool {
	return opts.Points >= 1 && opts.Gauge > 0 && opts.Gauge <= 1
}

// Induction measures the deviation of every target unit induced by sweeping a source unit through
// representative values of its own data, for every sample. The mean of the strongest Gauge fraction
// of deviations, relative to the deviation of the target data, is then intensified.
func Induction(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, opts InductionOptions) (*mat.Dense, error) {
	if !opts.IsValid() {
		return nil, belief.Configurationf("invalid induction options %+v", opts)
	}
	src, ok := m.Units(mp.Source())
	if !ok {
		return nil, belief.Configurationf("unknown layer %q", mp.Source())
	}
	tgt, ok := m.Units(mp.Target())
	if !ok {
		return nil, belief.Configurationf("unknown layer %q", mp.Target())
	}
	n, ic := in.Dims()
	tr, tc := target.Dims()
	if ic != src.Len() || tc != tgt.Len() || tr != n {
		return nil, belief.Dimensionf("induction along %v: data shaped (%d, %d) and (%d, %d)", mp, n, ic, tr, tc)
	}

	ids := make([]int, opts.Points)
	stride := n / opts.Points
	for i := range ids {
		ids[i] = int((float64(i) + 0.5) * float64(stride))
	}
	tgtSD, _ := ApplyNorm(target, SD)
	bound := int((1 - opts.Gauge) * float64(n))

	retVal := mat.NewDense(src.Len(), tgt.Len(), nil)
	p := pool.New().WithErrors().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i := 0; i < src.Len(); i++ {
		i := i
		p.Go(func() error {
			col := mat.Col(nil, i, in)
			sort.Float64s(col)

			// curves[j] holds, per sample, the expectation of target unit j at every point
			curves := make([]*mat.Dense, tgt.Len())
			for j := range curves {
				curves[j] = mat.NewDense(n, opts.Points, nil)
			}
			data := mat.DenseCopyOf(in)
			for pt, id := range ids {
				v := opts.Amplify * col[id]
				for r := 0; r < n; r++ {
					data.Set(r, i, v)
				}
				out, err := m.Expect(mp, data, nil)
				if err != nil {
					return err
				}
				for j := range curves {
					for r := 0; r < n; r++ {
						curves[j].Set(r, pt, out.At(r, j))
					}
				}
			}

			row := retVal.RawRowView(i)
			for j, c := range curves {
				sds, _ := ApplyNorm(c.T(), SD)
				sort.Float64s(sds)
				row[j] = stat.Mean(sds[bound:], nil) / tgtSD[j]
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	// same-label pairs don't count towards the contrast bound
	masked := mat.DenseCopyOf(retVal)
	forPairs(src.Labels(), tgt.Labels(), func(i, j int, same bool) {
		if same {
			masked.Set(i, j, 0)
		}
	})
	b := mat.Max(masked)
	if b <= 0 || math.IsNaN(b) {
		return retVal, nil
	}
	retVal.Apply(func(_, _ int, v float64) float64 { return Intensify(v, opts.Contrast, b) }, retVal)
	return retVal, nil
}

// Coinduction measures how much fixing a source unit changes the induction of every other source unit.
// For source unit s the input column s is set to 10 and Induction is measured again. Entry (k, s) is
// the euclidean distance between row k of both inductions, so the result is shaped
// (source units, source units). Zero options take the defaults of Induction, and a zero Gauge takes 0.1.
func Coinduction(m *belief.Model, mp belief.Mapping, in, target mat.Matrix, opts InductionOptions) (*mat.Dense, error) {
	if opts == (InductionOptions{}) {
		opts = DefaultInductionOptions()
		opts.Gauge = 0
	}
	if opts.Gauge == 0 {
		opts.Gauge = 0.1
	}
	base, err := Induction(m, mp, in, target, opts)
	if err != nil {
		return nil, err
	}
	srcs, _ := base.Dims()
	rows, _ := in.Dims()
	retVal := mat.NewDense(srcs, srcs, nil)
	data := mat.DenseCopyOf(in)
	for s := 0; s < srcs; s++ {
		for r := 0; r < rows; r++ {
			data.Set(r, s, 10)
		}
		ind, err := Induction(m, mp, data, target, opts)
		if err != nil {
			return nil, err
		}
		for k := 0; k < srcs; k++ {
			retVal.Set(k, s, floats.Distance(ind.RawRowView(k), base.RawRowView(k), 2))
		}
		for r := 0; r < rows; r++ {
			data.Set(r, s, in.At(r, s))
		}
	}
	return retVal, nil
}

// Intensify amplifies the contrast of x around bound: values well below bound shrink towards zero,
// values near or above it stay about the same.
func Intensify(x, factor, bound float64) float64 {
	num := math.Abs(x) * (sigmoid(factor*(x+0.5*bound)) + sigmoid(factor*(x-0.5*bound)) - 1)
	den := math.Abs(sigmoid(1.5*factor*bound) + sigmoid(0.5*factor*bound) - 1)
	return num / den
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// baseLabel is the part of a unit label after the first ':'.
func baseLabel(l string) string {
	if i := strings.Index(l, ":"); i >= 0 {
		return l[i+1:]
	}
	return l
}

func forPairs(src, tgt []string, fn func(i, j int, same bool)) {
	for i, s := range src {
		for j, t := range tgt {
			fn(i, j, baseLabel(s) == baseLabel(t))
		}
	}
}

// RelationStats summarise a relation over its pairs of units with different labels.
type RelationStats struct {
	Max, Min, Mean, SD float64
}

// Stats summarises the finite entries of r over pairs of different labels.
//
// It returns a NumericError when no such entry exists.
func Stats(r mat.Matrix, src, tgt []string) (RelationStats, error) {
	rr, rc := r.Dims()
	if rr != len(src) || rc != len(tgt) {
		return RelationStats{}, belief.Dimensionf("relation shaped (%d, %d) for %d and %d labels", rr, rc, len(src), len(tgt))
	}
	var vals []float64
	forPairs(src, tgt, func(i, j int, same bool) {
		v := r.At(i, j)
		if same || math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		vals = append(vals, v)
	})
	if len(vals) == 0 {
		return RelationStats{}, belief.Numericf("relation has no finite off-diagonal entries")
	}
	mean, variance := stat.PopMeanVariance(vals, nil)
	return RelationStats{
		Max:  floats.Max(vals),
		Min:  floats.Min(vals),
		Mean: mean,
		SD:   math.Sqrt(variance),
	}, nil
}
