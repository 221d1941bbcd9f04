package belief

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var fdSettings = &fd.Settings{Formula: fd.Central, Step: 1e-6}

// numGrad returns the finite difference gradient of f with respect to the entries of p.
// p is restored afterwards.
func numGrad(p []float64, f func() float64) []float64 {
	orig := cloneFloats(p)
	defer copy(p, orig)
	return fd.Gradient(nil, func(x []float64) float64 {
		copy(p, x)
		return f()
	}, cloneFloats(orig), fdSettings)
}

func nearlyEqual(t *testing.T, want, got []float64, tol float64, what string) {
	t.Helper()
	require.Equal(t, len(want), len(got), what)
	for i := range want {
		if math.Abs(want[i]-got[i]) > tol {
			t.Errorf("%s[%d]: expected %v, got %v", what, i, want[i], got[i])
		}
	}
}

func neg(a []float64) []float64 {
	retVal := make([]float64, len(a))
	for i, v := range a {
		retVal[i] = -v
	}
	return retVal
}

func TestGradientFromDeltaMSE(t *testing.T) {
	configs := []struct {
		in, out, rows int
		seed          uint64
	}{
		{3, 2, 6, 1},
		{5, 4, 10, 2},
		{2, 6, 3, 3},
	}
	for _, c := range configs {
		rng := rand.New(rand.NewPCG(c.seed, 7))
		conf := DefaultConfig()
		conf.Seed = c.seed
		m, err := New(conf, chain([]int{c.in, c.out}, "sigmoid", "sigmoid"))
		require.NoError(t, err)
		require.NoError(t, m.Initialize(nil))
		mp := m.FullMapping()
		x := binaryMatrix(c.rows, c.in, rng)
		target := binaryMatrix(c.rows, c.out, rng)
		l, _ := m.Links("A", "B")
		b, _ := m.Units("B")

		mse := func() float64 {
			y, err := m.Expect(mp, x, nil)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			var sum float64
			for i, v := range y.RawMatrix().Data {
				d := v - target.RawMatrix().Data[i]
				sum += d * d
			}
			return sum / (2 * float64(c.rows))
		}

		pre, err := b.Linear(x, l.w)
		require.NoError(t, err)
		y := b.Activate(pre)
		delta := mat.NewDense(c.rows, c.out, nil)
		delta.Sub(y, target)
		delta.MulElem(delta, b.Derivative(pre))
		grad, err := l.GradientFromDelta(x, delta)
		require.NoError(t, err)

		num := numGrad(l.w.RawMatrix().Data, mse)
		nearlyEqual(t, num, neg(grad.RawMatrix().Data), 1e-4, "weights")
	}
}

// objective is the loss whose negative gradient Model.Gradient computes.
func objective(t *testing.T, m *Model, mp Mapping, x, target *mat.Dense) float64 {
	y, err := m.Expect(mp, x, nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	n, _ := y.Dims()
	last, _ := m.Units(mp.Target())
	ys, ts := y.RawMatrix().Data, target.RawMatrix().Data
	var sum float64
	for i := range ys {
		if last.Distribution() == BernoulliDist {
			sum -= ts[i]*math.Log(ys[i]) + (1-ts[i])*math.Log(1-ys[i])
			continue
		}
		d := ys[i] - ts[i]
		sum += 0.5 * d * d
	}
	return sum / float64(n)
}

func biasOf(u Units) []float64 {
	switch u := u.(type) {
	case *Bernoulli:
		return u.bias
	case *Gauss:
		return u.bias
	}
	return nil
}

func TestGradientMatchesFiniteDifferences(t *testing.T) {
	configs := []struct {
		sizes   []int
		classes []string
		reverse bool
	}{
		{[]int{4, 3, 4}, []string{"sigmoid", "gauss", "sigmoid"}, false},
		{[]int{3, 4, 2}, []string{"gauss", "sigmoid", "gauss"}, false},
		{[]int{2, 3, 5}, []string{"sigmoid", "sigmoid", "sigmoid"}, true},
	}
	for ci, c := range configs {
		rng := rand.New(rand.NewPCG(uint64(ci), 11))
		m := newTestModel(t, chain(c.sizes, c.classes...))
		// unit variances leave the inputs of Bernoulli layers unscaled
		for _, name := range m.Layers() {
			if g, ok := m.Units(name); ok {
				if g, ok := g.(*Gauss); ok {
					for i := range g.logVar {
						g.logVar[i] = 0
					}
				}
			}
		}
		mp := m.FullMapping()
		if c.reverse {
			mp, _ = m.Mapping(mp.Target(), mp.Source())
		}
		first, _ := m.Units(mp.Source())
		last, _ := m.Units(mp.Target())
		const rows = 8
		x := randomMatrix(rows, first.Len(), rng)
		target := binaryMatrix(rows, last.Len(), rng)

		grad, err := m.Gradient(mp, x, target)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		loss := func() float64 { return objective(t, m, mp, x, target) }
		for i := 1; i < len(mp); i++ {
			u, _ := m.Units(mp[i])
			num := numGrad(biasOf(u), loss)
			nearlyEqual(t, neg(num), grad.Units[i-1].Bias, 1e-4, mp[i]+" bias")
			if u.Distribution() == GaussDist {
				assert.Equal(t, make([]float64, u.Len()), grad.Units[i-1].LogVar)
			}

			l, reversed, err := m.link(mp[i-1], mp[i])
			require.NoError(t, err)
			num = numGrad(l.w.RawMatrix().Data, loss)
			r, cols := l.w.Dims()
			numW := mat.NewDense(r, cols, neg(num))
			var got mat.Matrix = grad.Links[i-1]
			if reversed {
				got = got.T()
			}
			nearlyEqual(t, numW.RawMatrix().Data, mat.DenseCopyOf(got).RawMatrix().Data, 1e-4, mp[i-1]+"→"+mp[i])
		}
	}
}

func TestGradientLeavesOutInputScale(t *testing.T) {
	const rows = 8
	rng := rand.New(rand.NewPCG(3, 13))
	m := newTestModel(t, chain([]int{3, 2}, "gauss", "sigmoid"))
	a, _ := m.Units("A")
	g := a.(*Gauss)
	for i := range g.logVar {
		g.logVar[i] = rng.Float64() - 0.5
	}
	b, _ := m.Units("B")
	l, _ := m.Links("A", "B")
	mp := m.FullMapping()
	x := randomMatrix(rows, 3, rng)
	target := binaryMatrix(rows, 2, rng)

	grad, err := m.Gradient(mp, x, target)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	loss := func() float64 { return objective(t, m, mp, x, target) }
	nearlyEqual(t, neg(numGrad(biasOf(b), loss)), grad.Units[0].Bias, 1e-4, "bias")

	// the weight gradient is taken on x itself, which is the exact gradient times the variance of each source unit
	num := numGrad(l.w.RawMatrix().Data, loss)
	want := mat.NewDense(3, 2, neg(num))
	for r := 0; r < 3; r++ {
		v := math.Exp(g.logVar[r])
		for c := 0; c < 2; c++ {
			want.Set(r, c, want.At(r, c)*v)
		}
	}
	nearlyEqual(t, want.RawMatrix().Data, grad.Links[0].RawMatrix().Data, 1e-4, "weights")

	delta := mat.NewDense(rows, 2, nil)
	delta.Sub(grad.Output, target)
	direct, err := l.GradientFromDelta(x, delta)
	require.NoError(t, err)
	nearlyEqual(t, direct.RawMatrix().Data, grad.Links[0].RawMatrix().Data, 1e-12, "weights from the raw input")
}

func TestGradientMatchesGorgonia(t *testing.T) {
	const n, k, c = 6, 4, 3
	rng := rand.New(rand.NewPCG(42, 42))
	m := newTestModel(t, chain([]int{k, c}, "sigmoid", "sigmoid"))
	b, _ := m.Units("B")
	for i := range biasOf(b) {
		biasOf(b)[i] = 0
	}
	l, _ := m.Links("A", "B")
	x := randomMatrix(n, k, rng)
	target := binaryMatrix(n, c, rng)

	grad, err := m.Gradient(m.FullMapping(), x, target)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	g := G.NewGraph()
	xs := G.NewMatrix(g, G.Float64, G.WithShape(n, k), G.WithName("x"),
		G.WithValue(tensor.New(tensor.WithShape(n, k), tensor.WithBacking(cloneFloats(x.RawMatrix().Data)))))
	ts := G.NewMatrix(g, G.Float64, G.WithShape(n, c), G.WithName("t"),
		G.WithValue(tensor.New(tensor.WithShape(n, c), tensor.WithBacking(cloneFloats(target.RawMatrix().Data)))))
	w := G.NewMatrix(g, G.Float64, G.WithShape(k, c), G.WithName("w"),
		G.WithValue(tensor.New(tensor.WithShape(k, c), tensor.WithBacking(cloneFloats(l.w.RawMatrix().Data)))))

	one := G.NewConstant(1.0)
	y := G.Must(G.Sigmoid(G.Must(G.Mul(xs, w))))
	fst := G.Must(G.HadamardProd(ts, G.Must(G.Log(y))))
	snd := G.Must(G.HadamardProd(G.Must(G.Sub(one, ts)), G.Must(G.Log(G.Must(G.Sub(one, y))))))
	sum := G.Must(G.Sum(G.Must(G.Add(fst, snd))))
	cost := G.Must(G.Div(G.Must(G.Neg(sum)), G.NewConstant(float64(n))))

	grads, err := G.Grad(cost, w)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("%+v", err)
	}
	want := neg(grads[0].Value().Data().([]float64))
	nearlyEqual(t, want, grad.Links[0].RawMatrix().Data, 1e-8, "weights")
}

func TestGradientErrors(t *testing.T) {
	m := newTestModel(t, chain([]int{2, 2}, "sigmoid", "sigmoid"))
	mp := m.FullMapping()
	_, err := m.Gradient(Mapping{"A"}, mat.NewDense(1, 2, nil), mat.NewDense(1, 2, nil))
	assert.True(t, IsConfigurationError(err))
	_, err = m.Gradient(mp, mat.NewDense(2, 2, nil), mat.NewDense(3, 2, nil))
	assert.True(t, IsDimensionError(err))
	_, err = m.Gradient(mp, mat.NewDense(2, 2, nil), mat.NewDense(2, 1, nil))
	assert.True(t, IsDimensionError(err))

	in := mat.NewDense(1, 2, []float64{math.NaN(), 0})
	_, err = m.Gradient(mp, in, mat.NewDense(1, 2, nil))
	assert.True(t, IsNumericError(err))
}

func TestApply(t *testing.T) {
	assert := assert.New(t)
	topo := chain([]int{2, 2}, "sigmoid", "gauss")
	topo.Links = []LinkSpec{{Source: "A", Target: "B", Adjacency: [][]bool{{true, false}, {true, true}}}}
	m := newTestModel(t, topo)
	l, _ := m.Links("A", "B")
	before := l.Weights()

	// reversed update: shaped (|B|, |A|)
	up := &Gradient{
		Mapping: Mapping{"B", "A"},
		Units:   []Params{{Bias: []float64{1, 1}}},
		Links:   []*mat.Dense{mat.NewDense(2, 2, []float64{1, 2, 3, 4})},
	}
	if err := m.Apply(up); err != nil {
		t.Fatalf("%+v", err)
	}
	after := l.Weights()
	assert.InDelta(before.At(0, 0)+1, after.At(0, 0), 1e-12)
	assert.InDelta(before.At(1, 0)+2, after.At(1, 0), 1e-12)
	assert.Equal(0.0, after.At(0, 1), "unlinked weights stay zero")
	assert.InDelta(before.At(1, 1)+4, after.At(1, 1), 1e-12)
	a, _ := m.Units("A")
	assert.Equal([]float64{1.5, 1.5}, a.Params().Bias)

	// a malformed update changes nothing
	bad := &Gradient{
		Mapping: Mapping{"A", "B"},
		Units:   []Params{{Bias: []float64{1, 1}, LogVar: []float64{0, 0}}},
		Links:   []*mat.Dense{mat.NewDense(3, 2, nil)},
	}
	assert.True(IsDimensionError(m.Apply(bad)))
	assert.True(mat.Equal(after, l.Weights()))
	bu, _ := m.Units("B")
	assert.Equal([]float64{0, 0}, bu.Params().Bias)

	nan := up.Clone()
	nan.Links[0].Set(0, 0, math.Inf(1))
	assert.True(IsNumericError(m.Apply(nan)))
}

func TestGradientScale(t *testing.T) {
	g := &Gradient{
		Mapping: Mapping{"A", "B"},
		Units:   []Params{{Bias: []float64{1, -2}, LogVar: []float64{0, 0}}},
		Links:   []*mat.Dense{mat.NewDense(1, 2, []float64{3, 4})},
	}
	s := g.Scale(0.5)
	assert.Equal(t, []float64{0.5, -1}, s.Units[0].Bias)
	assert.Equal(t, []float64{1.5, 2}, s.Links[0].RawMatrix().Data)
	assert.Equal(t, []float64{1, -2}, g.Units[0].Bias, "scaling copies")
	assert.Len(t, g.Vectors(), 3)
}
