package belief

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var distributionTags = []struct {
	tag     string
	correct Distribution
	bad     bool
}{
	{"bernoulli", BernoulliDist, false},
	{"sigmoid", BernoulliDist, false},
	{" Sigmoid ", BernoulliDist, false},
	{"gauss", GaussDist, false},
	{"tanh", "", true},
}

func TestParseDistribution(t *testing.T) {
	for _, c := range distributionTags {
		d, err := ParseDistribution(c.tag)
		if c.bad {
			if !IsConfigurationError(err) {
				t.Errorf("Expected %q to be rejected. Got %v", c.tag, err)
			}
			continue
		}
		if err != nil || d != c.correct {
			t.Errorf("Expected %q to parse as %v. Got %v, %v", c.tag, c.correct, d, err)
		}
	}
}

func TestSigmoidStable(t *testing.T) {
	assert := assert.New(t)
	for _, x := range []float64{-1000, -50, -1, 0, 1, 50, 1000} {
		s := sigmoid(x)
		assert.False(math.IsNaN(s) || math.IsInf(s, 0), "sigmoid(%v) = %v", x, s)
		assert.InDelta(1, s+sigmoid(-x), 1e-12)
	}
	assert.Equal(0.5, sigmoid(0))
}

func TestBernoulliUnits(t *testing.T) {
	assert := assert.New(t)
	u, err := newUnits(UnitSpec{Name: "b", Class: "sigmoid", Labels: []string{"x", "y"}})
	require.NoError(t, err)
	require.NoError(t, u.Initialize(nil))
	assert.Equal([]float64{0.5, 0.5}, u.Params().Bias)
	assert.Nil(u.Params().LogVar)

	e := mat.NewDense(2, 2, []float64{0.2, 0.7, 0.5, 0.51})
	assert.Equal([]float64{0, 1, 0, 1}, u.Values(e).RawMatrix().Data)

	// energy is -mean(data*bias)
	data := mat.NewDense(2, 2, []float64{1, 0, 1, 1})
	energy, err := u.Energy(data)
	require.NoError(t, err)
	assert.Equal([]float64{-0.5, -0.25}, energy)

	_, err = u.Energy(mat.NewDense(1, 3, nil))
	assert.True(IsDimensionError(err))
	assert.True(IsDimensionError(u.Update(Params{Bias: []float64{1}})))
}

func TestBernoulliEnergySign(t *testing.T) {
	u, _ := newUnits(UnitSpec{Name: "b", Class: "bernoulli", Labels: []string{"x"}})
	require.NoError(t, u.Update(Params{Bias: []float64{1.5}})) // bias 1.5
	energy, err := u.Energy(mat.NewDense(3, 1, []float64{1, 1, 1}))
	require.NoError(t, err)
	if energy[0] >= 0 {
		t.Errorf("Expected negative energy for positive bias and data. Got %v", energy[0])
	}

	require.NoError(t, u.Update(Params{Bias: []float64{-3}})) // bias -1.5
	negated, err := u.Energy(mat.NewDense(3, 1, []float64{1, 1, 1}))
	require.NoError(t, err)
	assert.Equal(t, -energy[0], negated[0], "negating the bias negates the energy")
}

func TestBernoulliSamples(t *testing.T) {
	u, _ := newUnits(UnitSpec{Name: "b", Class: "bernoulli", Labels: []string{"x", "y"}})
	const n = 20000
	e := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		e.Set(i, 0, 0.2)
		e.Set(i, 1, 0.9)
	}
	s := u.Samples(e, rand.NewPCG(1, 2))
	for _, v := range s.RawMatrix().Data {
		if v != 0 && v != 1 {
			t.Fatalf("Expected binary samples. Got %v", v)
		}
	}
	means := ColumnMeans(s)
	assert.InDelta(t, 0.2, means[0], 0.02)
	assert.InDelta(t, 0.9, means[1], 0.02)
}

func TestGaussUnits(t *testing.T) {
	assert := assert.New(t)
	u, err := newUnits(UnitSpec{Name: "g", Class: "gauss", Labels: []string{"x", "y"}})
	require.NoError(t, err)
	require.NoError(t, u.Initialize(nil))
	p := u.Params()
	assert.Equal([]float64{0, 0}, p.Bias)
	assert.Equal([]float64{0, 0}, p.LogVar)

	e := mat.NewDense(1, 2, []float64{0.3, -4})
	assert.True(mat.Equal(e, u.Values(e)))

	// -0.5 * mean((data - 0)²) / 1
	energy, err := u.Energy(mat.NewDense(2, 2, []float64{1, 2, 3, 0}))
	require.NoError(t, err)
	if !cmp.Equal([]float64{-2.5, -1}, energy, cmpopts.EquateApprox(0, 1e-12)) {
		t.Errorf("Unexpected gauss energy %v", energy)
	}

	require.NoError(t, u.Update(Params{Bias: []float64{1, 2}, LogVar: []float64{0.5, -0.5}}))
	assert.Equal(Params{Bias: []float64{1, 2}, LogVar: []float64{0.5, -0.5}}, u.Params())
}

func TestGaussSamples(t *testing.T) {
	u, _ := newUnits(UnitSpec{Name: "g", Class: "gauss", Labels: []string{"x"}})
	require.NoError(t, u.Update(Params{Bias: []float64{0}, LogVar: []float64{math.Log(4)}}))
	const n = 20000
	e := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		e.Set(i, 0, 3)
	}
	s := u.Samples(e, rand.NewPCG(3, 4))
	assert.InDelta(t, 3, ColumnMeans(s)[0], 0.05)
	assert.InDelta(t, 2, ColumnStdDevs(s)[0], 0.05)
}

func TestExpectScalesGaussInput(t *testing.T) {
	assert := assert.New(t)
	g, _ := newUnits(UnitSpec{Name: "g", Class: "gauss", Labels: []string{"x"}})
	b, _ := newUnits(UnitSpec{Name: "b", Class: "sigmoid", Labels: []string{"y"}})
	require.NoError(t, g.Update(Params{Bias: []float64{0}, LogVar: []float64{math.Log(2)}}))

	in := mat.NewDense(1, 1, []float64{2})
	w := mat.NewDense(1, 1, []float64{1})

	e, err := b.Expect(in, g, w)
	require.NoError(t, err)
	assert.InDelta(sigmoid(1), e.At(0, 0), 1e-12) // 2/exp(log 2)

	e, err = g.Expect(in, b, w)
	require.NoError(t, err)
	assert.InDelta(2, e.At(0, 0), 1e-12)

	_, err = b.Expect(mat.NewDense(1, 2, nil), g, w)
	assert.True(IsDimensionError(err))
}
