package belief

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var forwardShapes = []struct {
	sizes   []int
	classes []string
	rows    int
}{
	{[]int{3, 2}, []string{"sigmoid", "sigmoid"}, 5},
	{[]int{4, 4, 4}, []string{"sigmoid", "gauss", "sigmoid"}, 7},
	{[]int{2, 5, 3, 1}, []string{"gauss", "gauss", "sigmoid", "gauss"}, 1},
}

func TestExpectShape(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	for _, c := range forwardShapes {
		m := newTestModel(t, chain(c.sizes, c.classes...))
		in := randomMatrix(c.rows, c.sizes[0], rng)
		out, err := m.Expect(m.FullMapping(), in, nil)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		r, cols := out.Dims()
		if r != c.rows || cols != c.sizes[len(c.sizes)-1] {
			t.Errorf("Expected Expect of %v to be shaped (%d, %d). Got (%d, %d)", c.sizes, c.rows, c.sizes[len(c.sizes)-1], r, cols)
		}

		// backwards along the same layers
		rev, err := m.Mapping(string(rune('A'+len(c.sizes)-1)), "A")
		require.NoError(t, err)
		revIn := randomMatrix(c.rows, c.sizes[len(c.sizes)-1], rng)
		out, err = m.Expect(rev, revIn, nil)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		r, cols = out.Dims()
		if r != c.rows || cols != c.sizes[0] {
			t.Errorf("Expected reverse Expect of %v to be shaped (%d, %d). Got (%d, %d)", c.sizes, c.rows, c.sizes[0], r, cols)
		}
	}
}

func TestExpectSingleLayerIdentity(t *testing.T) {
	m := newTestModel(t, chain([]int{3, 2}, "sigmoid", "gauss"))
	in := randomMatrix(4, 3, rand.New(rand.NewPCG(2, 2)))
	out, err := m.Expect(Mapping{"A"}, in, nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.True(t, mat.Equal(in, out))

	out, err = m.Values(Mapping{"A"}, in, nil, true)
	require.NoError(t, err)
	assert.True(t, mat.Equal(in, out))

	out, err = m.Values(Mapping{"A"}, in, nil, false)
	require.NoError(t, err)
	for _, v := range out.RawMatrix().Data {
		assert.True(t, v == 0 || v == 1)
	}
}

func TestExpectByHand(t *testing.T) {
	m := newTestModel(t, chain([]int{2, 1}, "gauss", "sigmoid"))
	a, _ := m.Units("A")
	require.NoError(t, a.Update(Params{Bias: []float64{0, 0}, LogVar: []float64{0, 0}}))
	l, _ := m.Links("A", "B")
	l.w = mat.NewDense(2, 1, []float64{1, -2})

	in := mat.NewDense(1, 2, []float64{3, 1})
	out, err := m.Expect(m.FullMapping(), in, nil)
	require.NoError(t, err)
	// bias 0.5 + 3*1 + 1*(-2)
	assert.InDelta(t, sigmoid(1.5), out.At(0, 0), 1e-12)

	// reversed: the target layer is Gauss and reads the weights transposed
	back, err := m.Expect(Mapping{"B", "A"}, mat.NewDense(1, 1, []float64{2}), nil)
	require.NoError(t, err)
	assert.InDelta(t, 2, back.At(0, 0), 1e-12)
	assert.InDelta(t, -4, back.At(0, 1), 1e-12)
}

func TestExpectBlock(t *testing.T) {
	assert := assert.New(t)
	m := newTestModel(t, chain([]int{2, 2}, "gauss", "gauss"))
	l, _ := m.Links("A", "B")
	l.w = mat.NewDense(2, 2, []float64{1, 0, 0, 1})

	in := mat.NewDense(2, 2, []float64{1, 10, 3, 20})
	out, err := m.Expect(m.FullMapping(), in, []int{0})
	require.NoError(t, err)
	assert.Equal([]float64{2, 10, 2, 20}, out.RawMatrix().Data)
	assert.Equal(1.0, in.At(0, 0), "input is not modified")

	_, err = m.Expect(m.FullMapping(), in, []int{2})
	assert.True(IsDimensionError(err))
}

func TestExpectDimensionErrors(t *testing.T) {
	m := newTestModel(t, chain([]int{3, 2}, "sigmoid", "gauss"))
	_, err := m.Expect(m.FullMapping(), mat.NewDense(2, 2, nil), nil)
	assert.True(t, IsDimensionError(err))
	_, err = m.Expect(Mapping{"A", "Q"}, mat.NewDense(2, 3, nil), nil)
	assert.True(t, IsConfigurationError(err))
}

func TestValuesDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	m := newTestModel(t, chain([]int{4, 3, 4}, "sigmoid", "sigmoid", "sigmoid"))
	in := binaryMatrix(10, 4, rng)
	mp := m.FullMapping()

	a, err := m.Values(mp, in, nil, false)
	require.NoError(t, err)
	b, err := m.Values(mp, in, nil, false)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))

	for _, v := range a.RawMatrix().Data {
		assert.True(t, v == 0 || v == 1)
	}

	e, err := m.Values(mp, in, nil, true)
	require.NoError(t, err)
	for _, v := range e.RawMatrix().Data {
		assert.True(t, v > 0 && v < 1, "the last layer returns expectations")
	}
}

func TestSamplesConverge(t *testing.T) {
	m := newTestModel(t, chain([]int{2, 3}, "sigmoid", "sigmoid"))
	const n = 20000
	in := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		in.Set(i, 0, 1)
	}
	mp := m.FullMapping()
	expect, err := m.Expect(mp, in.Slice(0, 1, 0, 2), nil)
	require.NoError(t, err)
	samples, err := m.Samples(mp, in, nil, false)
	require.NoError(t, err)
	means := ColumnMeans(samples)
	for j := range means {
		assert.InDelta(t, expect.At(0, j), means[j], 0.02)
	}
	for _, v := range samples.RawMatrix().Data {
		if v != 0 && v != 1 {
			t.Fatalf("Expected binary samples. Got %v", v)
		}
	}
}
