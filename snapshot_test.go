package belief

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSnapshotRoundTrip(t *testing.T) {
	assert := assert.New(t)
	m := newTestModel(t, chain([]int{3, 2, 3}, "sigmoid", "gauss", "sigmoid"))
	s := m.Snapshot()
	assert.NotEmpty(s.ID)

	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		t.Fatalf("%+v", err)
	}
	s2, err := DecodeSnapshot(&buf)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(s.ID, s2.ID)

	m2, err := FromSnapshot(DefaultConfig(), s2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(m.Layers(), m2.Layers())
	for _, name := range m.Layers() {
		u, _ := m.Units(name)
		u2, _ := m2.Units(name)
		assert.Equal(u.Params(), u2.Params())
	}
	for i, l := range m.AllLinks() {
		assert.True(mat.Equal(l.Weights(), m2.AllLinks()[i].Weights()))
	}
}

func TestSaveLoad(t *testing.T) {
	m := newTestModel(t, chain([]int{2, 2}, "gauss", "sigmoid"))
	filename := filepath.Join(t.TempDir(), "model.gob")
	if err := m.Save(filename); err != nil {
		t.Fatalf("%+v", err)
	}
	loaded, err := Load(DefaultConfig(), filename)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	l, _ := m.Links("A", "B")
	l2, _ := loaded.Links("A", "B")
	assert.True(t, mat.Equal(l.Weights(), l2.Weights()))

	_, err = Load(DefaultConfig(), filepath.Join(t.TempDir(), "nope.gob"))
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestMergeByLabel(t *testing.T) {
	assert := assert.New(t)
	src := Topology{Units: []UnitSpec{
		{Name: "v", Class: "gauss", Visible: true, Labels: []string{"x", "y"}},
		{Name: "h", Class: "sigmoid", Labels: []string{"h1"}},
	}}
	dst := Topology{Units: []UnitSpec{
		{Name: "v", Class: "gauss", Visible: true, Labels: []string{"z", "y", "x"}},
		{Name: "h", Class: "sigmoid", Labels: []string{"h1"}},
	}}
	a := newTestModel(t, src)
	v, _ := a.Units("v")
	require.NoError(t, v.Update(Params{Bias: []float64{1, 2}, LogVar: []float64{0.1, 0.2}}))
	la, _ := a.Links("v", "h")
	la.w = mat.NewDense(2, 1, []float64{7, 8})

	b := newTestModel(t, dst)
	merged, err := b.Merge(a.Snapshot())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	mv, _ := merged.Units("v")
	assert.Equal([]float64{0, 2, 1}, mv.Params().Bias)
	assert.Equal([]float64{0, 0.2, 0.1}, mv.Params().LogVar)
	lm, _ := merged.Links("v", "h")
	w := lm.Weights()
	assert.Equal(8.0, w.At(1, 0))
	assert.Equal(7.0, w.At(2, 0))

	bv, _ := b.Units("v")
	assert.Equal([]float64{0, 0, 0}, bv.Params().Bias, "merge leaves the receiver alone")
}

func TestToDot(t *testing.T) {
	m := newTestModel(t, chain([]int{2, 3}, "sigmoid", "gauss"))
	dot, err := m.ToDot()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for _, want := range []string{"cluster_0", "cluster_1", "l0u1", "l1u2", "->", "LogVar"} {
		if !strings.Contains(dot, want) {
			t.Errorf("Expected %q in\n%s", want, dot)
		}
	}
}
