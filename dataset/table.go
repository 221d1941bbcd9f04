// Package dataset provides labelled tables of training data.
package dataset

import (
	"math/rand/v2"

	"github.com/gorgonia/belief"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// Table is a set of rows with one labelled float64 column per unit.
// It is not safe for concurrent use.
type Table struct {
	labels []string
	index  map[string]int
	data   *tensor.Dense // (rows, columns)
	rng    *rand.Rand
}

// New creates a table from row major data. The seed drives minibatch sampling and shuffling.
func New(labels []string, rows, cols int, data []float64, seed uint64) (*Table, error) {
	if len(labels) != cols {
		return nil, belief.Dimensionf("%d labels for %d columns", len(labels), cols)
	}
	if rows == 0 {
		return nil, belief.DataUnavailable(nil, "table has no rows")
	}
	if rows*cols != len(data) {
		return nil, belief.Dimensionf("%d values for a (%d, %d) table", len(data), rows, cols)
	}
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, ok := index[l]; ok {
			return nil, belief.Configurationf("duplicate column %q", l)
		}
		index[l] = i
	}
	backing := make([]float64, len(data))
	copy(backing, data)
	return &Table{
		labels: append([]string(nil), labels...),
		index:  index,
		data:   tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing)),
		rng:    rand.New(rand.NewPCG(seed, seed+1)),
	}, nil
}

// FromMatrix creates a table from the rows of m.
func FromMatrix(labels []string, m mat.Matrix, seed uint64) (*Table, error) {
	d := mat.DenseCopyOf(m)
	r, c := d.Dims()
	return New(labels, r, c, d.RawMatrix().Data, seed)
}

func (t *Table) Labels() []string { return append([]string(nil), t.labels...) }

// Len is the number of rows.
func (t *Table) Len() int { return t.data.Shape()[0] }

func (t *Table) cols() int { return t.data.Shape()[1] }

func (t *Table) backing() []float64 { return t.data.Data().([]float64) }

func (t *Table) lookup(labels []string) ([]int, error) {
	retVal := make([]int, len(labels))
	for i, l := range labels {
		j, ok := t.index[l]
		if !ok {
			return nil, belief.DataUnavailable(nil, "no column %q", l)
		}
		retVal[i] = j
	}
	return retVal, nil
}

// gather copies the given columns of the given rows into a matrix.
func (t *Table) gather(rows, cols []int) *mat.Dense {
	retVal := mat.NewDense(len(rows), len(cols), nil)
	data := t.backing()
	stride := t.cols()
	for i, r := range rows {
		dst := retVal.RawRowView(i)
		for k, c := range cols {
			dst[k] = data[r*stride+c]
		}
	}
	return retVal
}

func (t *Table) allRows() []int {
	retVal := make([]int, t.Len())
	for i := range retVal {
		retVal[i] = i
	}
	return retVal
}

// Columns returns every row of the given columns.
func (t *Table) Columns(labels []string) (*mat.Dense, error) {
	cols, err := t.lookup(labels)
	if err != nil {
		return nil, err
	}
	return t.gather(t.allRows(), cols), nil
}

// Batch draws size rows with replacement and returns their in and out columns.
// A size of 0 returns every row in order.
func (t *Table) Batch(in, out []string, size int) (x, y *mat.Dense, err error) {
	ic, err := t.lookup(in)
	if err != nil {
		return nil, nil, err
	}
	oc, err := t.lookup(out)
	if err != nil {
		return nil, nil, err
	}
	if size < 0 {
		return nil, nil, belief.Configurationf("negative batch size %d", size)
	}
	var rows []int
	if size == 0 {
		rows = t.allRows()
	} else {
		rows = make([]int, size)
		for i := range rows {
			rows[i] = t.rng.IntN(t.Len())
		}
	}
	return t.gather(rows, ic), t.gather(rows, oc), nil
}

// Shuffle permutes the rows in place.
func (t *Table) Shuffle() (err error) {
	var rows [][]float64
	if rows, err = native.MatrixF64(t.data); err != nil {
		return errors.Wrapf(err, "shuffle failed")
	}
	tmp := make([]float64, t.cols())
	for i := range rows {
		j := t.rng.IntN(i + 1)
		copy(tmp, rows[i])
		copy(rows[i], rows[j])
		copy(rows[j], tmp)
	}
	return nil
}

// Rows returns a copy of the rows [start, end).
func (t *Table) Rows(start, end int) (*Table, error) {
	if start < 0 || end > t.Len() || start >= end {
		return nil, belief.Dimensionf("rows [%d, %d) of a table of %d rows", start, end, t.Len())
	}
	var s slicer
	d := s.Materialize(s.Slice(t.data, sli(start, end)))
	if s.err != nil {
		return nil, s.err
	}
	if err := d.Reshape(end-start, t.cols()); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Table{
		labels: t.Labels(),
		index:  t.index,
		data:   d,
		rng:    rand.New(rand.NewPCG(t.rng.Uint64(), t.rng.Uint64())),
	}, nil
}

// Split shuffles the table and splits it into a first part of frac of the rows and the rest.
func (t *Table) Split(frac float64) (first, rest *Table, err error) {
	n := int(frac * float64(t.Len()))
	if n <= 0 || n >= t.Len() {
		return nil, nil, belief.Configurationf("cannot split %d rows at %v", t.Len(), frac)
	}
	if err = t.Shuffle(); err != nil {
		return nil, nil, err
	}
	if first, err = t.Rows(0, n); err != nil {
		return nil, nil, err
	}
	if rest, err = t.Rows(n, t.Len()); err != nil {
		return nil, nil, err
	}
	return first, rest, nil
}

// Binarize sets the given columns to 1 where they are above threshold and to 0 elsewhere.
func (t *Table) Binarize(labels []string, threshold float64) error {
	cols, err := t.lookup(labels)
	if err != nil {
		return err
	}
	data := t.backing()
	stride := t.cols()
	for r := 0; r < t.Len(); r++ {
		for _, c := range cols {
			v := &data[r*stride+c]
			if *v > threshold {
				*v = 1
			} else {
				*v = 0
			}
		}
	}
	return nil
}
