package dataset

import (
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gorgonia/belief"
	"github.com/pkg/errors"
)

// ReadCSV reads a table from CSV with a header row. Every column must be numeric.
func ReadCSV(r io.Reader, seed uint64) (*Table, error) {
	df := dataframe.ReadCSV(r, dataframe.HasHeader(true))
	if df.Err != nil {
		return nil, belief.DataUnavailable(df.Err, "reading csv")
	}
	labels := df.Names()
	rows, cols := df.Dims()
	data := make([]float64, rows*cols)
	for j, l := range labels {
		col := df.Col(l)
		if col.Type() != series.Float && col.Type() != series.Int && col.Type() != series.Bool {
			return nil, belief.DataUnavailable(nil, "column %q is not numeric", l)
		}
		for i, v := range col.Float() {
			data[i*cols+j] = v
		}
	}
	t, err := New(labels, rows, cols, data, seed)
	return t, errors.WithMessage(err, "reading csv")
}
