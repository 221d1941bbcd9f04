package belief

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Snapshot is a copy of every parameter of a model, together with the topology it belongs to.
type Snapshot struct {
	ID       string
	Topology Topology
	Units    map[string]Params // by layer name
	Links    []LinkWeights
}

// LinkWeights are the weights of one Links, row major.
type LinkWeights struct {
	Source, Target string
	Rows, Cols     int
	Data           []float64
}

// Snapshot copies the current parameters of m.
func (m *Model) Snapshot() Snapshot {
	retVal := Snapshot{
		ID:       uuid.NewString(),
		Topology: m.Topology(),
		Units:    make(map[string]Params, len(m.units)),
	}
	for _, u := range m.units {
		retVal.Units[u.Name()] = u.Params()
	}
	for _, l := range m.links {
		r, c := l.dims()
		retVal.Links = append(retVal.Links, LinkWeights{
			Source: l.source,
			Target: l.target,
			Rows:   r,
			Cols:   c,
			Data:   cloneFloats(l.w.RawMatrix().Data),
		})
	}
	return retVal
}

// FromSnapshot rebuilds a model from s.
func FromSnapshot(conf Config, s Snapshot) (*Model, error) {
	m, err := New(conf, s.Topology)
	if err != nil {
		return nil, errors.WithMessage(err, "rebuilding snapshot topology")
	}
	if err := m.overwrite(s); err != nil {
		return nil, err
	}
	return m, nil
}

// Merge returns a copy of m with every parameter found in s overwritten. Parameters are matched
// by layer name and unit label, so s may come from a model with different or reordered units.
func (m *Model) Merge(s Snapshot) (*Model, error) {
	retVal := m.Clone()
	if err := retVal.overwrite(s); err != nil {
		return nil, err
	}
	return retVal, nil
}

func (m *Model) overwrite(s Snapshot) error {
	labels := make(map[string][]string, len(s.Topology.Units))
	for _, spec := range s.Topology.Units {
		labels[spec.Name] = spec.Labels
	}
	var errs manyErr
	for _, u := range m.units {
		p, ok := s.Units[u.Name()]
		if !ok {
			continue
		}
		from := labels[u.Name()]
		if len(from) != len(p.Bias) || (p.LogVar != nil && len(p.LogVar) != len(p.Bias)) {
			errs = append(errs, Dimensionf("snapshot layer %q: %d labels and %d biases", u.Name(), len(from), len(p.Bias)))
			continue
		}
		cur := u.Params()
		at := positions(u.Labels())
		for i, l := range from {
			j, ok := at[l]
			if !ok {
				continue
			}
			cur.Bias[j] = p.Bias[i]
			if cur.LogVar != nil && p.LogVar != nil {
				cur.LogVar[j] = p.LogVar[i]
			}
		}
		if err := u.restore(cur); err != nil {
			errs = append(errs, err)
		}
	}
	for _, lw := range s.Links {
		l, reversed, err := m.link(lw.Source, lw.Target)
		if err != nil {
			continue
		}
		if lw.Rows*lw.Cols != len(lw.Data) || len(labels[lw.Source]) != lw.Rows || len(labels[lw.Target]) != lw.Cols {
			errs = append(errs, Dimensionf("snapshot links %s→%s are malformed", lw.Source, lw.Target))
			continue
		}
		w := mat.NewDense(lw.Rows, lw.Cols, cloneFloats(lw.Data))
		src, _ := m.Units(lw.Source)
		tgt, _ := m.Units(lw.Target)
		srcAt, tgtAt := positions(src.Labels()), positions(tgt.Labels())
		for i, sl := range labels[lw.Source] {
			si, ok := srcAt[sl]
			if !ok {
				continue
			}
			for j, tl := range labels[lw.Target] {
				tj, ok := tgtAt[tl]
				if !ok {
					continue
				}
				if reversed {
					l.w.Set(tj, si, w.At(i, j))
				} else {
					l.w.Set(si, tj, w.At(i, j))
				}
			}
		}
	}
	return errors.WithStack(errs.asErr())
}

func positions(labels []string) map[string]int {
	retVal := make(map[string]int, len(labels))
	for i, l := range labels {
		retVal[l] = i
	}
	return retVal
}

// Encode writes s to w with gob.
func (s Snapshot) Encode(w io.Writer) error {
	return errors.WithStack(gob.NewEncoder(w).Encode(s))
}

// DecodeSnapshot reads a gob encoded snapshot.
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, errors.WithStack(err)
	}
	return s, nil
}

// Save writes a snapshot of m into filename.
func (m *Model) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return m.Snapshot().Encode(f)
}

// Load reads a model saved with Save.
func Load(conf Config, filename string) (*Model, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	s, err := DecodeSnapshot(f)
	if err != nil {
		return nil, err
	}
	return FromSnapshot(conf, s)
}
