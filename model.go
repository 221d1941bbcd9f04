package belief

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	"k8s.io/klog/v2"
)

// Config configures the construction and initialisation of a model.
type Config struct {
	WeightSigma   float64 // weights are drawn from N(0, WeightSigma/|source|)
	VarianceSigma float64 // initial standard deviation of visible Gauss units
	Adjacency     bool    // keep unlinked weights at zero during training
	Seed          uint64  // seed for initialisation and sampling
}

func DefaultConfig() Config {
	return Config{
		WeightSigma:   1.0,
		VarianceSigma: 0.4,
		Adjacency:     true,
		Seed:          1337,
	}
}

func (conf Config) IsValid() bool {
	return conf.WeightSigma > 0 &&
		conf.VarianceSigma > 0
}

// Topology lists the layers of a model in order and, optionally, the links between adjacent layers.
// Adjacent layers without a LinkSpec are fully linked.
type Topology struct {
	Units []UnitSpec
	Links []LinkSpec
}

// Model is an ordered chain of unit layers with one Links between every pair of adjacent layers.
type Model struct {
	Config

	units []Units
	index map[string]int
	links []*Links // links[i] connects units[i] and units[i+1]

	rng *rand.Rand
}

// New builds an uninitialised model. Call Initialize before use.
func New(conf Config, topo Topology) (*Model, error) {
	if !conf.IsValid() {
		return nil, Configurationf("invalid model config %+v", conf)
	}
	if len(topo.Units) == 0 {
		return nil, Configurationf("topology has no layers")
	}
	m := &Model{
		Config: conf,
		index:  make(map[string]int, len(topo.Units)),
		rng:    rand.New(rand.NewPCG(conf.Seed, conf.Seed^0x9e3779b97f4a7c15)),
	}
	for i, spec := range topo.Units {
		u, err := newUnits(spec)
		if err != nil {
			return nil, err
		}
		if _, ok := m.index[u.Name()]; ok {
			return nil, Configurationf("duplicate layer %q", u.Name())
		}
		m.index[u.Name()] = i
		m.units = append(m.units, u)
	}

	specs := make([]*LinkSpec, len(m.units)-1)
	for i := range topo.Links {
		spec := topo.Links[i]
		si, sok := m.index[spec.Source]
		ti, tok := m.index[spec.Target]
		if !sok || !tok {
			return nil, Configurationf("links %s→%s refer to an unknown layer", spec.Source, spec.Target)
		}
		switch ti - si {
		case 1:
		case -1:
			spec = LinkSpec{Source: spec.Target, Target: spec.Source, Adjacency: transposeBools(spec.Adjacency)}
			si = ti
		default:
			return nil, Configurationf("links %s→%s: layers are not adjacent", spec.Source, spec.Target)
		}
		if specs[si] != nil {
			return nil, Configurationf("links %s→%s given twice", spec.Source, spec.Target)
		}
		specs[si] = &spec
	}
	for i := 0; i < len(m.units)-1; i++ {
		var adj [][]bool
		if specs[i] != nil {
			adj = specs[i].Adjacency
		}
		l, err := newLinks(m.units[i], m.units[i+1], adj)
		if err != nil {
			return nil, err
		}
		m.links = append(m.links, l)
	}
	return m, nil
}

// ColumnSource provides data columns by unit label.
type ColumnSource interface {
	Columns(labels []string) (*mat.Dense, error)
}

// Initialize sets the parameters of every layer and the weights of every link.
// Visible layers are initialised from data when data is not nil.
func (m *Model) Initialize(data ColumnSource) error {
	layerData := make([]*mat.Dense, len(m.units))
	for i, u := range m.units {
		if data != nil && u.Visible() {
			cols, err := data.Columns(u.Labels())
			if err != nil {
				return DataUnavailable(err, "initialising layer %q", u.Name())
			}
			layerData[i] = cols
		}
		var err error
		if g, ok := u.(*Gauss); ok {
			err = g.initialize(layerData[i], m.VarianceSigma)
		} else {
			err = u.Initialize(layerData[i])
		}
		if err != nil {
			return errors.WithMessagef(err, "initialising layer %q", u.Name())
		}
	}
	for i, l := range m.links {
		var sd []float64
		if layerData[i] != nil {
			sd = ColumnStdDevs(layerData[i])
		}
		m.initLinks(l, sd)
	}
	klog.V(1).Infof("initialised model with %d layers", len(m.units))
	return nil
}

// initLinks draws W from N(0, WeightSigma/|source|), scaled per source unit by sd when given, and masks it.
func (m *Model) initLinks(l *Links, sd []float64) {
	r, _ := l.dims()
	sigma := m.WeightSigma / float64(r)
	l.w.Apply(func(i, _ int, _ float64) float64 {
		s := sigma
		if sd != nil {
			s *= sd[i]
		}
		if s <= 0 {
			return 0
		}
		return distuv.Normal{Mu: 0, Sigma: s, Src: m.rng}.Rand()
	}, l.w)
	l.w.MulElem(l.w, l.adjacency)
}

// Layers returns the layer names in order.
func (m *Model) Layers() []string {
	retVal := make([]string, len(m.units))
	for i, u := range m.units {
		retVal[i] = u.Name()
	}
	return retVal
}

// Units returns the layer of the given name.
func (m *Model) Units(name string) (Units, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.units[i], true
}

// Links returns the links between two layers, in either order.
func (m *Model) Links(a, b string) (*Links, bool) {
	l, _, err := m.link(a, b)
	return l, err == nil
}

// AllLinks returns every link in layer order.
func (m *Model) AllLinks() []*Links { return append([]*Links(nil), m.links...) }

// link finds the links between src and tgt. reversed is set when they are stored as tgt→src.
func (m *Model) link(src, tgt string) (l *Links, reversed bool, err error) {
	si, sok := m.index[src]
	ti, tok := m.index[tgt]
	if !sok || !tok {
		return nil, false, Configurationf("no layers %q and %q", src, tgt)
	}
	switch ti - si {
	case 1:
		return m.links[si], false, nil
	case -1:
		return m.links[ti], true, nil
	}
	return nil, false, Configurationf("layers %q and %q are not adjacent", src, tgt)
}

// oriented returns the weights from src to tgt, transposing when the link runs the other way.
func (m *Model) oriented(src, tgt string) (mat.Matrix, error) {
	l, reversed, err := m.link(src, tgt)
	if err != nil {
		return nil, err
	}
	w := l.w
	if m.Adjacency {
		w = l.Effective()
	}
	if reversed {
		return w.T(), nil
	}
	return w, nil
}

// Src is the random source used for sampling.
func (m *Model) Src() rand.Source { return m.rng }

// Clone returns a deep copy of the model. The clone gets its own random source seeded from the config.
func (m *Model) Clone() *Model {
	retVal := &Model{
		Config: m.Config,
		index:  make(map[string]int, len(m.index)),
		rng:    rand.New(rand.NewPCG(m.Seed, m.Seed^0x9e3779b97f4a7c15)),
	}
	for k, v := range m.index {
		retVal.index[k] = v
	}
	for _, u := range m.units {
		retVal.units = append(retVal.units, u.clone())
	}
	for _, l := range m.links {
		retVal.links = append(retVal.links, l.clone())
	}
	return retVal
}

// Topology returns a topology that rebuilds the layers and links of m.
func (m *Model) Topology() Topology {
	var retVal Topology
	for _, u := range m.units {
		retVal.Units = append(retVal.Units, UnitSpec{
			Name:    u.Name(),
			Class:   string(u.Distribution()),
			Visible: u.Visible(),
			Labels:  u.Labels(),
		})
	}
	for _, l := range m.links {
		r, c := l.dims()
		adj := make([][]bool, r)
		for i := range adj {
			adj[i] = make([]bool, c)
			for j := range adj[i] {
				adj[i][j] = l.Adjacent(i, j)
			}
		}
		retVal.Links = append(retVal.Links, LinkSpec{Source: l.source, Target: l.target, Adjacency: adj})
	}
	return retVal
}

func transposeBools(a [][]bool) [][]bool {
	if len(a) == 0 {
		return nil
	}
	retVal := make([][]bool, len(a[0]))
	for j := range retVal {
		retVal[j] = make([]bool, len(a))
		for i := range a {
			if j < len(a[i]) {
				retVal[j][i] = a[i][j]
			}
		}
	}
	return retVal
}
