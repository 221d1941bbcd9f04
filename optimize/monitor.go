package optimize

import (
	"math"

	"github.com/gorgonia/belief"
	"github.com/gorgonia/belief/eval"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// Monitor is an Inspector that measures the reconstruction error of held out data every Every iterations.
// It aborts the run once the error drops below TargetError, or when Patience evaluations in a row
// did not improve on the best error of that run. Zero values disable either.
//
// In and Target are the data of the first and last layer of Mapping, the whole model when nil.
// Runs along other mappings are not evaluated.
//
// Monitor also keeps the RPROP state of the runs it watches.
type Monitor struct {
	In, Target  *mat.Dense
	Mapping     belief.Mapping
	Every       int
	TargetError float64
	Patience    int

	Stats Statistics

	best   float64
	stalls int
	state  *RPropState
}

func NewMonitor(in, target *mat.Dense, every int) *Monitor {
	return &Monitor{
		In:     in,
		Target: target,
		Every:  every,
		Stats:  makeStatistics(),
		best:   math.Inf(1),
	}
}

// Start forgets the best error of the previous run.
func (m *Monitor) Start(belief.Mapping) {
	m.best = math.Inf(1)
	m.stalls = 0
}

func (m *Monitor) Trigger(p Progress) Event {
	if m.Every <= 0 || p.Iteration%m.Every != 0 {
		return EventNone
	}
	mp := m.Mapping
	if mp == nil {
		mp = p.Model.FullMapping()
	}
	if !mp.Equal(p.Mapping) {
		return EventNone
	}
	e, err := eval.ModelError(p.Model, p.Mapping, m.In, m.Target, eval.MSE)
	if err != nil {
		klog.Warningf("iteration %d: cannot evaluate: %v", p.Iteration, err)
		return EventNone
	}
	m.Stats.update(p, e)
	klog.V(1).Infof("iteration %d: error %1.6f", p.Iteration, e)

	if m.TargetError > 0 && e <= m.TargetError {
		return EventAbort
	}
	if e < m.best {
		m.best = e
		m.stalls = 0
		return EventNone
	}
	m.stalls++
	if m.Patience > 0 && m.stalls >= m.Patience {
		return EventAbort
	}
	return EventNone
}

// Best is the lowest error seen so far.
func (m *Monitor) Best() float64 { return m.best }

func (m *Monitor) ReadStore() (*RPropState, bool) { return m.state, m.state != nil }
func (m *Monitor) WriteStore(s *RPropState)       { m.state = s }
