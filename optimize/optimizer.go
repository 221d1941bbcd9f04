package optimize

import (
	"context"
	"time"

	"github.com/gorgonia/belief"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// Dataset provides training minibatches.
//
// Batch returns size random rows of the in and out columns, or every row when size is 0.
type Dataset interface {
	Batch(in, out []string, size int) (x, y *mat.Dense, err error)
}

// State is the state of an optimizer.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Result summarises a run.
type Result struct {
	Iterations int
	Applied    int
	Skipped    int
	Aborted    bool
	Elapsed    time.Duration
}

// Optimizer trains the parameters of a model along a mapping by BPROP or RPROP.
type Optimizer struct {
	Config

	model     *belief.Model
	data      Dataset
	mapping   belief.Mapping
	inspector Inspector
	in, out   []string

	state    State
	iter     int
	failures int
	x, y     *mat.Dense
	stale    bool // draw a new minibatch before the next iteration
	rprop    *RPropState
	result   Result
}

// New creates an optimizer. A nil mapping trains the whole model, a nil inspector is never asked.
func New(conf Config, m *belief.Model, data Dataset, mp belief.Mapping, ins Inspector) (*Optimizer, error) {
	if !conf.IsValid() {
		return nil, belief.Configurationf("invalid optimizer config %+v", conf)
	}
	if m == nil || data == nil {
		return nil, belief.Configurationf("optimizer needs a model and a dataset")
	}
	if mp == nil {
		mp = m.FullMapping()
	}
	if len(mp) < 2 {
		return nil, belief.Configurationf("cannot optimize along %v", mp)
	}
	src, ok := m.Units(mp.Source())
	if !ok {
		return nil, belief.Configurationf("unknown layer %q", mp.Source())
	}
	tgt, ok := m.Units(mp.Target())
	if !ok {
		return nil, belief.Configurationf("unknown layer %q", mp.Target())
	}
	if ins == nil {
		ins = nopInspector{}
	}
	return &Optimizer{
		Config:    conf,
		model:     m,
		data:      data,
		mapping:   mp,
		inspector: ins,
		in:        src.Labels(),
		out:       tgt.Labels(),
	}, nil
}

func (o *Optimizer) State() State            { return o.state }
func (o *Optimizer) Mapping() belief.Mapping { return o.mapping }
func (o *Optimizer) RPropState() *RPropState { return o.rprop }

// Run runs Updates iterations, or fewer when the inspector aborts or ctx is done.
func (o *Optimizer) Run(ctx context.Context) (Result, error) {
	o.reset()
	o.state = Running
	defer func() { o.state = Stopped }()
	start := time.Now()
	klog.V(1).Infof("%v along %v: %d updates", o.Algorithm, o.mapping, o.Updates)

	for o.iter < o.Updates {
		if err := ctx.Err(); err != nil {
			o.result.Aborted = true
			o.result.Elapsed = time.Since(start)
			return o.result, errors.WithStack(err)
		}
		ev, err := o.Step()
		if err != nil {
			o.result.Elapsed = time.Since(start)
			return o.result, err
		}
		if ev == EventAbort {
			klog.V(1).Infof("aborted after %d iterations", o.iter)
			o.result.Aborted = true
			break
		}
	}
	o.result.Elapsed = time.Since(start)
	return o.result, nil
}

func (o *Optimizer) reset() {
	o.iter = 0
	o.failures = 0
	o.x, o.y = nil, nil
	o.stale = true
	o.rprop = nil
	o.result = Result{}
	if s, ok := o.inspector.(Starter); ok {
		s.Start(o.mapping)
	}
	if s, ok := o.inspector.(Store); ok {
		if st, ok := s.ReadStore(); ok && st != nil {
			if st.Mapping.Equal(o.mapping) {
				o.rprop = st.Clone()
			} else {
				klog.V(1).Infof("not resuming RPROP state of %v along %v", st.Mapping, o.mapping)
			}
		}
	}
}

// Step runs one iteration: draw a minibatch if due, compute the gradient and apply the update.
// Iterations with non finite values are skipped.
func (o *Optimizer) Step() (Event, error) {
	if o.stale || o.iter%o.MinibatchInterval == 0 {
		if err := o.minibatch(); err != nil {
			return EventNone, err
		}
	}
	o.iter++
	o.result.Iterations++

	grad, err := o.model.Gradient(o.mapping, o.x, o.y)
	if err != nil {
		if belief.IsNumericError(err) {
			return o.skip(err)
		}
		return EventNone, errors.WithMessagef(err, "iteration %d", o.iter)
	}
	upd := o.delta(grad)
	if !upd.IsFinite() {
		return o.skip(belief.Numericf("iteration %d: non finite update", o.iter))
	}
	if err := o.model.Apply(upd); err != nil {
		if belief.IsNumericError(err) {
			return o.skip(err)
		}
		return EventNone, errors.WithMessagef(err, "iteration %d", o.iter)
	}
	o.failures = 0
	o.result.Applied++
	if s, ok := o.inspector.(Store); ok && o.rprop != nil {
		s.WriteStore(o.rprop.Clone())
	}
	if klog.V(2).Enabled() {
		klog.Infof("iteration %d/%d applied", o.iter, o.Updates)
	}
	return o.inspect(), nil
}

func (o *Optimizer) minibatch() error {
	x, y, err := o.data.Batch(o.in, o.out, o.MinibatchSize)
	if err != nil {
		if belief.IsDataUnavailableError(err) {
			return err
		}
		return belief.DataUnavailable(err, "drawing a minibatch for %v", o.mapping)
	}
	o.x, o.y = x, y
	o.stale = false
	return nil
}

func (o *Optimizer) skip(err error) (Event, error) {
	o.failures++
	o.result.Skipped++
	o.stale = true
	klog.Warningf("iteration %d skipped: %v", o.iter, err)
	if o.failures > o.MaxNumericFailures {
		return EventNone, errors.WithMessagef(err, "%d consecutive numeric failures", o.failures)
	}
	return o.inspect(), nil
}

func (o *Optimizer) inspect() Event {
	return o.inspector.Trigger(Progress{
		Iteration: o.iter,
		Updates:   o.Updates,
		Skipped:   o.result.Skipped,
		Mapping:   o.mapping,
		Model:     o.model,
	})
}

// delta turns a gradient into the update to apply.
func (o *Optimizer) delta(g *belief.Gradient) *belief.Gradient {
	if o.Algorithm == BPROP {
		return g.Scale(o.LearningRate)
	}
	if o.rprop == nil || !o.rprop.fits(g) {
		o.rprop = newRPropState(g, o.InitialRate)
	}
	return o.rprop.update(g, o.Config)
}
