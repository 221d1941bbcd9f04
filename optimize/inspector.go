package optimize

import (
	"github.com/gorgonia/belief"
)

// Event is what an inspector asks the optimizer to do after an iteration.
type Event int

const (
	EventNone Event = iota
	EventAbort
)

// Progress is passed to the inspector after every iteration.
type Progress struct {
	Iteration int // 1 based
	Updates   int // total iterations of the run
	Skipped   int // iterations skipped so far because of numeric failures
	Mapping   belief.Mapping
	Model     *belief.Model
}

// Inspector is polled once per iteration.
type Inspector interface {
	Trigger(p Progress) Event
}

// InspectorFunc adapts a function to an Inspector.
type InspectorFunc func(p Progress) Event

func (f InspectorFunc) Trigger(p Progress) Event { return f(p) }

// Starter is implemented by inspectors that keep per run state. Start is called when a run
// along mp starts, before anything else is asked of the inspector.
type Starter interface {
	Start(mp belief.Mapping)
}

// Store is implemented by inspectors that keep the RPROP state of a run.
// ReadStore is called when a run starts, WriteStore after every applied update.
// A stored state is only resumed by a run along the mapping it was kept for.
type Store interface {
	ReadStore() (*RPropState, bool)
	WriteStore(s *RPropState)
}

type nopInspector struct{}

func (nopInspector) Trigger(Progress) Event { return EventNone }
