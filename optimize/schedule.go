package optimize

import (
	"context"

	"github.com/gorgonia/belief"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Stage is one optimizer run of a schedule.
type Stage struct {
	Name    string
	Config  Config
	Mapping belief.Mapping // nil trains the whole model
}

// Report is the outcome of a stage.
type Report struct {
	Name   string
	Result Result
	Err    error
}

// Schedule runs stages in order on one model.
type Schedule []Stage

// Run runs every stage. A failed stage is reported and the next stage runs anyway;
// only a done ctx stops the schedule early.
func (s Schedule) Run(ctx context.Context, m *belief.Model, data Dataset, ins Inspector) []Report {
	reports := make([]Report, 0, len(s))
	for _, st := range s {
		if err := ctx.Err(); err != nil {
			reports = append(reports, Report{Name: st.Name, Err: errors.WithStack(err)})
			break
		}
		r := Report{Name: st.Name}
		o, err := New(st.Config, m, data, st.Mapping, ins)
		if err == nil {
			r.Result, err = o.Run(ctx)
		}
		if err != nil {
			r.Err = errors.WithMessagef(err, "stage %q", st.Name)
			klog.Warningf("stage %q failed: %v", st.Name, err)
		}
		reports = append(reports, r)
	}
	return reports
}

// Err returns the first error of reports, if any.
func Err(reports []Report) error {
	for _, r := range reports {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
