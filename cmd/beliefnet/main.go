// Command beliefnet trains a layered belief network on a CSV file, or on synthetic rules when no
// file is given, and reports how well it reconstructs held out data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorgonia/belief"
	"github.com/gorgonia/belief/dataset"
	"github.com/gorgonia/belief/eval"
	"github.com/gorgonia/belief/optimize"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagCSV      = flag.String("csv", "", "CSV file with a header row. If empty, synthetic rules are generated.")
	flagRows     = flag.Int("rows", 1000, "Rows of synthetic data.")
	flagIn       = flag.String("in", "", "Comma separated input columns of the CSV file.")
	flagOut      = flag.String("out", "", "Comma separated output columns of the CSV file.")
	flagBinarize = flag.String("binarize", "", "Comma separated CSV columns turned into 0/1 at 0.5.")
	flagInClass  = flag.String("in-class", "bernoulli", "Distribution of the input layer.")
	flagOutClass = flag.String("out-class", "bernoulli", "Distribution of the output layer.")
	flagHidden   = flag.Int("hidden", 4, "Units of the hidden layer.")
	flagHClass   = flag.String("hidden-class", "gauss", "Distribution of the hidden layer.")
	flagAlgo     = flag.String("algorithm", "rprop", "bprop or rprop.")
	flagUpdates  = flag.Int("updates", 2000, "Iterations of the full model.")
	flagPretrain = flag.Int("pretrain", 0, "Iterations of the reversed mapping, from the outputs to the inputs, before the full model.")
	flagBatch    = flag.Int("batch", 100, "Minibatch size, 0 for every row.")
	flagInterval = flag.Int("interval", 10, "Iterations between minibatches.")
	flagHoldout  = flag.Float64("holdout", 0.2, "Fraction of the rows held out for evaluation.")
	flagEvery    = flag.Int("every", 100, "Iterations between evaluations of the held out data.")
	flagTarget   = flag.Float64("target-error", 0, "Stop once the held out error is below this.")
	flagPatience = flag.Int("patience", 0, "Stop after this many evaluations without improvement.")
	flagSeed     = flag.Uint64("seed", 1337, "Random seed.")
	flagSave     = flag.String("save", "", "Save the trained model into this file.")
	flagDot      = flag.String("dot", "", "Write the trained model as a graphviz graph into this file.")
	flagStats    = flag.String("stats", "", "Write the evaluation trace as CSV into this file.")
)

// progress shows a progress bar and passes every iteration on to the monitor.
type progress struct {
	bar *progressbar.ProgressBar
	mon *optimize.Monitor
}

func newProgress(mon *optimize.Monitor) *progress {
	return &progress{
		bar: progressbar.NewOptions(1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("updates"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
		),
		mon: mon,
	}
}

func (p *progress) Trigger(pr optimize.Progress) optimize.Event {
	if pr.Iteration == 1 {
		p.bar.Reset()
		p.bar.ChangeMax(pr.Updates)
		p.bar.Describe(pr.Mapping.String())
	}
	if err := p.bar.Set(pr.Iteration); err != nil {
		klog.V(2).Infof("progress bar: %v", err)
	}
	return p.mon.Trigger(pr)
}

func (p *progress) Start(mp belief.Mapping)                 { p.mon.Start(mp) }
func (p *progress) ReadStore() (*optimize.RPropState, bool) { return p.mon.ReadStore() }
func (p *progress) WriteStore(s *optimize.RPropState)       { p.mon.WriteStore(s) }

func split(s string) []string {
	var retVal []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			retVal = append(retVal, f)
		}
	}
	return retVal
}

func loadData() (data *dataset.Table, in, out []string) {
	if *flagCSV == "" {
		return must.M1(dataset.Rules(*flagRows, *flagSeed)), dataset.RuleLabels.In, dataset.RuleLabels.Out
	}
	f := must.M1(os.Open(*flagCSV))
	defer f.Close()
	data = must.M1(dataset.ReadCSV(f, *flagSeed))
	in, out = split(*flagIn), split(*flagOut)
	if len(in) == 0 || len(out) == 0 {
		klog.Fatalf("-in and -out are required with -csv")
	}
	if cols := split(*flagBinarize); len(cols) > 0 {
		must.M(data.Binarize(cols, 0.5))
	}
	return data, in, out
}

func topology(in, out []string) belief.Topology {
	hidden := make([]string, *flagHidden)
	for i := range hidden {
		hidden[i] = fmt.Sprintf("h%d", i+1)
	}
	return belief.Topology{Units: []belief.UnitSpec{
		{Name: "in", Class: *flagInClass, Visible: true, Labels: in},
		{Name: "hidden", Class: *flagHClass, Labels: hidden},
		{Name: "out", Class: *flagOutClass, Visible: true, Labels: out},
	}}
}

func schedule() optimize.Schedule {
	conf := optimize.DefaultConf()
	algo, ok := optimize.ParseAlgorithm(*flagAlgo)
	if !ok {
		klog.Fatalf("unknown algorithm %q", *flagAlgo)
	}
	conf.Algorithm = algo
	conf.MinibatchSize = *flagBatch
	conf.MinibatchInterval = *flagInterval

	var retVal optimize.Schedule
	if *flagPretrain > 0 {
		pre := conf
		pre.Updates = *flagPretrain
		retVal = append(retVal, optimize.Stage{Name: "pretrain", Config: pre, Mapping: belief.Mapping{"out", "hidden", "in"}})
	}
	conf.Updates = *flagUpdates
	return append(retVal, optimize.Stage{Name: "train", Config: conf})
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	data, in, out := loadData()
	train, test := must.M2(data.Split(1 - *flagHoldout))
	klog.Infof("%s training rows, %s held out", humanize.Comma(int64(train.Len())), humanize.Comma(int64(test.Len())))

	conf := belief.DefaultConfig()
	conf.Seed = *flagSeed
	m := must.M1(belief.New(conf, topology(in, out)))
	must.M(m.Initialize(train))

	x := must.M1(test.Columns(in))
	y := must.M1(test.Columns(out))
	mon := optimize.NewMonitor(x, y, *flagEvery)
	mon.TargetError = *flagTarget
	mon.Patience = *flagPatience

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	reports := schedule().Run(ctx, m, train, newProgress(mon))
	fmt.Fprintln(os.Stderr)
	for _, r := range reports {
		if r.Err != nil {
			klog.Errorf("%+v", r.Err)
			continue
		}
		fmt.Printf("%-10s %s iterations, %s applied, %s skipped in %v\n", r.Name,
			humanize.Comma(int64(r.Result.Iterations)), humanize.Comma(int64(r.Result.Applied)),
			humanize.Comma(int64(r.Result.Skipped)), r.Result.Elapsed)
	}

	opts := eval.Options{}
	for _, name := range []string{"error", "accuracy", "energy"} {
		v := must.M1(eval.Evaluate(m, x, y, eval.ModelCategory, name, opts))
		fmt.Printf("model %-9s %s\n", name, humanize.FtoaWithDigits(v.Scalar, 6))
	}
	acc := must.M1(eval.Evaluate(m, x, y, eval.UnitsCategory, "accuracy", opts))
	labels := make([]string, 0, len(acc.Units))
	for l := range acc.Units {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Printf("  %-10s %s\n", l, humanize.FtoaWithDigits(acc.Units[l], 4))
	}
	if ko, err := eval.Evaluate(m, x, y, eval.RelationCategory, "knockout", opts); err != nil {
		klog.Warningf("knockout: %v", err)
	} else if ko.Stats != nil {
		fmt.Printf("knockout max %s, mean %s, sd %s\n", humanize.FtoaWithDigits(ko.Stats.Max, 4),
			humanize.FtoaWithDigits(ko.Stats.Mean, 4), humanize.FtoaWithDigits(ko.Stats.SD, 4))
	}

	if *flagSave != "" {
		must.M(m.Save(*flagSave))
	}
	if *flagDot != "" {
		dot := must.M1(m.ToDot())
		must.M(os.WriteFile(*flagDot, []byte(dot), 0644))
	}
	if *flagStats != "" {
		must.M(mon.Stats.Dump(*flagStats))
	}
	if err := optimize.Err(reports); err != nil {
		klog.Exitf("training failed: %v", err)
	}
}
