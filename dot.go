package belief

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

type dotUnit struct {
	Label  string
	Class  Distribution
	Bias   string
	LogVar string
}

// ToDot renders the model as a Graphviz digraph: one cluster per layer, one edge per linked pair of units.
func (m *Model) ToDot() (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.SetDir(true); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.AddAttr("G", "rankdir", "LR"); err != nil {
		return "", errors.WithStack(err)
	}

	var buf bytes.Buffer
	for li, u := range m.units {
		cluster := fmt.Sprintf("cluster_%d", li)
		if err := g.AddSubGraph("G", cluster, map[string]string{"label": strconv.Quote(u.Name())}); err != nil {
			return "", errors.WithStack(err)
		}
		p := u.Params()
		for i, label := range u.Labels() {
			du := dotUnit{Label: label, Class: u.Distribution(), Bias: fmt.Sprintf("%1.3f", p.Bias[i])}
			if p.LogVar != nil {
				du.LogVar = fmt.Sprintf("%1.3f", p.LogVar[i])
			}
			buf.Reset()
			if err := dotTmpl.Execute(&buf, du); err != nil {
				return "", errors.WithStack(err)
			}
			attrs := map[string]string{
				"fontname": "Monaco",
				"shape":    "none",
				"label":    buf.String(),
			}
			if err := g.AddNode(cluster, dotID(li, i), attrs); err != nil {
				return "", errors.WithStack(err)
			}
		}
	}
	for li, l := range m.links {
		w := l.Effective()
		r, c := w.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if !l.Adjacent(i, j) {
					continue
				}
				attrs := map[string]string{"label": strconv.Quote(fmt.Sprintf("%1.2f", w.At(i, j)))}
				if err := g.AddEdge(dotID(li, i), dotID(li+1, j), true, attrs); err != nil {
					return "", errors.WithStack(err)
				}
			}
		}
	}
	return g.String(), nil
}

func dotID(layer, unit int) string { return fmt.Sprintf("l%du%d", layer, unit) }

const dotTmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD>Unit</TD><TD>{{.Label}}</TD></TR>
<TR><TD>Class</TD><TD>{{.Class}}</TD></TR>
<TR><TD>Bias</TD><TD>{{.Bias}}</TD></TR>
{{if .LogVar}}<TR><TD>LogVar</TD><TD>{{.LogVar}}</TD></TR>
{{end}}</TABLE>
>`

var dotTmpl = template.Must(template.New("unit").Parse(dotTmplRaw))
