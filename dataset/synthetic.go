package dataset

import (
	"math/rand/v2"
)

// RuleLabels are the input and output columns of Rules.
var RuleLabels = struct{ In, Out []string }{
	In:  []string{"i1", "i2", "i3", "i4"},
	Out: []string{"o1", "o2", "o3", "o4"},
}

// Rules generates n rows of four random input bits and four output bits derived from them:
// o1 = i1, o2 = not i2, o3 = i1 and i3, o4 = i4.
func Rules(n int, seed uint64) (*Table, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x5bd1e995))
	const width = 8
	data := make([]float64, n*width)
	for r := 0; r < n; r++ {
		row := data[r*width : (r+1)*width]
		for k := 0; k < 4; k++ {
			if rng.IntN(2) == 1 {
				row[k] = 1
			}
		}
		row[4] = row[0]
		row[5] = 1 - row[1]
		row[6] = row[0] * row[2]
		row[7] = row[3]
	}
	labels := append(append([]string(nil), RuleLabels.In...), RuleLabels.Out...)
	return New(labels, n, width, data, seed)
}
