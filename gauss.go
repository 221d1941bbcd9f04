package belief

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Gauss is a layer of real valued units with an identity activation and a per-unit log variance.
type Gauss struct {
	layer
	logVar []float64
}

func (u *Gauss) Distribution() Distribution { return GaussDist }
func (u *Gauss) Params() Params {
	return Params{Bias: cloneFloats(u.bias), LogVar: cloneFloats(u.logVar)}
}

// Initialize sets the bias to the column means of data and the log variance to log(sigma²) with
// sigma 0.4. Without data both are zero.
func (u *Gauss) Initialize(data *mat.Dense) error { return u.initialize(data, 0.4) }

func (u *Gauss) initialize(data *mat.Dense, sigma float64) error {
	if data == nil {
		for i := range u.bias {
			u.bias[i] = 0
			u.logVar[i] = 0
		}
		return nil
	}
	if err := checkCols(data, u.Len(), u.name); err != nil {
		return err
	}
	copy(u.bias, ColumnMeans(data))
	lv := math.Log(sigma * sigma)
	for i := range u.logVar {
		u.logVar[i] = lv
	}
	return nil
}

func (u *Gauss) Linear(input, w mat.Matrix) (*mat.Dense, error) { return u.linear(input, w) }

func (u *Gauss) Activate(pre *mat.Dense) *mat.Dense { return mat.DenseCopyOf(pre) }

func (u *Gauss) Derivative(pre *mat.Dense) *mat.Dense {
	r, c := pre.Dims()
	retVal := mat.NewDense(r, c, nil)
	retVal.Apply(func(_, _ int, _ float64) float64 { return 1 }, pre)
	return retVal
}

// Expect returns bias + input·w.
func (u *Gauss) Expect(input mat.Matrix, source Units, w mat.Matrix) (*mat.Dense, error) {
	return u.Linear(input, w)
}

func (u *Gauss) Values(expect mat.Matrix) *mat.Dense { return mat.DenseCopyOf(expect) }

// Samples draws from a normal distribution around the expectation, with the standard deviation of each unit.
func (u *Gauss) Samples(expect mat.Matrix, src rand.Source) *mat.Dense {
	r, c := expect.Dims()
	sd := make([]float64, c)
	for j := range sd {
		sd[j] = math.Sqrt(math.Exp(u.logVar[j]))
	}
	retVal := mat.NewDense(r, c, nil)
	retVal.Apply(func(_, j int, v float64) float64 {
		return distuv.Normal{Mu: v, Sigma: sd[j], Src: src}.Rand()
	}, expect)
	return retVal
}

// Energy returns -0.5*mean((data-bias)²)/exp(logvar) per unit.
func (u *Gauss) Energy(data mat.Matrix) ([]float64, error) {
	if err := checkCols(data, u.Len(), u.name); err != nil {
		return nil, err
	}
	r, c := data.Dims()
	retVal := make([]float64, c)
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			d := data.At(i, j) - u.bias[j]
			sum += d * d
		}
		retVal[j] = -0.5 * (sum / float64(r)) / math.Exp(u.logVar[j])
	}
	return retVal, nil
}

// Update adds delta to the bias and, when given, to the log variance.
func (u *Gauss) Update(delta Params) error {
	if len(delta.Bias) != len(u.bias) {
		return Dimensionf("%s: bias update of length %d, expected %d", u.name, len(delta.Bias), len(u.bias))
	}
	if delta.LogVar != nil && len(delta.LogVar) != len(u.logVar) {
		return Dimensionf("%s: log variance update of length %d, expected %d", u.name, len(delta.LogVar), len(u.logVar))
	}
	for i, d := range delta.Bias {
		u.bias[i] += d
	}
	for i, d := range delta.LogVar {
		u.logVar[i] += d
	}
	return nil
}

func (u *Gauss) clone() Units {
	return &Gauss{layer: u.copyLayer(), logVar: cloneFloats(u.logVar)}
}

func (u *Gauss) restore(p Params) error {
	if len(p.Bias) != len(u.bias) || len(p.LogVar) != len(u.logVar) {
		return Dimensionf("%s: params of length (%d, %d), expected %d", u.name, len(p.Bias), len(p.LogVar), len(u.bias))
	}
	copy(u.bias, p.Bias)
	copy(u.logVar, p.LogVar)
	return nil
}
