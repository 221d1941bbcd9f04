package belief

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Bernoulli is a layer of binary units with a logistic activation.
type Bernoulli struct {
	layer
}

func (u *Bernoulli) Distribution() Distribution { return BernoulliDist }
func (u *Bernoulli) Params() Params             { return Params{Bias: cloneFloats(u.bias)} }

// Initialize sets every bias to 0.5. Data is only checked for its shape.
func (u *Bernoulli) Initialize(data *mat.Dense) error {
	if data != nil {
		if err := checkCols(data, u.Len(), u.name); err != nil {
			return err
		}
	}
	for i := range u.bias {
		u.bias[i] = 0.5
	}
	return nil
}

func (u *Bernoulli) Linear(input, w mat.Matrix) (*mat.Dense, error) { return u.linear(input, w) }

func (u *Bernoulli) Activate(pre *mat.Dense) *mat.Dense {
	r, c := pre.Dims()
	retVal := mat.NewDense(r, c, nil)
	retVal.Apply(func(_, _ int, v float64) float64 { return sigmoid(v) }, pre)
	return retVal
}

// Derivative is the derivative of the logistic function at pre.
func (u *Bernoulli) Derivative(pre *mat.Dense) *mat.Dense {
	r, c := pre.Dims()
	retVal := mat.NewDense(r, c, nil)
	retVal.Apply(func(_, _ int, v float64) float64 {
		s := sigmoid(v)
		return s * (1 - s)
	}, pre)
	return retVal
}

// Expect returns sigmoid(bias + input·w). Input from a Gauss layer is divided by its variance first.
func (u *Bernoulli) Expect(input mat.Matrix, source Units, w mat.Matrix) (*mat.Dense, error) {
	scaled, err := scaleInput(input, source, u)
	if err != nil {
		return nil, err
	}
	pre, err := u.Linear(scaled, w)
	if err != nil {
		return nil, err
	}
	return u.Activate(pre), nil
}

// Values thresholds expectations at 0.5.
func (u *Bernoulli) Values(expect mat.Matrix) *mat.Dense {
	r, c := expect.Dims()
	retVal := mat.NewDense(r, c, nil)
	retVal.Apply(func(_, _ int, v float64) float64 {
		if v > 0.5 {
			return 1
		}
		return 0
	}, expect)
	return retVal
}

// Samples draws a binary value for every entry, with the expectation as probability.
func (u *Bernoulli) Samples(expect mat.Matrix, src rand.Source) *mat.Dense {
	r, c := expect.Dims()
	retVal := mat.NewDense(r, c, nil)
	retVal.Apply(func(_, _ int, v float64) float64 {
		return distuv.Bernoulli{P: clampProb(v), Src: src}.Rand()
	}, expect)
	return retVal
}

// Energy returns -mean(data*bias) per unit.
func (u *Bernoulli) Energy(data mat.Matrix) ([]float64, error) {
	if err := checkCols(data, u.Len(), u.name); err != nil {
		return nil, err
	}
	means := ColumnMeans(data)
	for i := range means {
		means[i] *= -u.bias[i]
	}
	return means, nil
}

func (u *Bernoulli) Update(delta Params) error {
	if len(delta.Bias) != len(u.bias) {
		return Dimensionf("%s: bias update of length %d, expected %d", u.name, len(delta.Bias), len(u.bias))
	}
	for i, d := range delta.Bias {
		u.bias[i] += d
	}
	return nil
}

func (u *Bernoulli) clone() Units { return &Bernoulli{layer: u.copyLayer()} }

func (u *Bernoulli) restore(p Params) error {
	if len(p.Bias) != len(u.bias) {
		return Dimensionf("%s: bias of length %d, expected %d", u.name, len(p.Bias), len(u.bias))
	}
	copy(u.bias, p.Bias)
	return nil
}

func clampProb(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
