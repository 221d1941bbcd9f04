package belief

import (
	"gonum.org/v1/gonum/mat"
)

// maebe carries the first error through a chain of matrix operations.
// gonum panics on shape mismatches, so every operation checks shapes first.
type maebe struct {
	err error
}

// mul returns a·b.
func (m *maebe) mul(a, b mat.Matrix) *mat.Dense {
	if m.err != nil {
		return nil
	}
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		m.err = Dimensionf("cannot multiply (%d, %d) by (%d, %d)", ar, ac, br, bc)
		return nil
	}
	retVal := mat.NewDense(ar, bc, nil)
	retVal.Mul(a, b)
	return retVal
}

// hadamard returns the elementwise product of a and b.
func (m *maebe) hadamard(a, b mat.Matrix) *mat.Dense {
	if m.err != nil {
		return nil
	}
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		m.err = Dimensionf("elementwise product of (%d, %d) and (%d, %d)", ar, ac, br, bc)
		return nil
	}
	retVal := mat.NewDense(ar, ac, nil)
	retVal.MulElem(a, b)
	return retVal
}

// sub returns a-b.
func (m *maebe) sub(a, b mat.Matrix) *mat.Dense {
	if m.err != nil {
		return nil
	}
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		m.err = Dimensionf("cannot subtract (%d, %d) from (%d, %d)", br, bc, ar, ac)
		return nil
	}
	retVal := mat.NewDense(ar, ac, nil)
	retVal.Sub(a, b)
	return retVal
}

// divCols divides every column j of a by s[j]. nil s is a no-op copy.
func (m *maebe) divCols(a mat.Matrix, s []float64) *mat.Dense {
	if m.err != nil {
		return nil
	}
	r, c := a.Dims()
	if s != nil && len(s) != c {
		m.err = Dimensionf("cannot scale %d columns by %d values", c, len(s))
		return nil
	}
	retVal := mat.DenseCopyOf(a)
	if s == nil {
		return retVal
	}
	for i := 0; i < r; i++ {
		row := retVal.RawRowView(i)
		for j := range row {
			row[j] /= s[j]
		}
	}
	return retVal
}
