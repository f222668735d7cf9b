// Package optim implements adaptive first-order update rules.
//
// This package provides:
//   - AdaGrad: step normalized by the running sum of squared gradients
//   - RMSProp: step normalized by an exponential moving average of
//     squared gradients
//
// Both rules mutate the parameter and the optimizer state in place and
// read the gradient only. The state must have the same shape as the
// parameter and start at zero.
//
// Example usage:
//
//	state := mat.NewDense(r, c, nil)
//	rule := optim.NewAdaGrad(optim.Config{LR: 0.05})
//
//	for _, seq := range data {
//	    grad := computeGrad(param, seq)
//	    optim.UpdateDense(rule, param, grad, state)
//	}
package optim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultEps keeps the normalized step finite when the state is zero.
const DefaultEps = 1e-16

// Config is the base configuration for all optimizers.
type Config struct {
	LR  float64 // Step size
	Eps float64 // Added to sqrt(state) in the denominator (default: DefaultEps)
}

func (c Config) withDefaults() Config {
	if c.Eps == 0 {
		c.Eps = DefaultEps
	}
	return c
}

// Rule is an element-wise update over flat tensors.
type Rule interface {
	// Update applies one step to param using grad, updating state.
	// All three slices must have the same length.
	Update(param, grad, state []float64)
}

// UpdateDense applies rule to dense matrices of identical shape.
func UpdateDense(rule Rule, param, grad, state *mat.Dense) {
	checkShape(param, grad, state)
	rule.Update(denseData(param), denseData(grad), denseData(state))
}

// UpdateVec applies rule to vectors of identical length.
func UpdateVec(rule Rule, param, grad, state *mat.VecDense) {
	checkShape(param, grad, state)
	rule.Update(vecData(param), vecData(grad), vecData(state))
}

func checkShape(param, grad, state mat.Matrix) {
	pr, pc := param.Dims()
	gr, gc := grad.Dims()
	sr, sc := state.Dims()
	if pr != gr || pc != gc || pr != sr || pc != sc {
		panic(fmt.Sprintf("optim: shape mismatch: param %dx%d, grad %dx%d, state %dx%d",
			pr, pc, gr, gc, sr, sc))
	}
}

func checkLen(param, grad, state []float64) {
	if len(param) != len(grad) || len(param) != len(state) {
		panic(fmt.Sprintf("optim: length mismatch: param %d, grad %d, state %d",
			len(param), len(grad), len(state)))
	}
}

// denseData returns the backing slice of a contiguous matrix.
func denseData(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	if raw.Stride != raw.Cols {
		panic("optim: matrix is not contiguous")
	}
	return raw.Data[:raw.Rows*raw.Cols]
}

func vecData(v *mat.VecDense) []float64 {
	raw := v.RawVector()
	if raw.Inc != 1 {
		panic("optim: vector is not contiguous")
	}
	return raw.Data[:raw.N]
}
