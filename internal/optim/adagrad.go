package optim

import "math"

// AdaGrad implements the AdaGrad update rule.
//
// Update rule:
//
//	state = state + gradient²
//	param = param - lr * gradient / (sqrt(state) + eps)
//
// The state only grows, so the effective step size for each element
// shrinks over the run.
//
// Example:
//
//	opt := optim.NewAdaGrad(optim.Config{LR: 0.01})
//	optim.UpdateDense(opt, weight, weightGrad, weightState)
type AdaGrad struct {
	lr  float64
	eps float64
}

// NewAdaGrad creates a new AdaGrad rule.
func NewAdaGrad(config Config) *AdaGrad {
	config = config.withDefaults()
	return &AdaGrad{
		lr:  config.LR,
		eps: config.Eps,
	}
}

// Update applies one AdaGrad step.
func (a *AdaGrad) Update(param, grad, state []float64) {
	checkLen(param, grad, state)
	for i, g := range grad {
		state[i] += g * g
		param[i] -= a.lr * g / (math.Sqrt(state[i]) + a.eps)
	}
}

// GetLR returns the step size.
func (a *AdaGrad) GetLR() float64 {
	return a.lr
}

// SetLR updates the step size.
func (a *AdaGrad) SetLR(lr float64) {
	a.lr = lr
}
