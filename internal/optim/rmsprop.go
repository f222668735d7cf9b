package optim

import (
	"fmt"
	"math"
)

// RMSProp implements the RMSProp update rule.
//
// Update rule:
//
//	state = decay * state + (1-decay) * gradient²
//	param = param - lr * gradient / (sqrt(state) + eps)
//
// With decay = 0 every step is normalized by the current gradient's
// magnitude alone. As decay approaches 1 the state forgets slowly and the
// rule behaves like AdaGrad with a rescaled step.
type RMSProp struct {
	lr    float64
	decay float64
	eps   float64
}

// RMSPropConfig holds configuration for RMSProp.
type RMSPropConfig struct {
	Config
	Decay float64 // Moving-average coefficient, range [0, 1)
}

// NewRMSProp creates a new RMSProp rule.
//
// Panics if Decay is outside [0, 1).
func NewRMSProp(config RMSPropConfig) *RMSProp {
	if config.Decay < 0 || config.Decay >= 1 {
		panic(fmt.Sprintf("optim: rmsprop decay %v outside [0, 1)", config.Decay))
	}
	base := config.Config.withDefaults()
	return &RMSProp{
		lr:    base.LR,
		decay: config.Decay,
		eps:   base.Eps,
	}
}

// Update applies one RMSProp step.
func (r *RMSProp) Update(param, grad, state []float64) {
	checkLen(param, grad, state)
	for i, g := range grad {
		state[i] = r.decay*state[i] + (1-r.decay)*g*g
		param[i] -= r.lr * g / (math.Sqrt(state[i]) + r.eps)
	}
}

// GetLR returns the step size.
func (r *RMSProp) GetLR() float64 {
	return r.lr
}

// Decay returns the moving-average coefficient.
func (r *RMSProp) Decay() float64 {
	return r.decay
}
