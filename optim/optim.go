// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the element-wise update rules used to train the
// prediction layer.
//
// # Overview
//
// This package contains:
//   - AdaGrad: accumulated squared gradients
//   - RMSProp: decaying average of squared gradients
//   - Rule interface for custom update rules
//
// # Basic Usage
//
//	rule := optim.NewAdaGrad(optim.Config{LR: 0.01})
//	state := mat.NewDense(k, d, nil)
//	for step := range steps {
//	    optim.UpdateDense(rule, weight, grad, state)
//	}
package optim

import (
	"github.com/born-ml/framepred/internal/optim"
	"gonum.org/v1/gonum/mat"
)

// DefaultEps is added under the square root of every rule.
const DefaultEps = optim.DefaultEps

// Rule updates one tensor in place from its gradient and state.
type Rule = optim.Rule

// Config represents the base configuration for update rules.
type Config = optim.Config

// AdaGrad represents the AdaGrad rule.
type AdaGrad = optim.AdaGrad

// NewAdaGrad creates a new AdaGrad rule.
//
// Example:
//
//	rule := optim.NewAdaGrad(optim.Config{LR: 0.05})
func NewAdaGrad(config Config) *AdaGrad {
	return optim.NewAdaGrad(config)
}

// RMSProp represents the RMSProp rule.
type RMSProp = optim.RMSProp

// RMSPropConfig contains configuration for the RMSProp rule.
type RMSPropConfig = optim.RMSPropConfig

// NewRMSProp creates a new RMSProp rule. Panics if Decay is outside [0, 1).
//
// Example:
//
//	rule := optim.NewRMSProp(optim.RMSPropConfig{
//	    Config: optim.Config{LR: 0.001},
//	    Decay:  0.9,
//	})
func NewRMSProp(config RMSPropConfig) *RMSProp {
	return optim.NewRMSProp(config)
}

// UpdateDense applies rule to a matrix and its gradient and state.
func UpdateDense(rule Rule, param, grad, state *mat.Dense) {
	optim.UpdateDense(rule, param, grad, state)
}

// UpdateVec applies rule to a vector and its gradient and state.
func UpdateVec(rule Rule, param, grad, state *mat.VecDense) {
	optim.UpdateVec(rule, param, grad, state)
}
