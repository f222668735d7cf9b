// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pred provides the per-frame prediction layer: a linear map and
// log-softmax applied at every timestep with one shared weight and bias.
//
// Example:
//
//	g := autodiff.NewGraph()
//	nn := pred.MakeNN(g, param, pred.FrameVars(g, frames))
//	pred.Eval(nn)
//	for t, id := range nn.LogProb {
//	    loss := pred.LogLoss{Gold: pred.OneHot(k, gold[t]), Pred: g.VecValue(id)}
//	    g.SetGrad(id, loss.Grad())
//	}
//	pred.Grad(nn)
//	pred.AdaGradUpdate(param, pred.CopyGrad(nn), opt, 0.01)
package pred

import (
	"io"
	"math/rand"

	"github.com/born-ml/framepred/internal/autodiff"
	"github.com/born-ml/framepred/internal/optim"
	"github.com/born-ml/framepred/internal/pred"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when a loaded weight and bias disagree.
var ErrShapeMismatch = pred.ErrShapeMismatch

// Param holds the weight matrix and bias vector of the layer.
type Param = pred.Param

// NN is the prediction sub-graph over one sequence.
type NN = pred.NN

// LogLoss is the negative log-likelihood of a gold distribution.
type LogLoss = pred.LogLoss

// NewParam creates a zero K×D parameter bundle.
func NewParam(k, d int) *Param { return pred.NewParam(k, d) }

// NewXavierParam creates a bundle with Xavier uniform weights.
func NewXavierParam(k, d int, rng *rand.Rand) *Param { return pred.NewXavierParam(k, d, rng) }

// NewOptState creates a zero optimizer state shaped like p.
func NewOptState(p *Param) *Param { return pred.NewOptState(p) }

// LoadParam reads a weight record followed by a bias record.
func LoadParam(r io.Reader) (*Param, error) { return pred.LoadParam(r) }

// LoadParamFile reads a parameter bundle from path.
func LoadParamFile(path string) (*Param, error) { return pred.LoadParamFile(path) }

// SaveParam writes a weight record followed by a bias record.
func SaveParam(w io.Writer, p *Param) error { return pred.SaveParam(w, p) }

// SaveParamFile writes p to path.
func SaveParamFile(path string, p *Param) error { return pred.SaveParamFile(path, p) }

// FrameVars adds one var node per frame.
func FrameVars(g *autodiff.Graph, frames [][]float64) []autodiff.NodeID {
	return pred.FrameVars(g, frames)
}

// MakeNN attaches the prediction layer to every feature node.
func MakeNN(g *autodiff.Graph, param *Param, feat []autodiff.NodeID) *NN {
	return pred.MakeNN(g, param, feat)
}

// MakeSubsampledNN builds the layer over every freq-th feature and
// upsamples the outputs back to len(feat).
func MakeSubsampledNN(g *autodiff.Graph, param *Param, feat []autodiff.NodeID, freq int) (*NN, []autodiff.NodeID) {
	return pred.MakeSubsampledNN(g, param, feat, freq)
}

// Eval runs the forward pass.
func Eval(nn *NN) { pred.Eval(nn) }

// Grad runs the backward pass from the seeded log-prob nodes.
func Grad(nn *NN) { pred.Grad(nn) }

// CopyGrad harvests the weight and bias gradients.
func CopyGrad(nn *NN) *Param { return pred.CopyGrad(nn) }

// OneHot returns a length-k vector with a 1 at index.
func OneHot(k, index int) *mat.VecDense { return pred.OneHot(k, index) }

// Upsample repeats each output freq times over size positions.
func Upsample(g *autodiff.Graph, outputs []autodiff.NodeID, freq, size int) []autodiff.NodeID {
	return pred.Upsample(g, outputs, freq, size)
}

// AdaGradUpdate applies one AdaGrad step to both tensors.
func AdaGradUpdate(param, grad, opt *Param, stepSize float64) {
	pred.AdaGradUpdate(param, grad, opt, stepSize)
}

// RMSPropUpdate applies one RMSProp step to both tensors.
func RMSPropUpdate(param, grad, opt *Param, decay, stepSize float64) {
	pred.RMSPropUpdate(param, grad, opt, decay, stepSize)
}

// Update applies rule to both tensors.
func Update(rule optim.Rule, param, grad, opt *Param) { pred.Update(rule, param, grad, opt) }

// Subsample keeps inputs at indices 0, freq, 2*freq, ...
func Subsample[T any](inputs []T, freq int) []T { return pred.Subsample(inputs, freq) }
