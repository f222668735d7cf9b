// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation over an
// explicit computation graph.
//
// Nodes are added to a Graph and referred to by NodeID. A pass computes a
// topological order once, evaluates it forward, seeds gradients on the
// sinks and runs it backward:
//
//	g := autodiff.NewGraph()
//	w := g.Var(weight)
//	x := g.Var(input)
//	y := g.LogSoftmax(g.MatMul(w, x))
//
//	order := autodiff.TopoOrder(g, []autodiff.NodeID{y})
//	g.Eval(order)
//	g.SetGrad(y, seed)
//	g.Grad(order)
//	dw := g.GradOf(w)
//
// Gradients accumulate: a node feeding several consumers receives the sum
// of their contributions. ZeroGrad clears every gradient.
package autodiff

import (
	"github.com/born-ml/framepred/internal/autodiff"
)

// Graph is an arena of computation nodes.
type Graph = autodiff.Graph

// NodeID identifies a node within its Graph.
type NodeID = autodiff.NodeID

// Kind is the operation a node performs.
type Kind = autodiff.Kind

// Node kinds.
const (
	KindVar        = autodiff.KindVar
	KindMatMul     = autodiff.KindMatMul
	KindAdd        = autodiff.KindAdd
	KindLogSoftmax = autodiff.KindLogSoftmax
	KindIdentity   = autodiff.KindIdentity
)

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return autodiff.NewGraph()
}

// TopoOrder returns every node reachable from sinks with inputs before
// consumers.
func TopoOrder(g *Graph, sinks []NodeID) []NodeID {
	return autodiff.TopoOrder(g, sinks)
}
