// Package autodiff implements a computation graph with reverse-mode
// automatic differentiation.
//
// Nodes live in an arena owned by a Graph and are addressed by NodeID.
// Each node carries a kind tag, the ids of its inputs, a cached forward
// value and a gradient accumulator. The set of kinds is closed:
//   - Var: a leaf holding a tensor (parameters, input features)
//   - MatMul: a @ b
//   - Add: element-wise sum of one or more inputs
//   - LogSoftmax: x - logsumexp(x), per column
//   - Identity: passthrough of a single input
//
// Usage:
//
//	g := autodiff.NewGraph()
//	w := g.Var(weight)
//	x := g.Var(feature)
//	y := g.LogSoftmax(g.MatMul(w, x))
//
//	order := autodiff.TopoOrder(g, []autodiff.NodeID{y})
//	g.Eval(order)
//	g.SetGrad(y, seed)
//	g.Grad(order)
//	dw := g.GradOf(w)
//
// Backward passes accumulate: Grad adds into the accumulators of every
// input. Call ZeroGrad between independent passes unless accumulation
// across sequences or minibatches is intended.
package autodiff

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// NodeID addresses a node inside a Graph.
type NodeID int

// Kind tags the forward/backward rule of a node.
type Kind uint8

// Node kinds.
const (
	KindVar Kind = iota
	KindMatMul
	KindAdd
	KindLogSoftmax
	KindIdentity
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindVar:
		return "var"
	case KindMatMul:
		return "matmul"
	case KindAdd:
		return "add"
	case KindLogSoftmax:
		return "logsoftmax"
	case KindIdentity:
		return "identity"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type node struct {
	kind      Kind
	inputs    []NodeID
	value     *mat.Dense // valid once evaluated
	grad      *mat.Dense // nil means zero
	evaluated bool
}

// Graph is an arena of computation nodes.
//
// A Graph is not safe for concurrent use. It is built, evaluated and
// differentiated once, then discarded.
type Graph struct {
	nodes []node
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make([]node, 0, 64),
	}
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Kind returns the kind of node id.
func (g *Graph) Kind(id NodeID) Kind {
	return g.at(id).kind
}

// Inputs returns the input ids of node id.
func (g *Graph) Inputs(id NodeID) []NodeID {
	return g.at(id).inputs
}

// Var adds a leaf node holding a copy of m.
// Vectors are stored as single-column matrices.
func (g *Graph) Var(m mat.Matrix) NodeID {
	return g.push(node{
		kind:      KindVar,
		value:     mat.DenseCopyOf(m),
		evaluated: true,
	})
}

// MatMul adds a node computing a @ b.
func (g *Graph) MatMul(a, b NodeID) NodeID {
	return g.push(node{kind: KindMatMul, inputs: g.check(a, b)})
}

// Add adds a node computing the element-wise sum of xs.
// A single input makes the node a passthrough.
func (g *Graph) Add(xs ...NodeID) NodeID {
	if len(xs) == 0 {
		panic("autodiff: add requires at least one input")
	}
	return g.push(node{kind: KindAdd, inputs: g.check(xs...)})
}

// LogSoftmax adds a node computing x - logsumexp(x) over each column of x.
func (g *Graph) LogSoftmax(x NodeID) NodeID {
	return g.push(node{kind: KindLogSoftmax, inputs: g.check(x)})
}

// Identity adds a node passing x through unchanged.
//
// Every Identity node is distinct, so several positions that replicate
// the same source each contribute their own gradient to it.
func (g *Graph) Identity(x NodeID) NodeID {
	return g.push(node{kind: KindIdentity, inputs: g.check(x)})
}

// Value returns the cached forward value of id.
// Only valid after an Eval over an order that includes id.
func (g *Graph) Value(id NodeID) *mat.Dense {
	n := g.at(id)
	if !n.evaluated {
		panic(fmt.Sprintf("autodiff: node %d (%s) has not been evaluated", id, n.kind))
	}
	return n.value
}

// VecValue returns the cached value of a single-column node as a vector.
func (g *Graph) VecValue(id NodeID) *mat.VecDense {
	v := g.Value(id)
	r, c := v.Dims()
	if c != 1 {
		panic(fmt.Sprintf("autodiff: node %d is %dx%d, not a column vector", id, r, c))
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, v))
}

// GradOf returns the gradient accumulator of id, or nil if no gradient
// has reached it since the last ZeroGrad.
func (g *Graph) GradOf(id NodeID) *mat.Dense {
	return g.at(id).grad
}

// SetGrad seeds the gradient of id with a copy of m, replacing any
// accumulated value.
func (g *Graph) SetGrad(id NodeID, m mat.Matrix) {
	n := g.at(id)
	if n.evaluated {
		checkSameShape("set grad", n.value, m)
	}
	n.grad = mat.DenseCopyOf(m)
}

// ZeroGrad clears every gradient accumulator in the graph.
func (g *Graph) ZeroGrad() {
	for i := range g.nodes {
		g.nodes[i].grad = nil
	}
}

func (g *Graph) push(n node) NodeID {
	g.nodes = append(g.nodes, n)
	return NodeID(len(g.nodes) - 1)
}

func (g *Graph) at(id NodeID) *node {
	if id < 0 || int(id) >= len(g.nodes) {
		panic(fmt.Sprintf("autodiff: node %d out of range [0, %d)", id, len(g.nodes)))
	}
	return &g.nodes[id]
}

func (g *Graph) check(ids ...NodeID) []NodeID {
	for _, id := range ids {
		g.at(id)
	}
	return append([]NodeID(nil), ids...)
}

func checkSameShape(what string, a, b mat.Matrix) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic(fmt.Sprintf("autodiff: %s: shape mismatch %dx%d vs %dx%d", what, ar, ac, br, bc))
	}
}
