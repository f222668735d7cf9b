package autodiff

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// forward computes the value of node id from the values of its inputs.
func (g *Graph) forward(id NodeID) {
	n := g.at(id)

	switch n.kind {
	case KindVar:
		// Leaf value set at construction.

	case KindMatMul:
		a, b := g.inputValue(n, 0), g.inputValue(n, 1)
		out := new(mat.Dense)
		out.Mul(a, b)
		n.value = out

	case KindAdd:
		out := mat.DenseCopyOf(g.inputValue(n, 0))
		for i := 1; i < len(n.inputs); i++ {
			x := g.inputValue(n, i)
			checkSameShape("add", out, x)
			out.Add(out, x)
		}
		n.value = out

	case KindLogSoftmax:
		n.value = logSoftmax(g.inputValue(n, 0))

	case KindIdentity:
		n.value = g.inputValue(n, 0)

	default:
		panic(fmt.Sprintf("autodiff: forward: unknown kind %s", n.kind))
	}

	n.evaluated = true
}

// backward adds the contribution of node id's gradient into the
// accumulators of its inputs.
//
// MatMul:     d(A@B)/dA = grad @ B^T, d(A@B)/dB = A^T @ grad
// Add:        every input receives grad
// LogSoftmax: dx_j = grad_j - softmax_j * sum_i grad_i
// Identity:   input receives grad
func (g *Graph) backward(id NodeID) {
	n := g.at(id)
	if n.grad == nil {
		return
	}

	switch n.kind {
	case KindVar:
		// Leaf: gradient stays here.

	case KindMatMul:
		a, b := g.inputValue(n, 0), g.inputValue(n, 1)

		var gradA mat.Dense
		gradA.Mul(n.grad, b.T())
		g.accumulate(n.inputs[0], &gradA)

		var gradB mat.Dense
		gradB.Mul(a.T(), n.grad)
		g.accumulate(n.inputs[1], &gradB)

	case KindAdd, KindIdentity:
		for _, in := range n.inputs {
			g.accumulate(in, n.grad)
		}

	case KindLogSoftmax:
		g.accumulate(n.inputs[0], logSoftmaxGrad(n.value, n.grad))

	default:
		panic(fmt.Sprintf("autodiff: backward: unknown kind %s", n.kind))
	}
}

func (g *Graph) inputValue(n *node, i int) *mat.Dense {
	in := g.at(n.inputs[i])
	if !in.evaluated {
		panic(fmt.Sprintf("autodiff: input %d of %s node is not evaluated", n.inputs[i], n.kind))
	}
	return in.value
}

func (g *Graph) accumulate(id NodeID, delta mat.Matrix) {
	n := g.at(id)
	if n.grad == nil {
		n.grad = mat.DenseCopyOf(delta)
		return
	}
	checkSameShape("accumulate", n.grad, delta)
	n.grad.Add(n.grad, delta)
}

// logSoftmax normalizes each column of x in log space.
func logSoftmax(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		lse := floats.LogSumExp(col)
		floats.AddConst(-lse, col)
		out.SetCol(j, col)
	}
	return out
}

func logSoftmaxGrad(y, grad *mat.Dense) *mat.Dense {
	r, c := y.Dims()
	out := mat.NewDense(r, c, nil)
	yc := make([]float64, r)
	gc := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(yc, j, y)
		mat.Col(gc, j, grad)
		sum := floats.Sum(gc)
		for i := 0; i < r; i++ {
			out.Set(i, j, gc[i]-math.Exp(yc[i])*sum)
		}
	}
	return out
}
