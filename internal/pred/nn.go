package pred

import (
	"github.com/born-ml/framepred/internal/autodiff"
	"gonum.org/v1/gonum/mat"
)

// NN is the prediction sub-graph built over one feature sequence.
//
// Weight and Bias are the single var nodes shared by every timestep.
// LogProb[t] holds the K-vector of log-probabilities for timestep t.
type NN struct {
	Graph   *autodiff.Graph
	Weight  autodiff.NodeID
	Bias    autodiff.NodeID
	LogProb []autodiff.NodeID
}

// FrameVars adds one D×1 var node per frame.
func FrameVars(g *autodiff.Graph, frames [][]float64) []autodiff.NodeID {
	ids := make([]autodiff.NodeID, len(frames))
	for t, f := range frames {
		ids[t] = g.Var(mat.NewVecDense(len(f), f))
	}
	return ids
}

// MakeNN attaches the prediction layer to feat, one node per timestep:
//
//	logprob[t] = logsoftmax(weight @ feat[t] + bias)
//
// One weight node and one bias node are created and referenced by every
// timestep. param is copied into the graph and not modified. An empty
// feat yields a network with no timesteps.
func MakeNN(g *autodiff.Graph, param *Param, feat []autodiff.NodeID) *NN {
	nn := &NN{
		Graph:   g,
		Weight:  g.Var(param.Weight),
		Bias:    g.Var(param.Bias),
		LogProb: make([]autodiff.NodeID, 0, len(feat)),
	}

	for _, f := range feat {
		nn.LogProb = append(nn.LogProb, g.LogSoftmax(g.Add(g.MatMul(nn.Weight, f), nn.Bias)))
	}

	return nn
}

// Eval runs the forward pass over every timestep.
func Eval(nn *NN) {
	nn.Graph.Eval(autodiff.TopoOrder(nn.Graph, nn.LogProb))
}

// Grad runs the backward pass from every timestep.
//
// Each LogProb node must already carry a seeded gradient, and Eval must
// have run on nn.
func Grad(nn *NN) {
	nn.Graph.Grad(autodiff.TopoOrder(nn.Graph, nn.LogProb))
}

// CopyGrad harvests the gradients accumulated on the weight and bias
// nodes. Tensors that received no gradient come back as zeros.
func CopyGrad(nn *NN) *Param {
	k, d := nn.Graph.Value(nn.Weight).Dims()

	out := NewParam(k, d)
	if gw := nn.Graph.GradOf(nn.Weight); gw != nil {
		out.Weight.Copy(gw)
	}
	if gb := nn.Graph.GradOf(nn.Bias); gb != nil {
		out.Bias.CopyVec(gb.ColView(0))
	}
	return out
}

// LogProbs returns the evaluated log-probability vector of every timestep.
func LogProbs(nn *NN) []*mat.VecDense {
	out := make([]*mat.VecDense, len(nn.LogProb))
	for t, id := range nn.LogProb {
		out[t] = nn.Graph.VecValue(id)
	}
	return out
}
