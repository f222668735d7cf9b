package pred

import (
	"fmt"

	"github.com/born-ml/framepred/internal/autodiff"
)

// Subsample keeps the inputs at indices 0, freq, 2*freq, ...
//
// Panics if freq < 1.
func Subsample[T any](inputs []T, freq int) []T {
	if freq < 1 {
		panic(fmt.Sprintf("pred: subsample frequency %d < 1", freq))
	}

	out := make([]T, 0, (len(inputs)+freq-1)/freq)
	for i := 0; i < len(inputs); i += freq {
		out = append(out, inputs[i])
	}
	return out
}

// Upsample stretches outputs back to size positions, repeating each output
// freq times: position i passes through outputs[i/freq].
//
// Every position gets its own Identity node, so the gradients of all
// positions that replicate one output sum into it during Grad.
//
// Panics unless len(outputs) == ceil(size/freq).
func Upsample(g *autodiff.Graph, outputs []autodiff.NodeID, freq, size int) []autodiff.NodeID {
	if freq < 1 {
		panic(fmt.Sprintf("pred: upsample frequency %d < 1", freq))
	}
	if blocks := (size + freq - 1) / freq; blocks != len(outputs) {
		panic(fmt.Sprintf("pred: upsample of %d outputs by %d to %d positions needs %d outputs",
			len(outputs), freq, size, blocks))
	}

	out := make([]autodiff.NodeID, size)
	for i := 0; i < size; i++ {
		out[i] = g.Identity(outputs[i/freq])
	}
	return out
}

// MakeSubsampledNN builds the prediction layer over every freq-th feature
// and upsamples the log-probabilities back to one node per feature.
// With freq 1 the outputs are nn.LogProb itself.
func MakeSubsampledNN(g *autodiff.Graph, param *Param, feat []autodiff.NodeID, freq int) (*NN, []autodiff.NodeID) {
	if freq == 1 {
		nn := MakeNN(g, param, feat)
		return nn, nn.LogProb
	}

	nn := MakeNN(g, param, Subsample(feat, freq))
	return nn, Upsample(g, nn.LogProb, freq, len(feat))
}
