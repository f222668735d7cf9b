package pred

import (
	"math"
	"testing"

	"github.com/born-ml/framepred/internal/autodiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testParam() *Param {
	return &Param{
		Weight: mat.NewDense(3, 2, []float64{
			0.5, -0.25,
			-1.0, 0.75,
			0.1, 0.2,
		}),
		Bias: mat.NewVecDense(3, []float64{0.05, -0.1, 0}),
	}
}

// trainGrad runs one forward/backward pass over frames with one-hot gold
// labels and returns the harvested gradient.
func trainGrad(param *Param, frames [][]float64, labels []int) *Param {
	g := autodiff.NewGraph()
	nn := MakeNN(g, param, FrameVars(g, frames))
	Eval(nn)
	for t, id := range nn.LogProb {
		loss := LogLoss{Gold: OneHot(param.Classes(), labels[t]), Pred: g.VecValue(id)}
		g.SetGrad(id, loss.Grad())
	}
	Grad(nn)
	return CopyGrad(nn)
}

func TestMakeNN_SharesParameterNodes(t *testing.T) {
	g := autodiff.NewGraph()
	nn := MakeNN(g, testParam(), FrameVars(g, [][]float64{{1, 2}, {3, 4}, {5, 6}}))

	require.Len(t, nn.LogProb, 3)

	vars := 0
	for id := autodiff.NodeID(0); int(id) < g.Len(); id++ {
		if g.Kind(id) == autodiff.KindVar {
			vars++
		}
	}
	// Three features plus exactly one weight and one bias.
	assert.Equal(t, 5, vars)

	for _, lp := range nn.LogProb {
		assert.Equal(t, autodiff.KindLogSoftmax, g.Kind(lp))
		add := g.Inputs(lp)[0]
		assert.Equal(t, autodiff.KindAdd, g.Kind(add))
		mul := g.Inputs(add)[0]
		assert.Equal(t, nn.Bias, g.Inputs(add)[1])
		assert.Equal(t, nn.Weight, g.Inputs(mul)[0])
	}
}

func TestMakeNN_Empty(t *testing.T) {
	g := autodiff.NewGraph()
	nn := MakeNN(g, testParam(), nil)

	assert.Empty(t, nn.LogProb)

	Eval(nn)
	Grad(nn)
	grad := CopyGrad(nn)
	assert.Equal(t, 0.0, mat.Norm(grad.Weight, 1))
	assert.Equal(t, 0.0, mat.Norm(grad.Bias, 1))
}

func TestMakeNN_DoesNotModifyParam(t *testing.T) {
	param := testParam()
	before := param.Clone()

	trainGrad(param, [][]float64{{1, -1}}, []int{2})

	assert.True(t, mat.Equal(before.Weight, param.Weight))
	assert.True(t, mat.Equal(before.Bias, param.Bias))
}

func TestEval_MatchesClosedForm(t *testing.T) {
	param := testParam()
	x := []float64{2, -1}

	g := autodiff.NewGraph()
	nn := MakeNN(g, param, FrameVars(g, [][]float64{x}))
	Eval(nn)
	got := LogProbs(nn)[0]

	logits := mat.NewVecDense(3, nil)
	logits.MulVec(param.Weight, mat.NewVecDense(2, x))
	logits.AddVec(logits, param.Bias)
	norm := 0.0
	for i := 0; i < 3; i++ {
		norm += math.Exp(logits.AtVec(i))
	}
	for i := 0; i < 3; i++ {
		assert.InDelta(t, logits.AtVec(i)-math.Log(norm), got.AtVec(i), 1e-12)
	}
}

// The gradient harvested from a tied weight after one backward pass over
// two timesteps is the sum of the per-timestep gradients.
func TestGrad_TiedParametersSum(t *testing.T) {
	param := testParam()
	frames := [][]float64{{1, 2}, {-3, 0.5}}
	labels := []int{0, 2}

	g1 := trainGrad(param, frames[:1], labels[:1])
	g2 := trainGrad(param, frames[1:], labels[1:])
	both := trainGrad(param, frames, labels)

	var wantW mat.Dense
	wantW.Add(g1.Weight, g2.Weight)
	var wantB mat.VecDense
	wantB.AddVec(g1.Bias, g2.Bias)

	assert.True(t, mat.EqualApprox(&wantW, both.Weight, 1e-12), "weight grad %v", mat.Formatted(both.Weight))
	assert.True(t, mat.EqualApprox(&wantB, both.Bias, 1e-12))
	assert.False(t, mat.EqualApprox(g1.Weight, both.Weight, 1e-6))
	assert.False(t, mat.EqualApprox(g2.Weight, both.Weight, 1e-6))
}

func TestGrad_BiasIsSoftmaxMinusGold(t *testing.T) {
	param := testParam()

	g := autodiff.NewGraph()
	nn := MakeNN(g, param, FrameVars(g, [][]float64{{0.3, 0.7}}))
	Eval(nn)
	logp := g.VecValue(nn.LogProb[0])
	g.SetGrad(nn.LogProb[0], LogLoss{Gold: OneHot(3, 1), Pred: logp}.Grad())
	Grad(nn)

	grad := CopyGrad(nn)
	for i := 0; i < 3; i++ {
		want := math.Exp(logp.AtVec(i))
		if i == 1 {
			want--
		}
		assert.InDelta(t, want, grad.Bias.AtVec(i), 1e-12)
	}
}

func TestCopyGrad_IsACopy(t *testing.T) {
	g := autodiff.NewGraph()
	nn := MakeNN(g, testParam(), FrameVars(g, [][]float64{{1, 1}}))
	Eval(nn)
	g.SetGrad(nn.LogProb[0], OneHot(3, 0))
	Grad(nn)

	grad := CopyGrad(nn)
	grad.Weight.Set(0, 0, 99)

	assert.NotEqual(t, 99.0, g.GradOf(nn.Weight).At(0, 0))
}

func TestTrainingStep_ReducesLoss(t *testing.T) {
	param := testParam()
	opt := NewOptState(param)
	frames := [][]float64{{1, 0}, {0, 1}, {1, 1}}
	labels := []int{2, 2, 2}

	lossOf := func() float64 {
		g := autodiff.NewGraph()
		nn := MakeNN(g, param, FrameVars(g, frames))
		Eval(nn)
		total := 0.0
		for i, lp := range LogProbs(nn) {
			total += LogLoss{Gold: OneHot(3, labels[i]), Pred: lp}.Loss()
		}
		return total
	}

	before := lossOf()
	for i := 0; i < 5; i++ {
		AdaGradUpdate(param, trainGrad(param, frames, labels), opt, 0.1)
	}

	assert.Less(t, lossOf(), before)
}
