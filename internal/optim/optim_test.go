package optim_test

import (
	"math"
	"testing"

	"github.com/born-ml/framepred/internal/optim"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// Helper to check float equality with tolerance.
func floatEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

// TestAdaGrad_SimpleUpdate tests one AdaGrad step by hand.
func TestAdaGrad_SimpleUpdate(t *testing.T) {
	param := []float64{1.0}
	state := []float64{0}

	optim.NewAdaGrad(optim.Config{LR: 0.1}).Update(param, []float64{0.5}, state)

	// state = 0.25, param = 1 - 0.1 * 0.5 / 0.5 = 0.9
	if !floatEqual(state[0], 0.25, 1e-12) {
		t.Errorf("AdaGrad state: got %f, want %f", state[0], 0.25)
	}
	if !floatEqual(param[0], 0.9, 1e-12) {
		t.Errorf("AdaGrad param: got %f, want %f", param[0], 0.9)
	}
}

// TestAdaGrad_StepShrinks tests that identical gradients produce strictly
// smaller steps over time.
func TestAdaGrad_StepShrinks(t *testing.T) {
	for _, lr := range []float64{1e-4, 0.01, 1, 50} {
		for _, g := range []float64{-3, 1e-3, 2} {
			rule := optim.NewAdaGrad(optim.Config{LR: lr})
			param := []float64{0}
			state := []float64{0}

			rule.Update(param, []float64{g}, state)
			step1 := math.Abs(param[0])

			before := param[0]
			rule.Update(param, []float64{g}, state)
			step2 := math.Abs(param[0] - before)

			assert.Greater(t, step1, 0.0)
			assert.Less(t, step2, step1, "lr=%v g=%v", lr, g)
			// Second step is exactly 1/sqrt(2) of the first.
			assert.InDelta(t, step1/math.Sqrt2, step2, 1e-9*lr)
		}
	}
}

// TestAdaGrad_ZeroGradient tests that a zero gradient leaves the parameter
// unchanged.
func TestAdaGrad_ZeroGradient(t *testing.T) {
	param := []float64{3, -4}
	state := []float64{0, 0}

	optim.NewAdaGrad(optim.Config{LR: 1}).Update(param, []float64{0, 0}, state)

	assert.Equal(t, []float64{3, -4}, param)
	assert.Equal(t, []float64{0, 0}, state)
}

// TestRMSProp_SimpleUpdate tests one RMSProp step by hand.
func TestRMSProp_SimpleUpdate(t *testing.T) {
	param := []float64{1.0}
	state := []float64{1.0}

	rule := optim.NewRMSProp(optim.RMSPropConfig{Config: optim.Config{LR: 0.1}, Decay: 0.5})
	rule.Update(param, []float64{2}, state)

	// state = 0.5 * 1 + 0.5 * 4 = 2.5
	assert.InDelta(t, 2.5, state[0], 1e-12)
	assert.InDelta(t, 1-0.1*2/math.Sqrt(2.5), param[0], 1e-12)
}

// TestRMSProp_ZeroDecayIsScaleInvariant tests that decay = 0 normalizes by
// the current gradient alone.
func TestRMSProp_ZeroDecayIsScaleInvariant(t *testing.T) {
	rule := optim.NewRMSProp(optim.RMSPropConfig{Config: optim.Config{LR: 0.01}})

	for _, g := range []float64{1e-3, 1, 250, -7} {
		param := []float64{0}
		state := []float64{123} // history is discarded
		rule.Update(param, []float64{g}, state)

		assert.InDelta(t, -0.01*math.Copysign(1, g), param[0], 1e-12, "g=%v", g)
		assert.InDelta(t, g*g, state[0], 1e-9*g*g)
	}
}

// TestRMSProp_HighDecayApproachesAdaGrad tests that as decay approaches 1
// successive step ratios match AdaGrad's 1/sqrt(n) shrinkage.
func TestRMSProp_HighDecayApproachesAdaGrad(t *testing.T) {
	steps := func(rule optim.Rule, n int) []float64 {
		param := []float64{0}
		state := []float64{0}
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			before := param[0]
			rule.Update(param, []float64{1}, state)
			out[i] = math.Abs(param[0] - before)
		}
		return out
	}

	ada := steps(optim.NewAdaGrad(optim.Config{LR: 1}), 5)

	prevErr := math.Inf(1)
	for _, decay := range []float64{0.9, 0.99, 0.999, 0.9999} {
		rms := steps(optim.NewRMSProp(optim.RMSPropConfig{Config: optim.Config{LR: 1}, Decay: decay}), 5)

		worst := 0.0
		for i := 1; i < len(rms); i++ {
			worst = math.Max(worst, math.Abs(rms[i]/rms[0]-ada[i]/ada[0]))
		}
		assert.Less(t, worst, prevErr, "decay=%v", decay)
		prevErr = worst
	}
	assert.Less(t, prevErr, 1e-3)
}

// TestNewRMSProp_Panics tests decay validation.
func TestNewRMSProp_Panics(t *testing.T) {
	assert.Panics(t, func() { optim.NewRMSProp(optim.RMSPropConfig{Decay: 1}) })
	assert.Panics(t, func() { optim.NewRMSProp(optim.RMSPropConfig{Decay: -0.1}) })
}

// TestUpdateDense_AppliesElementwise tests the matrix wrapper.
func TestUpdateDense_AppliesElementwise(t *testing.T) {
	param := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	grad := mat.NewDense(2, 2, []float64{1, -1, 0, 2})
	state := mat.NewDense(2, 2, nil)

	optim.UpdateDense(optim.NewAdaGrad(optim.Config{LR: 0.5}), param, grad, state)

	want := mat.NewDense(2, 2, []float64{0.5, 1.5, 1, 0.5})
	assert.True(t, mat.EqualApprox(want, param, 1e-12), "got %v", mat.Formatted(param))
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{1, 1, 0, 4}), state))
}

// TestUpdateVec_AppliesElementwise tests the vector wrapper.
func TestUpdateVec_AppliesElementwise(t *testing.T) {
	param := mat.NewVecDense(2, []float64{0, 0})
	grad := mat.NewVecDense(2, []float64{3, -4})
	state := mat.NewVecDense(2, nil)

	optim.UpdateVec(optim.NewRMSProp(optim.RMSPropConfig{Config: optim.Config{LR: 1}}), param, grad, state)

	assert.InDelta(t, -1.0, param.AtVec(0), 1e-12)
	assert.InDelta(t, 1.0, param.AtVec(1), 1e-12)
}

// TestUpdate_ShapeMismatchPanics tests that incompatible tensors abort.
func TestUpdate_ShapeMismatchPanics(t *testing.T) {
	rule := optim.NewAdaGrad(optim.Config{LR: 1})

	assert.Panics(t, func() {
		optim.UpdateDense(rule, mat.NewDense(2, 2, nil), mat.NewDense(2, 3, nil), mat.NewDense(2, 2, nil))
	})
	assert.Panics(t, func() {
		optim.UpdateVec(rule, mat.NewVecDense(2, nil), mat.NewVecDense(2, nil), mat.NewVecDense(3, nil))
	})
	assert.Panics(t, func() {
		rule.Update([]float64{1}, []float64{1, 2}, []float64{0})
	})
}

// TestConfig_DefaultEps tests that a zero-state zero-gradient step is finite.
func TestConfig_DefaultEps(t *testing.T) {
	param := []float64{1}
	optim.NewRMSProp(optim.RMSPropConfig{Config: optim.Config{LR: 1}, Decay: 0.9}).Update(param, []float64{0}, []float64{0})

	assert.False(t, math.IsNaN(param[0]))
	assert.Equal(t, 1.0, param[0])
}
