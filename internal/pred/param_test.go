package pred

import (
	"bytes"
	"io"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/framepred/internal/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSaveParam_Format(t *testing.T) {
	p := &Param{
		Weight: mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
		Bias:   mat.NewVecDense(2, []float64{-0.5, 0.5}),
	}

	var buf bytes.Buffer
	require.NoError(t, SaveParam(&buf, p))

	assert.Equal(t, "[[1, 2, 3], [4, 5, 6]]\n[-0.5, 0.5]\n", buf.String())
}

func TestParam_RoundTrip(t *testing.T) {
	p := NewXavierParam(5, 8, rand.New(rand.NewSource(1)))
	p.Bias.SetVec(0, 1.0/3.0)
	p.Bias.SetVec(4, -2.5e-300)

	var buf bytes.Buffer
	require.NoError(t, SaveParam(&buf, p))
	saved := buf.String()

	loaded, err := LoadParam(strings.NewReader(saved))
	require.NoError(t, err)

	assert.True(t, mat.Equal(p.Weight, loaded.Weight))
	assert.True(t, mat.Equal(p.Bias, loaded.Bias))

	// Save(Load(x)) == x
	var again bytes.Buffer
	require.NoError(t, SaveParam(&again, loaded))
	assert.Equal(t, saved, again.String())
}

func TestParamFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pred.param")
	p := NewXavierParam(3, 4, rand.New(rand.NewSource(2)))

	require.NoError(t, SaveParamFile(path, p))
	loaded, err := LoadParamFile(path)
	require.NoError(t, err)

	assert.True(t, mat.Equal(p.Weight, loaded.Weight))
	assert.True(t, mat.Equal(p.Bias, loaded.Bias))
}

func TestLoadParam_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target error
	}{
		{"empty", "", io.EOF},
		{"missing bias", "[[1, 2]]\n", io.ErrUnexpectedEOF},
		{"truncated bias", "[[1, 2]]\n[0.5", io.ErrUnexpectedEOF},
		{"malformed weight", "[[1, 2], [3,\n[1, 2]\n", serialization.ErrMalformedRecord},
		{"shape mismatch", "[[1, 2], [3, 4]]\n[1, 2, 3]\n", ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadParam(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestLoadParamFile_Missing(t *testing.T) {
	_, err := LoadParamFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestNewXavierParam_Bounds(t *testing.T) {
	p := NewXavierParam(10, 20, rand.New(rand.NewSource(3)))
	bound := math.Sqrt(6.0 / 30.0)

	r, c := p.Weight.Dims()
	assert.Equal(t, 10, r)
	assert.Equal(t, 20, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.LessOrEqual(t, math.Abs(p.Weight.At(i, j)), bound)
		}
	}
	assert.Equal(t, 0.0, mat.Norm(p.Bias, 1))
}

func TestNewOptState_Shape(t *testing.T) {
	opt := NewOptState(testParam())

	r, c := opt.Weight.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 3, opt.Bias.Len())
	assert.Equal(t, 0.0, mat.Norm(opt.Weight, 1))
}

func TestAdaGradUpdate_BothTensors(t *testing.T) {
	param := NewParam(2, 1)
	opt := NewOptState(param)
	grad := &Param{
		Weight: mat.NewDense(2, 1, []float64{2, 0}),
		Bias:   mat.NewVecDense(2, []float64{0, -4}),
	}

	AdaGradUpdate(param, grad, opt, 0.5)

	assert.InDelta(t, -0.5, param.Weight.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, param.Weight.At(1, 0))
	assert.Equal(t, 0.0, param.Bias.AtVec(0))
	assert.InDelta(t, 0.5, param.Bias.AtVec(1), 1e-12)

	assert.Equal(t, 4.0, opt.Weight.At(0, 0))
	assert.Equal(t, 16.0, opt.Bias.AtVec(1))

	// Gradient is read only.
	assert.Equal(t, 2.0, grad.Weight.At(0, 0))
}

func TestAdaGradUpdate_SecondStepSmaller(t *testing.T) {
	param := testParam()
	opt := NewOptState(param)
	grad := testParam() // any non-zero gradient

	start := param.Clone()
	AdaGradUpdate(param, grad, opt, 0.01)
	mid := param.Clone()
	AdaGradUpdate(param, grad, opt, 0.01)

	var step1, step2 mat.Dense
	step1.Sub(mid.Weight, start.Weight)
	step2.Sub(param.Weight, mid.Weight)
	assert.Less(t, mat.Norm(&step2, 2), mat.Norm(&step1, 2))
}

func TestRMSPropUpdate_BothTensors(t *testing.T) {
	param := NewParam(1, 1)
	opt := NewOptState(param)
	opt.Weight.Set(0, 0, 1)
	opt.Bias.SetVec(0, 1)
	grad := &Param{
		Weight: mat.NewDense(1, 1, []float64{1}),
		Bias:   mat.NewVecDense(1, []float64{3}),
	}

	RMSPropUpdate(param, grad, opt, 0.9, 0.1)

	// state = 0.9 * 1 + 0.1 * g²
	assert.InDelta(t, 1.0, opt.Weight.At(0, 0), 1e-12)
	assert.InDelta(t, 1.8, opt.Bias.AtVec(0), 1e-12)
	assert.InDelta(t, -0.1, param.Weight.At(0, 0), 1e-12)
	assert.InDelta(t, -0.3/math.Sqrt(1.8), param.Bias.AtVec(0), 1e-12)
}

func TestUpdate_ShapeMismatchPanics(t *testing.T) {
	param := NewParam(3, 2)
	grad := NewParam(3, 4)

	assert.Panics(t, func() { AdaGradUpdate(param, grad, NewOptState(param), 0.1) })
	assert.Panics(t, func() { RMSPropUpdate(param, NewParam(3, 2), NewParam(2, 2), 0.9, 0.1) })
}
