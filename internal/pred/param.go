// Package pred implements the per-frame prediction layer of a sequence
// classifier: a linear map followed by log-softmax, evaluated at every
// timestep of a feature sequence with the weight and bias shared across
// timesteps.
//
// A training step for one sequence:
//
//	g := autodiff.NewGraph()
//	feat := pred.FrameVars(g, frames)
//	nn := pred.MakeNN(g, param, feat)
//	pred.Eval(nn)
//	for t, id := range nn.LogProb {
//	    loss := pred.LogLoss{Gold: gold[t], Pred: g.VecValue(id)}
//	    g.SetGrad(id, loss.Grad())
//	}
//	pred.Grad(nn)
//	grad := pred.CopyGrad(nn)
//	pred.AdaGradUpdate(param, grad, optState, stepSize)
package pred

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/born-ml/framepred/internal/optim"
	"github.com/born-ml/framepred/internal/serialization"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when a loaded weight and bias disagree on
// the number of classes.
var ErrShapeMismatch = errors.New("pred: weight rows and bias length differ")

// Param holds the learnable tensors of the prediction layer.
//
// Weight is K×D and Bias has length K, where D is the feature dimension
// and K the number of classes. Gradient and optimizer-state bundles use
// the same type and shapes.
type Param struct {
	Weight *mat.Dense
	Bias   *mat.VecDense
}

// NewParam creates a zero parameter bundle for k classes over d features.
func NewParam(k, d int) *Param {
	return &Param{
		Weight: mat.NewDense(k, d, nil),
		Bias:   mat.NewVecDense(k, nil),
	}
}

// NewXavierParam creates a bundle with Xavier/Glorot uniform weights and
// zero bias.
//
// Weights are drawn from U(-sqrt(6/(d+k)), sqrt(6/(d+k))).
func NewXavierParam(k, d int, rng *rand.Rand) *Param {
	bound := math.Sqrt(6.0 / float64(d+k))

	p := NewParam(k, d)
	data := p.Weight.RawMatrix().Data
	for i := range data {
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return p
}

// NewOptState creates a zero optimizer-state bundle shaped like p.
func NewOptState(p *Param) *Param {
	return NewParam(p.Classes(), p.Dim())
}

// Classes returns K, the number of output classes.
func (p *Param) Classes() int {
	r, _ := p.Weight.Dims()
	return r
}

// Dim returns D, the feature dimension.
func (p *Param) Dim() int {
	_, c := p.Weight.Dims()
	return c
}

// Clone returns a deep copy of p.
func (p *Param) Clone() *Param {
	return &Param{
		Weight: mat.DenseCopyOf(p.Weight),
		Bias:   mat.VecDenseCopyOf(p.Bias),
	}
}

// validate reports whether the weight and bias agree on K.
func (p *Param) validate() error {
	if p.Classes() != p.Bias.Len() {
		return fmt.Errorf("%w: weight is %dx%d, bias has %d",
			ErrShapeMismatch, p.Classes(), p.Dim(), p.Bias.Len())
	}
	return nil
}

// LoadParam reads a weight matrix record followed by a bias vector record.
func LoadParam(r io.Reader) (*Param, error) {
	tr := serialization.NewReader(r)

	weight, err := tr.ReadMatrix()
	if err != nil {
		return nil, fmt.Errorf("read weight: %w", err)
	}

	bias, err := tr.ReadVector()
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, fmt.Errorf("read bias: %w", err)
	}

	p := &Param{Weight: weight, Bias: bias}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadParamFile reads a parameter bundle from path.
func LoadParamFile(path string) (*Param, error) {
	//nolint:gosec // G304: parameter path is supplied by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open param file: %w", err)
	}
	defer func() { _ = f.Close() }()

	p, err := LoadParam(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// SaveParam writes p as a weight record followed by a bias record.
func SaveParam(w io.Writer, p *Param) error {
	tw := serialization.NewWriter(w)
	if err := tw.WriteMatrix(p.Weight); err != nil {
		return fmt.Errorf("write weight: %w", err)
	}
	if err := tw.WriteVector(p.Bias); err != nil {
		return fmt.Errorf("write bias: %w", err)
	}
	return tw.Flush()
}

// SaveParamFile writes p to path, replacing any existing file.
func SaveParamFile(path string, p *Param) error {
	//nolint:gosec // G304: parameter path is supplied by the user
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create param file: %w", err)
	}

	if err := SaveParam(f, p); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// AdaGradUpdate applies one AdaGrad step to every tensor of param.
// opt accumulates squared gradients and must start at zero.
func AdaGradUpdate(param, grad, opt *Param, stepSize float64) {
	Update(optim.NewAdaGrad(optim.Config{LR: stepSize}), param, grad, opt)
}

// RMSPropUpdate applies one RMSProp step to every tensor of param.
// opt holds the moving average of squared gradients.
func RMSPropUpdate(param, grad, opt *Param, decay, stepSize float64) {
	Update(optim.NewRMSProp(optim.RMSPropConfig{
		Config: optim.Config{LR: stepSize},
		Decay:  decay,
	}), param, grad, opt)
}

// Update applies rule independently to the weight and the bias.
// Shapes of param, grad and opt must match.
func Update(rule optim.Rule, param, grad, opt *Param) {
	optim.UpdateDense(rule, param.Weight, grad.Weight, opt.Weight)
	optim.UpdateVec(rule, param.Bias, grad.Bias, opt.Bias)
}
