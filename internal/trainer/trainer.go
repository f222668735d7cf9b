// Package trainer fits the prediction layer to gold frame labels, one
// sequence at a time.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/born-ml/framepred/internal/autodiff"
	"github.com/born-ml/framepred/internal/config"
	"github.com/born-ml/framepred/internal/optim"
	"github.com/born-ml/framepred/internal/pred"
	"github.com/born-ml/framepred/internal/speech"
	"github.com/sirupsen/logrus"
)

// Common errors.
var (
	ErrLengthMismatch = errors.New("frame and label sequences differ in length")
	ErrDimMismatch    = errors.New("frame dimension does not match the parameters")
	ErrLabelRange     = errors.New("label index out of range")
	ErrBatchMismatch  = errors.New("frame and label batches hold a different number of sequences")
)

// Options configures a Trainer.
type Options struct {
	Rule      optim.Rule
	Subsample int // 0 means 1
	LogEvery  int // 0 disables per-sequence logging
	Logger    *logrus.Logger
}

// Stats summarizes one pass over a batch.
type Stats struct {
	Sequences int
	Frames    int
	Loss      float64
}

// MeanLoss returns the loss per frame, or 0 for an empty pass.
func (s Stats) MeanLoss() float64 {
	if s.Frames == 0 {
		return 0
	}
	return s.Loss / float64(s.Frames)
}

// Trainer owns the parameters and optimizer state of a training run.
type Trainer struct {
	param    *pred.Param
	opt      *pred.Param
	rule     optim.Rule
	freq     int
	logEvery int
	logger   *logrus.Logger
}

// New creates a Trainer updating param in place.
//
// Panics if opts.Rule is nil.
func New(param *pred.Param, opts Options) *Trainer {
	if opts.Rule == nil {
		panic("trainer: nil update rule")
	}
	if opts.Subsample == 0 {
		opts.Subsample = 1
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	return &Trainer{
		param:    param,
		opt:      pred.NewOptState(param),
		rule:     opts.Rule,
		freq:     opts.Subsample,
		logEvery: opts.LogEvery,
		logger:   opts.Logger,
	}
}

// Param returns the parameters being trained.
func (t *Trainer) Param() *pred.Param {
	return t.param
}

// Step builds the graph for one sequence, back-propagates the log loss of
// every frame and applies one update. It returns the summed loss.
func (t *Trainer) Step(frames [][]float64, gold []int) (float64, error) {
	if len(frames) != len(gold) {
		return 0, fmt.Errorf("%w: %d frames, %d labels", ErrLengthMismatch, len(frames), len(gold))
	}
	for _, f := range frames {
		if len(f) != t.param.Dim() {
			return 0, fmt.Errorf("%w: got %d, want %d", ErrDimMismatch, len(f), t.param.Dim())
		}
	}
	k := t.param.Classes()
	for _, l := range gold {
		if l < 0 || l >= k {
			return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrLabelRange, l, k)
		}
	}

	g := autodiff.NewGraph()
	nn, outputs := pred.MakeSubsampledNN(g, t.param, pred.FrameVars(g, frames), t.freq)

	order := autodiff.TopoOrder(g, outputs)
	g.Eval(order)

	loss := 0.0
	for i, id := range outputs {
		ll := pred.LogLoss{Gold: pred.OneHot(k, gold[i]), Pred: g.VecValue(id)}
		loss += ll.Loss()
		g.SetGrad(id, ll.Grad())
	}
	g.Grad(order)

	pred.Update(t.rule, t.param, pred.CopyGrad(nn), t.opt)
	return loss, nil
}

// Epoch trains on every sequence of frames and labels in order.
// Cancellation is checked between sequences.
func (t *Trainer) Epoch(ctx context.Context, frames *speech.FrameBatchReader, labels *speech.LabelBatchReader) (Stats, error) {
	var stats Stats

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		seq, ferr := frames.Next()
		gold, lerr := labels.Next()
		if errors.Is(ferr, io.EOF) && errors.Is(lerr, io.EOF) {
			return stats, nil
		}
		if errors.Is(ferr, io.EOF) || errors.Is(lerr, io.EOF) {
			return stats, fmt.Errorf("sequence %d: %w", stats.Sequences, ErrBatchMismatch)
		}
		if ferr != nil {
			return stats, fmt.Errorf("read frames: %w", ferr)
		}
		if lerr != nil {
			return stats, fmt.Errorf("read labels: %w", lerr)
		}

		loss, err := t.Step(seq, gold)
		if err != nil {
			return stats, fmt.Errorf("sequence %d: %w", stats.Sequences, err)
		}

		stats.Sequences++
		stats.Frames += len(seq)
		stats.Loss += loss

		if t.logEvery > 0 && stats.Sequences%t.logEvery == 0 {
			t.logger.WithFields(logrus.Fields{
				"sequence":  stats.Sequences,
				"frames":    len(seq),
				"loss":      loss,
				"mean_loss": stats.MeanLoss(),
			}).Info("Trained sequence")
		}
	}
}

// NewRule returns the update rule named by cfg.
func NewRule(cfg *config.Config) (optim.Rule, error) {
	switch cfg.Optimizer {
	case config.AdaGrad:
		return optim.NewAdaGrad(optim.Config{LR: cfg.StepSize}), nil
	case config.RMSProp:
		return optim.NewRMSProp(optim.RMSPropConfig{
			Config: optim.Config{LR: cfg.StepSize},
			Decay:  cfg.Decay,
		}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
}

// Run trains for cfg.Epochs passes and saves the parameters to cfg.Output
// after every epoch. cfg must already be validated.
func Run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Stats, error) {
	if logger == nil {
		logger = logrus.New()
	}

	set, err := speech.LoadLabelSetFile(cfg.LabelSet)
	if err != nil {
		return Stats{}, err
	}
	param, err := pred.LoadParamFile(cfg.Param)
	if err != nil {
		return Stats{}, err
	}
	if param.Classes() != set.Len() {
		return Stats{}, fmt.Errorf("param has %d classes, label set has %d", param.Classes(), set.Len())
	}
	rule, err := NewRule(cfg)
	if err != nil {
		return Stats{}, err
	}

	tr := New(param, Options{
		Rule:      rule,
		Subsample: cfg.Subsample,
		LogEvery:  cfg.LogEvery,
		Logger:    logger,
	})

	logger.WithFields(logrus.Fields{
		"optimizer": cfg.Optimizer,
		"step_size": cfg.StepSize,
		"classes":   param.Classes(),
		"dim":       param.Dim(),
		"subsample": cfg.Subsample,
		"epochs":    cfg.Epochs,
	}).Info("Starting training")

	var stats Stats
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()

		stats, err = runEpoch(ctx, tr, cfg, set)
		if err != nil {
			return stats, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if err := pred.SaveParamFile(cfg.Output, tr.Param()); err != nil {
			return stats, err
		}

		logger.WithFields(logrus.Fields{
			"epoch":     epoch,
			"sequences": stats.Sequences,
			"frames":    stats.Frames,
			"mean_loss": stats.MeanLoss(),
			"duration":  time.Since(start),
		}).Info("Epoch completed")
	}

	return stats, nil
}

func runEpoch(ctx context.Context, tr *Trainer, cfg *config.Config, set *speech.LabelSet) (Stats, error) {
	//nolint:gosec // G304: batch paths are supplied by the user
	ff, err := os.Open(cfg.FrameBatch)
	if err != nil {
		return Stats{}, fmt.Errorf("open frame batch: %w", err)
	}
	defer func() { _ = ff.Close() }()

	//nolint:gosec // G304: batch paths are supplied by the user
	lf, err := os.Open(cfg.LabelBatch)
	if err != nil {
		return Stats{}, fmt.Errorf("open label batch: %w", err)
	}
	defer func() { _ = lf.Close() }()

	return tr.Epoch(ctx, speech.NewFrameBatchReader(ff), speech.NewLabelBatchReader(lf, set))
}
