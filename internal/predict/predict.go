// Package predict runs the prediction layer over frame batches and writes
// one block of per-frame results per sequence.
//
// Output for sequence n (counted from 1):
//
//	n.phn
//	<arg-max label or log-prob vector, one line per frame>
//	.
package predict

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/born-ml/framepred/internal/autodiff"
	"github.com/born-ml/framepred/internal/parallel"
	"github.com/born-ml/framepred/internal/pred"
	"github.com/born-ml/framepred/internal/speech"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ErrDimMismatch is returned for frames whose dimension differs from the
// parameters.
var ErrDimMismatch = errors.New("frame dimension does not match the parameters")

// Options configures a Predictor.
type Options struct {
	// Labels names the classes. Required unless LogProb is set.
	Labels *speech.LabelSet
	// LogProb writes the log-prob vector of each frame instead of its
	// arg-max label.
	LogProb   bool
	Subsample int // 0 means 1
	Workers   int // 0 means one per CPU
	Logger    *logrus.Logger
}

// Predictor evaluates fixed parameters over sequences of frames.
type Predictor struct {
	param   *pred.Param
	labels  *speech.LabelSet
	logProb bool
	freq    int
	workers parallel.Config
	logger  *logrus.Logger
}

// New creates a Predictor over param.
func New(param *pred.Param, opts Options) (*Predictor, error) {
	if opts.Subsample == 0 {
		opts.Subsample = 1
	}
	if opts.Subsample < 0 {
		return nil, fmt.Errorf("subsample must be > 0 (got %d)", opts.Subsample)
	}
	if !opts.LogProb {
		if opts.Labels == nil {
			return nil, errors.New("label set is required for label output")
		}
		if opts.Labels.Len() != param.Classes() {
			return nil, fmt.Errorf("param has %d classes, label set has %d",
				param.Classes(), opts.Labels.Len())
		}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	workers := parallel.DefaultConfig()
	if opts.Workers > 0 {
		workers.Workers = opts.Workers
	}

	return &Predictor{
		param:   param,
		labels:  opts.Labels,
		logProb: opts.LogProb,
		freq:    opts.Subsample,
		workers: workers,
		logger:  opts.Logger,
	}, nil
}

// Predict returns the log-prob vector of every frame.
func (p *Predictor) Predict(frames [][]float64) ([]*mat.VecDense, error) {
	for _, f := range frames {
		if len(f) != p.param.Dim() {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimMismatch, len(f), p.param.Dim())
		}
	}

	g := autodiff.NewGraph()
	_, outputs := pred.MakeSubsampledNN(g, p.param, pred.FrameVars(g, frames), p.freq)
	g.Eval(autodiff.TopoOrder(g, outputs))

	out := make([]*mat.VecDense, len(outputs))
	for t, id := range outputs {
		out[t] = g.VecValue(id)
	}
	return out, nil
}

// Run predicts every sequence of frames and writes the results to w.
// It returns the number of sequences written. Sequences are read in
// batches of a few per worker, predicted in parallel and written in input
// order. Cancellation is checked between batches.
func (p *Predictor) Run(ctx context.Context, frames *speech.FrameBatchReader, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	batchSize := max(p.workers.Workers, 1) * 4
	n := 0

	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		batch, readErr := readBatch(frames, batchSize)

		results, err := parallel.Map(batch, p.Predict, p.workers)
		for i, logProbs := range results {
			if logProbs == nil {
				break
			}
			n++
			if werr := p.write(bw, n, logProbs); werr != nil {
				return n, werr
			}
			p.logger.WithFields(logrus.Fields{
				"sequence": n,
				"frames":   len(batch[i]),
			}).Debug("Predicted sequence")
		}
		if err != nil {
			_ = bw.Flush()
			return n, fmt.Errorf("sequence %d: %w", n+1, err)
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			_ = bw.Flush()
			return n, fmt.Errorf("read frames: %w", readErr)
		}
	}

	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("write predictions: %w", err)
	}
	return n, nil
}

// readBatch reads up to size sequences. The error, io.EOF included, is
// the one that stopped the batch short.
func readBatch(frames *speech.FrameBatchReader, size int) ([][][]float64, error) {
	batch := make([][][]float64, 0, size)
	for len(batch) < size {
		seq, err := frames.Next()
		if err != nil {
			return batch, err
		}
		batch = append(batch, seq)
	}
	return batch, nil
}

func (p *Predictor) write(w *bufio.Writer, n int, logProbs []*mat.VecDense) error {
	buf := make([]byte, 0, 256)
	buf = strconv.AppendInt(buf, int64(n), 10)
	buf = append(buf, ".phn\n"...)

	for _, lp := range logProbs {
		if p.logProb {
			for j := 0; j < lp.Len(); j++ {
				if j > 0 {
					buf = append(buf, ' ')
				}
				buf = strconv.AppendFloat(buf, lp.AtVec(j), 'g', -1, 64)
			}
		} else {
			buf = append(buf, p.labels.Label(Argmax(lp))...)
		}
		buf = append(buf, '\n')
	}
	buf = append(buf, speech.Terminator...)
	buf = append(buf, '\n')

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	return nil
}

// Argmax returns the index of the largest element of v, the first on
// ties, or -1 if v is empty.
func Argmax(v mat.Vector) int {
	best := -1
	for j := 0; j < v.Len(); j++ {
		if best < 0 || v.AtVec(j) > v.AtVec(best) {
			best = j
		}
	}
	return best
}
