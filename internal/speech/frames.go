// Package speech reads the frame and label streams consumed by the
// prediction and training drivers.
//
// A batch file holds one sequence after another. Each line of a sequence
// is one frame (whitespace-separated floats) or one label, and a line
// holding a single "." closes the sequence:
//
//	0.1 0.2 -0.3
//	0.4 0.0 1.5
//	.
//	...
package speech

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Terminator is the line that ends a sequence.
const Terminator = "."

// Common errors.
var (
	ErrUnterminated = errors.New("sequence is missing its terminator line")
	ErrDimMismatch  = errors.New("frame dimension differs within a batch")
	ErrBadFrame     = errors.New("frame holds a non-numeric value")
)

// FrameBatchReader yields one sequence of frames per Next call.
type FrameBatchReader struct {
	sc   *bufio.Scanner
	line int
	dim  int
}

// NewFrameBatchReader creates a reader over r.
func NewFrameBatchReader(r io.Reader) *FrameBatchReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &FrameBatchReader{sc: sc}
}

// Dim returns the frame dimension seen so far, or 0 before the first frame.
func (r *FrameBatchReader) Dim() int {
	return r.dim
}

// Next returns the frames of the next sequence.
//
// Returns io.EOF once the stream is exhausted. A stream that ends inside
// a sequence returns ErrUnterminated. Every frame of the stream must have
// the same dimension.
func (r *FrameBatchReader) Next() ([][]float64, error) {
	var frames [][]float64

	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())

		if text == Terminator {
			if frames == nil {
				frames = [][]float64{}
			}
			return frames, nil
		}
		if text == "" {
			continue
		}

		frame, err := parseFrame(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		if r.dim == 0 {
			r.dim = len(frame)
		} else if len(frame) != r.dim {
			return nil, fmt.Errorf("line %d: %w: got %d, want %d", r.line, ErrDimMismatch, len(frame), r.dim)
		}
		frames = append(frames, frame)
	}

	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	if frames != nil {
		return nil, fmt.Errorf("line %d: %w", r.line, ErrUnterminated)
	}
	return nil, io.EOF
}

func parseFrame(text string) ([]float64, error) {
	fields := strings.Fields(text)
	frame := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadFrame, f)
		}
		frame[i] = v
	}
	return frame, nil
}
