package serialization

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Reader reads tensor records from a stream, one record per line.
type Reader struct {
	r    *bufio.Reader
	line int
}

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadMatrix reads the next record as a matrix.
//
// Returns io.EOF if the stream ends before any record starts, and
// io.ErrUnexpectedEOF if it ends inside one.
func (r *Reader) ReadMatrix() (*mat.Dense, error) {
	text, err := r.next()
	if err != nil {
		return nil, err
	}

	var rows [][]float64
	if err := json.Unmarshal([]byte(text), &rows); err != nil {
		return nil, r.fail("matrix", fmt.Errorf("%w: %w", ErrMalformedRecord, err))
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, r.fail("matrix", ErrEmptyTensor)
	}

	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for _, row := range rows {
		if len(row) != cols {
			return nil, r.fail("matrix", ErrRaggedMatrix)
		}
		data = append(data, row...)
	}

	return mat.NewDense(len(rows), cols, data), nil
}

// ReadVector reads the next record as a vector.
//
// Returns io.EOF if the stream ends before any record starts, and
// io.ErrUnexpectedEOF if it ends inside one.
func (r *Reader) ReadVector() (*mat.VecDense, error) {
	text, err := r.next()
	if err != nil {
		return nil, err
	}

	var data []float64
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, r.fail("vector", fmt.Errorf("%w: %w", ErrMalformedRecord, err))
	}
	if len(data) == 0 {
		return nil, r.fail("vector", ErrEmptyTensor)
	}

	return mat.NewVecDense(len(data), data), nil
}

// next returns the next non-blank line with its terminator stripped.
func (r *Reader) next() (string, error) {
	for {
		text, err := r.r.ReadString('\n')
		if text != "" {
			r.line++
		}

		trimmed := strings.TrimSpace(text)
		switch {
		case trimmed != "" && err == nil:
			return trimmed, nil
		case trimmed != "" && errors.Is(err, io.EOF):
			// Records must be newline terminated.
			return "", r.fail("record", io.ErrUnexpectedEOF)
		case err != nil:
			return "", err
		}
	}
}

func (r *Reader) fail(kind string, err error) error {
	return &RecordError{Line: r.line, Kind: kind, Err: err}
}

// Writer writes tensor records to a stream.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a writer over w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteMatrix writes m as one matrix record.
func (w *Writer) WriteMatrix(m mat.Matrix) error {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return ErrEmptyTensor
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < r; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('[')
		for j := 0; j < c; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			if err := appendFloat(&sb, m.At(i, j)); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	}
	sb.WriteString("]\n")

	_, err := w.w.WriteString(sb.String())
	return err
}

// WriteVector writes v as one vector record.
func (w *Writer) WriteVector(v mat.Vector) error {
	n := v.Len()
	if n == 0 {
		return ErrEmptyTensor
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		if err := appendFloat(&sb, v.AtVec(i)); err != nil {
			return err
		}
	}
	sb.WriteString("]\n")

	_, err := w.w.WriteString(sb.String())
	return err
}

// Flush writes any buffered data to the underlying stream.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func appendFloat(sb *strings.Builder, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrNonFinite, v)
	}
	sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	return nil
}
