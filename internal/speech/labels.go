package speech

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Label errors.
var (
	ErrUnknownLabel   = errors.New("label is not in the label set")
	ErrDuplicateLabel = errors.New("label appears twice in the label set")
)

// LabelSet maps class indices to label strings and back.
type LabelSet struct {
	labels []string
	index  map[string]int
}

// NewLabelSet builds a label set from labels in class order.
func NewLabelSet(labels []string) (*LabelSet, error) {
	s := &LabelSet{
		labels: append([]string(nil), labels...),
		index:  make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		if _, dup := s.index[l]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, l)
		}
		s.index[l] = i
	}
	return s, nil
}

// LoadLabelSet reads one label per line; the line number is the class index.
func LoadLabelSet(r io.Reader) (*LabelSet, error) {
	var labels []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			labels = append(labels, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return NewLabelSet(labels)
}

// LoadLabelSetFile reads a label set from path.
func LoadLabelSetFile(path string) (*LabelSet, error) {
	//nolint:gosec // G304: label path is supplied by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadLabelSet(f)
}

// Len returns the number of classes.
func (s *LabelSet) Len() int {
	return len(s.labels)
}

// Label returns the label of class i.
func (s *LabelSet) Label(i int) string {
	return s.labels[i]
}

// Index returns the class index of label.
func (s *LabelSet) Index(label string) (int, error) {
	i, ok := s.index[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	return i, nil
}

// LabelBatchReader yields the gold labels of one sequence per Next call,
// mapped to class indices.
type LabelBatchReader struct {
	sc     *bufio.Scanner
	labels *LabelSet
	line   int
}

// NewLabelBatchReader creates a reader over r resolving labels in set.
func NewLabelBatchReader(r io.Reader, set *LabelSet) *LabelBatchReader {
	return &LabelBatchReader{sc: bufio.NewScanner(r), labels: set}
}

// Next returns the class indices of the next sequence, or io.EOF once the
// stream is exhausted.
func (r *LabelBatchReader) Next() ([]int, error) {
	var seq []int

	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())

		if text == Terminator {
			if seq == nil {
				seq = []int{}
			}
			return seq, nil
		}
		if text == "" {
			continue
		}

		i, err := r.labels.Index(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		seq = append(seq, i)
	}

	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if seq != nil {
		return nil, fmt.Errorf("line %d: %w", r.line, ErrUnterminated)
	}
	return nil, io.EOF
}
