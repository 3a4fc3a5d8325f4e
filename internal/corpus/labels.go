package corpus

import (
	"fmt"
	"sort"

	"github.com/lexkit/fineprint/internal/model"
)

// LabelSet is the label vocabulary of a corpus: a fixed, sorted mapping
// between label strings and column indexes. It fills the role of a
// multi-label binarizer: label lists become multi-hot rows and back.
type LabelSet struct {
	classes []string
	index   map[string]int
}

// NewLabelSet builds a LabelSet from gold label lists. Classes are sorted so
// that column order is stable regardless of corpus order.
func NewLabelSet(labelLists [][]string) *LabelSet {
	seen := make(map[string]struct{})
	for _, labels := range labelLists {
		for _, l := range labels {
			seen[l] = struct{}{}
		}
	}
	classes := make([]string, 0, len(seen))
	for l := range seen {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, l := range classes {
		index[l] = i
	}
	return &LabelSet{classes: classes, index: index}
}

// Classes returns the label strings in column order.
func (s *LabelSet) Classes() []string { return s.classes }

// Len returns the number of labels.
func (s *LabelSet) Len() int { return len(s.classes) }

// Index returns the column index of label, or -1 if unknown.
func (s *LabelSet) Index(label string) int {
	if i, ok := s.index[label]; ok {
		return i
	}
	return -1
}

// Transform converts label lists into a multi-hot matrix. Labels outside the
// vocabulary are an error: the vocabulary must be fitted before encoding.
func (s *LabelSet) Transform(labelLists [][]string) (*model.Matrix, error) {
	m := model.NewMatrix(len(labelLists), len(s.classes))
	for i, labels := range labelLists {
		for _, l := range labels {
			j, ok := s.index[l]
			if !ok {
				return nil, fmt.Errorf("corpus: label %q not in vocabulary", l)
			}
			m.Set(i, j, 1)
		}
	}
	return m, nil
}

// Inverse converts a multi-hot (or thresholded) matrix back to label lists.
// Any strictly positive entry counts as set.
func (s *LabelSet) Inverse(m *model.Matrix) ([][]string, error) {
	if m.Cols != len(s.classes) {
		return nil, fmt.Errorf("corpus: matrix has %d columns, vocabulary has %d labels", m.Cols, len(s.classes))
	}
	out := make([][]string, m.Rows)
	for i := 0; i < m.Rows; i++ {
		var labels []string
		row := m.Row(i)
		for j, v := range row {
			if v > 0 {
				labels = append(labels, s.classes[j])
			}
		}
		out[i] = labels
	}
	return out, nil
}
