package corpus

import (
	"fmt"
	"io"
	"sort"

	"github.com/lexkit/fineprint/internal/model"
)

// Stats summarizes a corpus: size, label inventory, and the token-length
// distribution that informs sequence-length choices for the neural models.
type Stats struct {
	Provisions int
	Labels     int

	// LabelFreq maps each label to its provision count.
	LabelFreq map[string]int

	// LabelsPerProvision histogram: index = label count, value = provisions.
	LabelsPerProvision []int

	// Token-length distribution under \w+ tokenization.
	TokensP50 int
	TokensP90 int
	TokensP99 int
	TokensMax int
}

// Collect computes Stats over the given provisions.
func Collect(provs []model.Provision) *Stats {
	s := &Stats{LabelFreq: make(map[string]int)}
	s.Provisions = len(provs)

	lengths := make([]int, 0, len(provs))
	for _, p := range provs {
		for _, l := range p.Labels {
			s.LabelFreq[l]++
		}
		n := len(p.Labels)
		for len(s.LabelsPerProvision) <= n {
			s.LabelsPerProvision = append(s.LabelsPerProvision, 0)
		}
		s.LabelsPerProvision[n]++
		lengths = append(lengths, len(Tokenize(p.Text)))
	}
	s.Labels = len(s.LabelFreq)

	if len(lengths) > 0 {
		sort.Ints(lengths)
		s.TokensP50 = percentile(lengths, 0.50)
		s.TokensP90 = percentile(lengths, 0.90)
		s.TokensP99 = percentile(lengths, 0.99)
		s.TokensMax = lengths[len(lengths)-1]
	}
	return s
}

// percentile returns the value at quantile q of a sorted slice.
func percentile(sorted []int, q float64) int {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

// WriteTo renders a human-readable summary, most frequent labels first.
func (s *Stats) WriteTo(w io.Writer) (int64, error) {
	var total int64
	write := func(format string, args ...any) error {
		n, err := fmt.Fprintf(w, format, args...)
		total += int64(n)
		return err
	}

	if err := write("provisions: %d\nlabels: %d\n", s.Provisions, s.Labels); err != nil {
		return total, err
	}
	if err := write("tokens: p50=%d p90=%d p99=%d max=%d\n", s.TokensP50, s.TokensP90, s.TokensP99, s.TokensMax); err != nil {
		return total, err
	}
	for n, count := range s.LabelsPerProvision {
		if count == 0 {
			continue
		}
		if err := write("provisions with %d label(s): %d\n", n, count); err != nil {
			return total, err
		}
	}

	type labelCount struct {
		label string
		count int
	}
	freq := make([]labelCount, 0, len(s.LabelFreq))
	for l, c := range s.LabelFreq {
		freq = append(freq, labelCount{l, c})
	}
	sort.Slice(freq, func(i, j int) bool {
		if freq[i].count != freq[j].count {
			return freq[i].count > freq[j].count
		}
		return freq[i].label < freq[j].label
	})
	for _, lc := range freq {
		if err := write("%6d  %s\n", lc.count, lc.label); err != nil {
			return total, err
		}
	}
	return total, nil
}
