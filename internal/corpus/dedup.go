package corpus

import (
	"sort"
	"strings"

	"github.com/lexkit/fineprint/internal/model"
)

// Dedup drops provisions whose normalized text already occurred, keeping the
// first occurrence and merging the label sets of the duplicates into it.
// SEC filings repeat boilerplate clauses across contracts; deduplicating
// before splitting keeps identical text out of both train and test.
func Dedup(provs []model.Provision) []model.Provision {
	byKey := make(map[string]int, len(provs))
	var out []model.Provision

	for _, p := range provs {
		key := normalizeText(p.Text)
		if idx, seen := byKey[key]; seen {
			out[idx].Labels = mergeLabels(out[idx].Labels, p.Labels)
			continue
		}
		byKey[key] = len(out)
		out = append(out, p)
	}
	return out
}

// normalizeText lowercases and collapses all whitespace runs to single
// spaces, so formatting differences don't defeat duplicate detection.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// mergeLabels unions two label sets, returning a sorted slice.
func mergeLabels(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, l := range a {
		seen[l] = struct{}{}
	}
	for _, l := range b {
		seen[l] = struct{}{}
	}
	merged := make([]string, 0, len(seen))
	for l := range seen {
		merged = append(merged, l)
	}
	sort.Strings(merged)
	return merged
}
