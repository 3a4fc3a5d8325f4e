package corpus

import "github.com/lexkit/fineprint/internal/model"

// FilterMinLabelFreq drops labels occurring on fewer than minFreq provisions,
// then drops provisions left with no labels at all. This is the "freq100"
// style cleanup the SEC corpus variants were produced with: rare provision
// types carry too few examples to train or evaluate on.
func FilterMinLabelFreq(provs []model.Provision, minFreq int) []model.Provision {
	if minFreq <= 1 {
		return provs
	}
	counts := make(map[string]int)
	for _, p := range provs {
		for _, l := range p.Labels {
			counts[l]++
		}
	}

	out := make([]model.Provision, 0, len(provs))
	for _, p := range provs {
		var kept []string
		for _, l := range p.Labels {
			if counts[l] >= minFreq {
				kept = append(kept, l)
			}
		}
		if len(kept) == 0 {
			continue
		}
		p.Labels = kept
		out = append(out, p)
	}
	return out
}
