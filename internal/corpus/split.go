package corpus

import (
	"fmt"
	"math/rand"

	"github.com/lexkit/fineprint/internal/model"
)

// DefaultSeed keeps splits reproducible across runs and machines.
const DefaultSeed = 42

// SplitOptions controls how a corpus is partitioned.
type SplitOptions struct {
	Seed     int64
	TestFrac float64 // fraction of the whole corpus held out for testing
	DevFrac  float64 // fraction of the whole corpus held out for tuning / early stopping
}

// DefaultSplitOptions returns the 70/20/10 train/test/dev split used by the
// provision-classification experiments.
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{Seed: DefaultSeed, TestFrac: 0.2, DevFrac: 0.1}
}

// SplitDataSet holds the three corpus partitions.
type SplitDataSet struct {
	Train []model.Provision
	Test  []model.Provision
	Dev   []model.Provision
}

// Split shuffles provisions with a seeded RNG and carves off test and dev
// partitions. The same options over the same corpus always yield the same
// split.
func Split(provs []model.Provision, opts SplitOptions) (*SplitDataSet, error) {
	if opts.TestFrac < 0 || opts.DevFrac < 0 || opts.TestFrac+opts.DevFrac >= 1 {
		return nil, fmt.Errorf("corpus: invalid split fractions test=%g dev=%g", opts.TestFrac, opts.DevFrac)
	}

	shuffled := make([]model.Provision, len(provs))
	copy(shuffled, provs)
	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	n := len(shuffled)
	nTest := int(float64(n) * opts.TestFrac)
	nDev := int(float64(n) * opts.DevFrac)

	return &SplitDataSet{
		Test:  shuffled[:nTest],
		Dev:   shuffled[nTest : nTest+nDev],
		Train: shuffled[nTest+nDev:],
	}, nil
}

// Texts extracts the provision texts from a partition.
func Texts(provs []model.Provision) []string {
	out := make([]string, len(provs))
	for i, p := range provs {
		out[i] = p.Text
	}
	return out
}

// Labels extracts the gold label sets from a partition.
func Labels(provs []model.Provision) [][]string {
	out := make([][]string, len(provs))
	for i, p := range provs {
		out[i] = p.Labels
	}
	return out
}

// All concatenates the three partitions in train, test, dev order.
func (s *SplitDataSet) All() []model.Provision {
	all := make([]model.Provision, 0, len(s.Train)+len(s.Test)+len(s.Dev))
	all = append(all, s.Train...)
	all = append(all, s.Test...)
	all = append(all, s.Dev...)
	return all
}
