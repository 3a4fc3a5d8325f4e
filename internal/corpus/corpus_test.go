package corpus

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexkit/fineprint/internal/model"
)

const sampleJSONL = `{"provision": "Each party agrees to hold Confidential Information in strict confidence.", "label": ["confidentiality"], "source": "nda_001"}

{"provision": "This Agreement shall be governed by the laws of the State of New York.", "label": ["governing laws", "jurisdictions"], "source": "nda_002"}
{"provision": "Either party may terminate this Agreement upon thirty days notice.", "label": ["terminations"]}
`

func TestRead(t *testing.T) {
	provs, err := Read(strings.NewReader(sampleJSONL))
	require.NoError(t, err)
	require.Len(t, provs, 3)

	assert.Equal(t, []string{"confidentiality"}, provs[0].Labels)
	assert.Equal(t, "nda_001", provs[0].Source)
	assert.Equal(t, []string{"governing laws", "jurisdictions"}, provs[1].Labels)
	assert.Empty(t, provs[2].Source)
}

func TestReadMalformedLine(t *testing.T) {
	in := `{"provision": "ok", "label": ["a"]}
{not json}
`
	_, err := Read(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadEmptyText(t *testing.T) {
	_, err := Read(strings.NewReader(`{"provision": "", "label": ["a"]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty provision")
}

func TestLoadRoundTrip(t *testing.T) {
	provs, err := Read(strings.NewReader(sampleJSONL))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, WriteFile(path, provs))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, provs, back)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
}

func makeProvisions(n int) []model.Provision {
	provs := make([]model.Provision, n)
	for i := range provs {
		provs[i] = model.Provision{
			Text:   "clause number " + strconv.Itoa(i),
			Labels: []string{"l" + string(rune('a'+i%5))},
			Source: "doc",
		}
	}
	return provs
}

func TestSplitDeterministic(t *testing.T) {
	provs := makeProvisions(100)

	a, err := Split(provs, DefaultSplitOptions())
	require.NoError(t, err)
	b, err := Split(provs, DefaultSplitOptions())
	require.NoError(t, err)

	assert.Equal(t, a.Train, b.Train)
	assert.Equal(t, a.Test, b.Test)
	assert.Equal(t, a.Dev, b.Dev)

	assert.Len(t, a.Test, 20)
	assert.Len(t, a.Dev, 10)
	assert.Len(t, a.Train, 70)
	assert.Len(t, a.All(), 100)
}

func TestSplitSeedChangesPartition(t *testing.T) {
	provs := makeProvisions(100)

	a, err := Split(provs, SplitOptions{Seed: 1, TestFrac: 0.2, DevFrac: 0.1})
	require.NoError(t, err)
	b, err := Split(provs, SplitOptions{Seed: 2, TestFrac: 0.2, DevFrac: 0.1})
	require.NoError(t, err)

	assert.NotEqual(t, a.Test, b.Test)
}

func TestSplitInvalidFractions(t *testing.T) {
	provs := makeProvisions(10)
	_, err := Split(provs, SplitOptions{TestFrac: 0.8, DevFrac: 0.3})
	require.Error(t, err)
	_, err = Split(provs, SplitOptions{TestFrac: -0.1})
	require.Error(t, err)
}

func TestLabelSet(t *testing.T) {
	ls := NewLabelSet([][]string{
		{"terminations", "confidentiality"},
		{"governing laws"},
		{"confidentiality"},
	})

	assert.Equal(t, []string{"confidentiality", "governing laws", "terminations"}, ls.Classes())
	assert.Equal(t, 3, ls.Len())
	assert.Equal(t, 0, ls.Index("confidentiality"))
	assert.Equal(t, -1, ls.Index("unknown"))

	m, err := ls.Transform([][]string{{"terminations"}, {"confidentiality", "governing laws"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1}, m.Row(0))
	assert.Equal(t, []float64{1, 1, 0}, m.Row(1))

	back, err := ls.Inverse(m)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"terminations"}, {"confidentiality", "governing laws"}}, back)
}

func TestLabelSetUnknownLabel(t *testing.T) {
	ls := NewLabelSet([][]string{{"a"}})
	_, err := ls.Transform([][]string{{"b"}})
	require.Error(t, err)
}

func TestBalancedWeights(t *testing.T) {
	// 4 samples; label 0 positive in 1, label 1 positive in 2.
	m := model.NewMatrix(4, 2)
	m.Set(0, 0, 1)
	m.Set(0, 1, 1)
	m.Set(1, 1, 1)

	pos, neg := BalancedWeights(m)
	assert.InDelta(t, 2.0, pos[0], 1e-12)     // 4/(2*1)
	assert.InDelta(t, 4.0/6.0, neg[0], 1e-12) // 4/(2*3)
	assert.InDelta(t, 1.0, pos[1], 1e-12)     // 4/(2*2)
	assert.InDelta(t, 1.0, neg[1], 1e-12)
}

func TestPositiveWeights(t *testing.T) {
	m := model.NewMatrix(4, 2)
	m.Set(0, 0, 1) // 1 positive, 3 negatives -> 3.0
	pw := PositiveWeights(m)
	assert.InDelta(t, 3.0, pw[0], 1e-12)
	assert.InDelta(t, 1.0, pw[1], 1e-12) // no positives -> 1
}

func TestDedupMergesLabels(t *testing.T) {
	provs := []model.Provision{
		{Text: "The  Receiving Party shall not disclose.", Labels: []string{"confidentiality"}},
		{Text: "the receiving party shall not disclose.", Labels: []string{"non-disclosure"}},
		{Text: "Payment is due within 30 days.", Labels: []string{"payments"}},
	}
	out := Dedup(provs)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"confidentiality", "non-disclosure"}, out[0].Labels)
	assert.Equal(t, []string{"payments"}, out[1].Labels)
}

func TestFilterMinLabelFreq(t *testing.T) {
	provs := []model.Provision{
		{Text: "a", Labels: []string{"common", "rare"}},
		{Text: "b", Labels: []string{"common"}},
		{Text: "c", Labels: []string{"rare2"}},
	}
	out := FilterMinLabelFreq(provs, 2)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"common"}, out[0].Labels)
	assert.Equal(t, []string{"common"}, out[1].Labels)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"30 days' notice", []string{"30", "days", "notice"}},
		{"right_of_first_refusal", []string{"right_of_first_refusal"}},
		{"", nil},
		{"—§—", nil},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Tokenize(tc.in), "input %q", tc.in)
	}
}

func TestCollectStats(t *testing.T) {
	provs := []model.Provision{
		{Text: "one two three", Labels: []string{"a", "b"}},
		{Text: "one", Labels: []string{"a"}},
	}
	s := Collect(provs)
	assert.Equal(t, 2, s.Provisions)
	assert.Equal(t, 2, s.Labels)
	assert.Equal(t, 2, s.LabelFreq["a"])
	assert.Equal(t, 3, s.TokensMax)
	assert.Equal(t, []int{0, 1, 1}, s.LabelsPerProvision)

	var sb strings.Builder
	_, err := s.WriteTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "provisions: 2")
	assert.Contains(t, sb.String(), "a")
}
