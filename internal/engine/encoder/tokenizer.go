package encoder

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxCharsPerWord caps WordPiece decomposition; longer words map to [UNK].
const maxCharsPerWord = 200

// tokenized packs one or more tokenized texts for inference. All slices are
// flat [batchSize * seqLen].
type tokenized struct {
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
	batchSize     int64
	seqLen        int64
}

// tokenizer performs BERT-style lowercase WordPiece tokenization. Sequences
// are wrapped in [CLS]/[SEP] and truncated to maxSeqLen.
type tokenizer struct {
	vocab     *vocab
	maxSeqLen int
}

func newTokenizer(vocabPath string, maxSeqLen int) (*tokenizer, error) {
	v, err := loadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	return &tokenizer{vocab: v, maxSeqLen: maxSeqLen}, nil
}

// tokenize converts one text into token IDs and an attention mask, both of
// length maxSeqLen with zero padding after the [SEP].
func (t *tokenizer) tokenize(text string) (ids, mask []int64) {
	tokens := t.wordpiece(t.basicTokenize(text))

	// [CLS] and [SEP] take two of the maxSeqLen positions.
	if limit := t.maxSeqLen - 2; len(tokens) > limit {
		tokens = tokens[:limit]
	}

	ids = make([]int64, t.maxSeqLen)
	mask = make([]int64, t.maxSeqLen)
	for i := range ids {
		ids[i] = t.vocab.padID
	}
	ids[0] = t.vocab.clsID
	mask[0] = 1
	for i, tok := range tokens {
		ids[i+1] = t.vocab.lookup(tok)
		mask[i+1] = 1
	}
	ids[len(tokens)+1] = t.vocab.sepID
	mask[len(tokens)+1] = 1
	return ids, mask
}

// tokenizeBatch tokenizes texts into flat slices padded to the longest
// sequence in the batch. tokenTypeIDs are all zeros; single-segment inputs
// have no second sentence.
func (t *tokenizer) tokenizeBatch(texts []string) tokenized {
	if len(texts) == 0 {
		return tokenized{}
	}

	allIDs := make([][]int64, len(texts))
	allMasks := make([][]int64, len(texts))
	longest := 0
	for i, text := range texts {
		ids, mask := t.tokenize(text)
		n := 0
		for _, m := range mask {
			if m == 1 {
				n++
			}
		}
		allIDs[i], allMasks[i] = ids, mask
		if n > longest {
			longest = n
		}
	}

	batchSize := int64(len(texts))
	seqLen := int64(longest)
	out := tokenized{
		inputIDs:      make([]int64, batchSize*seqLen),
		attentionMask: make([]int64, batchSize*seqLen),
		tokenTypeIDs:  make([]int64, batchSize*seqLen),
		batchSize:     batchSize,
		seqLen:        seqLen,
	}
	for i := range allIDs {
		off := int64(i) * seqLen
		copy(out.inputIDs[off:off+seqLen], allIDs[i][:seqLen])
		copy(out.attentionMask[off:off+seqLen], allMasks[i][:seqLen])
	}
	return out
}

// basicTokenize mirrors BERT's BasicTokenizer with lowercasing: clean the
// text, space out CJK characters, lowercase, strip accents, then split on
// whitespace and punctuation.
func (t *tokenizer) basicTokenize(text string) []string {
	text = cleanText(text)
	text = spaceCJK(text)
	text = strings.ToLower(text)
	text = stripAccents(text)

	var tokens []string
	for _, word := range strings.Fields(text) {
		tokens = append(tokens, splitOnPunctuation(word)...)
	}
	return tokens
}

// wordpiece decomposes basic tokens into greedy longest-match subwords.
// Continuation pieces carry the "##" prefix; a token with any uncovered
// remainder becomes [UNK] as a whole.
func (t *tokenizer) wordpiece(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		out = append(out, t.wordpieceToken(tok)...)
	}
	return out
}

func (t *tokenizer) wordpieceToken(token string) []string {
	runes := []rune(token)
	if len(runes) > maxCharsPerWord {
		return []string{unkToken}
	}

	var pieces []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := false
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if t.vocab.contains(sub) {
				pieces = append(pieces, sub)
				found = true
				break
			}
			end--
		}
		if !found {
			return []string{unkToken}
		}
		start = end
	}
	return pieces
}

// cleanText drops control characters and canonicalizes whitespace to spaces.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == 0 || r == 0xFFFD || isControl(r) {
			continue
		}
		if isWhitespace(r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripAccents removes combining marks after NFD normalization.
func stripAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// spaceCJK surrounds CJK ideographs with spaces so each becomes its own
// basic token.
func spaceCJK(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, r := range text {
		if isCJK(r) {
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitOnPunctuation breaks a word at punctuation, keeping each punctuation
// rune as its own token.
func splitOnPunctuation(word string) []string {
	var tokens []string
	var cur strings.Builder
	for _, r := range word {
		if isPunctuation(r) {
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			tokens = append(tokens, string(r))
		} else {
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// Character classes below match BERT's reference tokenizer.

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunctuation(r rune) bool {
	// ASCII 33-47, 58-64, 91-96 and 123-126 count as punctuation even where
	// Unicode disagrees (e.g. '$', '+').
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
