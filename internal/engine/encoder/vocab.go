package encoder

import (
	"bufio"
	"fmt"
	"os"
)

// Special tokens every BERT-family vocab.txt must define.
const (
	padToken = "[PAD]"
	unkToken = "[UNK]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"
)

// vocab is a WordPiece vocabulary. Token IDs follow the line order of the
// vocab.txt file the vocabulary was loaded from, starting at 0.
type vocab struct {
	ids    map[string]int64
	tokens []string

	padID int64
	unkID int64
	clsID int64
	sepID int64
}

// loadVocab reads a vocab.txt file, one token per line.
func loadVocab(path string) (*vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	v := &vocab{ids: make(map[string]int64, 32000)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := scanner.Text()
		v.ids[tok] = int64(len(v.tokens))
		v.tokens = append(v.tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: reading %s: %w", path, err)
	}
	if len(v.tokens) == 0 {
		return nil, fmt.Errorf("vocab: file is empty: %s", path)
	}

	for _, s := range []struct {
		tok string
		id  *int64
	}{
		{padToken, &v.padID},
		{unkToken, &v.unkID},
		{clsToken, &v.clsID},
		{sepToken, &v.sepID},
	} {
		id, ok := v.ids[s.tok]
		if !ok {
			return nil, fmt.Errorf("vocab: missing special token %s", s.tok)
		}
		*s.id = id
	}
	return v, nil
}

// lookup returns the token's ID, falling back to [UNK].
func (v *vocab) lookup(token string) int64 {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.unkID
}

func (v *vocab) contains(token string) bool {
	_, ok := v.ids[token]
	return ok
}

func (v *vocab) size() int { return len(v.tokens) }
