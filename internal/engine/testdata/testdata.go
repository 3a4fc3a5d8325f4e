package testdata

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/lexkit/fineprint/internal/corpus"
	"github.com/lexkit/fineprint/internal/model"
)

//go:embed corpus.jsonl
var corpusJSONL []byte

// LoadCorpus parses the embedded corpus.jsonl and returns all provisions.
// The fixture covers the fourteen default provision types with at least four
// clauses each, a few of them multi-labeled.
func LoadCorpus() ([]model.Provision, error) {
	provs, err := corpus.Read(bytes.NewReader(corpusJSONL))
	if err != nil {
		return nil, fmt.Errorf("parse corpus.jsonl: %w", err)
	}
	return provs, nil
}
