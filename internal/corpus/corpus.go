package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lexkit/fineprint/internal/model"
)

// maxLineBytes bounds a single JSONL line. SEC provisions run long but stay
// well under 1 MiB.
const maxLineBytes = 1 << 20

// Load reads a JSONL corpus file: one provision object per line with
// "provision" (text), "label" (list of strings), and optional "source".
func Load(path string) ([]model.Provision, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	defer f.Close()

	provs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("corpus: %s: %w", path, err)
	}
	return provs, nil
}

// Read parses JSONL provisions from r. Blank lines are skipped; a malformed
// line is an error naming its line number.
func Read(r io.Reader) ([]model.Provision, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var provs []model.Provision
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var p model.Provision
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if p.Text == "" {
			return nil, fmt.Errorf("line %d: empty provision text", lineNo)
		}
		provs = append(provs, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	return provs, nil
}

// Write serializes provisions as JSONL to w, one object per line.
func Write(w io.Writer, provs []model.Provision) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range provs {
		if err := enc.Encode(&provs[i]); err != nil {
			return fmt.Errorf("corpus: encode: %w", err)
		}
	}
	return bw.Flush()
}

// WriteFile serializes provisions as a JSONL file at path.
func WriteFile(path string, provs []model.Provision) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	if err := Write(f, provs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
