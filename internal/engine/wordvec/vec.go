package wordvec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// vecMaxLine bounds one .vec line; 300-dim vectors run ~3 KB.
const vecMaxLine = 1 << 20

// LoadVec reads a fastText ".vec" file: a "count dim" header line followed
// by one "token v1 .. vdim" line per word.
func LoadVec(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wordvec: %w", err)
	}
	defer f.Close()
	return ReadVec(f)
}

// ReadVec parses the fastText text format from r. Duplicate tokens keep
// their first vector.
func ReadVec(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), vecMaxLine)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("wordvec: reading header: %w", err)
		}
		return nil, fmt.Errorf("wordvec: empty embedding file")
	}
	header := strings.Fields(scanner.Text())
	if len(header) != 2 {
		return nil, fmt.Errorf("wordvec: malformed header %q, want \"count dim\"", scanner.Text())
	}
	count, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("wordvec: malformed header count: %w", err)
	}
	dim, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, fmt.Errorf("wordvec: malformed header dim: %w", err)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("wordvec: header dim %d", dim)
	}

	t := &Table{
		index: make(map[string]int, count),
		data:  make([]float64, 0, count*dim),
		dim:   dim,
	}

	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != dim+1 {
			return nil, fmt.Errorf("wordvec: line %d has %d values, want %d", line, len(fields)-1, dim)
		}
		token := fields[0]
		if _, dup := t.index[token]; dup {
			continue
		}
		row := len(t.index)
		for _, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("wordvec: line %d: %w", line, err)
			}
			t.data = append(t.data, v)
		}
		t.index[token] = row
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wordvec: %w", err)
	}
	if len(t.index) == 0 {
		return nil, fmt.Errorf("wordvec: no vectors in embedding file")
	}
	return t, nil
}
