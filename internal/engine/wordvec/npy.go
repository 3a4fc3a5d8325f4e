package wordvec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

// Save writes the table as an npy matrix plus a JSON vocabulary, the pair
// LoadNPY reads back.
func (t *Table) Save(npyPath, vocabPath string) error {
	if err := writeNPY(npyPath, len(t.data)/t.dim, t.dim, t.data); err != nil {
		return err
	}
	raw, err := json.Marshal(t.index)
	if err != nil {
		return fmt.Errorf("wordvec: encoding vocabulary: %w", err)
	}
	if err := os.WriteFile(vocabPath, raw, 0o644); err != nil {
		return fmt.Errorf("wordvec: writing vocabulary: %w", err)
	}
	return nil
}

// writeNPY emits a version-1 little-endian f8 C-order npy file.
func writeNPY(path string, rows, cols int, data []float64) error {
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	// Pad so the data section starts 64-byte aligned, newline-terminated.
	for (len(npyMagic)+4+len(header)+1)%64 != 0 {
		header += " "
	}
	header += "\n"

	buf := make([]byte, 0, len(npyMagic)+4+len(header)+len(data)*8)
	buf = append(buf, npyMagic...)
	buf = append(buf, 1, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(header)))
	buf = append(buf, header...)
	for _, v := range data {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("wordvec: writing npy: %w", err)
	}
	return nil
}

// LoadNPY reads a 2-D float matrix in NumPy ".npy" format (little-endian
// f4 or f8, C order) and a JSON vocabulary mapping token -> row index.
func LoadNPY(npyPath, vocabPath string) (*Table, error) {
	data, dim, rows, err := readNPY(npyPath)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("wordvec: reading vocabulary: %w", err)
	}
	var index map[string]int
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("wordvec: parsing vocabulary: %w", err)
	}
	for token, id := range index {
		if id < 0 || id >= rows {
			return nil, fmt.Errorf("wordvec: vocabulary maps %q to row %d, matrix has %d rows", token, id, rows)
		}
	}

	return &Table{index: index, data: data, dim: dim}, nil
}

func readNPY(path string) (data []float64, dim, rows int, err error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("wordvec: %w", err)
	}
	if len(buf) < len(npyMagic)+4 || string(buf[:len(npyMagic)]) != string(npyMagic) {
		return nil, 0, 0, fmt.Errorf("wordvec: %s is not an npy file", path)
	}

	major := buf[6]
	var headerLen, headerStart int
	switch major {
	case 1:
		if len(buf) < 10 {
			return nil, 0, 0, fmt.Errorf("wordvec: truncated npy header")
		}
		headerLen = int(binary.LittleEndian.Uint16(buf[8:10]))
		headerStart = 10
	case 2, 3:
		if len(buf) < 12 {
			return nil, 0, 0, fmt.Errorf("wordvec: truncated npy header")
		}
		headerLen = int(binary.LittleEndian.Uint32(buf[8:12]))
		headerStart = 12
	default:
		return nil, 0, 0, fmt.Errorf("wordvec: unsupported npy version %d", major)
	}
	if len(buf) < headerStart+headerLen {
		return nil, 0, 0, fmt.Errorf("wordvec: header length %d exceeds file size", headerLen)
	}
	header := string(buf[headerStart : headerStart+headerLen])

	descr, err := headerField(header, "descr")
	if err != nil {
		return nil, 0, 0, err
	}
	var width int
	switch descr {
	case "<f4":
		width = 4
	case "<f8":
		width = 8
	default:
		return nil, 0, 0, fmt.Errorf("wordvec: unsupported npy dtype %q", descr)
	}

	if strings.Contains(header, "'fortran_order': True") {
		return nil, 0, 0, fmt.Errorf("wordvec: fortran-order npy not supported")
	}

	rows, dim, err = headerShape(header)
	if err != nil {
		return nil, 0, 0, err
	}

	n := rows * dim
	body := buf[headerStart+headerLen:]
	if len(body) < n*width {
		return nil, 0, 0, fmt.Errorf("wordvec: npy data is %d bytes, shape (%d, %d) needs %d",
			len(body), rows, dim, n*width)
	}

	data = make([]float64, n)
	switch width {
	case 4:
		for i := range data {
			bits := binary.LittleEndian.Uint32(body[i*4 : i*4+4])
			data[i] = float64(math.Float32frombits(bits))
		}
	case 8:
		for i := range data {
			bits := binary.LittleEndian.Uint64(body[i*8 : i*8+8])
			data[i] = math.Float64frombits(bits)
		}
	}
	return data, dim, rows, nil
}

// headerField extracts a quoted value from the npy header dict literal.
func headerField(header, key string) (string, error) {
	marker := "'" + key + "':"
	i := strings.Index(header, marker)
	if i < 0 {
		return "", fmt.Errorf("wordvec: npy header missing %q", key)
	}
	rest := header[i+len(marker):]
	start := strings.IndexByte(rest, '\'')
	if start < 0 {
		return "", fmt.Errorf("wordvec: malformed npy header near %q", key)
	}
	end := strings.IndexByte(rest[start+1:], '\'')
	if end < 0 {
		return "", fmt.Errorf("wordvec: malformed npy header near %q", key)
	}
	return rest[start+1 : start+1+end], nil
}

// headerShape parses the "(rows, cols)" tuple from the npy header.
func headerShape(header string) (rows, cols int, err error) {
	i := strings.Index(header, "'shape':")
	if i < 0 {
		return 0, 0, fmt.Errorf("wordvec: npy header missing shape")
	}
	rest := header[i:]
	open := strings.IndexByte(rest, '(')
	end := strings.IndexByte(rest, ')')
	if open < 0 || end < open {
		return 0, 0, fmt.Errorf("wordvec: malformed npy shape")
	}
	parts := strings.Split(rest[open+1:end], ",")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, fmt.Errorf("wordvec: malformed npy shape: %w", err)
		}
		dims = append(dims, v)
	}
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("wordvec: expected 2-D embedding matrix, got shape %v", dims)
	}
	if dims[0] <= 0 || dims[1] <= 0 {
		return 0, 0, fmt.Errorf("wordvec: degenerate npy shape (%d, %d)", dims[0], dims[1])
	}
	return dims[0], dims[1], nil
}
