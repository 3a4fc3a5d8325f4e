// Package wordvec loads pretrained word-embedding tables. Two on-disk
// formats are supported: the fastText ".vec" text format and a ".npy"
// matrix paired with a JSON vocabulary. Tables are immutable after load.
package wordvec

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Table is a frozen word-embedding lookup.
type Table struct {
	index map[string]int
	data  []float64 // row-major [rows, dim]
	dim   int
}

// New builds a Table from a token index and a row-major matrix. Every index
// entry must address a row of data.
func New(index map[string]int, data []float64, dim int) (*Table, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("wordvec: dim %d", dim)
	}
	if len(data)%dim != 0 {
		return nil, fmt.Errorf("wordvec: %d values do not divide into rows of %d", len(data), dim)
	}
	rows := len(data) / dim
	for token, id := range index {
		if id < 0 || id >= rows {
			return nil, fmt.Errorf("wordvec: token %q maps to row %d of %d", token, id, rows)
		}
	}
	return &Table{index: index, data: data, dim: dim}, nil
}

// Dim returns the embedding dimension.
func (t *Table) Dim() int { return t.dim }

// Len returns the vocabulary size.
func (t *Table) Len() int { return len(t.index) }

// ID returns the row of token, or false if the token is unknown.
func (t *Table) ID(token string) (int, bool) {
	id, ok := t.index[token]
	return id, ok
}

// Row returns the embedding at row id. The slice aliases the table.
func (t *Table) Row(id int) []float64 {
	return t.data[id*t.dim : (id+1)*t.dim]
}

// Load reads an embedding table, dispatching on the file extension:
// ".vec" is the fastText text format; ".npy" expects a vocab.json in the
// same directory.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vec":
		return LoadVec(path)
	case ".npy":
		return LoadNPY(path, filepath.Join(filepath.Dir(path), "vocab.json"))
	default:
		return nil, fmt.Errorf("wordvec: unsupported embedding format %q", filepath.Ext(path))
	}
}
