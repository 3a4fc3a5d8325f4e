package model

import "fmt"

// Matrix is a dense row-major float64 matrix. It is the exchange format
// between models and the evaluation protocol: rows are samples, columns are
// labels (probabilities or multi-hot targets).
type Matrix struct {
	Rows, Cols int
	Data       []float64 // flat [Rows * Cols]
}

// NewMatrix allocates a zeroed Rows x Cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the element at row i, column j.
func (m *Matrix) At(i, j int) float64 { return m.Data[i*m.Cols+j] }

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v float64) { m.Data[i*m.Cols+j] = v }

// Row returns row i as a slice aliasing the underlying data.
func (m *Matrix) Row(i int) []float64 { return m.Data[i*m.Cols : (i+1)*m.Cols] }

// Col copies column j into a new slice.
func (m *Matrix) Col(j int) []float64 {
	out := make([]float64, m.Rows)
	for i := 0; i < m.Rows; i++ {
		out[i] = m.Data[i*m.Cols+j]
	}
	return out
}

// SameShape reports whether m and other have identical dimensions.
func (m *Matrix) SameShape(other *Matrix) bool {
	return other != nil && m.Rows == other.Rows && m.Cols == other.Cols
}

// CheckShape returns an error naming the mismatch when m is not rows x cols.
func (m *Matrix) CheckShape(rows, cols int) error {
	if m.Rows != rows || m.Cols != cols {
		return fmt.Errorf("matrix: shape %dx%d, want %dx%d", m.Rows, m.Cols, rows, cols)
	}
	return nil
}
