// Package features turns normalized text into sparse feature matrices.
package features

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Entry is one non-zero cell of a sparse row.
type Entry struct {
	Col   int
	Value float64
}

// Matrix is an immutable sparse matrix in compressed sparse row form.
// Column indices within a row are strictly increasing and no stored value is
// zero.
type Matrix struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

var _ mat.Matrix = (*Matrix)(nil)

// NewMatrix builds a matrix from per-row entries. Entries may be unsorted;
// duplicate columns are summed and zeros are dropped. It panics if a column
// is out of range.
func NewMatrix(cols int, rows [][]Entry) *Matrix {
	m := &Matrix{
		rows:   len(rows),
		cols:   cols,
		indptr: make([]int, 1, len(rows)+1),
	}

	for _, row := range rows {
		sorted := slices.Clone(row)
		sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Col < sorted[b].Col })

		for i := 0; i < len(sorted); {
			col := sorted[i].Col
			if col < 0 || col >= cols {
				panic(mat.ErrColAccess)
			}
			sum := 0.0
			for ; i < len(sorted) && sorted[i].Col == col; i++ {
				sum += sorted[i].Value
			}
			if sum != 0 {
				m.indices = append(m.indices, col)
				m.data = append(m.data, sum)
			}
		}
		m.indptr = append(m.indptr, len(m.indices))
	}

	return m
}

// Dims implements mat.Matrix.
func (m *Matrix) Dims() (r, c int) {
	return m.rows, m.cols
}

// At implements mat.Matrix.
func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= m.rows {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= m.cols {
		panic(mat.ErrColAccess)
	}
	cols := m.indices[m.indptr[i]:m.indptr[i+1]]
	if k, ok := slices.BinarySearch(cols, j); ok {
		return m.data[m.indptr[i]+k]
	}
	return 0
}

// T implements mat.Matrix.
func (m *Matrix) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

// Row returns the column indices and values of row i. The returned slices
// alias the matrix and must not be modified.
func (m *Matrix) Row(i int) ([]int, []float64) {
	lo, hi := m.indptr[i], m.indptr[i+1]
	return m.indices[lo:hi], m.data[lo:hi]
}

// RowDot returns the dot product of row i with a dense vector of length cols.
func (m *Matrix) RowDot(i int, w []float64) float64 {
	idx, vals := m.Row(i)
	sum := 0.0
	for k, j := range idx {
		sum += vals[k] * w[j]
	}
	return sum
}

// NNZ returns the number of stored values.
func (m *Matrix) NNZ() int {
	return len(m.data)
}

// MinValue returns the smallest stored value, or 0 for an empty matrix.
func (m *Matrix) MinValue() float64 {
	if len(m.data) == 0 {
		return 0
	}
	return slices.Min(m.data)
}

// SelectRows returns a new matrix holding the given rows in order.
func (m *Matrix) SelectRows(rows []int) *Matrix {
	out := &Matrix{
		rows:   len(rows),
		cols:   m.cols,
		indptr: make([]int, 1, len(rows)+1),
	}
	for _, r := range rows {
		idx, vals := m.Row(r)
		out.indices = append(out.indices, idx...)
		out.data = append(out.data, vals...)
		out.indptr = append(out.indptr, len(out.indices))
	}
	return out
}

// ToDense copies the matrix into a dense gonum matrix.
func (m *Matrix) ToDense() *mat.Dense {
	if m.rows == 0 || m.cols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.rows, m.cols, nil)
	for i := 0; i < m.rows; i++ {
		idx, vals := m.Row(i)
		for k, j := range idx {
			d.Set(i, j, vals[k])
		}
	}
	return d
}
