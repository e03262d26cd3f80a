package buffer

import (
	"encoding/json"
	"fmt"
)

// Matrix is a dense square matrix of unsigned 32-bit values, stored row-major.
// It holds durations, costs or distances between location indices.
type Matrix struct {
	n    int
	data []uint32
}

// NewMatrix returns a zero-filled n×n matrix.
func NewMatrix(n int) *Matrix {
	if n < 0 {
		n = 0
	}
	return &Matrix{n: n, data: make([]uint32, n*n)}
}

// MatrixFromRows copies rows into a new Matrix. Rows must form a square.
func MatrixFromRows(rows [][]uint32) (*Matrix, error) {
	m := NewMatrix(len(rows))
	for i, r := range rows {
		if len(r) != len(rows) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrFormat, i, len(r), len(rows))
		}
		copy(m.data[i*m.n:], r)
	}
	return m, nil
}

// MatrixFromView copies a rank-2 square uint32 view into a new Matrix.
func MatrixFromView(v View) (*Matrix, error) {
	if err := v.contiguous(Uint32, 2); err != nil {
		return nil, err
	}
	if v.Shape[0] != v.Shape[1] {
		return nil, fmt.Errorf("%w: matrix is %dx%d, want square", ErrFormat, v.Shape[0], v.Shape[1])
	}
	n := v.Shape[0]
	return &Matrix{n: n, data: valuesOf[uint32](v, n*n)}, nil
}

// View exposes the matrix storage without copying. The View is valid until the
// matrix is next modified.
func (m *Matrix) View() View {
	return View{
		Buf:     bytesOf(m.data),
		Elem:    Uint32,
		Shape:   []int{m.n, m.n},
		Strides: []int{m.n * 4, 4},
	}
}

// Size is the number of rows (equal to the number of columns).
func (m *Matrix) Size() int {
	if m == nil {
		return 0
	}
	return m.n
}

func (m *Matrix) At(i, j int) uint32 { return m.data[i*m.n+j] }

func (m *Matrix) Set(i, j int, v uint32) { m.data[i*m.n+j] = v }

// Row returns row i, aliasing the matrix storage.
func (m *Matrix) Row(i int) []uint32 { return m.data[i*m.n : (i+1)*m.n] }

// Max returns the largest entry, or 0 for an empty matrix.
func (m *Matrix) Max() uint32 {
	var best uint32
	for _, v := range m.data {
		best = max(best, v)
	}
	return best
}

func (m *Matrix) Clone() *Matrix {
	return &Matrix{n: m.n, data: append([]uint32(nil), m.data...)}
}

// SubMatrix returns a new len(indices)² matrix whose (a, b) cell is
// m[indices[a]][indices[b]].
func (m *Matrix) SubMatrix(indices []int) (*Matrix, error) {
	out := NewMatrix(len(indices))
	for _, i := range indices {
		if i < 0 || i >= m.n {
			return nil, fmt.Errorf("%w: index %d for matrix of size %d", ErrOutOfRange, i, m.n)
		}
	}
	for a, i := range indices {
		row := m.Row(i)
		for b, j := range indices {
			out.data[a*out.n+b] = row[j]
		}
	}
	return out, nil
}

// Rows copies the matrix into a slice of rows.
func (m *Matrix) Rows() [][]uint32 {
	rows := make([][]uint32, m.n)
	for i := range rows {
		rows[i] = append([]uint32(nil), m.Row(i)...)
	}
	return rows
}

func (m *Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Rows())
}

func (m *Matrix) UnmarshalJSON(b []byte) error {
	var rows [][]uint32
	if err := json.Unmarshal(b, &rows); err != nil {
		return err
	}
	mm, err := MatrixFromRows(rows)
	if err != nil {
		return err
	}
	*m = *mm
	return nil
}
