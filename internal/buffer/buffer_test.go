package buffer

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatrixViewRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		m := NewMatrix(n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				m.Set(i, j, uint32(10*i+j))
			}
		}
		back, err := MatrixFromView(m.View())
		require.NoError(t, err)
		require.Equal(t, n, back.Size())
		require.Equal(t, m.Rows(), back.Rows())
	}
}

func TestMatrixViewAliasesStorage(t *testing.T) {
	m := NewMatrix(2)
	v := m.View()
	m.Set(1, 1, 42)
	back, err := MatrixFromView(v)
	require.NoError(t, err)
	require.Equal(t, uint32(42), back.At(1, 1))
}

func TestMatrixFromViewRejectsBadLayouts(t *testing.T) {
	good := NewMatrix(2).View()

	nonSquare := good
	nonSquare.Shape = []int{1, 4}
	nonSquare.Strides = []int{16, 4}
	_, err := MatrixFromView(nonSquare)
	require.ErrorIs(t, err, ErrFormat)

	wrongType := good
	wrongType.Elem = Int64
	_, err = MatrixFromView(wrongType)
	require.ErrorIs(t, err, ErrFormat)

	wrongRank := good
	wrongRank.Shape = []int{4}
	wrongRank.Strides = []int{4}
	_, err = MatrixFromView(wrongRank)
	require.ErrorIs(t, err, ErrFormat)

	strided := good
	strided.Strides = []int{8, 8}
	_, err = MatrixFromView(strided)
	require.ErrorIs(t, err, ErrFormat)

	short := good
	short.Buf = short.Buf[:8]
	_, err = MatrixFromView(short)
	require.ErrorIs(t, err, ErrFormat)

	huge := good
	huge.Shape = []int{1 << 32, 1 << 32}
	_, err = MatrixFromView(huge)
	require.ErrorIs(t, err, ErrFormat)
	require.Equal(t, -1, huge.Len())

	farOffset := good
	farOffset.Offset = math.MaxInt - 4
	_, err = MatrixFromView(farOffset)
	require.ErrorIs(t, err, ErrFormat)
}

func TestSubMatrix(t *testing.T) {
	m, err := MatrixFromRows([][]uint32{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
	})
	require.NoError(t, err)

	sub, err := m.SubMatrix([]int{2, 0})
	require.NoError(t, err)
	require.Equal(t, [][]uint32{{8, 6}, {2, 0}}, sub.Rows())

	_, err = m.SubMatrix([]int{3})
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestMatrixJSON(t *testing.T) {
	var m Matrix
	require.NoError(t, json.Unmarshal([]byte(`[[0,5],[7,0]]`), &m))
	require.Equal(t, 2, m.Size())
	require.Equal(t, uint32(7), m.At(1, 0))

	out, err := json.Marshal(&m)
	require.NoError(t, err)
	require.JSONEq(t, `[[0,5],[7,0]]`, string(out))

	require.ErrorIs(t, json.Unmarshal([]byte(`[[0,5]]`), &m), ErrFormat)
}

func TestAmountViewRoundTrip(t *testing.T) {
	for _, a := range []Amount{{}, {7}, {1, -2, 3}} {
		back, err := AmountFromView(a.View())
		require.NoError(t, err)
		require.True(t, a.Equal(back))
	}

	v := Amount{1, 2}.View()
	v.Elem = Uint32
	_, err := AmountFromView(v)
	require.ErrorIs(t, err, ErrFormat)
}

func TestAmountArithmetic(t *testing.T) {
	a := Amount{5, 2}
	b := Amount{3, 4}

	require.Equal(t, Amount{8, 6}, a.Add(b))
	require.Equal(t, Amount{2, -2}, a.Sub(b))
	require.Equal(t, Amount{5, 4}, a.CombineMax(b))
	require.True(t, a.Add(b).Sub(b).Equal(a))
	require.False(t, a.IsAtMost(b))
	require.True(t, Amount{3, 2}.IsAtMost(b))
	require.True(t, a.IsAtMost(a))
	require.True(t, b.LexLess(a))
	require.False(t, a.LexLess(a))
	require.False(t, a.Equal(Amount{5}))
}

func TestAmountMismatchPanics(t *testing.T) {
	require.PanicsWithError(t, "buffer: dimension mismatch: 2 vs 1 components", func() {
		Amount{1, 2}.Add(Amount{1})
	})
}

func TestAmountGetSetAppend(t *testing.T) {
	a := NewAmount(1)
	require.NoError(t, a.Set(0, 9))
	v, err := a.Get(0)
	require.NoError(t, err)
	require.Equal(t, int64(9), v)

	_, err = a.Get(1)
	require.ErrorIs(t, err, ErrOutOfRange)

	a.Append(4)
	require.Equal(t, 2, a.Len())
	require.Equal(t, int64(13), a.Sum())
}
