package buffer

import (
	"fmt"
	"math"
	"unsafe"
)

// ElemType tags the scalar type stored in a View.
type ElemType uint8

const (
	Uint32 ElemType = iota + 1
	Int64
)

// Size returns the element width in bytes.
func (e ElemType) Size() int {
	switch e {
	case Uint32:
		return 4
	case Int64:
		return 8
	}
	return 0
}

// Format returns the struct-module style format character ("I" or "q").
func (e ElemType) Format() string {
	switch e {
	case Uint32:
		return "I"
	case Int64:
		return "q"
	}
	return "?"
}

func (e ElemType) String() string {
	switch e {
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	}
	return fmt.Sprintf("elem(%d)", uint8(e))
}

// View describes a borrowed, row-major block of numeric data.
//
// A View never owns Buf. The exporter guarantees that Buf stays alive and
// unmodified for as long as the receiver reads through the View; a receiver
// that needs the data afterwards must copy it. Strides are expressed in bytes.
type View struct {
	Buf     []byte
	Offset  int
	Elem    ElemType
	Shape   []int
	Strides []int
}

// Rank is the number of dimensions.
func (v View) Rank() int { return len(v.Shape) }

// Len is the total number of elements described, or -1 when the shape is
// negative or its product overflows int.
func (v View) Len() int {
	if len(v.Shape) == 0 {
		return 0
	}
	n, ok := product(1, v.Shape)
	if !ok {
		return -1
	}
	return n
}

// product multiplies n by every extent, reporting false on a negative
// extent or an overflow.
func product(n int, shape []int) (int, bool) {
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		if d != 0 && n > math.MaxInt/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// contiguous checks that the view is a dense row-major block of the given
// element type and rank lying entirely inside Buf.
func (v View) contiguous(elem ElemType, rank int) error {
	if v.Elem != elem {
		return fmt.Errorf("%w: element type %s, want %s", ErrFormat, v.Elem, elem)
	}
	if len(v.Shape) != rank || len(v.Strides) != rank {
		return fmt.Errorf("%w: rank %d, want %d", ErrFormat, len(v.Shape), rank)
	}
	want := elem.Size()
	for i := rank - 1; i >= 0; i-- {
		if v.Shape[i] < 0 {
			return fmt.Errorf("%w: negative extent %d", ErrFormat, v.Shape[i])
		}
		if v.Strides[i] != want && v.Shape[i] > 1 {
			return fmt.Errorf("%w: stride %d on axis %d, want %d", ErrFormat, v.Strides[i], i, want)
		}
		want *= v.Shape[i]
	}
	need, ok := product(elem.Size(), v.Shape)
	if !ok {
		return fmt.Errorf("%w: shape %v overflows", ErrFormat, v.Shape)
	}
	if v.Offset < 0 || v.Offset > len(v.Buf) || need > len(v.Buf)-v.Offset {
		return fmt.Errorf("%w: %d bytes needed from offset %d, buffer holds %d",
			ErrFormat, need, v.Offset, len(v.Buf))
	}
	return nil
}

func bytesOf[T uint32 | int64](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// valuesOf copies n elements of type T out of the view's buffer.
func valuesOf[T uint32 | int64](v View, n int) []T {
	out := make([]T, n)
	if n == 0 {
		return out
	}
	copy(bytesOf(out), v.Buf[v.Offset:v.Offset+n*int(unsafe.Sizeof(out[0]))])
	return out
}
