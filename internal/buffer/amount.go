package buffer

import "fmt"

// Amount is a fixed-length vector of signed quantities (capacity, load,
// pickup or delivery). All amounts inside one problem share a length.
//
// Arithmetic between amounts of different lengths is a programming error and
// panics with ErrDimensionMismatch.
type Amount []int64

// NewAmount returns a zero amount with n components.
func NewAmount(n int) Amount {
	if n < 0 {
		n = 0
	}
	return make(Amount, n)
}

// AmountFromView copies a rank-1 int64 view into a new Amount.
func AmountFromView(v View) (Amount, error) {
	if err := v.contiguous(Int64, 1); err != nil {
		return nil, err
	}
	return Amount(valuesOf[int64](v, v.Shape[0])), nil
}

// View exposes the amount storage without copying.
func (a Amount) View() View {
	return View{
		Buf:     bytesOf([]int64(a)),
		Elem:    Int64,
		Shape:   []int{len(a)},
		Strides: []int{8},
	}
}

func (a Amount) Len() int { return len(a) }

// Get returns component i.
func (a Amount) Get(i int) (int64, error) {
	if i < 0 || i >= len(a) {
		return 0, fmt.Errorf("%w: component %d of %d", ErrOutOfRange, i, len(a))
	}
	return a[i], nil
}

// Set overwrites component i.
func (a Amount) Set(i int, v int64) error {
	if i < 0 || i >= len(a) {
		return fmt.Errorf("%w: component %d of %d", ErrOutOfRange, i, len(a))
	}
	a[i] = v
	return nil
}

// Append grows the amount by one component. Only meaningful while an amount
// is being built, before it is registered with a problem.
func (a *Amount) Append(v int64) { *a = append(*a, v) }

func (a Amount) Clone() Amount { return append(Amount(nil), a...) }

func (a Amount) mustMatch(b Amount) {
	if len(a) != len(b) {
		panic(fmt.Errorf("%w: %d vs %d components", ErrDimensionMismatch, len(a), len(b)))
	}
}

// Add returns a + b. No clamping is applied.
func (a Amount) Add(b Amount) Amount {
	a.mustMatch(b)
	out := make(Amount, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// Sub returns a - b. Components may go negative.
func (a Amount) Sub(b Amount) Amount {
	a.mustMatch(b)
	out := make(Amount, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// AddInPlace adds b into a.
func (a Amount) AddInPlace(b Amount) {
	a.mustMatch(b)
	for i := range a {
		a[i] += b[i]
	}
}

// SubInPlace subtracts b from a.
func (a Amount) SubInPlace(b Amount) {
	a.mustMatch(b)
	for i := range a {
		a[i] -= b[i]
	}
}

// Equal reports componentwise equality. Amounts of different lengths are not equal.
func (a Amount) Equal(b Amount) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsAtMost reports whether every component of a is <= the matching one in b.
func (a Amount) IsAtMost(b Amount) bool {
	a.mustMatch(b)
	for i := range a {
		if a[i] > b[i] {
			return false
		}
	}
	return true
}

// CombineMax returns the componentwise maximum of a and b.
func (a Amount) CombineMax(b Amount) Amount {
	a.mustMatch(b)
	out := make(Amount, len(a))
	for i := range a {
		out[i] = max(a[i], b[i])
	}
	return out
}

// LexLess orders amounts lexicographically, first component first.
func (a Amount) LexLess(b Amount) bool {
	a.mustMatch(b)
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// IsZero reports whether all components are zero.
func (a Amount) IsZero() bool {
	for _, v := range a {
		if v != 0 {
			return false
		}
	}
	return true
}

// Sum adds up all components.
func (a Amount) Sum() int64 {
	var s int64
	for _, v := range a {
		s += v
	}
	return s
}
