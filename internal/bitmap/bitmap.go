// Package bitmap provides a fixed-size bitset over row positions. Filtering
// actions mark the rows they drop and take the unmarked ones.
package bitmap

import "math/bits"

// Bitmap represents a bitset backed by a slice of uint64 words.
// Each bit corresponds to a position in [0, Len()).
type Bitmap struct {
	data []uint64
	size int
}

// New allocates a bitmap for positions [0, size). A size <= 0 gives an
// empty bitmap.
func New(size int) *Bitmap {
	if size <= 0 {
		return &Bitmap{}
	}
	return &Bitmap{data: make([]uint64, (size+63)/64), size: size}
}

// Len returns the number of positions the bitmap covers.
func (b *Bitmap) Len() int { return b.size }

// Add sets position i. Out-of-range positions are ignored.
func (b *Bitmap) Add(i int) {
	if i < 0 || i >= b.size {
		return
	}
	b.data[i/64] |= 1 << uint(i%64)
}

// Has reports whether position i is set.
func (b *Bitmap) Has(i int) bool {
	if i < 0 || i >= b.size {
		return false
	}
	return b.data[i/64]&(1<<uint(i%64)) != 0
}

// Count returns the number of set positions.
func (b *Bitmap) Count() int {
	n := 0
	for _, w := range b.data {
		n += bits.OnesCount64(w)
	}
	return n
}

// Unset returns the positions that are not set, in ascending order.
func (b *Bitmap) Unset() []int {
	out := make([]int, 0, b.size-b.Count())
	for i := 0; i < b.size; i++ {
		if !b.Has(i) {
			out = append(out, i)
		}
	}
	return out
}
