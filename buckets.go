package cbloom

import (
	"math/bits"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
)

// cacheLineSize is the size of a CPU cache line in bytes.
const cacheLineSize = 64

// buckets is the slot storage behind a filter. Indices are always below the
// filter's bucket count.
type buckets interface {
	// increment adds one to slot i, wrapping at the slot's maximum.
	increment(i uint64)
	// get returns the value of slot i.
	get(i uint64) uint64
	// reset zeroes every slot in place.
	reset()
	// countNonZero returns the number of slots holding a non-zero value.
	countNonZero() uint64
	// maxValue returns the largest value a slot can hold.
	maxValue() uint64
	// words exposes the backing storage for serialization.
	words() []uint64
	// tailClear reports whether the storage past the last slot is zero.
	tailClear() bool
}

func newBuckets(spec FilterSpec) buckets {
	if spec.CounterBits == 0 {
		return newBitVector(spec.NumBuckets)
	}
	return newCounterArray(spec.NumBuckets, spec.CounterBits)
}

// numWords returns how many 64-bit words hold numBuckets slots of the given
// counter width.
func numWords(numBuckets uint64, counterBits uint) uint64 {
	perWord := uint64(64)
	if counterBits > 0 {
		perWord = uint64(64 / counterBits)
	}
	return (numBuckets + perWord - 1) / perWord
}

// bitVector stores one bit per slot. Incrementing a set bit leaves it set.
type bitVector struct {
	bits *bitset.BitSet
	n    uint64
}

func newBitVector(n uint64) *bitVector {
	return &bitVector{bits: bitset.New(uint(n)), n: n}
}

func (b *bitVector) increment(i uint64) {
	b.bits.Set(uint(i))
}

func (b *bitVector) get(i uint64) uint64 {
	if b.bits.Test(uint(i)) {
		return 1
	}
	return 0
}

func (b *bitVector) reset() {
	b.bits.ClearAll()
}

func (b *bitVector) countNonZero() uint64 {
	return uint64(b.bits.Count())
}

func (b *bitVector) maxValue() uint64 {
	return 1
}

func (b *bitVector) words() []uint64 {
	return b.bits.Words()
}

func (b *bitVector) tailClear() bool {
	w := b.bits.Words()
	used := b.n % 64
	if used == 0 || len(w) == 0 {
		return true
	}
	return w[len(w)-1]>>used == 0
}

// counterArray stores fixed-width counters packed into 64-bit words. A
// counter never straddles two words.
type counterArray struct {
	raw     []byte   // Raw allocation to keep aligned memory alive for GC
	data    []uint64 // Packed counters (cache-line aligned)
	n       uint64   // Number of counters
	width   uint     // Bits per counter
	perWord uint64   // Counters per word
	mask    uint64   // Largest counter value
}

func newCounterArray(n uint64, width uint) *counterArray {
	raw, data := makeAlignedUint64Slice(int(numWords(n, width)))
	return &counterArray{
		raw:     raw,
		data:    data,
		n:       n,
		width:   width,
		perWord: uint64(64 / width),
		mask:    ^uint64(0) >> (64 - width),
	}
}

// makeAlignedUint64Slice allocates a cache-line aligned slice of uint64.
// Returns the raw byte slice (to keep alive for GC) and the aligned uint64 slice.
func makeAlignedUint64Slice(n int) ([]byte, []uint64) {
	// Allocate with extra space for alignment
	raw := make([]byte, n*8+cacheLineSize-1)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	offset := (cacheLineSize - int(addr%cacheLineSize)) % cacheLineSize
	aligned := unsafe.Slice((*uint64)(unsafe.Pointer(&raw[offset])), n)
	return raw, aligned
}

// locate returns the word holding counter i and the counter's bit offset.
func (c *counterArray) locate(i uint64) (word uint64, shift uint) {
	return i / c.perWord, uint(i%c.perWord) * c.width
}

func (c *counterArray) get(i uint64) uint64 {
	w, shift := c.locate(i)
	return (c.data[w] >> shift) & c.mask
}

func (c *counterArray) set(i, v uint64) {
	w, shift := c.locate(i)
	c.data[w] = c.data[w]&^(c.mask<<shift) | (v&c.mask)<<shift
}

func (c *counterArray) increment(i uint64) {
	c.set(i, c.get(i)+1)
}

// decrement subtracts one from counter i; zero wraps to the maximum.
func (c *counterArray) decrement(i uint64) {
	c.set(i, c.get(i)-1)
}

func (c *counterArray) reset() {
	clear(c.data)
}

func (c *counterArray) countNonZero() uint64 {
	if c.width == 1 {
		var total uint64
		for _, word := range c.data {
			total += uint64(bits.OnesCount64(word))
		}
		return total
	}

	var total uint64
	for _, word := range c.data {
		for ; word != 0; word >>= c.width {
			if word&c.mask != 0 {
				total++
			}
		}
	}
	return total
}

func (c *counterArray) maxValue() uint64 {
	return c.mask
}

func (c *counterArray) words() []uint64 {
	return c.data
}

func (c *counterArray) tailClear() bool {
	used := c.n % c.perWord
	if used == 0 {
		return true
	}
	return c.data[len(c.data)-1]>>(uint(used)*c.width) == 0
}
