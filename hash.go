package cbloom

import (
	"fmt"
	"unsafe"

	"github.com/jcalabro/cbloom/internal/murmur3"
	"github.com/zeebo/xxh3"
)

const (
	// MaxHashes is the largest number of probes a hasher may produce per value.
	MaxHashes = 16

	// DefaultSeed seeds every hasher in this package.
	DefaultSeed = 5342357
)

// Probes holds the raw probe values from a single hash evaluation.
// Only the first NumHashes entries are meaningful.
type Probes [MaxHashes]uint64

// Hasher derives a fixed number of probe values from a value of type T.
//
// Implementations must be deterministic and stateless: the same value always
// yields the same probes, and NumHashes never changes.
type Hasher[T any] interface {
	// NumHashes returns how many entries of the result of Sum are used,
	// between 1 and MaxHashes.
	NumHashes() int
	// Sum returns the probes for v.
	Sum(v T) Probes
}

// LookupHasher is implemented by hashers that can also hash a lookup key of
// type L, producing the same probes Sum would produce for the equivalent
// stored value. See [NewLookup].
type LookupHasher[L any] interface {
	SumLookup(key L) Probes
}

// Scalar is the set of types hashed by their in-memory representation.
type Scalar interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64 | ~complex64 | ~complex128 | ~bool
}

// scalarBytes views the memory of *v as a byte slice without copying.
func scalarBytes[T Scalar](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// stringBytes views the bytes of s without allocating.
func stringBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func murmurProbes(data []byte) Probes {
	h1, h2 := murmur3.Sum128(data, DefaultSeed)
	return Probes{h1, h2}
}

func xxh3Probes(u xxh3.Uint128) Probes {
	return Probes{u.Lo, u.Hi}
}

// ScalarHasher hashes a scalar's raw bytes with MurmurHash3 x64_128,
// producing two probes. Note that values which compare equal but differ in
// representation, such as 0.0 and -0.0, hash differently.
type ScalarHasher[T Scalar] struct{}

// NumHashes returns 2, one probe per digest lane.
func (ScalarHasher[T]) NumHashes() int { return 2 }

// Sum hashes the in-memory bytes of v.
func (ScalarHasher[T]) Sum(v T) Probes {
	return murmurProbes(scalarBytes(&v))
}

// CompatScalarHasher is ScalarHasher with both probes taken from the first
// digest lane. It reproduces the bucket layout of filters built with that
// older construction; its effective probe count is one.
type CompatScalarHasher[T Scalar] struct{}

// NumHashes returns 2, although both probes are equal.
func (CompatScalarHasher[T]) NumHashes() int { return 2 }

// Sum hashes the in-memory bytes of v and repeats the first lane.
func (CompatScalarHasher[T]) Sum(v T) Probes {
	h1, h2 := murmur3.Sum128Compat(scalarBytes(&v), DefaultSeed)
	return Probes{h1, h2}
}

// BytesHasher hashes byte slices with MurmurHash3 x64_128. It accepts string
// lookup keys.
type BytesHasher struct{}

// NumHashes returns 2.
func (BytesHasher) NumHashes() int { return 2 }

// Sum hashes v.
func (BytesHasher) Sum(v []byte) Probes { return murmurProbes(v) }

// SumLookup hashes key as if it were the equivalent byte slice.
func (BytesHasher) SumLookup(key string) Probes { return murmurProbes(stringBytes(key)) }

// StringHasher hashes strings with MurmurHash3 x64_128. It accepts byte
// slice lookup keys.
type StringHasher struct{}

// NumHashes returns 2.
func (StringHasher) NumHashes() int { return 2 }

// Sum hashes v without allocating.
func (StringHasher) Sum(v string) Probes { return murmurProbes(stringBytes(v)) }

// SumLookup hashes key as if it were the equivalent string.
func (StringHasher) SumLookup(key []byte) Probes { return murmurProbes(key) }

// XXH3Hasher hashes byte slices with the 128-bit xxh3 hash. It accepts string
// lookup keys.
type XXH3Hasher struct{}

// NumHashes returns 2.
func (XXH3Hasher) NumHashes() int { return 2 }

// Sum hashes v.
func (XXH3Hasher) Sum(v []byte) Probes {
	return xxh3Probes(xxh3.Hash128Seed(v, DefaultSeed))
}

// SumLookup hashes key as if it were the equivalent byte slice.
func (XXH3Hasher) SumLookup(key string) Probes {
	return xxh3Probes(xxh3.HashString128Seed(key, DefaultSeed))
}

// XXH3StringHasher hashes strings with the 128-bit xxh3 hash. It accepts byte
// slice lookup keys.
type XXH3StringHasher struct{}

// NumHashes returns 2.
func (XXH3StringHasher) NumHashes() int { return 2 }

// Sum hashes v.
func (XXH3StringHasher) Sum(v string) Probes {
	return xxh3Probes(xxh3.HashString128Seed(v, DefaultSeed))
}

// SumLookup hashes key as if it were the equivalent string.
func (XXH3StringHasher) SumLookup(key []byte) Probes {
	return xxh3Probes(xxh3.Hash128Seed(key, DefaultSeed))
}

// DoubleHasher expands the first two probes of a base hasher into k probes
// using enhanced double hashing, so a single hash evaluation can drive any
// number of buckets per value.
//
// Lookups are forwarded: a filter using a DoubleHasher supports lookup keys
// of type L whenever the base hasher does.
type DoubleHasher[T any] struct {
	base Hasher[T]
	k    int
}

// NewDoubleHasher returns a hasher producing k probes from base, which must
// produce at least two.
func NewDoubleHasher[T any](base Hasher[T], k int) (*DoubleHasher[T], error) {
	n, err := validateHasher(base)
	if err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: base hasher produces %d probes, need at least 2", ErrInvalidHasher, n)
	}
	if k < 1 || k > MaxHashes {
		return nil, fmt.Errorf("%w: k=%d is not supported (valid range: 1-%d)", ErrInvalidHasher, k, MaxHashes)
	}
	return &DoubleHasher[T]{base: base, k: k}, nil
}

// NumHashes returns k. A nil DoubleHasher reports 0, which filters reject.
func (d *DoubleHasher[T]) NumHashes() int {
	if d == nil {
		return 0
	}
	return d.k
}

// Sum expands the base hasher's first two probes of v into k probes.
func (d *DoubleHasher[T]) Sum(v T) Probes {
	return expandProbes(d.base.Sum(v), d.k)
}

// expansion reports the hasher a DoubleHasher wraps, for lookup forwarding.
func (d *DoubleHasher[T]) expansion() (base any, k int) {
	return d.base, d.k
}

// expander is implemented by hashers that derive their probes from another
// hasher's first two probes.
type expander interface {
	expansion() (base any, k int)
}

// expandProbes computes g(i) = h1 + i*h2 + (i^3-i)/6 incrementally.
func expandProbes(p Probes, k int) Probes {
	x, y := p[0], p[1]
	var out Probes
	out[0] = x
	for i := 1; i < k; i++ {
		x += y
		y += uint64(i)
		out[i] = x
	}
	return out
}

// validateHasher checks that h can drive a filter and returns its probe count.
func validateHasher[T any](h Hasher[T]) (int, error) {
	if h == nil {
		return 0, fmt.Errorf("%w: hasher is nil", ErrInvalidHasher)
	}
	k := h.NumHashes()
	if k < 1 || k > MaxHashes {
		return 0, fmt.Errorf("%w: hasher produces %d probes (valid range: 1-%d)", ErrInvalidHasher, k, MaxHashes)
	}
	return k, nil
}
