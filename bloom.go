package cbloom

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidHasher is returned when a hasher is nil or produces an
	// unsupported number of probes.
	ErrInvalidHasher = errors.New("cbloom: invalid hasher")

	// ErrInvalidSizing is returned when a Config carries no sizing policy.
	ErrInvalidSizing = errors.New("cbloom: invalid sizing")

	// ErrInvalidProbability is returned when a supplied or derived false
	// positive probability is not strictly between 0 and 1.
	ErrInvalidProbability = errors.New("cbloom: false positive probability out of range")

	// ErrInvalidExpected is returned when a probability-sized filter expects no values.
	ErrInvalidExpected = errors.New("cbloom: invalid expected cardinality")

	// ErrInvalidBuckets is returned when the bucket count is zero or too large.
	ErrInvalidBuckets = errors.New("cbloom: invalid bucket count")

	// ErrInvalidCounterBits is returned when the counter width is unsupported
	// for the requested filter.
	ErrInvalidCounterBits = errors.New("cbloom: invalid counter width")

	// ErrLookupUnsupported is returned by NewLookup when the filter's hasher
	// cannot hash the requested key type.
	ErrLookupUnsupported = errors.New("cbloom: lookup key type not supported by hasher")
)

// Config describes a filter to build.
type Config[T any] struct {
	// Sizing selects how the bucket count and false positive probability are
	// derived.
	Sizing Sizing
	// Hasher maps values to probes. Its NumHashes fixes K.
	Hasher Hasher[T]
	// CounterBits is the width of each slot. 0 stores one bit per slot;
	// 1-64 stores a counter per slot.
	//
	// Counters wrap: inserting a value whose slots already hold the maximum
	// returns them to zero. Size CounterBits for the largest number of
	// simultaneous occurrences you expect.
	CounterBits uint
}

func (c Config[T]) resolve() (FilterSpec, error) {
	if c.Sizing == nil {
		return FilterSpec{}, fmt.Errorf("%w: sizing is nil", ErrInvalidSizing)
	}
	k, err := validateHasher(c.Hasher)
	if err != nil {
		return FilterSpec{}, err
	}
	if c.CounterBits > maxCounterBits {
		return FilterSpec{}, fmt.Errorf("%w: %d bits (valid range: 0-%d)", ErrInvalidCounterBits, c.CounterBits, maxCounterBits)
	}

	spec, err := c.Sizing.resolve(k)
	if err != nil {
		return FilterSpec{}, err
	}
	spec.CounterBits = c.CounterBits
	return spec, nil
}

// Filter is a non-thread-safe bloom filter over values of type T.
//
// Concurrent calls to read-only methods are safe. Insert and Reset must not
// run concurrently with any other method.
type Filter[T any] struct {
	spec    FilterSpec
	hasher  Hasher[T]
	buckets buckets
	count   uint64 // Number of items added (approximate)
}

// New creates a filter from cfg. The bucket storage is a bit vector when
// cfg.CounterBits is 0 and a counter array otherwise.
func New[T any](cfg Config[T]) (*Filter[T], error) {
	spec, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	return newFilter(spec, cfg.Hasher), nil
}

// NewWithEstimates creates a bit-vector filter for expectedItems scalar
// values at the target fpRate. Values are hashed with ScalarHasher and
// expanded to OptimalHashes(fpRate) probes.
func NewWithEstimates[T Scalar](expectedItems uint64, fpRate float64) (*Filter[T], error) {
	h, err := NewDoubleHasher[T](ScalarHasher[T]{}, OptimalHashes(fpRate))
	if err != nil {
		return nil, err
	}
	return New(Config[T]{
		Sizing: ProbabilitySizing{Expected: expectedItems, FalsePositiveProbability: fpRate},
		Hasher: h,
	})
}

func newFilter[T any](spec FilterSpec, h Hasher[T]) *Filter[T] {
	return &Filter[T]{
		spec:    spec,
		hasher:  h,
		buckets: newBuckets(spec),
	}
}

// fastMod reduces x into [0, m), skipping the division when x is already in range.
func fastMod(x, m uint64) uint64 {
	if x >= m {
		return x % m
	}
	return x
}

// Insert adds v to the filter.
func (f *Filter[T]) Insert(v T) {
	f.insertProbes(f.hasher.Sum(v))
}

func (f *Filter[T]) insertProbes(p Probes) {
	m := f.spec.NumBuckets
	for _, h := range p[:f.spec.NumHashes] {
		f.buckets.increment(fastMod(h, m))
	}
	f.count++
}

// Contains reports whether v might be in the filter. It returns false only
// if v was definitely never inserted (or has since been removed).
func (f *Filter[T]) Contains(v T) bool {
	return f.containsProbes(f.hasher.Sum(v))
}

func (f *Filter[T]) containsProbes(p Probes) bool {
	m := f.spec.NumBuckets
	for _, h := range p[:f.spec.NumHashes] {
		if f.buckets.get(fastMod(h, m)) == 0 {
			return false
		}
	}
	return true
}

// ContainsLessThan reports whether every slot v maps to holds less than n.
// Since each slot counts every insertion that touched it, a true result means
// v has been inserted fewer than n times. A bit-vector slot holds 0 or 1.
func (f *Filter[T]) ContainsLessThan(v T, n uint64) bool {
	return f.lessThanProbes(f.hasher.Sum(v), n)
}

func (f *Filter[T]) lessThanProbes(p Probes, n uint64) bool {
	m := f.spec.NumBuckets
	for _, h := range p[:f.spec.NumHashes] {
		if f.buckets.get(fastMod(h, m)) >= n {
			return false
		}
	}
	return true
}

// TestAndInsert reports whether v might have been in the filter, then
// inserts it.
func (f *Filter[T]) TestAndInsert(v T) bool {
	p := f.hasher.Sum(v)
	member := f.containsProbes(p)
	f.insertProbes(p)
	return member
}

// Reset zeroes every slot without reallocating.
func (f *Filter[T]) Reset() {
	f.buckets.reset()
	f.count = 0
}

// ApproxInserted estimates the number of distinct values inserted from the
// fraction of non-zero slots:
//
//	-(m/k) * ln(1 - nonzero/m)
//
// The estimate is only meaningful while most slots are still zero. It
// diverges as the filter saturates, and a fully saturated filter returns
// math.MaxUint64.
func (f *Filter[T]) ApproxInserted() uint64 {
	set := float64(f.buckets.countNonZero())
	m := float64(f.spec.NumBuckets)
	k := float64(f.spec.NumHashes)

	est := -(m / k) * math.Log(1-set/m)
	if est >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(est)
}

// FillRatio returns the fraction of slots holding a non-zero value.
func (f *Filter[T]) FillRatio() float64 {
	return float64(f.buckets.countNonZero()) / float64(f.spec.NumBuckets)
}

// Count returns the number of insertions minus the number of removals.
func (f *Filter[T]) Count() uint64 {
	return f.count
}

// EstimatedFalsePositiveRate estimates the current false positive rate
// based on the number of items added.
func (f *Filter[T]) EstimatedFalsePositiveRate() float64 {
	return EstimateFalsePositiveRate(f.spec.NumBuckets, f.spec.NumHashes, f.count)
}

// Expected returns the expected cardinality, or UnknownExpected.
func (f *Filter[T]) Expected() uint64 {
	return f.spec.Expected
}

// FalsePositiveProbability returns the declared false positive probability,
// or UnknownFalsePositiveProbability.
func (f *Filter[T]) FalsePositiveProbability() float64 {
	return f.spec.FalsePositiveProbability
}

// NumBuckets returns the number of slots.
func (f *Filter[T]) NumBuckets() uint64 {
	return f.spec.NumBuckets
}

// NumHashes returns the number of probes per value (K).
func (f *Filter[T]) NumHashes() int {
	return f.spec.NumHashes
}

// MaxBucketValue returns the largest value a slot can hold.
func (f *Filter[T]) MaxBucketValue() uint64 {
	return f.buckets.maxValue()
}

// CounterBits returns the width of each slot's counter, 0 for bit storage.
func (f *Filter[T]) CounterBits() uint {
	return f.spec.CounterBits
}

// Spec returns the resolved filter shape.
func (f *Filter[T]) Spec() FilterSpec {
	return f.spec
}

// CountingFilter is a Filter with counter storage that also supports
// removal.
//
// Counters wrap in both directions. Removing a value that was never inserted
// drives its slots to the maximum counter value and can cause false
// negatives for other values; pair every Remove with a prior Insert.
type CountingFilter[T any] struct {
	Filter[T]
	counters *counterArray
}

// NewCounting creates a counting filter from cfg. cfg.CounterBits must be
// between 1 and 64.
func NewCounting[T any](cfg Config[T]) (*CountingFilter[T], error) {
	if cfg.CounterBits == 0 {
		return nil, fmt.Errorf("%w: counting filter needs at least 1 bit per counter", ErrInvalidCounterBits)
	}
	spec, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	return newCountingFilter(newFilter(spec, cfg.Hasher)), nil
}

func newCountingFilter[T any](f *Filter[T]) *CountingFilter[T] {
	return &CountingFilter[T]{
		Filter:   *f,
		counters: f.buckets.(*counterArray),
	}
}

// Remove decrements every slot v maps to.
func (f *CountingFilter[T]) Remove(v T) {
	f.removeProbes(f.hasher.Sum(v))
}

func (f *CountingFilter[T]) removeProbes(p Probes) {
	m := f.spec.NumBuckets
	for _, h := range p[:f.spec.NumHashes] {
		f.counters.decrement(fastMod(h, m))
	}
	if f.count > 0 {
		f.count--
	}
}

// TestAndRemove removes v if it might be in the filter and reports whether
// it did. Unlike Remove, it never decrements a zero slot.
func (f *CountingFilter[T]) TestAndRemove(v T) bool {
	p := f.hasher.Sum(v)
	if !f.containsProbes(p) {
		return false
	}
	f.removeProbes(p)
	return true
}
