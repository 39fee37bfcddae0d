package cbloom

import (
	"fmt"
	"math"
)

const (
	// ln2 is the natural logarithm of 2.
	ln2 = 0.6931471805599453
	// ln2Squared is ln(2)^2.
	ln2Squared = 0.4804530139182014

	// maxNumBuckets bounds the bucket count of any filter so that allocation
	// sizes cannot overflow.
	maxNumBuckets = uint64(1) << 50

	// maxCounterBits is the widest supported counter.
	maxCounterBits = 64
)

// UnknownExpected is reported as the expected cardinality of filters sized by
// bucket count alone.
const UnknownExpected = uint64(math.MaxUint64)

// UnknownFalsePositiveProbability is reported as the false positive
// probability of filters sized by bucket count alone.
var UnknownFalsePositiveProbability = math.Inf(1)

// FilterSpec is the resolved, immutable shape of a filter.
type FilterSpec struct {
	// Expected is the anticipated number of distinct values, or UnknownExpected.
	Expected uint64
	// FalsePositiveProbability lies strictly in (0, 1), or is
	// UnknownFalsePositiveProbability.
	FalsePositiveProbability float64
	// NumBuckets is the number of slots, always > 0.
	NumBuckets uint64
	// NumHashes is the number of probes per value (K).
	NumHashes int
	// CounterBits is the width of each slot's counter; 0 means one bit per slot
	// with no counting.
	CounterBits uint
}

// MaxBucketValue returns the largest value a single slot can hold.
func (s FilterSpec) MaxBucketValue() uint64 {
	if s.CounterBits == 0 {
		return 1
	}
	return math.MaxUint64 >> (maxCounterBits - s.CounterBits)
}

// Sizing derives a filter's bucket count and false positive probability. It
// is one of ProbabilitySizing, CapacitySizing or MinimalSizing.
type Sizing interface {
	// resolve computes the spec for a filter making k probes per value.
	resolve(k int) (FilterSpec, error)
}

// ProbabilitySizing sizes a filter to hold Expected values at the target
// FalsePositiveProbability.
//
// The bucket count assumes the filter uses about OptimalHashes probes per
// value. With fewer probes, such as the two of the default hashers, the real
// false positive rate is higher than the declared one; wrap the hasher in a
// DoubleHasher to close the gap.
type ProbabilitySizing struct {
	Expected                 uint64
	FalsePositiveProbability float64
}

func (s ProbabilitySizing) resolve(k int) (FilterSpec, error) {
	p := s.FalsePositiveProbability
	if !(p > 0 && p < 1) {
		return FilterSpec{}, fmt.Errorf("%w: %v is not in (0, 1)", ErrInvalidProbability, p)
	}
	if s.Expected == 0 {
		return FilterSpec{}, fmt.Errorf("%w: expected cardinality must be positive", ErrInvalidExpected)
	}

	// Optimal buckets: -n * ln(p) / ln(2)^2
	m := math.Ceil(-float64(s.Expected) * math.Log(p) / ln2Squared)
	if m > float64(maxNumBuckets) {
		return FilterSpec{}, fmt.Errorf("%w: %d values at probability %v needs more than %d buckets",
			ErrInvalidBuckets, s.Expected, p, maxNumBuckets)
	}

	return FilterSpec{
		Expected:                 s.Expected,
		FalsePositiveProbability: p,
		NumBuckets:               max(uint64(m), 1),
		NumHashes:                k,
	}, nil
}

// CapacitySizing uses a fixed NumBuckets and reports the false positive
// probability achieved once Expected values are inserted.
type CapacitySizing struct {
	Expected   uint64
	NumBuckets uint64
}

func (s CapacitySizing) resolve(k int) (FilterSpec, error) {
	if err := checkNumBuckets(s.NumBuckets); err != nil {
		return FilterSpec{}, err
	}

	p := FalsePositiveProbability(s.NumBuckets, k, s.Expected)
	if !(p > 0 && p < 1) {
		return FilterSpec{}, fmt.Errorf("%w: %d buckets with k=%d and %d expected values gives %v",
			ErrInvalidProbability, s.NumBuckets, k, s.Expected, p)
	}

	return FilterSpec{
		Expected:                 s.Expected,
		FalsePositiveProbability: p,
		NumBuckets:               s.NumBuckets,
		NumHashes:                k,
	}, nil
}

// MinimalSizing uses a fixed NumBuckets and makes no claim about capacity or
// accuracy.
type MinimalSizing struct {
	NumBuckets uint64
}

func (s MinimalSizing) resolve(k int) (FilterSpec, error) {
	if err := checkNumBuckets(s.NumBuckets); err != nil {
		return FilterSpec{}, err
	}

	return FilterSpec{
		Expected:                 UnknownExpected,
		FalsePositiveProbability: UnknownFalsePositiveProbability,
		NumBuckets:               s.NumBuckets,
		NumHashes:                k,
	}, nil
}

func checkNumBuckets(m uint64) error {
	if m == 0 {
		return fmt.Errorf("%w: bucket count must be positive", ErrInvalidBuckets)
	}
	if m > maxNumBuckets {
		return fmt.Errorf("%w: bucket count %d exceeds %d", ErrInvalidBuckets, m, maxNumBuckets)
	}
	return nil
}

// FalsePositiveProbability returns the probability that a filter with
// numBuckets slots and k probes per value reports a false positive after n
// distinct insertions.
// Formula: (1 - (1 - 1/m)^(kn))^k
func FalsePositiveProbability(numBuckets uint64, k int, n uint64) float64 {
	m := float64(numBuckets)
	kf := float64(k)

	// 1 - (1 - 1/m)^(kn), computed without losing precision for large m
	x := -math.Expm1(kf * float64(n) * math.Log1p(-1/m))
	return math.Pow(x, kf)
}

// EstimateFalsePositiveRate estimates the false positive rate for given
// parameters using the exponential approximation.
// Formula: (1 - e^(-kn/m))^k
func EstimateFalsePositiveRate(numBuckets uint64, k int, itemsAdded uint64) float64 {
	m := float64(numBuckets)
	n := float64(itemsAdded)
	kf := float64(k)

	if m == 0 || n == 0 {
		return 0
	}

	return math.Pow(1-math.Exp(-kf*n/m), kf)
}

// OptimalHashes returns the number of probes per value that minimizes the
// false positive rate of a filter sized with ProbabilitySizing for fpRate.
// Formula: -ln(p) / ln(2), clamped to [1, MaxHashes]
func OptimalHashes(fpRate float64) int {
	if !(fpRate > 0 && fpRate < 1) {
		return 1
	}
	k := int(math.Round(-math.Log(fpRate) / ln2))
	k = max(k, 1)
	k = min(k, MaxHashes)
	return k
}
