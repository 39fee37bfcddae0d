// Package cbloom provides bloom filters and counting bloom filters for Go.
//
// A bloom filter is a space-efficient probabilistic data structure that tests
// whether an element is a member of a set. False positive matches are possible,
// but false negatives are not – if the filter says an element is not present,
// it definitely is not. If it says an element might be present, it could be a
// false positive.
//
// A counting bloom filter replaces each bit with a small counter so that
// elements can also be removed.
//
// # Building a Filter
//
// Every filter is described by a [Config] with three parts:
//
//   - A [Sizing] policy: [ProbabilitySizing] derives the bucket count from an
//     expected cardinality and a target false positive probability,
//     [CapacitySizing] reports the probability achieved by a fixed bucket
//     count, and [MinimalSizing] takes a bucket count with no guarantees.
//   - A [Hasher], which maps each value to K probe positions. K is the
//     hasher's NumHashes and is fixed for the life of the filter.
//   - A counter width. Zero selects a packed bit vector; 1 to 64 bits selects
//     per-slot counters.
//
// All validation happens in [New] and [NewCounting]. Once a filter exists,
// none of its operations can fail.
//
//	f, err := cbloom.New(cbloom.Config[int32]{
//		Sizing: cbloom.ProbabilitySizing{Expected: 1000, FalsePositiveProbability: 0.001},
//		Hasher: cbloom.ScalarHasher[int32]{},
//	})
//
// [NewWithEstimates] is a shortcut for scalar values that also picks the
// optimal number of probes.
//
// # Hashers
//
// [ScalarHasher] hashes the in-memory bytes of integers, floats and bools
// with MurmurHash3 x64_128 and yields two probes. [BytesHasher] and
// [StringHasher] do the same for byte slices and strings;
// [XXH3Hasher] and [XXH3StringHasher] use the 128-bit xxh3 hash instead.
// [DoubleHasher] stretches any two-probe hasher to K probes.
//
// Hashers implementing [LookupHasher] can be queried with a second key type
// through [NewLookup], for example []byte keys against a filter of strings.
//
// # Counters
//
// [CountingFilter] adds Remove. Counters are not clamped: an insert at the
// maximum value wraps to zero, and a remove at zero wraps to the maximum.
// Choose CounterBits so that no slot exceeds [Filter.MaxBucketValue], and
// only remove values that were inserted. [CountingFilter.TestAndRemove]
// avoids the second hazard at the cost of a lookup.
//
// # False Positive Rate
//
// The probability declared by [ProbabilitySizing] assumes roughly
// [OptimalHashes] probes per value. Two-probe hashers reach it only with more
// buckets; wrap them in a [DoubleHasher] or use [CapacitySizing], whose
// declared probability accounts for the actual K.
//
// # Thread Safety
//
// Filters are NOT thread-safe. Concurrent readers are fine, but Insert,
// Remove and Reset need external synchronization against every other call.
package cbloom
