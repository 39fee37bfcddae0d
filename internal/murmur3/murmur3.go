// Package murmur3 exposes the two lanes of the 128-bit x64 MurmurHash3 digest
// in the forms the filter hashers need.
package murmur3

import "github.com/spaolacci/murmur3"

// Sum128 returns both 64-bit lanes of the MurmurHash3 x64_128 digest of data.
func Sum128(data []byte, seed uint32) (h1, h2 uint64) {
	return murmur3.Sum128WithSeed(data, seed)
}

// Sum128Compat returns the first lane twice. Filters built on it place both
// probes of a value in the same bucket, matching older C++ filters that
// shipped with this behavior.
func Sum128Compat(data []byte, seed uint32) (h1, h2 uint64) {
	h1, _ = murmur3.Sum128WithSeed(data, seed)
	return h1, h1
}
