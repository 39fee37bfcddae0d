package cbloom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Serialization constants and errors.
const (
	// serializeVersion is the current serialization format version.
	serializeVersion byte = 1

	// headerSize is the size of the serialization header in bytes.
	// Version (1) + CounterBits (1) + K (4) + NumBuckets (8) + Expected (8) +
	// FalsePositiveProbability (8) + Count (8) = 38 bytes
	headerSize = 38
)

var (
	// ErrInvalidData is returned when the serialized data is invalid or corrupted.
	ErrInvalidData = errors.New("cbloom: invalid serialized data")

	// ErrUnsupportedVersion is returned when the serialization version is not supported.
	ErrUnsupportedVersion = errors.New("cbloom: unsupported serialization version")

	// ErrHasherMismatch is returned when serialized data was produced with a
	// different number of probes than the supplied hasher makes.
	ErrHasherMismatch = errors.New("cbloom: hasher does not match serialized data")
)

// MarshalBinary serializes the filter to a byte slice.
// The serialized format is:
//   - Version (1 byte): serialization format version
//   - CounterBits (1 byte): bits per slot, 0 for a bit vector
//   - K (4 bytes): number of probes per value (little-endian uint32)
//   - NumBuckets (8 bytes): number of slots (little-endian uint64)
//   - Expected (8 bytes): expected cardinality (little-endian uint64)
//   - FalsePositiveProbability (8 bytes): IEEE-754 bits (little-endian uint64)
//   - Count (8 bytes): net number of insertions (little-endian uint64)
//   - Words: the packed slots (little-endian uint64s)
//
// The hasher is not serialized; the same hasher must be supplied when
// decoding.
func (f *Filter[T]) MarshalBinary() ([]byte, error) {
	words := f.buckets.words()
	buf := make([]byte, headerSize+len(words)*8)

	// Write header
	buf[0] = serializeVersion
	buf[1] = byte(f.spec.CounterBits)
	binary.LittleEndian.PutUint32(buf[2:6], uint32(f.spec.NumHashes))
	binary.LittleEndian.PutUint64(buf[6:14], f.spec.NumBuckets)
	binary.LittleEndian.PutUint64(buf[14:22], f.spec.Expected)
	binary.LittleEndian.PutUint64(buf[22:30], math.Float64bits(f.spec.FalsePositiveProbability))
	binary.LittleEndian.PutUint64(buf[30:38], f.count)

	// Write slot data
	offset := headerSize
	for _, word := range words {
		binary.LittleEndian.PutUint64(buf[offset:offset+8], word)
		offset += 8
	}

	return buf, nil
}

// UnmarshalBinary deserializes a filter from a byte slice, hashing values
// with h. Returns an error if the data is invalid or corrupted, or if h makes
// a different number of probes than the encoded filter.
func UnmarshalBinary[T any](data []byte, h Hasher[T]) (*Filter[T], error) {
	return decode(data, h)
}

// UnmarshalCountingBinary is UnmarshalBinary for data produced by a
// CountingFilter.
func UnmarshalCountingBinary[T any](data []byte, h Hasher[T]) (*CountingFilter[T], error) {
	if len(data) >= 2 && data[1] == 0 {
		return nil, fmt.Errorf("%w: data holds a bit vector, not counters", ErrInvalidCounterBits)
	}
	f, err := decode(data, h)
	if err != nil {
		return nil, err
	}
	return newCountingFilter(f), nil
}

func decode[T any](data []byte, h Hasher[T]) (*Filter[T], error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: data too short (got %d bytes, need at least %d)", ErrInvalidData, len(data), headerSize)
	}

	// Read and validate version
	version := data[0]
	if version != serializeVersion {
		return nil, fmt.Errorf("%w: got version %d, expected %d", ErrUnsupportedVersion, version, serializeVersion)
	}

	// Read header fields
	spec := FilterSpec{
		CounterBits:              uint(data[1]),
		NumHashes:                int(binary.LittleEndian.Uint32(data[2:6])),
		NumBuckets:               binary.LittleEndian.Uint64(data[6:14]),
		Expected:                 binary.LittleEndian.Uint64(data[14:22]),
		FalsePositiveProbability: math.Float64frombits(binary.LittleEndian.Uint64(data[22:30])),
	}
	count := binary.LittleEndian.Uint64(data[30:38])

	k, err := validateHasher(h)
	if err != nil {
		return nil, err
	}
	if spec.NumHashes != k {
		return nil, fmt.Errorf("%w: data uses k=%d, hasher produces %d", ErrHasherMismatch, spec.NumHashes, k)
	}
	if spec.CounterBits > maxCounterBits {
		return nil, fmt.Errorf("%w: counter width %d", ErrInvalidData, spec.CounterBits)
	}

	// Validate numBuckets before it drives any size computation.
	if err := checkNumBuckets(spec.NumBuckets); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	p := spec.FalsePositiveProbability
	if !(p > 0 && p < 1) && !math.IsInf(p, 1) {
		return nil, fmt.Errorf("%w: false positive probability %v", ErrInvalidData, p)
	}

	// Validate data length (safe from overflow now that numBuckets is bounded)
	expectedTotalLen := headerSize + numWords(spec.NumBuckets, spec.CounterBits)*8
	if uint64(len(data)) != expectedTotalLen {
		return nil, fmt.Errorf("%w: data length mismatch (got %d bytes, expected %d)", ErrInvalidData, len(data), expectedTotalLen)
	}

	f := newFilter(spec, h)
	f.count = count

	// Read slot data
	words := f.buckets.words()
	offset := headerSize
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
	}

	if !f.buckets.tailClear() {
		return nil, fmt.Errorf("%w: bits set past the last slot", ErrInvalidData)
	}

	return f, nil
}
