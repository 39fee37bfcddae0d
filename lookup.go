package cbloom

import "fmt"

// Lookup queries a filter with keys of type L, such as []byte keys against a
// filter of strings, without converting them to the stored type first.
type Lookup[T, L any] struct {
	filter *Filter[T]
	sum    func(L) Probes
}

// NewLookup returns a Lookup over f for keys of type L. It fails with
// ErrLookupUnsupported unless f's hasher implements LookupHasher[L] (directly,
// or as the base of a DoubleHasher).
func NewLookup[L, T any](f *Filter[T]) (*Lookup[T, L], error) {
	if lh, ok := f.hasher.(LookupHasher[L]); ok {
		return &Lookup[T, L]{filter: f, sum: lh.SumLookup}, nil
	}

	if e, ok := f.hasher.(expander); ok {
		base, k := e.expansion()
		if lh, ok := base.(LookupHasher[L]); ok {
			return &Lookup[T, L]{
				filter: f,
				sum: func(key L) Probes {
					return expandProbes(lh.SumLookup(key), k)
				},
			}, nil
		}
	}

	var key L
	return nil, fmt.Errorf("%w: %T cannot hash %T", ErrLookupUnsupported, f.hasher, key)
}

// Contains reports whether key might be in the filter.
func (l *Lookup[T, L]) Contains(key L) bool {
	return l.filter.containsProbes(l.sum(key))
}

// ContainsLessThan reports whether every slot key maps to holds less than n.
func (l *Lookup[T, L]) ContainsLessThan(key L, n uint64) bool {
	return l.filter.lessThanProbes(l.sum(key), n)
}
