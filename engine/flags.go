package engine

import "sync/atomic"

// FlagSet is a typed bitfield over a single atomic word. Every operation
// is sequentially consistent, which makes a FetchOr usable as the
// linearisation point of a sleep/wake protocol.
type FlagSet[F ~uint64] struct {
	v atomic.Uint64
}

// Load returns the current flag word.
func (s *FlagSet[F]) Load() F {
	return F(s.v.Load())
}

// Store replaces the flag word.
func (s *FlagSet[F]) Store(f F) {
	s.v.Store(uint64(f))
}

// FetchOr sets the given flags and returns the previous word.
func (s *FlagSet[F]) FetchOr(f F) F {
	return F(s.v.Or(uint64(f)))
}

// Has reports whether all of the given flags are currently set.
func (s *FlagSet[F]) Has(f F) bool {
	return s.Load()&f == f
}
