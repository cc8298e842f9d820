package cache

import "sync/atomic"

// stamps hands out the logical times used to order fill attempts against
// tag invalidations. A fill begun at stamp s is dropped if any of its tags
// was invalidated at a stamp above s.
type stamps struct {
	last atomic.Int64
}

// take returns a stamp greater than every stamp taken before it.
func (s *stamps) take() int64 {
	return s.last.Add(1)
}
