package testutil

import (
	"sync"

	"github.com/google/uuid"
)

// SequentialGuids yields 00000000-0000-7000-8000-000000000001, ...002 and so on.
//
// Use with ids.WithGuidSource so guid-keyed fixtures have stable ids and
// golden SQL snapshots do not change between runs.
type SequentialGuids struct {
	mu sync.Mutex
	n  uint64
}

// Next returns the next guid in the sequence.
func (s *SequentialGuids) Next() (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return Guid(s.n), nil
}

// Guid returns the n-th guid of the sequence.
func Guid(n uint64) uuid.UUID {
	var u uuid.UUID
	u[6] = 0x70
	u[8] = 0x80
	for i := 15; i >= 10 && n > 0; i-- {
		u[i] = byte(n)
		n >>= 8
	}
	return u
}
