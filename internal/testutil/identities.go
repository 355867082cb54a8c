package testutil

import (
	"context"
	"sync"
)

// DeterministicIdentities is an in-memory ids.IdentityStore for tests.
//
// Each entity has its own counter starting at 0, so the first checkout
// returns 1. Reset makes a test rerun produce identical ids.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicIdentities struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewDeterministicIdentities creates a store with all counters at 0.
func NewDeterministicIdentities() *DeterministicIdentities {
	return &DeterministicIdentities{counters: make(map[string]int64)}
}

// CheckOutNextIdentity reserves count ids for entityName and returns the first.
func (d *DeterministicIdentities) CheckOutNextIdentity(_ context.Context, entityName string, count int) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	start := d.counters[entityName] + 1
	d.counters[entityName] += int64(count)
	return start, nil
}

// Current returns the last id handed out for entityName.
func (d *DeterministicIdentities) Current(entityName string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters[entityName]
}

// Reset sets every counter back to 0.
func (d *DeterministicIdentities) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counters = make(map[string]int64)
}
