package sqlgen

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/structdb/internal/lambda"
	"github.com/roach88/structdb/internal/query"
	"github.com/roach88/structdb/internal/schema"
)

// PlanCache maps query shapes to SQL text. Literal values are not part of
// the key; parameters are rebound from the IR on every hit.
//
// Thread-safety: all methods are safe for concurrent use.
type PlanCache struct {
	mu      sync.RWMutex
	plans   map[planKey]string
	maxSize int

	hits   atomic.Int64
	misses atomic.Int64
}

type planKey struct {
	schema   string
	shape    Shape
	where    string
	sortings string
	skip     int
	take     int
	hasTake  bool
}

// NewPlanCache creates a cache holding at most maxSize plans. When full it
// starts over empty.
func NewPlanCache(maxSize int) *PlanCache {
	return &PlanCache{plans: make(map[planKey]string), maxSize: maxSize}
}

func newPlanKey(q query.Query, s *schema.StructureSchema, shape Shape) planKey {
	k := planKey{
		schema: s.Name,
		shape:  shape,
		where:  lambda.ShapeFingerprint(q.Where),
	}
	if shape == Count {
		return k
	}
	parts := make([]string, len(q.Sortings))
	for i, sm := range q.Sortings {
		parts[i] = sm.String()
	}
	k.sortings = strings.Join(parts, ",")
	k.skip, k.take, k.hasTake = q.Skip, q.Take, q.HasTake
	return k
}

func (c *PlanCache) get(k planKey) (string, bool) {
	c.mu.RLock()
	text, ok := c.plans[k]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return text, ok
}

func (c *PlanCache) put(k planKey, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxSize > 0 && len(c.plans) >= c.maxSize {
		c.plans = make(map[planKey]string)
	}
	c.plans[k] = text
}

// Len returns the number of cached plans.
func (c *PlanCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.plans)
}

// Stats returns hit and miss counts.
func (c *PlanCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Invalidate drops every plan of the named schema.
func (c *PlanCache) Invalidate(schemaName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.plans {
		if k.schema == schemaName {
			delete(c.plans, k)
		}
	}
}
