package ids

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMissingStringID is returned when a string-keyed structure has no id.
// String ids are never generated.
var ErrMissingStringID = errors.New("string structure ids must be assigned by the caller")

// IdentityStore hands out contiguous identity ranges per entity.
//
// CheckOutNextIdentity reserves count identities for entityName and returns
// the first one. The range [start, start+count) belongs to the caller.
type IdentityStore interface {
	CheckOutNextIdentity(ctx context.Context, entityName string, count int) (int64, error)
}

// Generator produces ids for new structures.
type Generator struct {
	identities IdentityStore
	newGuid    func() (uuid.UUID, error)
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGuidSource replaces the UUID source. Used by tests for deterministic ids.
func WithGuidSource(f func() (uuid.UUID, error)) GeneratorOption {
	return func(g *Generator) {
		g.newGuid = f
	}
}

// NewGenerator creates a generator backed by the given identity store.
// identities may be nil when no identity-keyed types are used.
func NewGenerator(identities IdentityStore, opts ...GeneratorOption) *Generator {
	g := &Generator{
		identities: identities,
		newGuid:    uuid.NewV7,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next returns n fresh ids of the given kind for entityName.
// Identity ids come from a single checkout so they are contiguous.
func (g *Generator) Next(ctx context.Context, entityName string, kind Kind, n int) ([]StructureID, error) {
	if n <= 0 {
		return nil, nil
	}

	out := make([]StructureID, 0, n)
	switch kind {
	case KindIdentity:
		if g.identities == nil {
			return nil, fmt.Errorf("next ids for %s: no identity store configured", entityName)
		}
		start, err := g.identities.CheckOutNextIdentity(ctx, entityName, n)
		if err != nil {
			return nil, fmt.Errorf("next ids for %s: %w", entityName, err)
		}
		for i := 0; i < n; i++ {
			out = append(out, Identity(start+int64(i)))
		}
	case KindGuid:
		for i := 0; i < n; i++ {
			u, err := g.newGuid()
			if err != nil {
				return nil, fmt.Errorf("next ids for %s: %w", entityName, err)
			}
			out = append(out, Guid(u))
		}
	case KindString:
		return nil, fmt.Errorf("next ids for %s: %w", entityName, ErrMissingStringID)
	default:
		return nil, fmt.Errorf("next ids for %s: unknown id kind %s", entityName, kind)
	}
	return out, nil
}
