package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Provider builds schemas on first use and caches them for the process
// lifetime. Schemas are only rebuilt after an explicit Invalidate.
//
// Thread-safety: all methods are safe for concurrent use. Returned schemas
// are immutable.
type Provider struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*StructureSchema
	byName map[string]*StructureSchema // keyed by nameKey
	decls  map[string]Declaration
}

// nameKey folds case: SQLite table names are case-insensitive, so Person and
// person would share tables.
func nameKey(name string) string {
	return strings.ToLower(name)
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{
		byType: make(map[reflect.Type]*StructureSchema),
		byName: make(map[string]*StructureSchema),
		decls:  make(map[string]Declaration),
	}
}

// Configure records a declaration. Declarations with fields register a
// dynamic schema immediately; others override tags of the Go type whose
// name matches decl.Name when it is first used.
func (p *Provider) Configure(decl Declaration) (*StructureSchema, error) {
	if len(decl.Fields) > 0 {
		return p.Register(decl)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decls[decl.Name] = decl
	return nil, nil
}

// Register builds and caches the schema of a declared document type.
func (p *Provider) Register(decl Declaration) (*StructureSchema, error) {
	s, err := FromDeclaration(decl)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.byName[nameKey(s.Name)]; ok {
		if existing.Dynamic() && existing.Name == s.Name {
			return existing, nil
		}
		return nil, &TableNameCollisionError{Name: s.Name, Existing: describe(existing), Incoming: "declared " + s.Name}
	}
	p.byName[nameKey(s.Name)] = s
	return s, nil
}

// Get returns the schema of a Go struct type, building it on first use.
func (p *Provider) Get(t reflect.Type) (*StructureSchema, error) {
	t = derefType(t)

	p.mu.RLock()
	s, ok := p.byType[t]
	p.mu.RUnlock()
	if ok {
		return s, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.byType[t]; ok {
		return s, nil
	}

	var decl *Declaration
	if d, ok := p.decls[t.Name()]; ok {
		decl = &d
	}
	s, err := Build(t, decl)
	if err != nil {
		return nil, err
	}
	if existing, ok := p.byName[nameKey(s.Name)]; ok {
		return nil, &TableNameCollisionError{Name: s.Name, Existing: describe(existing), Incoming: t.PkgPath() + "." + t.Name()}
	}
	p.byType[t] = s
	p.byName[nameKey(s.Name)] = s
	return s, nil
}

// For returns the schema of T.
func For[T any](p *Provider) (*StructureSchema, error) {
	return p.Get(reflect.TypeOf((*T)(nil)).Elem())
}

// Lookup returns a cached schema by name.
func (p *Provider) Lookup(name string) (*StructureSchema, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byName[nameKey(name)]
	return s, ok
}

// MustLookup is like Lookup but returns an error naming the missing schema.
func (p *Provider) MustLookup(name string) (*StructureSchema, error) {
	s, ok := p.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no schema named %q", name)
	}
	return s, nil
}

// Invalidate drops the cached schema for name so the next use rebuilds it.
// Used after renames and migrations.
func (p *Provider) Invalidate(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byName[nameKey(name)]
	if !ok {
		return
	}
	delete(p.byName, nameKey(name))
	if s.Type != nil {
		delete(p.byType, s.Type)
	}
}

// All returns the cached schemas ordered by name.
func (p *Provider) All() []*StructureSchema {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*StructureSchema, 0, len(p.byName))
	for _, s := range p.byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func describe(s *StructureSchema) string {
	if s.Type == nil {
		return "declared " + s.Name
	}
	return s.Type.PkgPath() + "." + s.Type.Name()
}
