package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/structdb/internal/dialect"
)

// IdentityStore checks out identity ranges from the identities table.
// It implements ids.IdentityStore.
type IdentityStore struct {
	store     *Store
	templates dialect.Templates
}

// NewIdentityStore creates the identities table if needed and returns a
// store checking out ranges from it.
func NewIdentityStore(ctx context.Context, s *Store, tpl dialect.Templates) (*IdentityStore, error) {
	stmt, err := tpl.Sql("CreateIdentitiesTable")
	if err != nil {
		return nil, fmt.Errorf("create identities table: %w", err)
	}
	if _, err := s.ExecuteNonQuery(ctx, stmt); err != nil {
		return nil, fmt.Errorf("create identities table: %w", err)
	}
	return &IdentityStore{store: s, templates: tpl}, nil
}

// CheckOutNextIdentity reserves count identities for entityName and
// returns the first. The upsert returns the new high-water mark, so the
// range is [mark-count+1, mark].
func (i *IdentityStore) CheckOutNextIdentity(ctx context.Context, entityName string, count int) (int64, error) {
	if count <= 0 {
		return 0, fmt.Errorf("check out identity for %s: count must be positive, got %d", entityName, count)
	}
	stmt, err := i.templates.Sql("CheckOutIdentity")
	if err != nil {
		return 0, fmt.Errorf("check out identity for %s: %w", entityName, err)
	}
	v, err := i.store.ExecuteScalar(ctx, stmt, sql.Named("name", entityName), sql.Named("count", int64(count)))
	if err != nil {
		return 0, fmt.Errorf("check out identity for %s: %w", entityName, err)
	}
	mark, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("check out identity for %s: unexpected high-water mark %T", entityName, v)
	}
	return mark - int64(count) + 1, nil
}
