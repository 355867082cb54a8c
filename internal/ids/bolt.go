package ids

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var identitiesBucket = []byte("identities")

// BoltIdentityStore keeps identity counters in a bbolt file.
// It is an alternative to the identities table when the relational
// database is shared by several processes that must not contend on it.
type BoltIdentityStore struct {
	bdb *bbolt.DB
}

// OpenBoltIdentityStore opens or creates the counter file at path.
func OpenBoltIdentityStore(path string) (*BoltIdentityStore, error) {
	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(identitiesBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("init identity store: %w", err)
	}
	return &BoltIdentityStore{bdb: bdb}, nil
}

// Close closes the underlying file.
func (s *BoltIdentityStore) Close() error {
	return s.bdb.Close()
}

// CheckOutNextIdentity implements IdentityStore.
func (s *BoltIdentityStore) CheckOutNextIdentity(ctx context.Context, entityName string, count int) (int64, error) {
	if count <= 0 {
		return 0, fmt.Errorf("check out identity for %s: count must be positive, got %d", entityName, count)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var start int64
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(identitiesBucket)
		key := []byte(entityName)

		var current uint64
		if raw := b.Get(key); raw != nil {
			if len(raw) != 8 {
				return fmt.Errorf("corrupt counter for %s", entityName)
			}
			current = binary.BigEndian.Uint64(raw)
		}

		next := current + uint64(count)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, next)
		if err := b.Put(key, buf); err != nil {
			return err
		}
		start = int64(current) + 1
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("check out identity for %s: %w", entityName, err)
	}
	return start, nil
}
