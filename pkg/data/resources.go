package data

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/kerbaras/mdown/pkg/utils"
)

// ErrResourceMissing is returned when a key is not in the resource store
var ErrResourceMissing = errors.New("resource not found")

// ResourceOptions configures the resource store
type ResourceOptions struct {
	Directory string
	InMemory  bool
}

// ResourceStore is a key/value blob store for small resources shared between runs,
// such as resolved scanlation groups.
type ResourceStore struct {
	db *badger.DB
}

// NewResourceStore opens the badger database described by opts
func NewResourceStore(opts ResourceOptions) (*ResourceStore, error) {
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Directory, 0755); err != nil {
			return nil, utils.IoError(opts.Directory, err)
		}
		badgerOpts = badger.DefaultOptions(opts.Directory)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, utils.DatabaseError(opts.Directory, err)
	}
	return &ResourceStore{db: db}, nil
}

// Get retrieves the value stored under key
func (s *ResourceStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrResourceMissing
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key
func (s *ResourceStore) Set(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Has reports whether key exists
func (s *ResourceStore) Has(ctx context.Context, key string) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	return err == nil
}

// Delete removes key
func (s *ResourceStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Keys lists every key with the given prefix
func (s *ResourceStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// Close releases the store
func (s *ResourceStore) Close() error {
	return s.db.Close()
}

// ResourceKey joins key segments with ':'
func ResourceKey(parts ...string) string {
	return strings.Join(parts, ":")
}
