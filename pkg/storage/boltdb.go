package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketKeys = []byte("keys")
)

// Record markers prefixed to every stored value
const (
	markerDir  byte = 'd'
	markerFile byte = 'f'
)

// BoltStore implements Store on a local BoltDB file. It is meant for
// single-host installs and tooling that runs without an etcd cluster.
type BoltStore struct {
	db *bolt.DB
	engine
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "burrow.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKeys); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketKeys, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db}
	s.engine = engine{
		view: func(fn func(flatTxn) error) error {
			return db.View(func(tx *bolt.Tx) error {
				return fn(boltTxn{b: tx.Bucket(bucketKeys)})
			})
		},
		update: func(fn func(flatTxn) error) error {
			return db.Update(func(tx *bolt.Tx) error {
				return fn(boltTxn{b: tx.Bucket(bucketKeys)})
			})
		},
	}
	return s, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(ctx context.Context, key string, opts *GetOptions) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.get(key, opts)
}

func (s *BoltStore) Set(ctx context.Context, key, value string, opts *SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.set(key, value, opts)
}

func (s *BoltStore) Delete(ctx context.Context, key string, opts *DeleteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.delete(key, opts)
}

type boltTxn struct {
	b *bolt.Bucket
}

func (t boltTxn) lookup(key string) (*entry, error) {
	data := t.b.Get([]byte(key))
	if data == nil {
		return nil, nil
	}
	return decodeEntry(key, data)
}

func (t boltTxn) put(e *entry) error {
	data := make([]byte, 0, len(e.Value)+1)
	if e.Dir {
		data = append(data, markerDir)
	} else {
		data = append(data, markerFile)
		data = append(data, e.Value...)
	}
	return t.b.Put([]byte(e.Key), data)
}

func (t boltTxn) remove(key string) error {
	return t.b.Delete([]byte(key))
}

func (t boltTxn) scan(prefix string, fn func(*entry) error) error {
	p := []byte(prefix)
	c := t.b.Cursor()
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		e, err := decodeEntry(string(k), v)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func decodeEntry(key string, data []byte) (*entry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("corrupt record for %s", key)
	}
	switch data[0] {
	case markerDir:
		return &entry{Key: key, Dir: true}, nil
	case markerFile:
		// Bolt values are only valid for the life of the transaction.
		return &entry{Key: key, Value: string(data[1:])}, nil
	default:
		return nil, fmt.Errorf("corrupt record for %s: unknown marker %q", key, data[0])
	}
}
