package storage

import (
	"context"
	"fmt"

	memdb "github.com/hashicorp/go-memdb"
)

const tableEntries = "entries"

var memorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableEntries: {
			Name: tableEntries,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Key"},
				},
			},
		},
	},
}

// MemoryStore implements Store in process memory. Writes are serialized by
// go-memdb and readers see consistent snapshots, which makes it suitable for
// tests and for dry runs of the command line tool.
type MemoryStore struct {
	db *memdb.MemDB
	engine
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() (*MemoryStore, error) {
	db, err := memdb.NewMemDB(memorySchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create memdb: %w", err)
	}

	s := &MemoryStore{db: db}
	s.engine = engine{
		view: func(fn func(flatTxn) error) error {
			txn := db.Txn(false)
			defer txn.Abort()
			return fn(memTxn{txn: txn})
		},
		update: func(fn func(flatTxn) error) error {
			txn := db.Txn(true)
			if err := fn(memTxn{txn: txn}); err != nil {
				txn.Abort()
				return err
			}
			txn.Commit()
			return nil
		},
	}
	return s, nil
}

// Close is a no-op; the store lives as long as the process
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string, opts *GetOptions) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.get(key, opts)
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, opts *SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.set(key, value, opts)
}

func (s *MemoryStore) Delete(ctx context.Context, key string, opts *DeleteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.delete(key, opts)
}

type memTxn struct {
	txn *memdb.Txn
}

func (t memTxn) lookup(key string) (*entry, error) {
	raw, err := t.txn.First(tableEntries, "id", key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*entry), nil
}

func (t memTxn) put(e *entry) error {
	// Stored objects are shared with readers and never mutated in place.
	stored := *e
	return t.txn.Insert(tableEntries, &stored)
}

func (t memTxn) remove(key string) error {
	return t.txn.Delete(tableEntries, &entry{Key: key})
}

func (t memTxn) scan(prefix string, fn func(*entry) error) error {
	it, err := t.txn.Get(tableEntries, "id_prefix", prefix)
	if err != nil {
		return err
	}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if err := fn(raw.(*entry)); err != nil {
			return err
		}
	}
	return nil
}
