/*
Package storage provides the hierarchical key-value stores burrow keeps its
control-plane state in.

All state lives under slash separated paths in a tree of directories and
values, the model exposed by the etcd v2 keys API. The Store interface
captures exactly the operations the datastore client needs: recursive reads,
directory creation, compare-and-swap writes and recursive deletes.

# Backends

	┌──────────────────────── STORE ─────────────────────────┐
	│                                                          │
	│   EtcdStore ──────► etcd v2 keys API (cluster)           │
	│                                                          │
	│   BoltStore ──┐                                          │
	│               ├──► engine ──► flat ordered key space     │
	│   MemoryStore ┘     (dirs, CAS, recursive delete)        │
	│                                                          │
	└──────────────────────────────────────────────────────────┘

EtcdStore talks to a real cluster and is what agents use in production.
BoltStore keeps the same tree in a single file (<dataDir>/burrow.db) for
single-host installs. MemoryStore is built on go-memdb and backs tests and
dry runs. The two embedded stores share one engine, so they behave
identically; each record is stored flat under its full path, and a
directory is a record of its own.

# Semantics

  - Writing a key creates every missing parent directory.
  - Writing a value over a directory fails with ErrNotFile; writing below
    a value fails with ErrNotDir.
  - Creating a directory that already exists fails with ErrNotFile.
  - SetOptions.PrevValue makes a write conditional. A missing key yields
    ErrKeyNotFound and a different value yields ErrTestFailed.
  - Deleting a directory requires DeleteOptions.Dir, and Recursive when
    it still has children (otherwise ErrDirNotEmpty).
  - Children are always returned sorted by key.

All errors wrap one of the package sentinels together with the key
involved:

	err := store.Set(ctx, key, newValue, &storage.SetOptions{PrevValue: old})
	if storage.IsTestFailed(err) {
		// someone else modified key since it was read
	}

# Leaves and Children

Node.Leaves and Node.Children follow the etcd client convention of
treating a childless node as its own single result. Reading an empty
directory therefore yields the directory node itself, and callers that
walk results must skip directory nodes and the queried root.
*/
package storage
