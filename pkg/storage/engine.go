package storage

import (
	"path"
	"strings"
)

// entry is the flat representation used by the embedded backends: every
// key, directory or value, is a single record addressed by its full path.
type entry struct {
	Key   string
	Value string
	Dir   bool
}

// flatTxn is the minimal transaction surface an embedded backend provides.
// scan must visit keys in ascending byte order.
type flatTxn interface {
	lookup(key string) (*entry, error)
	put(e *entry) error
	remove(key string) error
	scan(prefix string, fn func(*entry) error) error
}

// engine implements the hierarchical semantics of Store on top of a flat,
// ordered, transactional key space.
type engine struct {
	view   func(fn func(flatTxn) error) error
	update func(fn func(flatTxn) error) error
}

const rootKey = "/"

func (e *engine) get(key string, opts *GetOptions) (*Node, error) {
	if opts == nil {
		opts = &GetOptions{}
	}
	key = NormalizeKey(key)

	var node *Node
	err := e.view(func(txn flatTxn) error {
		if key == rootKey {
			node = &Node{Key: rootKey, Dir: true}
		} else {
			ent, err := txn.lookup(key)
			if err != nil {
				return err
			}
			if ent == nil {
				return keyError(ErrKeyNotFound, key)
			}
			node = &Node{Key: ent.Key, Value: ent.Value, Dir: ent.Dir}
		}
		if !node.Dir {
			return nil
		}
		return loadChildren(txn, node, opts.Recursive)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func loadChildren(txn flatTxn, dir *Node, recursive bool) error {
	prefix := childPrefix(dir.Key)
	byKey := map[string]*Node{dir.Key: dir}

	return txn.scan(prefix, func(ent *entry) error {
		rel := strings.TrimPrefix(ent.Key, prefix)
		if !recursive && strings.Contains(rel, "/") {
			return nil
		}
		parent, ok := byKey[path.Dir(ent.Key)]
		if !ok {
			// Orphaned record below a missing directory; skip it.
			return nil
		}
		child := &Node{Key: ent.Key, Value: ent.Value, Dir: ent.Dir}
		parent.Nodes = append(parent.Nodes, child)
		if child.Dir && recursive {
			byKey[child.Key] = child
		}
		return nil
	})
}

func (e *engine) set(key, value string, opts *SetOptions) error {
	if opts == nil {
		opts = &SetOptions{}
	}
	key = NormalizeKey(key)
	if key == rootKey {
		return keyError(ErrNotFile, key)
	}

	return e.update(func(txn flatTxn) error {
		existing, err := txn.lookup(key)
		if err != nil {
			return err
		}

		if opts.Dir {
			if existing != nil {
				return keyError(ErrNotFile, key)
			}
		} else {
			if existing != nil && existing.Dir {
				return keyError(ErrNotFile, key)
			}
			if opts.Create && existing != nil {
				return keyError(ErrNodeExist, key)
			}
			if opts.PrevValue != "" {
				if existing == nil {
					return keyError(ErrKeyNotFound, key)
				}
				if existing.Value != opts.PrevValue {
					return keyError(ErrTestFailed, key)
				}
			}
		}

		if err := ensureParents(txn, key); err != nil {
			return err
		}
		if opts.Dir {
			return txn.put(&entry{Key: key, Dir: true})
		}
		return txn.put(&entry{Key: key, Value: value})
	})
}

// ensureParents creates every missing ancestor directory of key and fails
// if one of them already exists as a value.
func ensureParents(txn flatTxn, key string) error {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	current := ""
	for _, part := range parts[:len(parts)-1] {
		current += "/" + part
		ent, err := txn.lookup(current)
		if err != nil {
			return err
		}
		if ent == nil {
			if err := txn.put(&entry{Key: current, Dir: true}); err != nil {
				return err
			}
			continue
		}
		if !ent.Dir {
			return keyError(ErrNotDir, current)
		}
	}
	return nil
}

func (e *engine) delete(key string, opts *DeleteOptions) error {
	if opts == nil {
		opts = &DeleteOptions{}
	}
	key = NormalizeKey(key)
	if key == rootKey {
		return keyError(ErrNotFile, key)
	}

	return e.update(func(txn flatTxn) error {
		ent, err := txn.lookup(key)
		if err != nil {
			return err
		}
		if ent == nil {
			return keyError(ErrKeyNotFound, key)
		}
		if !ent.Dir {
			if opts.PrevValue != "" && ent.Value != opts.PrevValue {
				return keyError(ErrTestFailed, key)
			}
			return txn.remove(key)
		}
		if !opts.Dir {
			return keyError(ErrNotFile, key)
		}

		var descendants []string
		err = txn.scan(childPrefix(key), func(child *entry) error {
			descendants = append(descendants, child.Key)
			return nil
		})
		if err != nil {
			return err
		}
		if len(descendants) > 0 && !opts.Recursive {
			return keyError(ErrDirNotEmpty, key)
		}
		for _, k := range descendants {
			if err := txn.remove(k); err != nil {
				return err
			}
		}
		return txn.remove(key)
	})
}

func childPrefix(key string) string {
	if key == rootKey {
		return rootKey
	}
	return key + "/"
}
