package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
)

// Sentinel errors shared by every Store implementation. They are always
// wrapped together with the offending key, so match them with errors.Is.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrTestFailed  = errors.New("compare failed")
	ErrNotFile     = errors.New("not a file")
	ErrNotDir      = errors.New("not a directory")
	ErrNodeExist   = errors.New("key already exists")
	ErrDirNotEmpty = errors.New("directory not empty")
)

// Node is a key returned by the store. Directories carry their children in
// Nodes; a non-recursive read of a directory lists its immediate children
// without descending into them.
type Node struct {
	Key   string
	Value string
	Dir   bool
	Nodes []*Node
}

// Leaves walks the subtree rooted at n and returns every node without
// children, in store order. A node that has no children is its own leaf, so
// reading an empty directory yields the directory itself.
func (n *Node) Leaves() []*Node {
	if len(n.Nodes) == 0 {
		return []*Node{n}
	}
	var leaves []*Node
	for _, child := range n.Nodes {
		leaves = append(leaves, child.Leaves()...)
	}
	return leaves
}

// Children returns the immediate children of n. Like Leaves, a node without
// children reports itself.
func (n *Node) Children() []*Node {
	if len(n.Nodes) == 0 {
		return []*Node{n}
	}
	return n.Nodes
}

// GetOptions controls Store.Get
type GetOptions struct {
	// Recursive returns the complete subtree below a directory.
	Recursive bool
}

// SetOptions controls Store.Set
type SetOptions struct {
	// PrevValue turns the write into a compare-and-swap: it only succeeds
	// if the key currently holds exactly this value.
	PrevValue string

	// Create only succeeds if the key does not exist yet.
	Create bool

	// Dir creates a directory instead of a value.
	Dir bool
}

// DeleteOptions controls Store.Delete
type DeleteOptions struct {
	// Dir allows the key to be a directory.
	Dir bool

	// Recursive removes a directory together with everything below it.
	Recursive bool

	// PrevValue makes the delete conditional on the key holding exactly
	// this value.
	PrevValue string
}

// Store is a hierarchical, versioned key-value store with directory
// semantics and single-key compare-and-swap. Paths are slash separated;
// intermediate directories are created on write.
type Store interface {
	Get(ctx context.Context, key string, opts *GetOptions) (*Node, error)
	Set(ctx context.Context, key, value string, opts *SetOptions) error
	Delete(ctx context.Context, key string, opts *DeleteOptions) error

	// Utility
	Close() error
}

// IsKeyNotFound reports whether err signals a missing key
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsTestFailed reports whether err signals a failed compare-and-swap
func IsTestFailed(err error) bool {
	return errors.Is(err, ErrTestFailed)
}

// IsNodeExist reports whether err signals that a create found the key taken
func IsNodeExist(err error) bool {
	return errors.Is(err, ErrNodeExist)
}

// IsNotFile reports whether err signals that the key is a directory
func IsNotFile(err error) bool {
	return errors.Is(err, ErrNotFile)
}

// NormalizeKey returns key with a single leading slash and no trailing slash
func NormalizeKey(key string) string {
	return path.Clean("/" + key)
}

func keyError(sentinel error, key string) error {
	return fmt.Errorf("%w: %s", sentinel, key)
}
