package datastore

import (
	"errors"
	"fmt"
	"net/netip"
)

var (
	// ErrNotFound matches every NotFoundError
	ErrNotFound = errors.New("not found")

	// ErrMultipleEndpoints is returned by GetEndpoint when the filter
	// matches more than one endpoint
	ErrMultipleEndpoints = errors.New("multiple endpoints match the filter")

	// ErrUpdateConflict is returned by UpdateEndpoint when the stored
	// endpoint no longer matches the version it was read at
	ErrUpdateConflict = errors.New("endpoint was modified since it was read")

	// ErrAffinityClaimed matches every AffinityClaimedError
	ErrAffinityClaimed = errors.New("block affinity claimed by another host")

	// ErrAllocationsExist is returned by SetIPAMConfig while any block
	// is stored
	ErrAllocationsExist = errors.New("cannot change IPAM configuration while allocation blocks exist")

	// ErrRetriesExhausted is returned when an IPAM update lost every
	// compare-and-swap race it was allowed
	ErrRetriesExhausted = errors.New("too many concurrent updates")
)

// AffinityClaimedError reports a block owned by a host other than the one
// acting on it
type AffinityClaimedError struct {
	Block netip.Prefix
	Owner string
}

func (e *AffinityClaimedError) Error() string {
	if e.Owner == "" {
		return fmt.Sprintf("block %s has no host affinity", e.Block)
	}
	return fmt.Sprintf("block %s is claimed by %s", e.Block, e.Owner)
}

func (e *AffinityClaimedError) Is(target error) bool {
	return target == ErrAffinityClaimed
}

// NotFoundError reports a missing entity
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// IsNotFound reports whether err signals a missing entity
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// CorruptValueError reports a stored value that does not decode into the
// data model. It always reaches callers inside a StoreError.
type CorruptValueError struct {
	Key string
	Err error
}

func (e *CorruptValueError) Error() string {
	return fmt.Sprintf("invalid value stored at %s: %v", e.Key, e.Err)
}

func (e *CorruptValueError) Unwrap() error {
	return e.Err
}

func corrupt(key string, err error) error {
	return &CorruptValueError{Key: key, Err: err}
}

// StoreError wraps any failure of the underlying store that has no
// meaning in the burrow data model.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: error accessing the datastore: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
