package types

import (
	"fmt"
	"net/netip"
	"strings"
)

// ValidationError reports a malformed field. Values that fail validation are
// never constructed and never stored.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func invalid(field string, value any, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// ProfileAlreadyInEndpointError is returned when adding profiles an endpoint
// already references
type ProfileAlreadyInEndpointError struct {
	ProfileIDs []string
}

func (e *ProfileAlreadyInEndpointError) Error() string {
	return fmt.Sprintf("profile(s) already in endpoint: %s", strings.Join(e.ProfileIDs, ", "))
}

// ProfileNotInEndpointError is returned when removing profiles an endpoint
// does not reference
type ProfileNotInEndpointError struct {
	ProfileIDs []string
}

func (e *ProfileNotInEndpointError) Error() string {
	return fmt.Sprintf("profile(s) not in endpoint: %s", strings.Join(e.ProfileIDs, ", "))
}

// NoHostAffinityError is returned when a host may not allocate from a block
// owned by another host
type NoHostAffinityError struct {
	Block    netip.Prefix
	Affinity string
	Host     string
}

func (e *NoHostAffinityError) Error() string {
	if e.Affinity == "" {
		return fmt.Sprintf("block %s has no host affinity, %s may not allocate from it", e.Block, e.Host)
	}
	return fmt.Sprintf("block %s has affinity to %s, not %s", e.Block, e.Affinity, e.Host)
}

// AlreadyAssignedError is returned when assigning a taken address
type AlreadyAssignedError struct {
	Addr netip.Addr
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("%s is already assigned", e.Addr)
}

// AddressNotAssignedError is returned when looking up a free address
type AddressNotAssignedError struct {
	Addr netip.Addr
}

func (e *AddressNotAssignedError) Error() string {
	return fmt.Sprintf("%s is not assigned", e.Addr)
}

// AddressCountTooLowError is returned when a handle would drop below zero
// addresses in a block, which means the handle and the block disagree
type AddressCountTooLowError struct {
	HandleID string
	Block    netip.Prefix
	Count    int
	Release  int
}

func (e *AddressCountTooLowError) Error() string {
	return fmt.Sprintf("handle %s has %d addresses in block %s, cannot release %d", e.HandleID, e.Count, e.Block, e.Release)
}
