package types

import (
	"encoding/json"
	"fmt"
	"net/netip"
)

// AllocationHandle counts the addresses assigned under one handle ID, per
// block, so they can be found and released without scanning every block
type AllocationHandle struct {
	ID     string
	Blocks map[netip.Prefix]int
}

// NewAllocationHandle returns a handle with no addresses
func NewAllocationHandle(id string) *AllocationHandle {
	return &AllocationHandle{ID: id, Blocks: map[netip.Prefix]int{}}
}

// Increment adds n addresses in block and returns the new count
func (h *AllocationHandle) Increment(block netip.Prefix, n int) int {
	h.Blocks[block] += n
	return h.Blocks[block]
}

// Decrement removes n addresses in block. A block whose count reaches zero
// is dropped. It fails without changing the handle if the count would go
// negative.
func (h *AllocationHandle) Decrement(block netip.Prefix, n int) (int, error) {
	count := h.Blocks[block]
	if count < n {
		return count, &AddressCountTooLowError{HandleID: h.ID, Block: block, Count: count, Release: n}
	}
	count -= n
	if count == 0 {
		delete(h.Blocks, block)
	} else {
		h.Blocks[block] = count
	}
	return count, nil
}

// IsEmpty reports whether the handle counts no addresses
func (h *AllocationHandle) IsEmpty() bool {
	return len(h.Blocks) == 0
}

type handleJSON struct {
	ID    string         `json:"id"`
	Block map[string]int `json:"block"`
}

func (h AllocationHandle) MarshalJSON() ([]byte, error) {
	out := handleJSON{ID: h.ID, Block: make(map[string]int, len(h.Blocks))}
	for block, n := range h.Blocks {
		out.Block[block.String()] = n
	}
	return json.Marshal(out)
}

func (h *AllocationHandle) UnmarshalJSON(data []byte) error {
	var in handleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	decoded := NewAllocationHandle(in.ID)
	for key, n := range in.Block {
		block, err := netip.ParsePrefix(key)
		if err != nil || !IsBlock(block) {
			return invalid("block", key, "not an allocation block")
		}
		if n <= 0 {
			return invalid("count", n, "block %s must have a positive count", key)
		}
		decoded.Blocks[block] = n
	}
	*h = *decoded
	return nil
}

// ParseAllocationHandle decodes a stored handle
func ParseAllocationHandle(data string) (*AllocationHandle, error) {
	var h AllocationHandle
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, fmt.Errorf("failed to decode allocation handle: %w", err)
	}
	return &h, nil
}

func (h *AllocationHandle) JSON() (string, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IPAMConfig holds the deployment wide allocation settings
type IPAMConfig struct {
	// StrictAffinity stops hosts from assigning out of blocks they do not own
	StrictAffinity bool `json:"strict_affinity"`
	// AutoAllocateBlocks lets hosts claim new blocks when theirs are full
	AutoAllocateBlocks bool `json:"auto_allocate_blocks"`
}

// DefaultIPAMConfig is in effect until a config is stored
func DefaultIPAMConfig() IPAMConfig {
	return IPAMConfig{AutoAllocateBlocks: true}
}

// Validate rejects turning off both settings at once
func (c IPAMConfig) Validate() error {
	if !c.StrictAffinity && !c.AutoAllocateBlocks {
		return invalid("ipam config", nil, "strict_affinity and auto_allocate_blocks cannot both be disabled")
	}
	return nil
}

// ParseIPAMConfig decodes a stored config. Missing fields take their
// defaults.
func ParseIPAMConfig(data string) (IPAMConfig, error) {
	cfg := DefaultIPAMConfig()
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return IPAMConfig{}, fmt.Errorf("failed to decode IPAM config: %w", err)
	}
	return cfg, nil
}
