package types

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"
)

const (
	// BlockBits sizes the blocks hosts claim from IPAM pools
	BlockBits = 6
	BlockSize = 1 << BlockBits

	hostAffinityPrefix = "host:"
	free               = -1
)

// BlockFor returns the allocation block containing addr
func BlockFor(addr netip.Addr) netip.Prefix {
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()-BlockBits).Masked()
}

// IsBlock reports whether cidr is exactly one allocation block
func IsBlock(cidr netip.Prefix) bool {
	return cidr.IsValid() && cidr == cidr.Masked() && !cidr.Addr().Is4In6() &&
		cidr.Bits() == cidr.Addr().BitLen()-BlockBits
}

// ValidateBlockRange checks that cidr covers at least one whole block
func ValidateBlockRange(cidr netip.Prefix) error {
	if !cidr.IsValid() {
		return invalid("cidr", nil, "not a valid network")
	}
	maxBits := cidr.Addr().BitLen() - BlockBits
	if cidr.Bits() > maxBits {
		return invalid("cidr", cidr.String(), "must be /%d or larger", maxBits)
	}
	return nil
}

// AllocationAttribute is shared by every assignment in a block made with the
// same handle and attributes
type AllocationAttribute struct {
	HandleID  string            `json:"handle_id,omitempty"`
	Secondary map[string]string `json:"secondary"`
}

func (a AllocationAttribute) matches(handleID string, attrs map[string]string) bool {
	return a.HandleID == handleID && maps.Equal(a.Secondary, attrs)
}

// AllocationBlock records the assignments of one block of BlockSize
// addresses. A block is a single stored value, so every change to it is a
// read-modify-write that must be committed with compare-and-swap.
type AllocationBlock struct {
	CIDR netip.Prefix
	// Affinity is the host the block belongs to, empty when unowned
	Affinity       string
	StrictAffinity bool

	// allocations holds an attributes index per ordinal, or free
	allocations [BlockSize]int
	// unallocated lists free ordinals, most recently released last
	unallocated []int
	attributes  []AllocationAttribute
}

// NewAllocationBlock returns an empty block owned by host
func NewAllocationBlock(cidr netip.Prefix, host string, strict bool) (*AllocationBlock, error) {
	if !IsBlock(cidr) {
		return nil, invalid("block", cidr.String(), "not a /%d or /%d network", 32-BlockBits, 128-BlockBits)
	}
	b := &AllocationBlock{
		CIDR:           cidr,
		Affinity:       host,
		StrictAffinity: strict,
		unallocated:    make([]int, BlockSize),
	}
	for o := range BlockSize {
		b.allocations[o] = free
		b.unallocated[o] = o
	}
	return b, nil
}

// Addr returns the address at ordinal o
func (b *AllocationBlock) Addr(o int) netip.Addr {
	s := b.CIDR.Addr().AsSlice()
	s[len(s)-1] |= byte(o)
	addr, _ := netip.AddrFromSlice(s)
	return addr
}

func (b *AllocationBlock) ordinal(addr netip.Addr) (int, bool) {
	addr = addr.Unmap()
	if !b.CIDR.Contains(addr) {
		return 0, false
	}
	s := addr.AsSlice()
	return int(s[len(s)-1] & (BlockSize - 1)), true
}

func (b *AllocationBlock) checkAffinity(host string) error {
	if host != b.Affinity {
		return &NoHostAffinityError{Block: b.CIDR, Affinity: b.Affinity, Host: host}
	}
	return nil
}

// AutoAssign assigns up to num free addresses, least recently released
// first. It fails with NoHostAffinityError if host does not own the block
// and either affinityCheck or the block's strict affinity is set. A full
// block yields no addresses and no error.
func (b *AllocationBlock) AutoAssign(num int, handleID string, attrs map[string]string, host string, affinityCheck bool) ([]netip.Addr, error) {
	if affinityCheck || b.StrictAffinity {
		if err := b.checkAffinity(host); err != nil {
			return nil, err
		}
	}

	n := min(num, len(b.unallocated))
	if n <= 0 {
		return nil, nil
	}
	ordinals := b.unallocated[:n]
	b.unallocated = slices.Clone(b.unallocated[n:])

	idx := b.findOrAddAttributes(handleID, attrs)
	addrs := make([]netip.Addr, 0, n)
	for _, o := range ordinals {
		b.allocations[o] = idx
		addrs = append(addrs, b.Addr(o))
	}
	return addrs, nil
}

// Assign assigns addr. It fails with AlreadyAssignedError if addr is taken,
// and with NoHostAffinityError if the block has strict affinity to another
// host.
func (b *AllocationBlock) Assign(addr netip.Addr, handleID string, attrs map[string]string, host string) error {
	if b.StrictAffinity {
		if err := b.checkAffinity(host); err != nil {
			return err
		}
	}
	o, ok := b.ordinal(addr)
	if !ok {
		return invalid("address", addr.String(), "not in block %s", b.CIDR)
	}
	if b.allocations[o] != free {
		return &AlreadyAssignedError{Addr: b.Addr(o)}
	}
	b.allocations[o] = b.findOrAddAttributes(handleID, attrs)
	b.unallocated = slices.DeleteFunc(b.unallocated, func(u int) bool { return u == o })
	return nil
}

// Release frees addrs. It returns the addresses that were not assigned,
// including any outside the block, and the number of addresses released
// per handle. Addresses assigned without a handle count under "".
func (b *AllocationBlock) Release(addrs []netip.Addr) ([]netip.Addr, map[string]int) {
	var (
		unallocated []netip.Addr
		ordinals    []int
		releasing   = map[int]int{}
		handles     = map[string]int{}
		seen        = map[int]bool{}
	)
	for _, addr := range addrs {
		o, ok := b.ordinal(addr)
		if !ok || b.allocations[o] == free {
			unallocated = append(unallocated, addr)
			continue
		}
		if seen[o] {
			continue
		}
		seen[o] = true
		idx := b.allocations[o]
		ordinals = append(ordinals, o)
		releasing[idx]++
		handles[b.attributes[idx].HandleID]++
	}

	refs := b.refCounts()
	unused := map[int]bool{}
	for idx, n := range releasing {
		if refs[idx] == n {
			unused[idx] = true
		}
	}
	b.free(ordinals, unused)
	return unallocated, handles
}

// ReleaseByHandle frees every address assigned with handleID and returns
// how many there were
func (b *AllocationBlock) ReleaseByHandle(handleID string) int {
	unused := b.attributesOf(handleID)
	if len(unused) == 0 {
		return 0
	}
	var ordinals []int
	for o, idx := range b.allocations {
		if unused[idx] {
			ordinals = append(ordinals, o)
		}
	}
	b.free(ordinals, unused)
	return len(ordinals)
}

// IPsByHandle returns the addresses assigned with handleID in address order
func (b *AllocationBlock) IPsByHandle(handleID string) []netip.Addr {
	indexes := b.attributesOf(handleID)
	var addrs []netip.Addr
	for o, idx := range b.allocations {
		if indexes[idx] {
			addrs = append(addrs, b.Addr(o))
		}
	}
	return addrs
}

// AttributesFor returns the handle and attributes addr was assigned with
func (b *AllocationBlock) AttributesFor(addr netip.Addr) (AllocationAttribute, error) {
	o, ok := b.ordinal(addr)
	if !ok || b.allocations[o] == free {
		return AllocationAttribute{}, &AddressNotAssignedError{Addr: addr.Unmap()}
	}
	attr := b.attributes[b.allocations[o]]
	attr.Secondary = maps.Clone(attr.Secondary)
	return attr, nil
}

// FreeCount is the number of unassigned addresses
func (b *AllocationBlock) FreeCount() int {
	return len(b.unallocated)
}

// IsEmpty reports whether no address in the block is assigned
func (b *AllocationBlock) IsEmpty() bool {
	return len(b.unallocated) == BlockSize
}

func (b *AllocationBlock) attributesOf(handleID string) map[int]bool {
	indexes := map[int]bool{}
	for i, attr := range b.attributes {
		if attr.HandleID == handleID {
			indexes[i] = true
		}
	}
	return indexes
}

func (b *AllocationBlock) findOrAddAttributes(handleID string, attrs map[string]string) int {
	for i, attr := range b.attributes {
		if attr.matches(handleID, attrs) {
			return i
		}
	}
	secondary := maps.Clone(attrs)
	if secondary == nil {
		secondary = map[string]string{}
	}
	b.attributes = append(b.attributes, AllocationAttribute{HandleID: handleID, Secondary: secondary})
	return len(b.attributes) - 1
}

func (b *AllocationBlock) refCounts() map[int]int {
	refs := map[int]int{}
	for _, idx := range b.allocations {
		if idx != free {
			refs[idx]++
		}
	}
	return refs
}

// free releases ordinals and drops the attributes in unused, renumbering
// the ones that remain
func (b *AllocationBlock) free(ordinals []int, unused map[int]bool) {
	if len(unused) > 0 {
		renumber := make([]int, len(b.attributes))
		kept := make([]AllocationAttribute, 0, len(b.attributes))
		for i, attr := range b.attributes {
			if unused[i] {
				renumber[i] = free
				continue
			}
			renumber[i] = len(kept)
			kept = append(kept, attr)
		}
		b.attributes = kept
		for o, idx := range b.allocations {
			if idx != free {
				b.allocations[o] = renumber[idx]
			}
		}
	}
	for _, o := range ordinals {
		b.allocations[o] = free
		b.unallocated = append(b.unallocated, o)
	}
}

type blockJSON struct {
	CIDR           string                `json:"cidr"`
	Affinity       string                `json:"affinity"`
	StrictAffinity bool                  `json:"strict_affinity"`
	Allocations    []*int                `json:"allocations"`
	Unallocated    []int                 `json:"unallocated"`
	Attributes     []AllocationAttribute `json:"attributes"`
}

func (b AllocationBlock) MarshalJSON() ([]byte, error) {
	out := blockJSON{
		CIDR:           b.CIDR.String(),
		StrictAffinity: b.StrictAffinity,
		Allocations:    make([]*int, BlockSize),
		Unallocated:    append([]int{}, b.unallocated...),
		Attributes:     append([]AllocationAttribute{}, b.attributes...),
	}
	if b.Affinity != "" {
		out.Affinity = hostAffinityPrefix + b.Affinity
	}
	for o, idx := range b.allocations {
		if idx != free {
			out.Allocations[o] = &idx
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a stored block and checks that its allocations,
// attributes and free list agree with each other. A missing free list is
// rebuilt from the allocations.
func (b *AllocationBlock) UnmarshalJSON(data []byte) error {
	var in blockJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	cidr, err := netip.ParsePrefix(in.CIDR)
	if err != nil {
		return invalid("block", in.CIDR, "not a valid network")
	}

	var host string
	if in.Affinity != "" {
		var ok bool
		host, ok = strings.CutPrefix(in.Affinity, hostAffinityPrefix)
		if !ok {
			return invalid("affinity", in.Affinity, "must be of the form %s<hostname>", hostAffinityPrefix)
		}
	}
	decoded, err := NewAllocationBlock(cidr, host, in.StrictAffinity)
	if err != nil {
		return err
	}

	if len(in.Allocations) != BlockSize {
		return invalid("allocations", len(in.Allocations), "must have %d entries", BlockSize)
	}
	used := make([]bool, len(in.Attributes))
	var unallocated []int
	for o, idx := range in.Allocations {
		if idx == nil {
			unallocated = append(unallocated, o)
			continue
		}
		if *idx < 0 || *idx >= len(in.Attributes) {
			return invalid("allocations", *idx, "no such attribute at ordinal %d", o)
		}
		decoded.allocations[o] = *idx
		used[*idx] = true
	}
	if i := slices.Index(used, false); i >= 0 {
		return invalid("attributes", i, "attribute is not referenced")
	}
	decoded.attributes = in.Attributes

	if in.Unallocated != nil {
		seen := map[int]bool{}
		for _, o := range in.Unallocated {
			if o < 0 || o >= BlockSize || decoded.allocations[o] != free || seen[o] {
				return invalid("unallocated", o, "not a free ordinal")
			}
			seen[o] = true
		}
		if len(seen) != len(unallocated) {
			return invalid("unallocated", nil, "lists %d of %d free ordinals", len(seen), len(unallocated))
		}
		unallocated = in.Unallocated
	}
	decoded.unallocated = append([]int{}, unallocated...)

	*b = *decoded
	return nil
}

// ParseAllocationBlock decodes a stored block
func ParseAllocationBlock(data string) (*AllocationBlock, error) {
	var b AllocationBlock
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, fmt.Errorf("failed to decode allocation block: %w", err)
	}
	return &b, nil
}

func (b *AllocationBlock) JSON() (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
