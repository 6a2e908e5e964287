package types

import (
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/cuemby/burrow/pkg/paths"
)

// Interface programmed for IP-in-IP pools
const IPIPInterface = "tunl0"


// IPPool is an address block declared for use by the fabric. An IPAM pool
// is carved into per-host blocks; other pools are only declared so traffic
// from them is routed and, optionally, masqueraded.
type IPPool struct {
	CIDR       netip.Prefix
	IPIP       bool
	Masquerade bool
	IPAM       bool
	Disabled   bool
}

// PoolOption customizes NewIPPool
type PoolOption func(*IPPool)

// WithIPIP enables IP-in-IP encapsulation for traffic from the pool
func WithIPIP() PoolOption {
	return func(p *IPPool) { p.IPIP = true }
}

// WithMasquerade enables outgoing NAT for traffic from the pool
func WithMasquerade() PoolOption {
	return func(p *IPPool) { p.Masquerade = true }
}

// WithoutIPAM declares the pool without allocating addresses from it
func WithoutIPAM() PoolOption {
	return func(p *IPPool) { p.IPAM = false }
}

// WithDisabled keeps the pool configured but excludes it from allocation
func WithDisabled() PoolOption {
	return func(p *IPPool) { p.Disabled = true }
}

// NewIPPool returns a validated pool for the network containing cidr. An
// IPv4-mapped cidr is stored as plain IPv4. IPAM is on unless WithoutIPAM
// is given.
func NewIPPool(cidr netip.Prefix, opts ...PoolOption) (*IPPool, error) {
	pool := &IPPool{CIDR: paths.CanonicalPrefix(cidr), IPAM: true}
	for _, opt := range opts {
		opt(pool)
	}
	if err := pool.Validate(); err != nil {
		return nil, err
	}
	return pool, nil
}

// Validate checks that an IPAM pool can hold at least one block
func (p *IPPool) Validate() error {
	if !p.CIDR.IsValid() {
		return invalid("cidr", nil, "not a valid network")
	}
	if !p.IPAM {
		return nil
	}
	return ValidateBlockRange(p.CIDR)
}

// Version is the IP version of the pool
func (p *IPPool) Version() paths.IPVersion {
	return paths.VersionOf(p.CIDR.Addr())
}

// Contains reports whether addr is inside the pool
func (p *IPPool) Contains(addr netip.Addr) bool {
	return p.CIDR.Contains(addr.Unmap())
}

// ContainsPrefix reports whether all of other is inside the pool
func (p *IPPool) ContainsPrefix(other netip.Prefix) bool {
	other = paths.CanonicalPrefix(other)
	return other.Bits() >= p.CIDR.Bits() && p.CIDR.Contains(other.Addr())
}

type ipPoolJSON struct {
	CIDR       string `json:"cidr"`
	IPIP       string `json:"ipip,omitempty"`
	Masquerade bool   `json:"masquerade,omitempty"`
	IPAM       *bool  `json:"ipam,omitempty"`
	Disabled   bool   `json:"disabled,omitempty"`
}

// MarshalJSON writes only the flags that differ from their defaults
func (p IPPool) MarshalJSON() ([]byte, error) {
	out := ipPoolJSON{
		CIDR:       p.CIDR.Masked().String(),
		Masquerade: p.Masquerade,
		Disabled:   p.Disabled,
	}
	if p.IPIP {
		out.IPIP = IPIPInterface
	}
	if !p.IPAM {
		off := false
		out.IPAM = &off
	}
	return json.Marshal(out)
}

func (p *IPPool) UnmarshalJSON(data []byte) error {
	var in ipPoolJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	cidr, err := ParseNet(in.CIDR)
	if err != nil {
		return invalid("cidr", in.CIDR, "not a valid network")
	}
	decoded := IPPool{
		CIDR:       paths.CanonicalPrefix(cidr.Prefix),
		IPIP:       in.IPIP != "",
		Masquerade: in.Masquerade,
		IPAM:       in.IPAM == nil || *in.IPAM,
		Disabled:   in.Disabled,
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*p = decoded
	return nil
}

// ParseIPPool decodes a stored pool
func ParseIPPool(data string) (*IPPool, error) {
	var pool IPPool
	if err := json.Unmarshal([]byte(data), &pool); err != nil {
		return nil, fmt.Errorf("failed to decode IP pool: %w", err)
	}
	return &pool, nil
}

func (p *IPPool) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *IPPool) Equal(other *IPPool) bool {
	if p == nil || other == nil {
		return p == other
	}
	return *p == *other
}

func (p *IPPool) Copy() *IPPool {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func (p *IPPool) String() string {
	return p.CIDR.String()
}
