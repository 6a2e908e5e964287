package types

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// DefaultASNumber is the AS used by nodes that have none configured
const DefaultASNumber ASNumber = 64511

// ASNumber is a 4-byte BGP autonomous system number. It parses from asplain
// ("4200000000") or asdot ("64086.59904") notation and is always stored in
// asplain form as a JSON string.
type ASNumber uint32

// ParseASNumber parses an AS number in asplain or asdot notation
func ParseASNumber(s string) (ASNumber, error) {
	s = strings.TrimSpace(s)
	if hi, lo, ok := strings.Cut(s, "."); ok {
		h, err := strconv.ParseUint(hi, 10, 16)
		if err != nil {
			return 0, invalid("as_num", s, "asdot parts must be between 0 and 65535")
		}
		l, err := strconv.ParseUint(lo, 10, 16)
		if err != nil {
			return 0, invalid("as_num", s, "asdot parts must be between 0 and 65535")
		}
		return ASNumber(h<<16 | l), nil
	}

	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, invalid("as_num", s, "must be between 0 and 4294967295")
	}
	return ASNumber(n), nil
}

func (a ASNumber) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

func (a ASNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts the AS as a string or a bare number
func (a *ASNumber) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return invalid("as_num", string(data), "expected a string or number")
		}
		s = n.String()
	}
	parsed, err := ParseASNumber(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// BGPPeer is a BGP speaker burrow nodes peer with, globally or from a single
// host
type BGPPeer struct {
	IP       netip.Addr `json:"ip"`
	ASNumber ASNumber   `json:"as_num"`
}

// NewBGPPeer parses ip and as and returns the peer
func NewBGPPeer(ip, as string) (*BGPPeer, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return nil, invalid("ip", ip, "not an IP address")
	}
	asn, err := ParseASNumber(as)
	if err != nil {
		return nil, err
	}
	return &BGPPeer{IP: addr.Unmap(), ASNumber: asn}, nil
}

// ParseBGPPeer decodes a stored peer
func ParseBGPPeer(data string) (*BGPPeer, error) {
	var peer BGPPeer
	if err := json.Unmarshal([]byte(data), &peer); err != nil {
		return nil, fmt.Errorf("failed to decode BGP peer: %w", err)
	}
	if !peer.IP.IsValid() {
		return nil, invalid("ip", nil, "missing")
	}
	return &peer, nil
}

func (p *BGPPeer) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Equal compares the normalized address and AS number
func (p *BGPPeer) Equal(other *BGPPeer) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.IP.Unmap() == other.IP.Unmap() && p.ASNumber == other.ASNumber
}

func (p *BGPPeer) Copy() *BGPPeer {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func (p *BGPPeer) String() string {
	return fmt.Sprintf("%s AS %s", p.IP, p.ASNumber)
}

// NodeMesh is the stored form of the BGP full mesh toggle
type NodeMesh struct {
	Enabled bool `json:"enabled"`
}
