package types

import (
	"fmt"
	"net/netip"
	"regexp"
	"slices"
	"strings"
)

// Net is an IP network. When parsed, a bare address is accepted as the
// single-host network containing it.
type Net struct {
	netip.Prefix
}

// ParseNet parses a CIDR or a bare address
func ParseNet(s string) (Net, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return Net{}, fmt.Errorf("invalid network %q: %w", s, err)
		}
		return HostNet(addr), nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return Net{}, fmt.Errorf("invalid network %q: %w", s, err)
	}
	return Net{p}, nil
}

// MustParseNet is ParseNet for literals
func MustParseNet(s string) Net {
	n, err := ParseNet(s)
	if err != nil {
		panic(err)
	}
	return n
}

// HostNet returns the /32 or /128 network holding only addr
func HostNet(addr netip.Addr) Net {
	return Net{netip.PrefixFrom(addr, addr.BitLen())}
}

func (n Net) MarshalText() ([]byte, error) {
	return []byte(n.Prefix.String()), nil
}

func (n *Net) UnmarshalText(b []byte) error {
	parsed, err := ParseNet(string(b))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

func (n Net) String() string {
	return n.Prefix.String()
}

// sortNets returns a sorted, deduplicated copy of nets. The result is never
// nil.
func sortNets(nets []Net) []Net {
	out := append([]Net{}, nets...)
	slices.SortFunc(out, func(a, b Net) int {
		if c := a.Addr().Compare(b.Addr()); c != 0 {
			return c
		}
		return a.Bits() - b.Bits()
	})
	return slices.Compact(out)
}

var validChars = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)

// ValidateCharacters reports whether s only uses the characters allowed in
// tags, profile names and labels: letters, digits, '_', '.' and '-'.
func ValidateCharacters(s string) bool {
	return validChars.MatchString(s)
}
