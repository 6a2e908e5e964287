package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const maxPort = 65535

// Port is a single port or an inclusive range of ports. A single port has
// Min == Max; a range always has Min < Max.
type Port struct {
	Min uint16
	Max uint16
}

// SinglePort returns the port p
func SinglePort(p uint16) Port {
	return Port{Min: p, Max: p}
}

// NewPortRange validates and returns the range lo:hi
func NewPortRange(lo, hi int) (Port, error) {
	if err := checkPortNumber(lo); err != nil {
		return Port{}, err
	}
	if err := checkPortNumber(hi); err != nil {
		return Port{}, err
	}
	if lo >= hi {
		return Port{}, invalid("port range", fmt.Sprintf("%d:%d", lo, hi), "lower bound must be below upper bound")
	}
	return Port{Min: uint16(lo), Max: uint16(hi)}, nil
}

// ParsePort parses "80" or "100:200"
func ParsePort(s string) (Port, error) {
	s = strings.TrimSpace(s)
	if lo, hi, ok := strings.Cut(s, ":"); ok {
		if strings.Contains(hi, ":") {
			return Port{}, invalid("port range", s, "expected lo:hi")
		}
		l, err := parsePortNumber(lo)
		if err != nil {
			return Port{}, err
		}
		h, err := parsePortNumber(hi)
		if err != nil {
			return Port{}, err
		}
		return NewPortRange(l, h)
	}

	n, err := parsePortNumber(s)
	if err != nil {
		return Port{}, err
	}
	return SinglePort(uint16(n)), nil
}

// ParsePortList parses a comma separated list such as "80,443,8000:8080"
func ParsePortList(s string) ([]Port, error) {
	var ports []Port
	for _, part := range strings.Split(s, ",") {
		p, err := ParsePort(part)
		if err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func parsePortNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, invalid("port", s, "not a number")
	}
	return n, checkPortNumber(n)
}

func checkPortNumber(n int) error {
	if n < 0 || n > maxPort {
		return invalid("port", n, "must be between 0 and %d", maxPort)
	}
	return nil
}

// IsRange reports whether p covers more than one port
func (p Port) IsRange() bool {
	return p.Min != p.Max
}

func (p Port) Validate() error {
	if p.Min > p.Max {
		return invalid("port range", fmt.Sprintf("%d:%d", p.Min, p.Max), "lower bound must be below upper bound")
	}
	return nil
}

func (p Port) String() string {
	if p.IsRange() {
		return fmt.Sprintf("%d:%d", p.Min, p.Max)
	}
	return strconv.Itoa(int(p.Min))
}

// MarshalJSON encodes a single port as a number and a range as "lo:hi"
func (p Port) MarshalJSON() ([]byte, error) {
	if p.IsRange() {
		return json.Marshal(p.String())
	}
	return []byte(strconv.Itoa(int(p.Min))), nil
}

// UnmarshalJSON accepts a number, a numeric string or a "lo:hi" string
func (p *Port) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParsePort(s)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return invalid("port", string(data), "expected a number or lo:hi")
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return invalid("port", n.String(), "not an integer")
	}
	if err := checkPortNumber(v); err != nil {
		return err
	}
	*p = SinglePort(uint16(v))
	return nil
}

func joinPorts(ports []Port) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}
