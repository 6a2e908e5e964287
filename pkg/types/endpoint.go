package types

import (
	"encoding/json"
	"fmt"
	"maps"
	"net"
	"net/netip"
	"slices"
	"strings"

	"github.com/cuemby/burrow/pkg/paths"
)

const (
	// DefaultInterfacePrefix names host side veths when the datastore has
	// no InterfacePrefix configured
	DefaultInterfacePrefix = "cali"

	maxInterfacePrefix = 4
	endpointIDChars    = 11

	EndpointStateActive = "active"
)

// EndpointKey is the identity of an endpoint and the components of its
// store key
type EndpointKey struct {
	Hostname       string
	OrchestratorID string
	WorkloadID     string
	EndpointID     string
}

// ParseEndpointKey extracts the identity from an endpoint store key
func ParseEndpointKey(key string) (EndpointKey, bool) {
	caps, ok := paths.EndpointTemplate.Match(key)
	if !ok {
		return EndpointKey{}, false
	}
	return EndpointKey{
		Hostname:       caps["hostname"],
		OrchestratorID: caps["orchestrator"],
		WorkloadID:     caps["workload"],
		EndpointID:     caps["endpoint"],
	}, true
}

// Path is the store key of the endpoint
func (k EndpointKey) Path() string {
	return paths.Endpoint(k.Hostname, k.OrchestratorID, k.WorkloadID, k.EndpointID)
}

// Matches reports whether every component set in f equals the key's
func (k EndpointKey) Matches(f paths.EndpointFilter) bool {
	return matchField(f.Hostname, k.Hostname) &&
		matchField(f.OrchestratorID, k.OrchestratorID) &&
		matchField(f.WorkloadID, k.WorkloadID) &&
		matchField(f.EndpointID, k.EndpointID)
}

func matchField(want, got string) bool {
	return want == "" || want == got
}

func (k EndpointKey) Validate() error {
	for _, c := range []struct{ field, value string }{
		{"hostname", k.Hostname},
		{"orchestrator_id", k.OrchestratorID},
		{"workload_id", k.WorkloadID},
		{"endpoint_id", k.EndpointID},
	} {
		if c.value == "" {
			return invalid(c.field, nil, "must not be empty")
		}
		if strings.Contains(c.value, "/") {
			return invalid(c.field, c.value, "must not contain '/'")
		}
	}
	return nil
}

// Endpoint is a container network interface: where it lives, its MAC and
// addresses, and the profiles it is a member of.
type Endpoint struct {
	EndpointKey

	State      string
	Name       string
	MAC        string
	ProfileIDs []string
	Labels     map[string]string
	IPv4Nets   []Net
	IPv6Nets   []Net
}

// InterfaceName derives the host side interface name of an endpoint
func InterfaceName(prefix, endpointID string) (string, error) {
	if len(prefix) > maxInterfacePrefix {
		return "", invalid("interface prefix", prefix, "must be at most %d characters", maxInterfacePrefix)
	}
	id := endpointID
	if len(id) > endpointIDChars {
		id = id[:endpointIDChars]
	}
	return prefix + id, nil
}

// NewEndpoint validates key and returns an endpoint with its interface name
// derived from prefix and the endpoint id
func NewEndpoint(key EndpointKey, state, mac, prefix string) (*Endpoint, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	name, err := InterfaceName(prefix, key.EndpointID)
	if err != nil {
		return nil, err
	}
	ep := &Endpoint{
		EndpointKey: key,
		State:       state,
		Name:        name,
		MAC:         mac,
		ProfileIDs:  []string{},
		Labels:      map[string]string{},
		IPv4Nets:    []Net{},
		IPv6Nets:    []Net{},
	}
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	return ep, nil
}

// Validate checks the fields that carry structure
func (ep *Endpoint) Validate() error {
	if ep.MAC != "" {
		if _, err := net.ParseMAC(ep.MAC); err != nil {
			return invalid("mac", ep.MAC, "not a MAC address")
		}
	}
	for _, n := range ep.IPv4Nets {
		if !n.Addr().Is4() {
			return invalid("ipv4_nets", n.String(), "not an IPv4 network")
		}
		if !n.IsSingleIP() {
			return invalid("ipv4_nets", n.String(), "must be a single address")
		}
	}
	for _, n := range ep.IPv6Nets {
		if !n.Addr().Is6() || n.Addr().Is4In6() {
			return invalid("ipv6_nets", n.String(), "not an IPv6 network")
		}
		if !n.IsSingleIP() {
			return invalid("ipv6_nets", n.String(), "must be a single address")
		}
	}
	return nil
}

// AddAddress places addr into IPv4Nets or IPv6Nets by family
func (ep *Endpoint) AddAddress(addr netip.Addr) {
	addr = addr.Unmap()
	if addr.Is4() {
		ep.IPv4Nets = sortNets(append(ep.IPv4Nets, HostNet(addr)))
		return
	}
	ep.IPv6Nets = sortNets(append(ep.IPv6Nets, HostNet(addr)))
}

// RemoveAddress drops addr from the endpoint nets and reports whether it
// was present
func (ep *Endpoint) RemoveAddress(addr netip.Addr) bool {
	target := HostNet(addr.Unmap())
	nets := &ep.IPv6Nets
	if target.Addr().Is4() {
		nets = &ep.IPv4Nets
	}
	before := len(*nets)
	*nets = slices.DeleteFunc(*nets, func(n Net) bool { return n == target })
	return len(*nets) != before
}

// AddProfiles appends ids in order. Nothing is changed if any id is already
// a member or repeated in ids.
func (ep *Endpoint) AddProfiles(ids ...string) error {
	var dup []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if slices.Contains(ep.ProfileIDs, id) || seen[id] {
			dup = append(dup, id)
		}
		seen[id] = true
	}
	if len(dup) > 0 {
		return &ProfileAlreadyInEndpointError{ProfileIDs: dup}
	}
	ep.ProfileIDs = append(ep.ProfileIDs, ids...)
	return nil
}

// RemoveProfiles removes ids. Nothing is changed if any id is not a member.
func (ep *Endpoint) RemoveProfiles(ids ...string) error {
	var missing []string
	for _, id := range ids {
		if !slices.Contains(ep.ProfileIDs, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &ProfileNotInEndpointError{ProfileIDs: missing}
	}
	ep.ProfileIDs = slices.DeleteFunc(ep.ProfileIDs, func(id string) bool {
		return slices.Contains(ids, id)
	})
	return nil
}

// SetProfiles replaces the profile list. Repeated ids are dropped, keeping
// the first occurrence.
func (ep *Endpoint) SetProfiles(ids ...string) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	ep.ProfileIDs = out
}

type endpointJSON struct {
	State      string            `json:"state"`
	Name       string            `json:"name"`
	MAC        *string           `json:"mac"`
	ProfileIDs []string          `json:"profile_ids"`
	Labels     map[string]string `json:"labels"`
	IPv4Nets   []Net             `json:"ipv4_nets"`
	IPv6Nets   []Net             `json:"ipv6_nets"`

	// Written by older releases that allowed a single profile
	ProfileID *string `json:"profile_id,omitempty"`
}

// MarshalJSON emits the stored form. Networks are sorted so equal endpoints
// encode identically.
func (ep Endpoint) MarshalJSON() ([]byte, error) {
	out := endpointJSON{
		State:      ep.State,
		Name:       ep.Name,
		ProfileIDs: ep.ProfileIDs,
		Labels:     ep.Labels,
		IPv4Nets:   sortNets(ep.IPv4Nets),
		IPv6Nets:   sortNets(ep.IPv6Nets),
	}
	if ep.MAC != "" {
		out.MAC = &ep.MAC
	}
	if out.ProfileIDs == nil {
		out.ProfileIDs = []string{}
	}
	if out.Labels == nil {
		out.Labels = map[string]string{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the stored form. The endpoint key is not part of
// the value; ParseEndpoint fills it in from the store key.
func (ep *Endpoint) UnmarshalJSON(data []byte) error {
	var in endpointJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	decoded := Endpoint{
		EndpointKey: ep.EndpointKey,
		State:       in.State,
		Name:        in.Name,
		ProfileIDs:  in.ProfileIDs,
		Labels:      in.Labels,
		IPv4Nets:    sortNets(in.IPv4Nets),
		IPv6Nets:    sortNets(in.IPv6Nets),
	}
	if in.MAC != nil {
		decoded.MAC = *in.MAC
	}
	if decoded.ProfileIDs == nil {
		decoded.ProfileIDs = []string{}
		if in.ProfileID != nil && *in.ProfileID != "" {
			decoded.ProfileIDs = []string{*in.ProfileID}
		}
	}
	if decoded.Labels == nil {
		decoded.Labels = map[string]string{}
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*ep = decoded
	return nil
}

// JSON returns the canonical stored form
func (ep *Endpoint) JSON() (string, error) {
	data, err := json.Marshal(ep)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseEndpoint decodes the value stored at key
func ParseEndpoint(key, data string) (*Endpoint, error) {
	k, ok := ParseEndpointKey(key)
	if !ok {
		return nil, fmt.Errorf("%s is not an endpoint key", key)
	}
	ep := &Endpoint{EndpointKey: k}
	if err := json.Unmarshal([]byte(data), ep); err != nil {
		return nil, fmt.Errorf("failed to decode endpoint %s: %w", key, err)
	}
	return ep, nil
}

func (ep *Endpoint) Equal(other *Endpoint) bool {
	if ep == nil || other == nil {
		return ep == other
	}
	return ep.EndpointKey == other.EndpointKey &&
		ep.State == other.State &&
		ep.Name == other.Name &&
		ep.MAC == other.MAC &&
		slices.Equal(ep.ProfileIDs, other.ProfileIDs) &&
		maps.Equal(ep.Labels, other.Labels) &&
		slices.Equal(sortNets(ep.IPv4Nets), sortNets(other.IPv4Nets)) &&
		slices.Equal(sortNets(ep.IPv6Nets), sortNets(other.IPv6Nets))
}

func (ep *Endpoint) Copy() *Endpoint {
	if ep == nil {
		return nil
	}
	c := *ep
	c.ProfileIDs = slices.Clone(ep.ProfileIDs)
	c.Labels = maps.Clone(ep.Labels)
	c.IPv4Nets = slices.Clone(ep.IPv4Nets)
	c.IPv6Nets = slices.Clone(ep.IPv6Nets)
	return &c
}
