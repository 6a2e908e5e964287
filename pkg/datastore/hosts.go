package datastore

import (
	"context"
	"net/netip"
	"slices"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
)

// Per-host config parameters written by CreateHost
const (
	HostConfigEndpointToHostAction = "DefaultEndpointToHostAction"
	HostConfigMarker               = "marker"
)

// HostSpec describes a host joining the fabric
type HostSpec struct {
	Hostname string
	IPv4     netip.Addr
	// IPv6 is optional
	IPv6 netip.Addr
	// AS overrides the default node AS for this host when set
	AS *types.ASNumber
}

// HostData is the BGP view of one host
type HostData struct {
	ASNumber string           `json:"as_num" yaml:"as_num"`
	IPv4     string           `json:"ip_addr_v4" yaml:"ip_addr_v4"`
	IPv6     string           `json:"ip_addr_v6" yaml:"ip_addr_v6"`
	PeersV4  []*types.BGPPeer `json:"peer_v4" yaml:"peer_v4"`
	PeersV6  []*types.BGPPeer `json:"peer_v6" yaml:"peer_v6"`
}

func addrString(addr netip.Addr) string {
	if !addr.IsValid() {
		return ""
	}
	return addr.String()
}

// CreateHost registers a host. Addresses and config markers are
// overwritten; the workload directory is only created when missing so
// existing endpoints survive a re-registration.
func (c *Client) CreateHost(ctx context.Context, spec HostSpec) (err error) {
	defer c.finish("create_host", metrics.NewTimer(), &err)

	if !types.ValidateCharacters(spec.Hostname) {
		return &types.ValidationError{Field: "hostname", Value: spec.Hostname, Reason: "only letters, digits, '_', '.' and '-' are allowed"}
	}
	if !spec.IPv4.Is4() {
		return &types.ValidationError{Field: "ipv4", Value: spec.IPv4, Reason: "an IPv4 address is required"}
	}
	if spec.IPv6.IsValid() && !spec.IPv6.Is6() {
		return &types.ValidationError{Field: "ipv6", Value: spec.IPv6, Reason: "not an IPv6 address"}
	}

	h := spec.Hostname
	ipv4 := spec.IPv4.String()
	for _, kv := range []configDefault{
		{paths.HostBirdIP(h), ipv4},
		{paths.BGPHostIPv4(h), ipv4},
		{paths.BGPHostIPv6(h), addrString(spec.IPv6)},
	} {
		if err := c.write(ctx, kv.key, kv.value); err != nil {
			return err
		}
	}

	workloads := paths.HostWorkloads(h)
	if _, err := c.read(ctx, workloads, false); err != nil {
		if !storage.IsKeyNotFound(err) {
			return err
		}
		if err := c.writeDir(ctx, workloads); err != nil {
			return err
		}
	}

	if spec.AS == nil {
		if err := ignoreNotFound(c.remove(ctx, paths.BGPHostAS(h))); err != nil {
			return err
		}
	} else if err := c.write(ctx, paths.BGPHostAS(h), spec.AS.String()); err != nil {
		return err
	}

	if err := c.write(ctx, paths.HostConfig(h, HostConfigEndpointToHostAction), "RETURN"); err != nil {
		return err
	}
	if err := c.write(ctx, paths.HostConfig(h, HostConfigMarker), "created"); err != nil {
		return err
	}

	c.logger().Info().Str("hostname", h).Msg("Host created")
	return nil
}

// RemoveHost deletes everything stored for hostname. Removing a host that
// does not exist succeeds.
func (c *Client) RemoveHost(ctx context.Context, hostname string) (err error) {
	defer c.finish("remove_host", metrics.NewTimer(), &err)

	for _, key := range []string{paths.BGPHost(hostname), paths.Host(hostname)} {
		if err := ignoreNotFound(c.removeTree(ctx, key)); err != nil {
			return err
		}
	}
	c.logger().Info().Str("hostname", hostname).Msg("Host removed")
	return nil
}

// GetPerHostConfig returns a raw per-host config value. The second result
// is false when the parameter is unset.
func (c *Client) GetPerHostConfig(ctx context.Context, hostname, param string) (value string, ok bool, err error) {
	defer c.finish("get_per_host_config", metrics.NewTimer(), &err)

	value, err = c.readValue(ctx, paths.HostConfig(hostname, param))
	if storage.IsKeyNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetPerHostConfig writes a raw per-host config value
func (c *Client) SetPerHostConfig(ctx context.Context, hostname, param, value string) (err error) {
	defer c.finish("set_per_host_config", metrics.NewTimer(), &err)
	return c.write(ctx, paths.HostConfig(hostname, param), value)
}

// RemovePerHostConfig deletes a per-host config value. An unset
// parameter is not an error.
func (c *Client) RemovePerHostConfig(ctx context.Context, hostname, param string) (err error) {
	defer c.finish("remove_per_host_config", metrics.NewTimer(), &err)
	return ignoreNotFound(c.remove(ctx, paths.HostConfig(hostname, param)))
}

// GetHostBGPIPs returns the BGP addresses of hostname as stored. The IPv6
// address is empty for v4 only hosts.
func (c *Client) GetHostBGPIPs(ctx context.Context, hostname string) (ipv4, ipv6 string, err error) {
	defer c.finish("get_host_bgp_ips", metrics.NewTimer(), &err)

	ipv4, err = c.readValue(ctx, paths.BGPHostIPv4(hostname))
	if err == nil {
		ipv6, err = c.readValue(ctx, paths.BGPHostIPv6(hostname))
	}
	if storage.IsKeyNotFound(err) {
		return "", "", notFound("BGP configuration for host", hostname)
	}
	if err != nil {
		return "", "", err
	}
	return ipv4, ipv6, nil
}

// GetHostAS returns the AS number configured for hostname, or nil when
// the host inherits the default node AS.
func (c *Client) GetHostAS(ctx context.Context, hostname string) (as *types.ASNumber, err error) {
	defer c.finish("get_host_as", metrics.NewTimer(), &err)

	value, err := c.readValue(ctx, paths.BGPHostAS(hostname))
	if storage.IsKeyNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	parsed, err := types.ParseASNumber(value)
	if err != nil {
		return nil, corrupt(paths.BGPHostAS(hostname), err)
	}
	return &parsed, nil
}

// GetHostsData returns the BGP view of every host keyed by hostname. Keys
// under the BGP host tree that match no known shape are ignored.
func (c *Client) GetHostsData(ctx context.Context) (hosts map[string]*HostData, err error) {
	defer c.finish("get_hosts_data", metrics.NewTimer(), &err)

	leaves, err := c.scanLeaves(ctx, paths.BGPHosts())
	if err != nil {
		return nil, err
	}

	hosts = make(map[string]*HostData)
	host := func(name string) *HostData {
		if hd, ok := hosts[name]; ok {
			return hd
		}
		hd := &HostData{PeersV4: []*types.BGPPeer{}, PeersV6: []*types.BGPPeer{}}
		hosts[name] = hd
		return hd
	}

	for _, leaf := range leaves {
		if caps, ok := paths.BGPHostIPv4Template.Match(leaf.Key); ok {
			host(caps["hostname"]).IPv4 = leaf.Value
		} else if caps, ok := paths.BGPHostIPv6Template.Match(leaf.Key); ok {
			host(caps["hostname"]).IPv6 = leaf.Value
		} else if caps, ok := paths.BGPHostASTemplate.Match(leaf.Key); ok {
			host(caps["hostname"]).ASNumber = leaf.Value
		} else if caps, ok := paths.BGPHostPeerV4Template.Match(leaf.Key); ok {
			peer, err := types.ParseBGPPeer(leaf.Value)
			if err != nil {
				return nil, corrupt(leaf.Key, err)
			}
			hd := host(caps["hostname"])
			hd.PeersV4 = append(hd.PeersV4, peer)
		} else if caps, ok := paths.BGPHostPeerV6Template.Match(leaf.Key); ok {
			peer, err := types.ParseBGPPeer(leaf.Value)
			if err != nil {
				return nil, corrupt(leaf.Key, err)
			}
			hd := host(caps["hostname"])
			hd.PeersV6 = append(hd.PeersV6, peer)
		}
	}
	return hosts, nil
}

// GetHostnamesFromIPs maps each of ips that is the BGP address of some
// host to that host's name. Addresses no host owns are left out.
func (c *Client) GetHostnamesFromIPs(ctx context.Context, ips []string) (owners map[string]string, err error) {
	defer c.finish("get_hostnames_from_ips", metrics.NewTimer(), &err)

	node, err := c.read(ctx, paths.BGPHosts(), true)
	if storage.IsKeyNotFound(err) {
		return nil, notFound("BGP host configuration", "for any host")
	}
	if err != nil {
		return nil, err
	}

	owners = make(map[string]string)
	for _, leaf := range values(node.Leaves()) {
		if !slices.Contains(ips, leaf.Value) {
			continue
		}
		for _, tmpl := range []*paths.Template{paths.BGPHostIPv4Template, paths.BGPHostIPv6Template} {
			if caps, ok := tmpl.Match(leaf.Key); ok {
				owners[leaf.Value] = caps["hostname"]
			}
		}
	}
	return owners, nil
}
