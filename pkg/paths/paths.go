package paths

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// Roots of the two key namespaces
const (
	CalicoRoot = "/calico"
	V1Root     = "/calico/v1"
	BGPRoot    = "/calico/bgp/v1"
	IPAMRoot   = "/calico/ipam/v2"
)

// IPVersion selects the v4 or v6 variant of a versioned key
type IPVersion int

const (
	IPv4 IPVersion = 4
	IPv6 IPVersion = 6
)

// Versions lists every supported IP version in bootstrap order
var Versions = []IPVersion{IPv4, IPv6}

// VersionOf returns the IP version of addr
func VersionOf(addr netip.Addr) IPVersion {
	if addr.Is4() || addr.Is4In6() {
		return IPv4
	}
	return IPv6
}

func (v IPVersion) String() string {
	return strconv.Itoa(int(v))
}

// BitLen returns the address length of version v in bits
func (v IPVersion) BitLen() int {
	if v == IPv6 {
		return 128
	}
	return 32
}

// Global config

// Config is the key of a global configuration parameter
func Config(name string) string {
	return V1Root + "/config/" + name
}

// Ready is the key marking the datastore as initialised
func Ready() string {
	return V1Root + "/Ready"
}

// Hosts

func Hosts() string {
	return V1Root + "/host"
}

func Host(hostname string) string {
	return Hosts() + "/" + hostname
}

// HostBirdIP is the IPv4 address felix uses for the host
func HostBirdIP(hostname string) string {
	return Host(hostname) + "/bird_ip"
}

func HostConfigs(hostname string) string {
	return Host(hostname) + "/config"
}

func HostConfig(hostname, param string) string {
	return HostConfigs(hostname) + "/" + param
}

func HostWorkloads(hostname string) string {
	return Host(hostname) + "/workload"
}

func Orchestrator(hostname, orchestratorID string) string {
	return HostWorkloads(hostname) + "/" + orchestratorID
}

func Workload(hostname, orchestratorID, workloadID string) string {
	return Orchestrator(hostname, orchestratorID) + "/" + workloadID
}

func WorkloadEndpoints(hostname, orchestratorID, workloadID string) string {
	return Workload(hostname, orchestratorID, workloadID) + "/endpoint"
}

func Endpoint(hostname, orchestratorID, workloadID, endpointID string) string {
	return WorkloadEndpoints(hostname, orchestratorID, workloadID) + "/" + endpointID
}

// EndpointFilter narrows an endpoint search. Empty fields match anything.
type EndpointFilter struct {
	Hostname       string
	OrchestratorID string
	WorkloadID     string
	EndpointID     string
}

// EndpointScope returns the deepest key that contains every endpoint
// matching f. Identity components are consumed left to right and the walk
// stops at the first one that is unset, since a wildcard component cannot
// be expressed as a single subtree.
func EndpointScope(f EndpointFilter) string {
	if f.Hostname == "" {
		return Hosts()
	}
	if f.OrchestratorID == "" {
		return HostWorkloads(f.Hostname)
	}
	if f.WorkloadID == "" {
		return Orchestrator(f.Hostname, f.OrchestratorID)
	}
	if f.EndpointID == "" {
		return WorkloadEndpoints(f.Hostname, f.OrchestratorID, f.WorkloadID)
	}
	return Endpoint(f.Hostname, f.OrchestratorID, f.WorkloadID, f.EndpointID)
}

// Profiles and policy

func Profiles() string {
	return V1Root + "/policy/profile"
}

func Profile(name string) string {
	return Profiles() + "/" + name
}

func ProfileTags(name string) string {
	return Profile(name) + "/tags"
}

func ProfileRules(name string) string {
	return Profile(name) + "/rules"
}

func ProfileLabels(name string) string {
	return Profile(name) + "/labels"
}

func Tiers() string {
	return V1Root + "/policy/tier"
}

func Tier(tier string) string {
	return Tiers() + "/" + tier
}

func TierMetadata(tier string) string {
	return Tier(tier) + "/metadata"
}

func Policy(tier, policy string) string {
	return Tier(tier) + "/policy/" + policy
}

// IPAM

func IPPools(v IPVersion) string {
	return V1Root + "/ipam/v" + v.String() + "/pool"
}

// IPPool is the key of the pool holding cidr. The key is the masked network
// with the prefix separator replaced by a dash, e.g. 10.0.0.0-16.
func IPPool(cidr netip.Prefix) string {
	cidr = CanonicalPrefix(cidr)
	return IPPools(VersionOf(cidr.Addr())) + "/" + PoolKey(cidr)
}

// PoolKey is the dash encoded form of cidr used as the last key segment
func PoolKey(cidr netip.Prefix) string {
	return strings.Replace(CanonicalPrefix(cidr).String(), "/", "-", 1)
}

// CanonicalPrefix masks cidr and rewrites an IPv4-mapped IPv6 network as
// the IPv4 network it covers, e.g. ::ffff:10.0.0.0/104 becomes 10.0.0.0/8.
func CanonicalPrefix(cidr netip.Prefix) netip.Prefix {
	cidr = cidr.Masked()
	if addr := cidr.Addr(); addr.Is4In6() && cidr.Bits() >= 96 {
		return netip.PrefixFrom(addr.Unmap(), cidr.Bits()-96)
	}
	return cidr
}

// ParsePoolKey reverses PoolKey
func ParsePoolKey(key string) (netip.Prefix, error) {
	i := strings.LastIndex(key, "-")
	if i < 0 {
		return netip.Prefix{}, fmt.Errorf("malformed network key %q", key)
	}
	return netip.ParsePrefix(key[:i] + "/" + key[i+1:])
}

// IPAMConfig holds the global allocation settings
func IPAMConfig() string {
	return IPAMRoot + "/config"
}

func IPAMHosts() string {
	return IPAMRoot + "/host"
}

func IPAMHost(hostname string) string {
	return IPAMHosts() + "/" + hostname
}

// IPAMHostBlocks is the per-host block affinity directory
func IPAMHostBlocks(hostname string, v IPVersion) string {
	return IPAMHost(hostname) + "/ipv" + v.String() + "/block"
}

// IPAMHostBlock marks that hostname has affinity to block. The key holds
// no value; the block itself is authoritative.
func IPAMHostBlock(hostname string, block netip.Prefix) string {
	return IPAMHostBlocks(hostname, VersionOf(block.Addr())) + "/" + PoolKey(block)
}

// ParseIPAMHostBlock splits a key written by IPAMHostBlock
func ParseIPAMHostBlock(key string) (string, netip.Prefix, bool) {
	rest, ok := strings.CutPrefix(key, IPAMHosts()+"/")
	if !ok {
		return "", netip.Prefix{}, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[2] != "block" {
		return "", netip.Prefix{}, false
	}
	block, err := ParsePoolKey(parts[3])
	if err != nil {
		return "", netip.Prefix{}, false
	}
	return parts[0], block, true
}

func IPAMBlocks(v IPVersion) string {
	return IPAMRoot + "/assignment/ipv" + v.String() + "/block"
}

// IPAMBlock is the key of the allocation block for block
func IPAMBlock(block netip.Prefix) string {
	return IPAMBlocks(VersionOf(block.Addr())) + "/" + PoolKey(block)
}

func IPAMHandles() string {
	return IPAMRoot + "/handle"
}

func IPAMHandle(handleID string) string {
	return IPAMHandles() + "/" + handleID
}

// BGP

func BGPGlobal() string {
	return BGPRoot + "/global"
}

func BGPGlobalPeers(v IPVersion) string {
	return BGPGlobal() + "/peer_v" + v.String()
}

func BGPGlobalPeer(v IPVersion, ip string) string {
	return BGPGlobalPeers(v) + "/" + ip
}

func BGPDefaultAS() string {
	return BGPGlobal() + "/as_num"
}

func BGPNodeMesh() string {
	return BGPGlobal() + "/node_mesh"
}

func BGPHosts() string {
	return BGPRoot + "/host"
}

func BGPHost(hostname string) string {
	return BGPHosts() + "/" + hostname
}

func BGPHostIPv4(hostname string) string {
	return BGPHost(hostname) + "/ip_addr_v4"
}

func BGPHostIPv6(hostname string) string {
	return BGPHost(hostname) + "/ip_addr_v6"
}

// BGPHostIP returns the host address key for version v
func BGPHostIP(hostname string, v IPVersion) string {
	if v == IPv6 {
		return BGPHostIPv6(hostname)
	}
	return BGPHostIPv4(hostname)
}

func BGPHostAS(hostname string) string {
	return BGPHost(hostname) + "/as_num"
}

func BGPHostPeers(hostname string, v IPVersion) string {
	return BGPHost(hostname) + "/peer_v" + v.String()
}

func BGPHostPeer(hostname string, v IPVersion, ip string) string {
	return BGPHostPeers(hostname, v) + "/" + ip
}

// BGPPeers returns the global peer directory, or the peer directory of
// hostname when it is set.
func BGPPeers(v IPVersion, hostname string) string {
	if hostname == "" {
		return BGPGlobalPeers(v)
	}
	return BGPHostPeers(hostname, v)
}

// BGPPeer returns the key of one peer, globally or for hostname
func BGPPeer(v IPVersion, hostname, ip string) string {
	if hostname == "" {
		return BGPGlobalPeer(v, ip)
	}
	return BGPHostPeer(hostname, v, ip)
}
