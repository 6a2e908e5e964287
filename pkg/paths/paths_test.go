package paths

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySchema(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"config", Config("InterfacePrefix"), "/calico/v1/config/InterfacePrefix"},
		{"ready", Ready(), "/calico/v1/Ready"},
		{"bird ip", HostBirdIP("h1"), "/calico/v1/host/h1/bird_ip"},
		{"host config", HostConfig("h1", "marker"), "/calico/v1/host/h1/config/marker"},
		{"workloads", HostWorkloads("h1"), "/calico/v1/host/h1/workload"},
		{"endpoint", Endpoint("h1", "docker", "w1", "e1"), "/calico/v1/host/h1/workload/docker/w1/endpoint/e1"},
		{"profile tags", ProfileTags("web"), "/calico/v1/policy/profile/web/tags"},
		{"profile rules", ProfileRules("web"), "/calico/v1/policy/profile/web/rules"},
		{"tier metadata", TierMetadata("t1"), "/calico/v1/policy/tier/t1/metadata"},
		{"policy", Policy("t1", "p1"), "/calico/v1/policy/tier/t1/policy/p1"},
		{"v4 pools", IPPools(IPv4), "/calico/v1/ipam/v4/pool"},
		{"v6 pools", IPPools(IPv6), "/calico/v1/ipam/v6/pool"},
		{"ipam host blocks", IPAMHostBlocks("h1", IPv6), "/calico/ipam/v2/host/h1/ipv6/block"},
		{"ipam host block", IPAMHostBlock("h1", netip.MustParsePrefix("10.1.2.64/26")), "/calico/ipam/v2/host/h1/ipv4/block/10.1.2.64-26"},
		{"ipam block", IPAMBlock(netip.MustParsePrefix("fd80::40/122")), "/calico/ipam/v2/assignment/ipv6/block/fd80::40-122"},
		{"ipam handle", IPAMHandle("h-1"), "/calico/ipam/v2/handle/h-1"},
		{"ipam config", IPAMConfig(), "/calico/ipam/v2/config"},
		{"global peer", BGPGlobalPeer(IPv4, "1.2.3.4"), "/calico/bgp/v1/global/peer_v4/1.2.3.4"},
		{"default as", BGPDefaultAS(), "/calico/bgp/v1/global/as_num"},
		{"node mesh", BGPNodeMesh(), "/calico/bgp/v1/global/node_mesh"},
		{"host ipv4", BGPHostIPv4("h1"), "/calico/bgp/v1/host/h1/ip_addr_v4"},
		{"host ipv6", BGPHostIP("h1", IPv6), "/calico/bgp/v1/host/h1/ip_addr_v6"},
		{"host as", BGPHostAS("h1"), "/calico/bgp/v1/host/h1/as_num"},
		{"host peer", BGPHostPeer("h1", IPv6, "fd00::1"), "/calico/bgp/v1/host/h1/peer_v6/fd00::1"},
		{"peers global", BGPPeers(IPv4, ""), "/calico/bgp/v1/global/peer_v4"},
		{"peers host", BGPPeers(IPv4, "h1"), "/calico/bgp/v1/host/h1/peer_v4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestIPPoolKey(t *testing.T) {
	assert.Equal(t, "/calico/v1/ipam/v4/pool/10.1.0.0-16", IPPool(netip.MustParsePrefix("10.1.2.3/16")))
	assert.Equal(t, "/calico/v1/ipam/v6/pool/fd80::-112", IPPool(netip.MustParsePrefix("fd80::1/112")))
	assert.Equal(t, "192.168.0.0-24", PoolKey(netip.MustParsePrefix("192.168.0.0/24")))
}

func TestIPVersion(t *testing.T) {
	assert.Equal(t, IPv4, VersionOf(netip.MustParseAddr("::ffff:10.0.0.1")))
	assert.Equal(t, IPv6, VersionOf(netip.MustParseAddr("fd80::1")))
	assert.Equal(t, 32, IPv4.BitLen())
	assert.Equal(t, 128, IPv6.BitLen())
}

func TestParseIPAMHostBlock(t *testing.T) {
	tests := []struct {
		key   string
		host  string
		block string
		ok    bool
	}{
		{"/calico/ipam/v2/host/h1/ipv4/block/10.1.2.64-26", "h1", "10.1.2.64/26", true},
		{"/calico/ipam/v2/host/node-a/ipv6/block/fd80::40-122", "node-a", "fd80::40/122", true},
		{"/calico/ipam/v2/host/h1/ipv4/block", "", "", false},
		{"/calico/ipam/v2/host/h1/ipv4/other/10.1.2.64-26", "", "", false},
		{"/calico/ipam/v2/host/h1/ipv4/block/10.1.2.64", "", "", false},
		{"/calico/v1/host/h1/ipv4/block/10.1.2.64-26", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			host, block, ok := ParseIPAMHostBlock(tt.key)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.host, host)
			assert.Equal(t, netip.MustParsePrefix(tt.block), block)
		})
	}
}

func TestCanonicalPrefix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10.1.2.3/16", "10.1.0.0/16"},
		{"::ffff:10.0.0.0/104", "10.0.0.0/8"},
		{"::ffff:192.168.1.0/120", "192.168.1.0/24"},
		{"fd00::1/64", "fd00::/64"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalPrefix(netip.MustParsePrefix(tt.in)).String(), tt.in)
	}

	mapped := netip.MustParsePrefix("::ffff:192.168.0.0/112")
	assert.Equal(t, "/calico/v1/ipam/v4/pool/192.168.0.0-16", IPPool(mapped))
	assert.Equal(t, "192.168.0.0-16", PoolKey(mapped))
}

func TestEndpointScope(t *testing.T) {
	tests := []struct {
		name   string
		filter EndpointFilter
		want   string
	}{
		{"everything", EndpointFilter{}, "/calico/v1/host"},
		{"host", EndpointFilter{Hostname: "h1"}, "/calico/v1/host/h1/workload"},
		{"orchestrator", EndpointFilter{Hostname: "h1", OrchestratorID: "docker"}, "/calico/v1/host/h1/workload/docker"},
		{"workload", EndpointFilter{Hostname: "h1", OrchestratorID: "docker", WorkloadID: "w1"}, "/calico/v1/host/h1/workload/docker/w1/endpoint"},
		{"endpoint", EndpointFilter{Hostname: "h1", OrchestratorID: "docker", WorkloadID: "w1", EndpointID: "e1"}, "/calico/v1/host/h1/workload/docker/w1/endpoint/e1"},
		{"gap stops narrowing", EndpointFilter{Hostname: "h1", WorkloadID: "w1"}, "/calico/v1/host/h1/workload"},
		{"no host", EndpointFilter{EndpointID: "e1"}, "/calico/v1/host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EndpointScope(tt.filter))
		})
	}
}

func TestTemplateMatch(t *testing.T) {
	caps, ok := EndpointTemplate.Match("/calico/v1/host/h1/workload/docker/w1/endpoint/e1")
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"hostname":     "h1",
		"orchestrator": "docker",
		"workload":     "w1",
		"endpoint":     "e1",
	}, caps)

	_, ok = EndpointTemplate.Match("/calico/v1/host/h1/workload/docker/w1/endpoint")
	assert.False(t, ok, "directory key is not an endpoint")

	_, ok = EndpointTemplate.Match("/calico/v1/host/h1/workload/docker/w1/endpoint/e1/extra")
	assert.False(t, ok)

	_, ok = BGPHostIPv4Template.Match("/calico/bgp/v1/host/h1/ip_addr_v6")
	assert.False(t, ok)

	caps, ok = BGPHostPeerV6Template.Match("/calico/bgp/v1/host/h1/peer_v6/fd00::1")
	require.True(t, ok)
	assert.Equal(t, "fd00::1", caps["ip"])
}

func TestTemplateRestCapture(t *testing.T) {
	tpl := MustTemplate("/a/{x}/b/{rest...}")

	caps, ok := tpl.Match("/a/1/b/c/d")
	require.True(t, ok)
	assert.Equal(t, "1", caps["x"])
	assert.Equal(t, "c/d", caps["rest"])

	_, ok = tpl.Match("/a/1/b")
	assert.False(t, ok)
}

func TestParseTemplateErrors(t *testing.T) {
	for _, pattern := range []string{
		"relative/{x}",
		"/a//b",
		"/a/{}/b",
		"/a/{x...}/b",
		"/a/{x}/{x}",
	} {
		_, err := ParseTemplate(pattern)
		assert.Error(t, err, pattern)
	}
}
