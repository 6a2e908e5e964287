package types

import (
	"encoding/json"
	"errors"
	"net/netip"
	"testing"

	"github.com/cuemby/burrow/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = EndpointKey{
	Hostname:       "TEST_HOST",
	OrchestratorID: "docker",
	WorkloadID:     "1234",
	EndpointID:     "aabbccddeeff112233",
}

func newTestEndpoint(t *testing.T) *Endpoint {
	t.Helper()
	ep, err := NewEndpoint(testKey, EndpointStateActive, "11-22-33-44-55-66", DefaultInterfacePrefix)
	require.NoError(t, err)
	return ep
}

func TestEndpointJSON(t *testing.T) {
	ep := newTestEndpoint(t)
	assert.Equal(t, "caliaabbccddeef", ep.Name)
	assert.Empty(t, ep.ProfileIDs)

	data, err := ep.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"state": "active",
		"name": "caliaabbccddeef",
		"mac": "11-22-33-44-55-66",
		"profile_ids": [],
		"labels": {},
		"ipv4_nets": [],
		"ipv6_nets": []
	}`, data)
}

func TestParseEndpointLegacyProfile(t *testing.T) {
	data := `{
		"state": "active",
		"name": "caliaabbccddeef",
		"mac": "11-22-33-44-55-66",
		"profile_id": "TEST23",
		"ipv4_nets": ["192.168.3.2/32", "10.3.4.23/32"],
		"ipv6_nets": ["fd20::4:2:1/128"],
		"ipv4_gateway": "10.3.4.2"
	}`

	ep, err := ParseEndpoint(testKey.Path(), data)
	require.NoError(t, err)
	assert.Equal(t, testKey, ep.EndpointKey)
	assert.Equal(t, []string{"TEST23"}, ep.ProfileIDs)
	assert.Equal(t, []Net{MustParseNet("10.3.4.23/32"), MustParseNet("192.168.3.2/32")}, ep.IPv4Nets)
	assert.Equal(t, []Net{MustParseNet("fd20::4:2:1/128")}, ep.IPv6Nets)

	encoded, err := ep.JSON()
	require.NoError(t, err)
	again, err := ParseEndpoint(testKey.Path(), encoded)
	require.NoError(t, err)
	assert.True(t, ep.Equal(again))
}

func TestParseEndpointRejectsNonEndpointKey(t *testing.T) {
	_, err := ParseEndpoint("/calico/v1/host/h/workload/docker/w/endpoint", `{}`)
	assert.Error(t, err)
}

func TestInterfaceName(t *testing.T) {
	name, err := InterfaceName("tap", "0123456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, "tap0123456789a", name)

	name, err = InterfaceName("cali", "short")
	require.NoError(t, err)
	assert.Equal(t, "calishort", name)

	_, err = InterfaceName("toolong", "abc")
	assert.Error(t, err)
}

func TestEndpointEqualAndCopy(t *testing.T) {
	ep1 := newTestEndpoint(t)
	ep2 := ep1.Copy()
	assert.True(t, ep1.Equal(ep2))

	ep2.State = "inactive"
	assert.False(t, ep1.Equal(ep2))

	ep3 := ep1.Copy()
	ep3.ProfileIDs = append(ep3.ProfileIDs, "x")
	ep3.Labels["a"] = "b"
	assert.Empty(t, ep1.ProfileIDs)
	assert.Empty(t, ep1.Labels)
}

func TestEndpointMatches(t *testing.T) {
	ep := newTestEndpoint(t)
	full := paths.EndpointFilter{
		Hostname:       "TEST_HOST",
		OrchestratorID: "docker",
		WorkloadID:     "1234",
		EndpointID:     "aabbccddeeff112233",
	}
	assert.True(t, ep.Matches(full))
	assert.True(t, ep.Matches(paths.EndpointFilter{}))
	assert.True(t, ep.Matches(paths.EndpointFilter{EndpointID: "aabbccddeeff112233"}))

	for _, mutate := range []func(*paths.EndpointFilter){
		func(f *paths.EndpointFilter) { f.Hostname = "INVALID" },
		func(f *paths.EndpointFilter) { f.OrchestratorID = "INVALID" },
		func(f *paths.EndpointFilter) { f.WorkloadID = "INVALID" },
		func(f *paths.EndpointFilter) { f.EndpointID = "INVALID" },
	} {
		f := full
		mutate(&f)
		assert.False(t, ep.Matches(f))
	}
}

func TestEndpointAddAddress(t *testing.T) {
	ep := newTestEndpoint(t)
	ep.AddAddress(netip.MustParseAddr("10.0.0.2"))
	ep.AddAddress(netip.MustParseAddr("fd00::1"))
	ep.AddAddress(netip.MustParseAddr("10.0.0.1"))
	ep.AddAddress(netip.MustParseAddr("10.0.0.1"))

	assert.Equal(t, []Net{MustParseNet("10.0.0.1/32"), MustParseNet("10.0.0.2/32")}, ep.IPv4Nets)
	assert.Equal(t, []Net{MustParseNet("fd00::1/128")}, ep.IPv6Nets)
}

func TestEndpointRemoveAddress(t *testing.T) {
	ep := newTestEndpoint(t)
	ep.AddAddress(netip.MustParseAddr("10.0.0.1"))
	ep.AddAddress(netip.MustParseAddr("10.0.0.2"))
	ep.AddAddress(netip.MustParseAddr("fd00::1"))

	assert.True(t, ep.RemoveAddress(netip.MustParseAddr("10.0.0.1")))
	assert.True(t, ep.RemoveAddress(netip.MustParseAddr("fd00::1")))
	assert.False(t, ep.RemoveAddress(netip.MustParseAddr("10.0.0.9")))

	assert.Equal(t, []Net{MustParseNet("10.0.0.2/32")}, ep.IPv4Nets)
	assert.Empty(t, ep.IPv6Nets)
}

func TestEndpointNetsAreSingleAddresses(t *testing.T) {
	tests := []struct {
		name string
		v4   []Net
		v6   []Net
		ok   bool
	}{
		{"host networks", []Net{MustParseNet("10.0.0.1/32")}, []Net{MustParseNet("fd00::1/128")}, true},
		{"ipv4 subnet", []Net{MustParseNet("10.0.0.0/24")}, nil, false},
		{"ipv6 subnet", nil, []Net{MustParseNet("fd00::/64")}, false},
		{"ipv6 in ipv4 list", []Net{MustParseNet("fd00::1/128")}, nil, false},
		{"mapped ipv4 in ipv6 list", nil, []Net{MustParseNet("::ffff:10.0.0.1/128")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := newTestEndpoint(t)
			ep.IPv4Nets = tt.v4
			ep.IPv6Nets = tt.v6
			err := ep.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			assert.True(t, errors.As(err, &vErr), "got %v", err)
		})
	}

	var ep Endpoint
	err := json.Unmarshal([]byte(`{"state": "active", "name": "cali1", "mac": null,
		"profile_ids": [], "labels": {}, "ipv4_nets": ["10.0.0.0/24"], "ipv6_nets": []}`), &ep)
	assert.Error(t, err)
}

func TestEndpointAddProfiles(t *testing.T) {
	ep := newTestEndpoint(t)
	ep.ProfileIDs = []string{"PROF1", "PROFA", "PROF2", "PROFB"}

	require.NoError(t, ep.AddProfiles("PROFZ", "PROF5"))
	assert.Equal(t, []string{"PROF1", "PROFA", "PROF2", "PROFB", "PROFZ", "PROF5"}, ep.ProfileIDs)

	err := ep.AddProfiles("NEW", "PROFA")
	var already *ProfileAlreadyInEndpointError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, []string{"PROFA"}, already.ProfileIDs)
	assert.Equal(t, []string{"PROF1", "PROFA", "PROF2", "PROFB", "PROFZ", "PROF5"}, ep.ProfileIDs, "failed add must not mutate")

	err = ep.AddProfiles("DUP", "DUP")
	assert.Error(t, err)
}

func TestEndpointRemoveProfiles(t *testing.T) {
	ep := newTestEndpoint(t)
	ep.ProfileIDs = []string{"PROF1", "PROFA", "PROF2", "PROFB"}

	err := ep.RemoveProfiles("PROF1", "MISSING")
	var missing *ProfileNotInEndpointError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"MISSING"}, missing.ProfileIDs)
	assert.Len(t, ep.ProfileIDs, 4)

	require.NoError(t, ep.RemoveProfiles("PROF1", "PROF2"))
	assert.Equal(t, []string{"PROFA", "PROFB"}, ep.ProfileIDs)
}

func TestEndpointSetProfiles(t *testing.T) {
	ep := newTestEndpoint(t)
	ep.ProfileIDs = []string{"PROF1", "PROFA"}

	ep.SetProfiles("PROFZ", "PROF5", "PROFZ")
	assert.Equal(t, []string{"PROFZ", "PROF5"}, ep.ProfileIDs)
}

func TestNewEndpointValidation(t *testing.T) {
	_, err := NewEndpoint(EndpointKey{Hostname: "h", OrchestratorID: "o", WorkloadID: "w"}, EndpointStateActive, "", "cali")
	assert.Error(t, err)

	bad := testKey
	bad.WorkloadID = "a/b"
	_, err = NewEndpoint(bad, EndpointStateActive, "", "cali")
	assert.Error(t, err)

	_, err = NewEndpoint(testKey, EndpointStateActive, "not-a-mac", "cali")
	assert.Error(t, err)
}

func TestEndpointJSONWithoutMAC(t *testing.T) {
	ep, err := NewEndpoint(testKey, EndpointStateActive, "", "cali")
	require.NoError(t, err)

	data, err := json.Marshal(ep)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "mac")
	assert.Nil(t, raw["mac"])
}
