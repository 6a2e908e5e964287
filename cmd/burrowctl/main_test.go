package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes burrowctl against a bolt store in dir and returns stdout
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	for key := range envFlags {
		t.Setenv(key, "")
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--backend", "bolt", "--data-dir", dir, "--hostname", "test-host"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, "burrowctl %s", strings.Join(args, " "))
	return out
}

type endpointOut struct {
	Hostname   string `json:"hostname"`
	EndpointID string `json:"endpoint_id"`
	Endpoint   struct {
		Name       string   `json:"name"`
		ProfileIDs []string `json:"profile_ids"`
		IPv4Nets   []string `json:"ipv4_nets"`
	} `json:"endpoint"`
}

func decodeEndpoints(t *testing.T, out string) []endpointOut {
	t.Helper()
	var eps []endpointOut
	require.NoError(t, json.Unmarshal([]byte(out), &eps), out)
	return eps
}

func TestNodeCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "node", "init", "--ip", "10.0.0.1", "--ip6", "fd00::1", "--as", "64512")
	assert.Contains(t, out, "Host test-host initialized")

	out = mustRun(t, dir, "node", "list", "-o", "json")
	var hosts map[string]struct {
		ASNumber string `json:"as_num"`
		IPv4     string `json:"ip_addr_v4"`
		IPv6     string `json:"ip_addr_v6"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &hosts), out)
	require.Contains(t, hosts, "test-host")
	assert.Equal(t, "10.0.0.1", hosts["test-host"].IPv4)
	assert.Equal(t, "fd00::1", hosts["test-host"].IPv6)
	assert.Equal(t, "64512", hosts["test-host"].ASNumber)

	out = mustRun(t, dir, "node", "list")
	assert.Contains(t, out, "HOSTNAME")
	assert.Contains(t, out, "test-host")

	_, err := run(t, dir, "node", "init", "--ip", "fd00::1")
	assert.Error(t, err)

	mustRun(t, dir, "node", "remove")
	out = mustRun(t, dir, "node", "list", "-o", "json")
	assert.JSONEq(t, `{}`, out)
}

func TestProfileAndEndpointCommands(t *testing.T) {
	dir := t.TempDir()

	mustRun(t, dir, "profile", "add", "web", "--label", "tier=frontend")
	out := mustRun(t, dir, "profile", "show")
	assert.Contains(t, out, "web")

	out = mustRun(t, dir, "profile", "show", "web", "-o", "json")
	var profile struct {
		Name   string            `json:"name"`
		Tags   []string          `json:"tags"`
		Labels map[string]string `json:"labels"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &profile), out)
	assert.Equal(t, "web", profile.Name)
	assert.Equal(t, map[string]string{"tier": "frontend"}, profile.Labels)

	out = mustRun(t, dir, "endpoint", "add", "--orchestrator", "docker", "--workload", "web-1", "--ip", "10.0.0.2", "-o", "json")
	eps := decodeEndpoints(t, out)
	require.Len(t, eps, 1)
	id := eps[0].EndpointID
	assert.Equal(t, "test-host", eps[0].Hostname)
	assert.Equal(t, []string{"10.0.0.2/32"}, eps[0].Endpoint.IPv4Nets)

	out = mustRun(t, dir, "endpoint", "profile", "append", id, "web", "-o", "json")
	eps = decodeEndpoints(t, out)
	assert.Equal(t, []string{"web"}, eps[0].Endpoint.ProfileIDs)

	_, err := run(t, dir, "endpoint", "profile", "append", id, "web")
	assert.Error(t, err)

	out = mustRun(t, dir, "profile", "members", "web", "-o", "json")
	eps = decodeEndpoints(t, out)
	require.Len(t, eps, 1)
	assert.Equal(t, id, eps[0].EndpointID)

	out = mustRun(t, dir, "endpoint", "profile", "set", id, "-o", "json")
	eps = decodeEndpoints(t, out)
	assert.Empty(t, eps[0].Endpoint.ProfileIDs)

	out = mustRun(t, dir, "endpoint", "show", "--workload", "web-1")
	assert.Contains(t, out, id)

	mustRun(t, dir, "endpoint", "remove", id)
	out = mustRun(t, dir, "endpoint", "show", "-o", "json")
	assert.JSONEq(t, `[]`, out)

	_, err = run(t, dir, "endpoint", "remove", id)
	assert.Error(t, err)

	mustRun(t, dir, "profile", "remove", "web")
	_, err = run(t, dir, "profile", "show", "web")
	assert.Error(t, err)
}

func TestEndpointAttachNeedsNamespace(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "endpoint", "attach", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--pid or --netns")

	_, err = run(t, dir, "endpoint", "attach", "abc", "--pid", "1", "--netns", "/var/run/netns/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestPoolCommands(t *testing.T) {
	dir := t.TempDir()

	mustRun(t, dir, "pool", "add", "192.168.0.0/16", "--ipip", "--nat-outgoing")
	mustRun(t, dir, "pool", "add", "fd80:24e2:f998:72d6::/64")

	out := mustRun(t, dir, "pool", "show", "-o", "yaml")
	assert.Contains(t, out, "cidr: 192.168.0.0/16")
	assert.Contains(t, out, "fd80:24e2:f998:72d6::/64")

	out = mustRun(t, dir, "pool", "show", "--ipv6")
	assert.NotContains(t, out, "192.168.0.0/16")
	assert.Contains(t, out, "fd80:24e2:f998:72d6::/64")

	mustRun(t, dir, "pool", "remove", "192.168.0.0/16")
	_, err := run(t, dir, "pool", "remove", "192.168.0.0/16")
	assert.Error(t, err)

	_, err = run(t, dir, "pool", "add", "not-a-cidr")
	assert.Error(t, err)
}

func TestBGPCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "bgp", "default-as")
	assert.Equal(t, "64511", strings.TrimSpace(out))
	mustRun(t, dir, "bgp", "default-as", "65000")
	out = mustRun(t, dir, "bgp", "default-as", "-o", "json")
	assert.JSONEq(t, `"65000"`, out)

	out = mustRun(t, dir, "bgp", "node-mesh")
	assert.Equal(t, "on", strings.TrimSpace(out))
	mustRun(t, dir, "bgp", "node-mesh", "off")
	out = mustRun(t, dir, "bgp", "node-mesh", "-o", "json")
	assert.JSONEq(t, `{"enabled": false}`, out)
	_, err := run(t, dir, "bgp", "node-mesh", "maybe")
	assert.Error(t, err)

	mustRun(t, dir, "bgp", "peer", "add", "10.1.1.1", "65001")
	mustRun(t, dir, "bgp", "peer", "add", "10.2.2.2", "65002", "--scope", "node")

	out = mustRun(t, dir, "bgp", "peer", "show", "-o", "json")
	assert.JSONEq(t, `[{"ip": "10.1.1.1", "as_num": "65001"}]`, out)
	out = mustRun(t, dir, "bgp", "peer", "show", "--scope", "node", "-o", "json")
	assert.JSONEq(t, `[{"ip": "10.2.2.2", "as_num": "65002"}]`, out)

	mustRun(t, dir, "bgp", "peer", "remove", "10.1.1.1")
	out = mustRun(t, dir, "bgp", "peer", "show", "-o", "json")
	assert.JSONEq(t, `[]`, out)

	_, err = run(t, dir, "bgp", "peer", "show", "--scope", "everywhere")
	assert.Error(t, err)
}

func TestDatastoreReset(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "profile", "add", "web")

	_, err := run(t, dir, "datastore", "reset")
	assert.Error(t, err)

	mustRun(t, dir, "datastore", "reset", "--yes")
	out := mustRun(t, dir, "profile", "show", "-o", "json")
	assert.JSONEq(t, `[]`, out)
}

func TestGlobalFlags(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "profile", "show", "-o", "xml")
	assert.Error(t, err)

	_, err = run(t, dir, "profile", "show", "--etcd-scheme", "ftp")
	var cfgErr *config.Error
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, config.EnvScheme, cfgErr.Var)
}

func TestIPAMCommands(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "pool", "add", "192.168.0.0/24")

	out := mustRun(t, dir, "ipam", "assign", "--ipv4", "2", "--handle", "web-1", "--attr", "container=web-1", "-o", "json")
	var assigned struct {
		IPv4 []string `json:"ipv4"`
		IPv6 []string `json:"ipv6"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &assigned), out)
	require.Len(t, assigned.IPv4, 2)
	assert.Empty(t, assigned.IPv6)

	out = mustRun(t, dir, "ipam", "show", "--handle", "web-1", "-o", "json")
	var byHandle []string
	require.NoError(t, json.Unmarshal([]byte(out), &byHandle), out)
	assert.Equal(t, assigned.IPv4, byHandle)

	out = mustRun(t, dir, "ipam", "show", assigned.IPv4[0], "-o", "json")
	assert.JSONEq(t, `{"handle_id": "web-1", "secondary": {"container": "web-1"}}`, out)

	mustRun(t, dir, "ipam", "assign", "--ip", "192.168.0.200")
	_, err := run(t, dir, "ipam", "assign", "--ip", "192.168.0.200")
	assert.Error(t, err)
	_, err = run(t, dir, "ipam", "assign", "--ip", "10.0.0.1")
	assert.Error(t, err)

	out = mustRun(t, dir, "ipam", "release", "192.168.0.200", "192.168.0.201", "-o", "json")
	assert.JSONEq(t, `{"unallocated": ["192.168.0.201"]}`, out)

	mustRun(t, dir, "ipam", "release", "--handle", "web-1")
	_, err = run(t, dir, "ipam", "show", "--handle", "web-1")
	assert.Error(t, err)
	_, err = run(t, dir, "ipam", "release")
	assert.Error(t, err)

	out = mustRun(t, dir, "ipam", "config", "-o", "json")
	assert.JSONEq(t, `{"strict_affinity": false, "auto_allocate_blocks": true}`, out)
	// Blocks claimed above still exist
	_, err = run(t, dir, "ipam", "config", "--strict-affinity")
	assert.Error(t, err)

	out = mustRun(t, dir, "ipam", "affinity", "release", "192.168.0.0/24", "-o", "json")
	var released map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &released), out)
	assert.NotEmpty(t, released["released"])
	assert.Len(t, append(released["released"], released["not_claimed"]...), 4)
	assert.Empty(t, released["claimed_by_other"])

	out = mustRun(t, dir, "ipam", "config", "--strict-affinity", "-o", "json")
	assert.JSONEq(t, `{"strict_affinity": true, "auto_allocate_blocks": true}`, out)
}
