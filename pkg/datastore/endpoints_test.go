package datastore

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEndpoint(t *testing.T, hostname, orchestrator, workload, id string, profiles ...string) *types.Endpoint {
	t.Helper()
	key := types.EndpointKey{Hostname: hostname, OrchestratorID: orchestrator, WorkloadID: workload, EndpointID: id}
	ep, err := types.NewEndpoint(key, types.EndpointStateActive, "11-22-33-44-55-66", types.DefaultInterfacePrefix)
	require.NoError(t, err)
	ep.ProfileIDs = append(ep.ProfileIDs, profiles...)
	return ep
}

func endpointIDs(endpoints []*VersionedEndpoint) []string {
	ids := make([]string, 0, len(endpoints))
	for _, vep := range endpoints {
		ids = append(ids, vep.Endpoint.EndpointID)
	}
	return ids
}

func TestCreateEndpoint(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	addrs := []netip.Addr{
		netip.MustParseAddr("10.0.0.2"),
		netip.MustParseAddr("fd00::2"),
		netip.MustParseAddr("10.0.0.1"),
	}
	vep, err := c.CreateEndpoint(ctx, "node1", "docker", "w1", addrs, "")
	require.NoError(t, err)

	ep := vep.Endpoint
	assert.Len(t, ep.EndpointID, 32)
	assert.Equal(t, types.EndpointStateActive, ep.State)
	assert.Equal(t, "cali"+ep.EndpointID[:11], ep.Name)
	assert.Equal(t, []types.Net{types.MustParseNet("10.0.0.1/32"), types.MustParseNet("10.0.0.2/32")}, ep.IPv4Nets)
	assert.Equal(t, []types.Net{types.MustParseNet("fd00::2/128")}, ep.IPv6Nets)

	assert.Equal(t, []string{"set " + ep.Path()}, rec.Writes())
	assert.Equal(t, vep.Version, mustValue(t, rec, ep.Path()))
}

func TestCreateEndpointInterfacePrefix(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, rec.Set(ctx, paths.Config(ConfigInterfacePrefix), "tap", nil))
	vep, err := c.CreateEndpoint(ctx, "node1", "docker", "w1", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "tap"+vep.Endpoint.EndpointID[:11], vep.Endpoint.Name)

	fixed := New(rec, WithInterfacePrefix("veth"))
	vep, err = fixed.CreateEndpoint(ctx, "node1", "docker", "w1", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "veth"+vep.Endpoint.EndpointID[:11], vep.Endpoint.Name)

	long := New(rec, WithInterfacePrefix("toolong"))
	_, err = long.CreateEndpoint(ctx, "node1", "docker", "w1", nil, "")
	var vErr *types.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestGetEndpoint(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	for _, ep := range []*types.Endpoint{
		newEndpoint(t, "node1", "docker", "w1", "ep1"),
		newEndpoint(t, "node1", "docker", "w2", "ep2"),
		newEndpoint(t, "node2", "docker", "w3", "ep3"),
	} {
		_, err := c.SetEndpoint(ctx, ep)
		require.NoError(t, err)
	}
	require.NoError(t, c.CreateHost(ctx, HostSpec{Hostname: "node1", IPv4: netip.MustParseAddr("10.0.0.1")}))

	tests := []struct {
		name    string
		filter  paths.EndpointFilter
		want    []string
		wantErr error
	}{
		{name: "all", filter: paths.EndpointFilter{}, want: []string{"ep1", "ep2", "ep3"}, wantErr: ErrMultipleEndpoints},
		{name: "host", filter: paths.EndpointFilter{Hostname: "node1"}, want: []string{"ep1", "ep2"}, wantErr: ErrMultipleEndpoints},
		{name: "workload", filter: paths.EndpointFilter{Hostname: "node1", OrchestratorID: "docker", WorkloadID: "w2"}, want: []string{"ep2"}},
		{name: "endpoint id only", filter: paths.EndpointFilter{EndpointID: "ep3"}, want: []string{"ep3"}},
		{name: "full", filter: paths.EndpointFilter{Hostname: "node2", OrchestratorID: "docker", WorkloadID: "w3", EndpointID: "ep3"}, want: []string{"ep3"}},
		{name: "mismatch", filter: paths.EndpointFilter{Hostname: "node2", WorkloadID: "w1"}, want: []string{}, wantErr: ErrNotFound},
		{name: "missing host", filter: paths.EndpointFilter{Hostname: "node9"}, want: []string{}, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoints, err := c.GetEndpoints(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, endpointIDs(endpoints))

			vep, err := c.GetEndpoint(ctx, tt.filter)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want[0], vep.Endpoint.EndpointID)
		})
	}
}

func TestUpdateEndpointCompareAndSwap(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	_, err := c.SetEndpoint(ctx, newEndpoint(t, "node1", "docker", "w1", "ep1"))
	require.NoError(t, err)

	vep, err := c.GetEndpoint(ctx, paths.EndpointFilter{EndpointID: "ep1"})
	require.NoError(t, err)
	snapshot := vep.Version

	rec.Reset()
	vep.Endpoint.State = "inactive"
	require.NoError(t, c.UpdateEndpoint(ctx, vep))
	assert.Equal(t, []string{"cas " + vep.Endpoint.Path()}, rec.Writes())
	assert.NotEqual(t, snapshot, vep.Version)
	assert.Equal(t, vep.Version, mustValue(t, rec, vep.Endpoint.Path()))

	// Another writer changes the endpoint behind our back
	other, err := c.GetEndpoint(ctx, paths.EndpointFilter{EndpointID: "ep1"})
	require.NoError(t, err)
	other.Endpoint.Labels["owner"] = "someone-else"
	require.NoError(t, c.UpdateEndpoint(ctx, other))

	conflicts := testutil.ToFloat64(metrics.DatastoreUpdateConflicts)
	rec.Reset()
	stale := vep.Version
	vep.Endpoint.State = "active"
	err = c.UpdateEndpoint(ctx, vep)
	assert.ErrorIs(t, err, ErrUpdateConflict)
	assert.Equal(t, stale, vep.Version, "failed update must not advance the version")
	assert.Empty(t, rec.Writes())
	assert.Equal(t, conflicts+1, testutil.ToFloat64(metrics.DatastoreUpdateConflicts))

	// The stored value is the other writer's
	current, err := c.GetEndpoint(ctx, paths.EndpointFilter{EndpointID: "ep1"})
	require.NoError(t, err)
	assert.Equal(t, "someone-else", current.Endpoint.Labels["owner"])
}

func TestUpdateEndpointRequiresVersion(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	err := c.UpdateEndpoint(ctx, &VersionedEndpoint{Endpoint: newEndpoint(t, "node1", "docker", "w1", "ep1")})
	var vErr *types.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Empty(t, rec.Writes())
}

func TestUpdateDeletedEndpoint(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	vep, err := c.SetEndpoint(ctx, newEndpoint(t, "node1", "docker", "w1", "ep1"))
	require.NoError(t, err)
	require.NoError(t, c.RemoveEndpoint(ctx, vep.Endpoint.EndpointKey))

	err = c.UpdateEndpoint(ctx, vep)
	assert.True(t, IsNotFound(err))
}

func TestEndpointProfileMembership(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()
	filter := paths.EndpointFilter{Hostname: "node1", EndpointID: "ep1"}

	_, err := c.SetEndpoint(ctx, newEndpoint(t, "node1", "docker", "w1", "ep1", "PROF1", "PROFA", "PROF2", "PROFB"))
	require.NoError(t, err)

	rec.Reset()
	vep, err := c.AppendProfilesToEndpoint(ctx, filter, "PROFZ", "PROF5")
	require.NoError(t, err)
	assert.Equal(t, []string{"PROF1", "PROFA", "PROF2", "PROFB", "PROFZ", "PROF5"}, vep.Endpoint.ProfileIDs)
	assert.Equal(t, []string{"cas " + vep.Endpoint.Path()}, rec.Writes())

	rec.Reset()
	_, err = c.AppendProfilesToEndpoint(ctx, filter, "NEW", "PROFA")
	var already *types.ProfileAlreadyInEndpointError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, []string{"PROFA"}, already.ProfileIDs)
	assert.Empty(t, rec.Writes())

	_, err = c.RemoveProfilesFromEndpoint(ctx, filter, "PROF1", "MISSING")
	var notIn *types.ProfileNotInEndpointError
	require.True(t, errors.As(err, &notIn))
	assert.Empty(t, rec.Writes())

	vep, err = c.RemoveProfilesFromEndpoint(ctx, filter, "PROF1", "PROFZ")
	require.NoError(t, err)
	assert.Equal(t, []string{"PROFA", "PROF2", "PROFB", "PROF5"}, vep.Endpoint.ProfileIDs)

	vep, err = c.SetProfilesOnEndpoint(ctx, filter, "ONLY")
	require.NoError(t, err)
	assert.Equal(t, []string{"ONLY"}, vep.Endpoint.ProfileIDs)

	stored, err := c.GetEndpoint(ctx, filter)
	require.NoError(t, err)
	assert.True(t, vep.Endpoint.Equal(stored.Endpoint))
	assert.Equal(t, vep.Version, stored.Version)
}

func TestMembershipOnMissingEndpoint(t *testing.T) {
	c, rec := newTestClient(t)

	_, err := c.AppendProfilesToEndpoint(context.Background(), paths.EndpointFilter{EndpointID: "nope"}, "P")
	assert.True(t, IsNotFound(err))
	assert.Empty(t, rec.Writes())
}

func TestRemoveEndpointAndWorkload(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	ep := newEndpoint(t, "node1", "docker", "w1", "ep1")
	err := c.RemoveEndpoint(ctx, ep.EndpointKey)
	assert.True(t, IsNotFound(err))

	_, err = c.SetEndpoint(ctx, ep)
	require.NoError(t, err)
	require.NoError(t, c.RemoveEndpoint(ctx, ep.EndpointKey))
	assertMissing(t, rec, ep.Path())

	err = c.RemoveWorkload(ctx, "node1", "docker", "w9")
	assert.True(t, IsNotFound(err))

	_, err = c.SetEndpoint(ctx, newEndpoint(t, "node1", "docker", "w2", "ep2"))
	require.NoError(t, err)
	require.NoError(t, c.RemoveWorkload(ctx, "node1", "docker", "w2"))
	assertMissing(t, rec, paths.Workload("node1", "docker", "w2"))
}
