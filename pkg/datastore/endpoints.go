package datastore

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
)

// VersionedEndpoint pairs an endpoint with the stored value it was read or
// written as. UpdateEndpoint only succeeds while the store still holds
// Version.
type VersionedEndpoint struct {
	Endpoint *types.Endpoint
	Version  string
}

// CreateEndpoint builds an active endpoint with a fresh id under the given
// workload, sorts addrs into its IPv4 and IPv6 nets, and stores it
// unconditionally.
func (c *Client) CreateEndpoint(ctx context.Context, hostname, orchestratorID, workloadID string, addrs []netip.Addr, mac string) (vep *VersionedEndpoint, err error) {
	defer c.finish("create_endpoint", metrics.NewTimer(), &err)

	id, err := uuid.NewUUID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate endpoint id: %w", err)
	}
	prefix, err := c.interfacePrefix(ctx)
	if err != nil {
		return nil, err
	}

	key := types.EndpointKey{
		Hostname:       hostname,
		OrchestratorID: orchestratorID,
		WorkloadID:     workloadID,
		EndpointID:     strings.ReplaceAll(id.String(), "-", ""),
	}
	ep, err := types.NewEndpoint(key, types.EndpointStateActive, mac, prefix)
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if !addr.IsValid() {
			return nil, &types.ValidationError{Field: "ip", Value: addr, Reason: "not an IP address"}
		}
		ep.AddAddress(addr)
	}

	vep, err = c.setEndpoint(ctx, ep)
	if err != nil {
		return nil, err
	}
	c.logger().Info().
		Str("endpoint_id", key.EndpointID).
		Str("workload_id", workloadID).
		Str("interface", ep.Name).
		Msg("Endpoint created")
	return vep, nil
}

// interfacePrefix returns the configured prefix for new interface names
func (c *Client) interfacePrefix(ctx context.Context) (string, error) {
	if c.ifPrefix != "" {
		return c.ifPrefix, nil
	}
	prefix, ok, err := c.optionalValue(ctx, paths.Config(ConfigInterfacePrefix))
	if err != nil {
		return "", err
	}
	if !ok || prefix == "" {
		return types.DefaultInterfacePrefix, nil
	}
	return prefix, nil
}

// GetEndpoint returns the single endpoint matching filter
func (c *Client) GetEndpoint(ctx context.Context, filter paths.EndpointFilter) (vep *VersionedEndpoint, err error) {
	defer c.finish("get_endpoint", metrics.NewTimer(), &err)
	return c.getEndpoint(ctx, filter)
}

func (c *Client) getEndpoint(ctx context.Context, filter paths.EndpointFilter) (*VersionedEndpoint, error) {
	endpoints, err := c.getEndpoints(ctx, filter)
	if err != nil {
		return nil, err
	}
	switch len(endpoints) {
	case 0:
		return nil, notFound("endpoint", describeFilter(filter))
	case 1:
		return endpoints[0], nil
	default:
		return nil, fmt.Errorf("%w: %d endpoints for %s", ErrMultipleEndpoints, len(endpoints), describeFilter(filter))
	}
}

func describeFilter(f paths.EndpointFilter) string {
	var parts []string
	for _, p := range []struct{ name, value string }{
		{"hostname", f.Hostname},
		{"orchestrator", f.OrchestratorID},
		{"workload", f.WorkloadID},
		{"endpoint", f.EndpointID},
	} {
		if p.value != "" {
			parts = append(parts, p.name+"="+p.value)
		}
	}
	if len(parts) == 0 {
		return "(any)"
	}
	return strings.Join(parts, " ")
}

// GetEndpoints returns every endpoint matching filter in store order. A
// filter that matches nothing yields an empty list.
func (c *Client) GetEndpoints(ctx context.Context, filter paths.EndpointFilter) (endpoints []*VersionedEndpoint, err error) {
	defer c.finish("get_endpoints", metrics.NewTimer(), &err)
	return c.getEndpoints(ctx, filter)
}

// getEndpoints scans the narrowest subtree holding filter's matches and
// decodes each endpoint leaf. Other keys under a host are skipped.
func (c *Client) getEndpoints(ctx context.Context, filter paths.EndpointFilter) ([]*VersionedEndpoint, error) {
	leaves, err := c.scanLeaves(ctx, paths.EndpointScope(filter))
	if err != nil {
		return nil, err
	}

	endpoints := []*VersionedEndpoint{}
	for _, leaf := range leaves {
		if _, ok := types.ParseEndpointKey(leaf.Key); !ok {
			continue
		}
		ep, err := types.ParseEndpoint(leaf.Key, leaf.Value)
		if err != nil {
			return nil, corrupt(leaf.Key, err)
		}
		if !ep.Matches(filter) {
			continue
		}
		endpoints = append(endpoints, &VersionedEndpoint{Endpoint: ep, Version: leaf.Value})
	}
	return endpoints, nil
}

// SetEndpoint stores ep unconditionally and returns it at its new version
func (c *Client) SetEndpoint(ctx context.Context, ep *types.Endpoint) (vep *VersionedEndpoint, err error) {
	defer c.finish("set_endpoint", metrics.NewTimer(), &err)
	return c.setEndpoint(ctx, ep)
}

func (c *Client) setEndpoint(ctx context.Context, ep *types.Endpoint) (*VersionedEndpoint, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	data, err := ep.JSON()
	if err != nil {
		return nil, err
	}
	if err := c.write(ctx, ep.Path(), data); err != nil {
		return nil, err
	}
	return &VersionedEndpoint{Endpoint: ep, Version: data}, nil
}

// UpdateEndpoint stores vep.Endpoint only if the stored value is still
// vep.Version, then advances vep.Version. If another writer got there
// first it returns ErrUpdateConflict and leaves vep untouched; re-read
// the endpoint and reapply the change to retry.
func (c *Client) UpdateEndpoint(ctx context.Context, vep *VersionedEndpoint) (err error) {
	defer c.finish("update_endpoint", metrics.NewTimer(), &err)
	return c.updateEndpoint(ctx, vep)
}

func (c *Client) updateEndpoint(ctx context.Context, vep *VersionedEndpoint) error {
	if vep.Version == "" {
		return &types.ValidationError{Field: "version", Reason: "endpoint was not read from the datastore"}
	}
	ep := vep.Endpoint
	if err := ep.Validate(); err != nil {
		return err
	}
	data, err := ep.JSON()
	if err != nil {
		return err
	}

	err = c.writeIfUnchanged(ctx, ep.Path(), data, vep.Version)
	switch {
	case err == nil:
		vep.Version = data
		return nil
	case storage.IsTestFailed(err):
		return fmt.Errorf("%w: %s", ErrUpdateConflict, ep.Path())
	case storage.IsKeyNotFound(err):
		return notFound("endpoint", ep.EndpointID)
	default:
		return err
	}
}

// RemoveEndpoint deletes the endpoint identified by key
func (c *Client) RemoveEndpoint(ctx context.Context, key types.EndpointKey) (err error) {
	defer c.finish("remove_endpoint", metrics.NewTimer(), &err)

	if err := c.removeTree(ctx, key.Path()); err != nil {
		if storage.IsKeyNotFound(err) {
			return notFound("endpoint", key.EndpointID)
		}
		return err
	}
	return nil
}

// AppendProfilesToEndpoint adds ids to the profiles of the endpoint
// matching filter. If any id is already present nothing is written.
//
// The read and the conditional write are separate round trips: a
// concurrent change in between surfaces as ErrUpdateConflict.
func (c *Client) AppendProfilesToEndpoint(ctx context.Context, filter paths.EndpointFilter, ids ...string) (vep *VersionedEndpoint, err error) {
	defer c.finish("append_profiles_to_endpoint", metrics.NewTimer(), &err)
	return c.mutateEndpoint(ctx, filter, func(ep *types.Endpoint) error {
		return ep.AddProfiles(ids...)
	})
}

// SetProfilesOnEndpoint replaces the profiles of the endpoint matching
// filter with ids
func (c *Client) SetProfilesOnEndpoint(ctx context.Context, filter paths.EndpointFilter, ids ...string) (vep *VersionedEndpoint, err error) {
	defer c.finish("set_profiles_on_endpoint", metrics.NewTimer(), &err)
	return c.mutateEndpoint(ctx, filter, func(ep *types.Endpoint) error {
		ep.SetProfiles(ids...)
		return nil
	})
}

// RemoveProfilesFromEndpoint removes ids from the profiles of the endpoint
// matching filter. If any id is absent nothing is written.
func (c *Client) RemoveProfilesFromEndpoint(ctx context.Context, filter paths.EndpointFilter, ids ...string) (vep *VersionedEndpoint, err error) {
	defer c.finish("remove_profiles_from_endpoint", metrics.NewTimer(), &err)
	return c.mutateEndpoint(ctx, filter, func(ep *types.Endpoint) error {
		return ep.RemoveProfiles(ids...)
	})
}

func (c *Client) mutateEndpoint(ctx context.Context, filter paths.EndpointFilter, mutate func(*types.Endpoint) error) (*VersionedEndpoint, error) {
	vep, err := c.getEndpoint(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := mutate(vep.Endpoint); err != nil {
		return nil, err
	}
	if err := c.updateEndpoint(ctx, vep); err != nil {
		return nil, err
	}
	return vep, nil
}

// RemoveWorkload deletes a workload and all its endpoints
func (c *Client) RemoveWorkload(ctx context.Context, hostname, orchestratorID, workloadID string) (err error) {
	defer c.finish("remove_workload", metrics.NewTimer(), &err)

	if err := c.removeTree(ctx, paths.Workload(hostname, orchestratorID, workloadID)); err != nil {
		if storage.IsKeyNotFound(err) {
			return notFound("workload", workloadID)
		}
		return err
	}
	return nil
}

// RemoveAllData deletes the entire burrow keyspace. An empty store is not
// an error.
func (c *Client) RemoveAllData(ctx context.Context) (err error) {
	defer c.finish("remove_all_data", metrics.NewTimer(), &err)

	c.logger().Warn().Str("key", paths.CalicoRoot).Msg("Removing all data")
	return ignoreNotFound(c.removeTree(ctx, paths.CalicoRoot))
}
