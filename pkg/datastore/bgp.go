package datastore

import (
	"context"
	"encoding/json"
	"net/netip"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
)

// GetBGPPeers returns the global peers of version v, or the peers of
// hostname when it is set. No configured peers yields an empty list.
func (c *Client) GetBGPPeers(ctx context.Context, v paths.IPVersion, hostname string) (peers []*types.BGPPeer, err error) {
	defer c.finish("get_bgp_peers", metrics.NewTimer(), &err)

	children, err := c.scanChildren(ctx, paths.BGPPeers(v, hostname))
	if err != nil {
		return nil, err
	}
	peers = []*types.BGPPeer{}
	for _, child := range children {
		if child.Value == "" {
			continue
		}
		peer, err := types.ParseBGPPeer(child.Value)
		if err != nil {
			return nil, corrupt(child.Key, err)
		}
		peers = append(peers, peer)
	}
	return peers, nil
}

// AddBGPPeer stores peer globally, or for hostname when it is set. A peer
// with the same address is replaced.
func (c *Client) AddBGPPeer(ctx context.Context, hostname string, peer *types.BGPPeer) (err error) {
	defer c.finish("add_bgp_peer", metrics.NewTimer(), &err)

	if !peer.IP.IsValid() {
		return &types.ValidationError{Field: "ip", Reason: "missing"}
	}
	ip := peer.IP.Unmap()
	data, err := peer.JSON()
	if err != nil {
		return err
	}
	return c.write(ctx, paths.BGPPeer(paths.VersionOf(ip), hostname, ip.String()), data)
}

// RemoveBGPPeer deletes the peer at ip, globally or for hostname
func (c *Client) RemoveBGPPeer(ctx context.Context, hostname string, ip netip.Addr) (err error) {
	defer c.finish("remove_bgp_peer", metrics.NewTimer(), &err)

	ip = ip.Unmap()
	if err := c.remove(ctx, paths.BGPPeer(paths.VersionOf(ip), hostname, ip.String())); err != nil {
		if storage.IsKeyNotFound(err) {
			return notFound("BGP peer", ip.String())
		}
		return err
	}
	return nil
}

// GetBGPNodeMesh reports whether the full node mesh is enabled. It is
// enabled unless explicitly switched off.
func (c *Client) GetBGPNodeMesh(ctx context.Context) (enabled bool, err error) {
	defer c.finish("get_bgp_node_mesh", metrics.NewTimer(), &err)

	value, ok, err := c.optionalValue(ctx, paths.BGPNodeMesh())
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	var mesh types.NodeMesh
	if err := json.Unmarshal([]byte(value), &mesh); err != nil {
		return false, corrupt(paths.BGPNodeMesh(), err)
	}
	return mesh.Enabled, nil
}

// SetBGPNodeMesh switches the full node mesh on or off
func (c *Client) SetBGPNodeMesh(ctx context.Context, enabled bool) (err error) {
	defer c.finish("set_bgp_node_mesh", metrics.NewTimer(), &err)

	data, err := json.Marshal(types.NodeMesh{Enabled: enabled})
	if err != nil {
		return err
	}
	return c.write(ctx, paths.BGPNodeMesh(), string(data))
}

// GetDefaultNodeAS returns the AS number of hosts without their own,
// types.DefaultASNumber when unset.
func (c *Client) GetDefaultNodeAS(ctx context.Context) (as types.ASNumber, err error) {
	defer c.finish("get_default_node_as", metrics.NewTimer(), &err)

	value, ok, err := c.optionalValue(ctx, paths.BGPDefaultAS())
	if err != nil {
		return 0, err
	}
	if !ok {
		return types.DefaultASNumber, nil
	}
	as, err = types.ParseASNumber(value)
	if err != nil {
		return 0, corrupt(paths.BGPDefaultAS(), err)
	}
	return as, nil
}

// SetDefaultNodeAS sets the AS number of hosts without their own
func (c *Client) SetDefaultNodeAS(ctx context.Context, as types.ASNumber) (err error) {
	defer c.finish("set_default_node_as", metrics.NewTimer(), &err)
	return c.write(ctx, paths.BGPDefaultAS(), as.String())
}
