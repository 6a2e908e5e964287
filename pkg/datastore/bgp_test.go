package datastore

import (
	"context"
	"net/netip"
	"testing"

	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBGPDefaults(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	enabled, err := c.GetBGPNodeMesh(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	as, err := c.GetDefaultNodeAS(ctx)
	require.NoError(t, err)
	assert.Equal(t, "64511", as.String())
	assert.Empty(t, rec.Writes())
}

func TestBGPGlobalSettings(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetBGPNodeMesh(ctx, false))
	assert.JSONEq(t, `{"enabled": false}`, mustValue(t, rec, paths.BGPNodeMesh()))
	enabled, err := c.GetBGPNodeMesh(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, c.SetDefaultNodeAS(ctx, 65000))
	as, err := c.GetDefaultNodeAS(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ASNumber(65000), as)
}

func TestBGPPeers(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	global, err := types.NewBGPPeer("192.168.1.1", "65100")
	require.NoError(t, err)
	hostPeer, err := types.NewBGPPeer("fd80::1", "65101")
	require.NoError(t, err)

	require.NoError(t, c.AddBGPPeer(ctx, "", global))
	require.NoError(t, c.AddBGPPeer(ctx, "node1", hostPeer))
	assert.Equal(t, []string{
		"set /calico/bgp/v1/global/peer_v4/192.168.1.1",
		"set /calico/bgp/v1/host/node1/peer_v6/fd80::1",
	}, rec.Writes())

	peers, err := c.GetBGPPeers(ctx, paths.IPv4, "")
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.True(t, global.Equal(peers[0]))

	peers, err = c.GetBGPPeers(ctx, paths.IPv6, "node1")
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.True(t, hostPeer.Equal(peers[0]))

	peers, err = c.GetBGPPeers(ctx, paths.IPv6, "")
	require.NoError(t, err)
	assert.Empty(t, peers)

	// Replacing a peer keys on its address
	updated, err := types.NewBGPPeer("192.168.1.1", "65200")
	require.NoError(t, err)
	require.NoError(t, c.AddBGPPeer(ctx, "", updated))
	peers, err = c.GetBGPPeers(ctx, paths.IPv4, "")
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, types.ASNumber(65200), peers[0].ASNumber)

	require.NoError(t, c.RemoveBGPPeer(ctx, "", netip.MustParseAddr("192.168.1.1")))
	assert.True(t, IsNotFound(c.RemoveBGPPeer(ctx, "", netip.MustParseAddr("192.168.1.1"))))
	assert.True(t, IsNotFound(c.RemoveBGPPeer(ctx, "node2", netip.MustParseAddr("fd80::1"))))
	require.NoError(t, c.RemoveBGPPeer(ctx, "node1", netip.MustParseAddr("fd80::1")))

	peers, err = c.GetBGPPeers(ctx, paths.IPv4, "")
	require.NoError(t, err)
	assert.Empty(t, peers)
}
