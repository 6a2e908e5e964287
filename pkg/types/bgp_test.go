package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseASNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    ASNumber
		wantErr bool
	}{
		{in: "64511", want: 64511},
		{in: "0", want: 0},
		{in: "4294967295", want: 4294967295},
		{in: "1.10", want: 65546},
		{in: "65535.65535", want: 4294967295},
		{in: "4294967296", wantErr: true},
		{in: "65536.1", wantErr: true},
		{in: "1.2.3", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseASNumber(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBGPPeerJSON(t *testing.T) {
	peer, err := NewBGPPeer("192.168.1.1", "32245")
	require.NoError(t, err)

	data, err := peer.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ip": "192.168.1.1", "as_num": "32245"}`, data)

	decoded, err := ParseBGPPeer(`{"ip": "192.168.1.1", "as_num": 32245}`)
	require.NoError(t, err)
	assert.True(t, peer.Equal(decoded))

	_, err = ParseBGPPeer(`{"as_num": "1"}`)
	assert.Error(t, err)
}

func TestBGPPeerEqualNormalizes(t *testing.T) {
	a, err := NewBGPPeer("::ffff:10.0.0.1", "1.0")
	require.NoError(t, err)
	b, err := NewBGPPeer("10.0.0.1", "65536")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	c := b.Copy()
	c.ASNumber = 1
	assert.False(t, b.Equal(c))
}

func TestNodeMeshJSON(t *testing.T) {
	data, err := json.Marshal(NodeMesh{Enabled: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled": true}`, string(data))
}
