package types

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCounts(t *testing.T) {
	h := NewAllocationHandle("h1")
	other := netip.MustParsePrefix("10.11.45.0/26")

	assert.Equal(t, 3, h.Increment(blockV4, 3))
	assert.Equal(t, 5, h.Increment(blockV4, 2))
	assert.Equal(t, 1, h.Increment(other, 1))

	n, err := h.Decrement(blockV4, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var tooLow *AddressCountTooLowError
	_, err = h.Decrement(blockV4, 2)
	require.ErrorAs(t, err, &tooLow)
	assert.Equal(t, 1, tooLow.Count)
	assert.Equal(t, 1, h.Blocks[blockV4])

	_, err = h.Decrement(blockV6, 1)
	assert.ErrorAs(t, err, &tooLow)

	n, err = h.Decrement(blockV4, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NotContains(t, h.Blocks, blockV4)
	assert.False(t, h.IsEmpty())

	_, err = h.Decrement(other, 1)
	require.NoError(t, err)
	assert.True(t, h.IsEmpty())
}

func TestHandleJSON(t *testing.T) {
	h := NewAllocationHandle("h1")
	h.Increment(blockV4, 3)
	h.Increment(blockV6, 1)

	data, err := h.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "h1", "block": {"10.11.12.0/26": 3, "2001:abcd:def0::/122": 1}}`, data)

	decoded, err := ParseAllocationHandle(data)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)

	for _, bad := range []string{
		`{"id": "h1", "block": {"10.11.12.0/24": 3}}`,
		`{"id": "h1", "block": {"10.11.12.0/26": 0}}`,
		`{"id": "h1", "block": {"nope": 1}}`,
	} {
		_, err := ParseAllocationHandle(bad)
		assert.Error(t, err, bad)
	}
}

func TestIPAMConfig(t *testing.T) {
	cfg, err := ParseIPAMConfig(`{"strict_affinity": true}`)
	require.NoError(t, err)
	assert.Equal(t, IPAMConfig{StrictAffinity: true, AutoAllocateBlocks: true}, cfg)

	assert.NoError(t, DefaultIPAMConfig().Validate())
	assert.NoError(t, IPAMConfig{StrictAffinity: true}.Validate())
	assert.Error(t, IPAMConfig{}.Validate())
}
