package datastore

import (
	"context"
	"testing"

	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyTierMetadata(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetPolicyTierMetadata(ctx, "default")
	assert.True(t, IsNotFound(err))

	order := 10
	require.NoError(t, c.SetPolicyTierMetadata(ctx, "default", types.TierMetadata{Order: &order}))
	assert.JSONEq(t, `{"order": 10}`, mustValue(t, rec, paths.TierMetadata("default")))

	md, err := c.GetPolicyTierMetadata(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, md.Order)
	assert.Equal(t, 10, *md.Order)

	_, err = c.CreatePolicy(ctx, "default", "allow-web", "role == 'web'", nil, nil)
	require.NoError(t, err)

	require.NoError(t, c.DeletePolicyTier(ctx, "default"))
	assert.True(t, IsNotFound(c.DeletePolicyTier(ctx, "default")))
	exists, err := c.PolicyExists(ctx, "default", "allow-web")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPolicyLifecycle(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetPolicy(ctx, "default", "allow-web")
	assert.True(t, IsNotFound(err))

	created, err := c.CreatePolicy(ctx, "default", "allow-web", "role == 'web'", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultPolicyOrder, created.Order)
	assert.True(t, created.Rules.Equal(&types.RuleSet{
		ID:            "allow-web",
		InboundRules:  []types.Rule{{Action: types.ActionAllow}},
		OutboundRules: []types.Rule{{Action: types.ActionAllow}},
	}))

	stored, err := c.GetPolicy(ctx, "default", "allow-web")
	require.NoError(t, err)
	assert.True(t, created.Equal(stored))

	stored.Order = 5
	stored.Rules.InboundRules = []types.Rule{{Action: types.ActionDeny, Protocol: "udp"}}
	require.NoError(t, c.UpdatePolicy(ctx, stored))

	again, err := c.GetPolicy(ctx, "default", "allow-web")
	require.NoError(t, err)
	assert.True(t, stored.Equal(again))

	exists, err := c.PolicyExists(ctx, "default", "allow-web")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.RemovePolicy(ctx, "default", "allow-web"))
	assert.True(t, IsNotFound(c.RemovePolicy(ctx, "default", "allow-web")))
}

func TestCreatePolicyWithOrderAndRules(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	order := 1
	rules := types.RuleSet{ID: "deny-all", InboundRules: []types.Rule{{Action: types.ActionDeny}}}
	policy, err := c.CreatePolicy(ctx, "security", "deny-all", "all()", &order, &rules)
	require.NoError(t, err)

	stored, err := c.GetPolicy(ctx, "security", "deny-all")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Order)
	assert.True(t, policy.Rules.Equal(&stored.Rules))
}
