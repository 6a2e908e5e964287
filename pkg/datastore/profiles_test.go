package datastore

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProfileDefaults(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateProfile(ctx, "web", nil, nil))
	assert.Equal(t, []string{
		"set /calico/v1/policy/profile/web/tags",
		"set /calico/v1/policy/profile/web/labels",
		"set /calico/v1/policy/profile/web/rules",
	}, rec.Writes())
	assert.JSONEq(t, `["web"]`, mustValue(t, rec, paths.ProfileTags("web")))
	assert.JSONEq(t, `{}`, mustValue(t, rec, paths.ProfileLabels("web")))

	profile, err := c.GetProfile(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, []string{"web"}, profile.Tags)
	assert.True(t, profile.Rules.Equal(&types.RuleSet{
		ID:            "web",
		InboundRules:  []types.Rule{{Action: types.ActionAllow, SrcTag: "web"}},
		OutboundRules: []types.Rule{{Action: types.ActionAllow}},
	}))
}

func TestCreateProfileWithRulesAndLabels(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	rules := types.RuleSet{
		ID:            "db",
		InboundRules:  []types.Rule{{Action: types.ActionAllow, Protocol: "tcp", DstPorts: []types.Port{types.SinglePort(5432)}}},
		OutboundRules: []types.Rule{{Action: types.ActionDeny}},
	}
	require.NoError(t, c.CreateProfile(ctx, "db", &rules, map[string]string{"tier": "data"}))

	profile, err := c.GetProfile(ctx, "db")
	require.NoError(t, err)
	assert.True(t, profile.Rules.Equal(&rules))
	assert.Equal(t, map[string]string{"tier": "data"}, profile.Labels)
}

func TestCreateProfileValidation(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	var vErr *types.ValidationError
	assert.True(t, errors.As(c.CreateProfile(ctx, "bad name", nil, nil), &vErr))

	rules := types.RuleSet{ID: "p", InboundRules: []types.Rule{{Protocol: "tcp"}}}
	assert.True(t, errors.As(c.CreateProfile(ctx, "p", &rules, nil), &vErr))
	assert.Empty(t, rec.Writes())
}

func TestGetProfilePartial(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetProfile(ctx, "web")
	assert.True(t, IsNotFound(err))

	// Only the rules key exists
	require.NoError(t, rec.Set(ctx, paths.ProfileRules("web"), `{"id": "web", "inbound_rules": [{"action": "deny"}]}`, nil))

	profile, err := c.GetProfile(ctx, "web")
	require.NoError(t, err)
	assert.Empty(t, profile.Tags)
	assert.NotNil(t, profile.Tags)
	assert.Len(t, profile.Rules.InboundRules, 1)
	assert.Empty(t, profile.Rules.OutboundRules)
}

func TestProfileUpdates(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateProfile(ctx, "web", nil, nil))
	profile, err := c.GetProfile(ctx, "web")
	require.NoError(t, err)

	require.NoError(t, profile.AddTag("frontend"))
	require.NoError(t, c.ProfileUpdateTags(ctx, profile))

	profile.Rules.OutboundRules = append(profile.Rules.OutboundRules, types.Rule{Action: types.ActionDeny})
	require.NoError(t, c.ProfileUpdateRules(ctx, profile))

	stored, err := c.GetProfile(ctx, "web")
	require.NoError(t, err)
	assert.True(t, profile.Equal(stored))
	assert.Equal(t, []string{"frontend", "web"}, stored.Tags)
}

func TestRemoveProfile(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	assert.True(t, IsNotFound(c.RemoveProfile(ctx, "web")))

	require.NoError(t, c.CreateProfile(ctx, "web", nil, nil))
	exists, err := c.ProfileExists(ctx, "web")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.RemoveProfile(ctx, "web"))
	exists, err = c.ProfileExists(ctx, "web")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetProfileNames(t *testing.T) {
	c, rec := newTestClient(t)
	ctx := context.Background()

	names, err := c.GetProfileNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, names)

	require.NoError(t, rec.Set(ctx, paths.Profiles(), "", &storage.SetOptions{Dir: true}))
	names, err = c.GetProfileNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, names)

	for _, name := range []string{"web", "db", "cache"} {
		require.NoError(t, c.CreateProfile(ctx, name, nil, nil))
	}
	names, err = c.GetProfileNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "db", "web"}, names)
}

func TestGetProfileMembers(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	members, err := c.GetProfileMembers(ctx, "TEST")
	require.NoError(t, err)
	assert.Empty(t, members)

	for _, ep := range []*types.Endpoint{
		newEndpoint(t, "node1", "docker", "w1", "ep1", "TEST"),
		newEndpoint(t, "node1", "docker", "w2", "ep2", "UNIT"),
		newEndpoint(t, "node2", "docker", "w3", "ep3", "TEST"),
		newEndpoint(t, "node2", "docker", "w4", "ep4", "UNIT"),
	} {
		_, err := c.SetEndpoint(ctx, ep)
		require.NoError(t, err)
	}

	tests := []struct {
		profile string
		want    []string
	}{
		{"TEST", []string{"ep1", "ep3"}},
		{"UNIT", []string{"ep2", "ep4"}},
		{"UNIT_TEST", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			members, err := c.GetProfileMembers(ctx, tt.profile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, endpointIDs(members))
		})
	}
}
