package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileTags(t *testing.T) {
	p, err := NewProfile("web")
	require.NoError(t, err)

	require.NoError(t, p.AddTag("b"))
	require.NoError(t, p.AddTag("a"))
	require.NoError(t, p.AddTag("a"))
	assert.Equal(t, []string{"a", "b"}, p.Tags)
	assert.Error(t, p.AddTag("ca$h"))

	assert.True(t, p.RemoveTag("a"))
	assert.False(t, p.RemoveTag("a"))

	data, err := p.TagsJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["b"]`, data)

	tags, err := ParseTags(`["z", "y", "z"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, tags)
}

func TestProfileNameValidation(t *testing.T) {
	_, err := NewProfile("bad name")
	assert.Error(t, err)
}

func TestProfileEqualAndCopy(t *testing.T) {
	p, err := NewProfile("web")
	require.NoError(t, err)
	p.Rules = DefaultProfileRules("web")
	require.NoError(t, p.SetTags([]string{"web"}))

	c := p.Copy()
	assert.True(t, p.Equal(c))

	c.Rules.InboundRules[0].SrcTag = "other"
	assert.False(t, p.Equal(c))
	assert.Equal(t, "web", p.Rules.InboundRules[0].SrcTag)
}

func TestPolicyJSON(t *testing.T) {
	p, err := NewPolicy("default", "allow-web", "role == 'web'")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicyOrder, p.Order)

	data, err := p.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"selector": "role == 'web'",
		"order": 100,
		"inbound_rules": [{"action": "allow"}],
		"outbound_rules": [{"action": "allow"}]
	}`, data)

	decoded, err := ParsePolicy("default", "allow-web", data)
	require.NoError(t, err)
	assert.True(t, p.Equal(decoded))
}
