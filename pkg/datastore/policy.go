package datastore

import (
	"context"
	"encoding/json"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
)

// SetPolicyTierMetadata creates or replaces the metadata of tier
func (c *Client) SetPolicyTierMetadata(ctx context.Context, tier string, md types.TierMetadata) (err error) {
	defer c.finish("set_policy_tier_metadata", metrics.NewTimer(), &err)

	if !types.ValidateCharacters(tier) {
		return &types.ValidationError{Field: "tier", Value: tier, Reason: "only letters, digits, '_', '.' and '-' are allowed"}
	}
	data, err := json.Marshal(md)
	if err != nil {
		return err
	}
	return c.write(ctx, paths.TierMetadata(tier), string(data))
}

// GetPolicyTierMetadata returns the metadata of tier
func (c *Client) GetPolicyTierMetadata(ctx context.Context, tier string) (md *types.TierMetadata, err error) {
	defer c.finish("get_policy_tier_metadata", metrics.NewTimer(), &err)

	value, err := c.readValue(ctx, paths.TierMetadata(tier))
	if storage.IsKeyNotFound(err) {
		return nil, notFound("policy tier", tier)
	}
	if err != nil {
		return nil, err
	}
	md = &types.TierMetadata{}
	if err := json.Unmarshal([]byte(value), md); err != nil {
		return nil, corrupt(paths.TierMetadata(tier), err)
	}
	return md, nil
}

// DeletePolicyTier deletes tier together with all its policies
func (c *Client) DeletePolicyTier(ctx context.Context, tier string) (err error) {
	defer c.finish("delete_policy_tier", metrics.NewTimer(), &err)

	if err := c.removeTree(ctx, paths.Tier(tier)); err != nil {
		if storage.IsKeyNotFound(err) {
			return notFound("policy tier", tier)
		}
		return err
	}
	return nil
}

// CreatePolicy stores a new policy in tier. Nil rules allow all traffic
// and a nil order means types.DefaultPolicyOrder.
func (c *Client) CreatePolicy(ctx context.Context, tier, name, selector string, order *int, rules *types.RuleSet) (policy *types.Policy, err error) {
	defer c.finish("create_policy", metrics.NewTimer(), &err)

	policy, err = types.NewPolicy(tier, name, selector)
	if err != nil {
		return nil, err
	}
	if order != nil {
		policy.Order = *order
	}
	if rules != nil {
		policy.Rules = *rules
	}
	if err := c.writePolicy(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// UpdatePolicy writes policy, creating it if needed
func (c *Client) UpdatePolicy(ctx context.Context, policy *types.Policy) (err error) {
	defer c.finish("update_policy", metrics.NewTimer(), &err)
	return c.writePolicy(ctx, policy)
}

func (c *Client) writePolicy(ctx context.Context, policy *types.Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	data, err := policy.JSON()
	if err != nil {
		return err
	}
	return c.write(ctx, paths.Policy(policy.Tier, policy.Name), data)
}

// GetPolicy returns the policy name in tier
func (c *Client) GetPolicy(ctx context.Context, tier, name string) (policy *types.Policy, err error) {
	defer c.finish("get_policy", metrics.NewTimer(), &err)

	value, err := c.readValue(ctx, paths.Policy(tier, name))
	if storage.IsKeyNotFound(err) {
		return nil, notFound("policy", tier+"/"+name)
	}
	if err != nil {
		return nil, err
	}
	policy, err = types.ParsePolicy(tier, name, value)
	if err != nil {
		return nil, corrupt(paths.Policy(tier, name), err)
	}
	return policy, nil
}

// RemovePolicy deletes the policy name in tier
func (c *Client) RemovePolicy(ctx context.Context, tier, name string) (err error) {
	defer c.finish("remove_policy", metrics.NewTimer(), &err)

	if err := c.removeTree(ctx, paths.Policy(tier, name)); err != nil {
		if storage.IsKeyNotFound(err) {
			return notFound("policy", tier+"/"+name)
		}
		return err
	}
	return nil
}

// PolicyExists reports whether tier holds a policy called name
func (c *Client) PolicyExists(ctx context.Context, tier, name string) (exists bool, err error) {
	defer c.finish("policy_exists", metrics.NewTimer(), &err)
	return c.exists(ctx, paths.Policy(tier, name))
}
