package datastore

import (
	"context"
	"encoding/json"
	"path"
	"slices"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
)

// CreateProfile writes a profile tagged with its own name. With nil rules
// members accept traffic from each other and send anywhere. An existing
// profile of the same name is overwritten.
//
// Tags, labels and rules are three independent writes; a concurrent
// reader may observe some of them before the others.
func (c *Client) CreateProfile(ctx context.Context, name string, rules *types.RuleSet, labels map[string]string) (err error) {
	defer c.finish("create_profile", metrics.NewTimer(), &err)

	profile, err := types.NewProfile(name)
	if err != nil {
		return err
	}
	if err := profile.SetTags([]string{name}); err != nil {
		return err
	}
	if labels != nil {
		profile.Labels = labels
	}
	if rules != nil {
		if err := rules.Validate(); err != nil {
			return err
		}
		profile.Rules = *rules
	} else {
		profile.Rules = types.DefaultProfileRules(name)
	}

	tags, err := profile.TagsJSON()
	if err != nil {
		return err
	}
	if err := c.write(ctx, paths.ProfileTags(name), tags); err != nil {
		return err
	}
	encodedLabels, err := profile.LabelsJSON()
	if err != nil {
		return err
	}
	if err := c.write(ctx, paths.ProfileLabels(name), encodedLabels); err != nil {
		return err
	}
	encodedRules, err := profile.Rules.JSON()
	if err != nil {
		return err
	}
	if err := c.write(ctx, paths.ProfileRules(name), encodedRules); err != nil {
		return err
	}

	c.logger().Info().Str("profile", name).Msg("Profile created")
	return nil
}

// GetProfile assembles a profile from its keys. Missing tags, labels or
// rules read as empty; only a missing profile directory is an error.
func (c *Client) GetProfile(ctx context.Context, name string) (profile *types.Profile, err error) {
	defer c.finish("get_profile", metrics.NewTimer(), &err)

	if _, err := c.read(ctx, paths.Profile(name), false); err != nil {
		if storage.IsKeyNotFound(err) {
			return nil, notFound("profile", name)
		}
		return nil, err
	}

	profile, err = types.NewProfile(name)
	if err != nil {
		return nil, err
	}

	if value, ok, err := c.optionalValue(ctx, paths.ProfileTags(name)); err != nil {
		return nil, err
	} else if ok {
		tags, err := types.ParseTags(value)
		if err != nil {
			return nil, corrupt(paths.ProfileTags(name), err)
		}
		profile.Tags = tags
	}

	if value, ok, err := c.optionalValue(ctx, paths.ProfileLabels(name)); err != nil {
		return nil, err
	} else if ok {
		labels := map[string]string{}
		if err := json.Unmarshal([]byte(value), &labels); err != nil {
			return nil, corrupt(paths.ProfileLabels(name), err)
		}
		profile.Labels = labels
	}

	if value, ok, err := c.optionalValue(ctx, paths.ProfileRules(name)); err != nil {
		return nil, err
	} else if ok {
		rules, err := types.ParseRuleSet(value)
		if err != nil {
			return nil, corrupt(paths.ProfileRules(name), err)
		}
		profile.Rules = *rules
	}

	return profile, nil
}

// optionalValue reads key, reporting false instead of an error when it is
// missing
func (c *Client) optionalValue(ctx context.Context, key string) (string, bool, error) {
	value, err := c.readValue(ctx, key)
	if storage.IsKeyNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// ProfileUpdateTags writes the profile's tag set, creating the profile if
// needed
func (c *Client) ProfileUpdateTags(ctx context.Context, profile *types.Profile) (err error) {
	defer c.finish("profile_update_tags", metrics.NewTimer(), &err)

	tags, err := profile.TagsJSON()
	if err != nil {
		return err
	}
	return c.write(ctx, paths.ProfileTags(profile.Name), tags)
}

// ProfileUpdateRules writes the profile's rules, creating the profile if
// needed
func (c *Client) ProfileUpdateRules(ctx context.Context, profile *types.Profile) (err error) {
	defer c.finish("profile_update_rules", metrics.NewTimer(), &err)

	if err := profile.Rules.Validate(); err != nil {
		return err
	}
	rules, err := profile.Rules.JSON()
	if err != nil {
		return err
	}
	return c.write(ctx, paths.ProfileRules(profile.Name), rules)
}

// RemoveProfile deletes a profile and all its keys
func (c *Client) RemoveProfile(ctx context.Context, name string) (err error) {
	defer c.finish("remove_profile", metrics.NewTimer(), &err)

	if err := c.removeTree(ctx, paths.Profile(name)); err != nil {
		if storage.IsKeyNotFound(err) {
			return notFound("profile", name)
		}
		return err
	}
	c.logger().Info().Str("profile", name).Msg("Profile removed")
	return nil
}

// ProfileExists reports whether a profile directory exists for name
func (c *Client) ProfileExists(ctx context.Context, name string) (exists bool, err error) {
	defer c.finish("profile_exists", metrics.NewTimer(), &err)
	return c.exists(ctx, paths.Profile(name))
}

func (c *Client) exists(ctx context.Context, key string) (bool, error) {
	_, err := c.read(ctx, key, false)
	if storage.IsKeyNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetProfileNames returns the sorted names of all profiles
func (c *Client) GetProfileNames(ctx context.Context) (names []string, err error) {
	defer c.finish("get_profile_names", metrics.NewTimer(), &err)

	root := paths.Profiles()
	node, err := c.read(ctx, root, false)
	if storage.IsKeyNotFound(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	names = []string{}
	for _, child := range node.Children() {
		// an empty profiles directory reports itself as its only child
		if child.Key == root {
			continue
		}
		names = append(names, path.Base(child.Key))
	}
	slices.Sort(names)
	return names, nil
}

// GetProfileMembers returns every endpoint that lists name among its
// profiles, in store order.
func (c *Client) GetProfileMembers(ctx context.Context, name string) (members []*VersionedEndpoint, err error) {
	defer c.finish("get_profile_members", metrics.NewTimer(), &err)

	endpoints, err := c.getEndpoints(ctx, paths.EndpointFilter{})
	if err != nil {
		return nil, err
	}
	members = []*VersionedEndpoint{}
	for _, ep := range endpoints {
		if slices.Contains(ep.Endpoint.ProfileIDs, name) {
			members = append(members, ep)
		}
	}
	return members, nil
}
