package datastore

import (
	"context"
	"net/netip"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
)

// PoolFilter narrows GetIPPools. The zero value returns every pool.
type PoolFilter struct {
	// IPAM keeps only pools whose IPAM flag equals *IPAM
	IPAM *bool
	// ExcludeDisabled drops disabled pools
	ExcludeDisabled bool
}

func (f PoolFilter) keep(pool *types.IPPool) bool {
	if f.IPAM != nil && pool.IPAM != *f.IPAM {
		return false
	}
	return !(f.ExcludeDisabled && pool.Disabled)
}

// GetIPPools returns the pools of version v that pass filter, in store
// order. No configured pools yields an empty list.
func (c *Client) GetIPPools(ctx context.Context, v paths.IPVersion, filter PoolFilter) (pools []*types.IPPool, err error) {
	defer c.finish("get_ip_pools", metrics.NewTimer(), &err)
	return c.getIPPools(ctx, v, filter)
}

func (c *Client) getIPPools(ctx context.Context, v paths.IPVersion, filter PoolFilter) ([]*types.IPPool, error) {
	leaves, err := c.scanLeaves(ctx, paths.IPPools(v))
	if err != nil {
		return nil, err
	}

	pools := []*types.IPPool{}
	for _, leaf := range leaves {
		if leaf.Value == "" {
			continue
		}
		pool, err := types.ParseIPPool(leaf.Value)
		if err != nil {
			return nil, corrupt(leaf.Key, err)
		}
		if filter.keep(pool) {
			pools = append(pools, pool)
		}
	}
	return pools, nil
}

// GetPool returns the first pool containing addr
func (c *Client) GetPool(ctx context.Context, addr netip.Addr) (pool *types.IPPool, err error) {
	defer c.finish("get_pool", metrics.NewTimer(), &err)

	addr = addr.Unmap()
	pools, err := c.getIPPools(ctx, paths.VersionOf(addr), PoolFilter{})
	if err != nil {
		return nil, err
	}
	for _, candidate := range pools {
		if candidate.Contains(addr) {
			return candidate, nil
		}
	}
	return nil, notFound("pool containing", addr.String())
}

// GetIPPoolConfig returns the pool stored for cidr. Host bits of cidr are
// ignored.
func (c *Client) GetIPPoolConfig(ctx context.Context, cidr netip.Prefix) (pool *types.IPPool, err error) {
	defer c.finish("get_ip_pool_config", metrics.NewTimer(), &err)

	value, err := c.readValue(ctx, paths.IPPool(cidr))
	if storage.IsKeyNotFound(err) {
		return nil, notFound("IP pool", cidr.Masked().String())
	}
	if err != nil {
		return nil, err
	}
	pool, err = types.ParseIPPool(value)
	if err != nil {
		return nil, corrupt(paths.IPPool(cidr), err)
	}
	return pool, nil
}

// SetIPPoolConfig writes pool, replacing any pool with the same CIDR
func (c *Client) SetIPPoolConfig(ctx context.Context, pool *types.IPPool) (err error) {
	defer c.finish("set_ip_pool_config", metrics.NewTimer(), &err)
	return c.setIPPool(ctx, pool)
}

func (c *Client) setIPPool(ctx context.Context, pool *types.IPPool) error {
	if err := pool.Validate(); err != nil {
		return err
	}
	data, err := pool.JSON()
	if err != nil {
		return err
	}
	return c.write(ctx, paths.IPPool(pool.CIDR), data)
}

// AddIPPool writes pool. An IP-in-IP pool also switches IP-in-IP on
// globally if it is not already.
func (c *Client) AddIPPool(ctx context.Context, pool *types.IPPool) (err error) {
	defer c.finish("add_ip_pool", metrics.NewTimer(), &err)

	if err := pool.Validate(); err != nil {
		return err
	}
	if pool.IPIP {
		key := paths.Config(ConfigIPInIPEnabled)
		current, _, err := c.optionalValue(ctx, key)
		if err != nil {
			return err
		}
		if current != "true" {
			if err := c.write(ctx, key, "true"); err != nil {
				return err
			}
		}
	}
	if err := c.setIPPool(ctx, pool); err != nil {
		return err
	}
	c.logger().Info().Str("cidr", pool.CIDR.String()).Msg("IP pool added")
	return nil
}

// RemoveIPPool deletes the pool stored for cidr
func (c *Client) RemoveIPPool(ctx context.Context, cidr netip.Prefix) (err error) {
	defer c.finish("remove_ip_pool", metrics.NewTimer(), &err)

	if err := c.remove(ctx, paths.IPPool(cidr)); err != nil {
		if storage.IsKeyNotFound(err) {
			return notFound("IP pool", cidr.Masked().String())
		}
		return err
	}
	return nil
}
