package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"maps"
	"math/rand/v2"
	"net/netip"
	"path"
	"slices"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// maxAffinityBits bounds a ClaimAffinity or ReleaseAffinity call to
// 2^maxAffinityBits blocks
const maxAffinityBits = 16

// AutoAssignArgs describes an AutoAssign request
type AutoAssignArgs struct {
	Num4 int
	Num6 int
	// HandleID tags the addresses so they can be listed and released
	// together. Optional.
	HandleID string
	Attrs    map[string]string
	// Hostname owns the blocks addresses are taken from. Defaults to the
	// client hostname.
	Hostname string
	// IPv4Pool and IPv6Pool restrict assignment to one configured pool
	IPv4Pool netip.Prefix
	IPv6Pool netip.Prefix
}

// AssignIPArgs describes an AssignIP request
type AssignIPArgs struct {
	IP       netip.Addr
	HandleID string
	Attrs    map[string]string
	Hostname string
}

// AffinityRelease is the outcome of ReleaseAffinity per block
type AffinityRelease struct {
	Released       []netip.Prefix
	NotClaimed     []netip.Prefix
	ClaimedByOther []netip.Prefix
}

func (c *Client) hostOrDefault(host string) string {
	if host == "" {
		return c.hostname
	}
	return host
}

func validateHandleID(handleID string) error {
	if handleID != "" && !types.ValidateCharacters(handleID) {
		return &types.ValidationError{Field: "handle", Value: handleID, Reason: "only letters, digits, '_', '.' and '-' are allowed"}
	}
	return nil
}

func validatePoolVersion(pool netip.Prefix, v paths.IPVersion) error {
	if pool.IsValid() && paths.VersionOf(pool.Addr()) != v {
		return &types.ValidationError{Field: "pool", Value: pool.String(), Reason: "not an IPv" + v.String() + " network"}
	}
	return nil
}

// AutoAssign picks and assigns addresses. Each host assigns out of the
// blocks it has affinity to first, then claims new blocks when the config
// allows it, then takes free addresses in other hosts' blocks unless
// affinity is strict. Near pool exhaustion fewer addresses than requested
// are returned, without an error.
func (c *Client) AutoAssign(ctx context.Context, args AutoAssignArgs) (v4, v6 []netip.Addr, err error) {
	defer c.finish("auto_assign", metrics.NewTimer(), &err)

	if args.Num4 < 0 || args.Num6 < 0 {
		return nil, nil, &types.ValidationError{Field: "count", Reason: "cannot assign a negative number of addresses"}
	}
	if err := validateHandleID(args.HandleID); err != nil {
		return nil, nil, err
	}
	if err := validatePoolVersion(args.IPv4Pool, paths.IPv4); err != nil {
		return nil, nil, err
	}
	if err := validatePoolVersion(args.IPv6Pool, paths.IPv6); err != nil {
		return nil, nil, err
	}
	host := c.hostOrDefault(args.Hostname)

	c.logger().Info().Int("ipv4", args.Num4).Int("ipv6", args.Num6).Str("host", host).Msg("Auto-assigning addresses")
	if v4, err = c.autoAssign(ctx, paths.IPv4, args.Num4, args, host, args.IPv4Pool); err != nil {
		return nil, nil, err
	}
	if v6, err = c.autoAssign(ctx, paths.IPv6, args.Num6, args, host, args.IPv6Pool); err != nil {
		return v4, nil, err
	}
	return v4, v6, nil
}

func (c *Client) autoAssign(ctx context.Context, v paths.IPVersion, num int, args AutoAssignArgs, host string, pool netip.Prefix) ([]netip.Addr, error) {
	if num == 0 {
		return nil, nil
	}
	logger := c.logger().With().Str("version", "ipv"+v.String()).Str("host", host).Logger()

	affine, err := c.affineBlocks(ctx, host, v, pool)
	if err != nil {
		return nil, err
	}
	assigned, err := c.assignFromAffineBlocks(ctx, affine, num, args, host, &logger)
	if err != nil || len(assigned) == num {
		return assigned, err
	}

	cfg, err := c.ipamConfig(ctx)
	if err != nil {
		return assigned, err
	}
	if cfg.AutoAllocateBlocks {
		for len(assigned) < num {
			block, err := c.newAffineBlock(ctx, host, v, pool, cfg)
			if errors.Is(err, errNoFreeBlocks) {
				logger.Info().Msg("No free blocks left to claim")
				break
			}
			if err != nil {
				return assigned, err
			}
			addrs, err := c.autoAssignInBlock(ctx, block, num-len(assigned), args, host, true)
			if err != nil {
				return assigned, err
			}
			assigned = append(assigned, addrs...)
		}
	}

	if len(assigned) < num && !cfg.StrictAffinity {
		logger.Info().Int("remaining", num-len(assigned)).Msg("Assigning from blocks without affinity")
		addrs, err := c.assignWithoutAffinity(ctx, v, pool, num-len(assigned), args, host, affine)
		assigned = append(assigned, addrs...)
		if err != nil {
			return assigned, err
		}
	}
	logger.Info().Int("assigned", len(assigned)).Int("requested", num).Msg("Auto-assign complete")
	return assigned, nil
}

// assignFromAffineBlocks tries blocks in order. A block the host lists
// but that does not exist yet is requeued a few times, since another client
// on the host may be creating it.
func (c *Client) assignFromAffineBlocks(ctx context.Context, blocks []netip.Prefix, num int, args AutoAssignArgs, host string, logger *zerolog.Logger) ([]netip.Addr, error) {
	var (
		assigned []netip.Addr
		missing  int
		queue    = slices.Clone(blocks)
	)
	for len(assigned) < num && len(queue) > 0 {
		block := queue[0]
		queue = queue[1:]

		addrs, err := c.autoAssignInBlock(ctx, block, num-len(assigned), args, host, true)
		var noAffinity *types.NoHostAffinityError
		switch {
		case errors.Is(err, errNoBlock):
			missing++
			if missing <= missingBlockRetries {
				logger.Warn().Str("block", block.String()).Msg("Affine block does not exist, retrying")
				queue = append(queue, block)
			} else {
				logger.Warn().Str("block", block.String()).Msg("Affine block does not exist")
			}
			continue
		case errors.As(err, &noAffinity):
			logger.Warn().Str("block", block.String()).Msg("Block has no affinity to this host, skipping")
			continue
		case err != nil:
			return assigned, err
		}
		assigned = append(assigned, addrs...)
	}
	return assigned, nil
}

// assignWithoutAffinity visits the existing blocks outside exclude in an
// order seeded by the host name
func (c *Client) assignWithoutAffinity(ctx context.Context, v paths.IPVersion, pool netip.Prefix, num int, args AutoAssignArgs, host string, exclude []netip.Prefix) ([]netip.Addr, error) {
	pools, err := c.ipamPools(ctx, v)
	if err != nil {
		return nil, err
	}
	if pool.IsValid() {
		pool = paths.CanonicalPrefix(pool)
		if !slices.Contains(pools, pool) {
			return nil, notFound("IP pool", pool.String())
		}
		pools = []netip.Prefix{pool}
	}
	blocks, err := c.existingBlocks(ctx, v, pools)
	if err != nil {
		return nil, err
	}
	blocks = slices.DeleteFunc(blocks, func(b netip.Prefix) bool { return slices.Contains(exclude, b) })
	shuffleBlocks(blocks, host)

	var assigned []netip.Addr
	for _, block := range blocks {
		if len(assigned) == num {
			break
		}
		addrs, err := c.autoAssignInBlock(ctx, block, num-len(assigned), args, host, false)
		var noAffinity *types.NoHostAffinityError
		if errors.Is(err, errNoBlock) || errors.As(err, &noAffinity) {
			continue
		}
		if err != nil {
			return assigned, err
		}
		assigned = append(assigned, addrs...)
	}
	return assigned, nil
}

// existingBlocks lists the stored blocks of version v inside pools
func (c *Client) existingBlocks(ctx context.Context, v paths.IPVersion, pools []netip.Prefix) ([]netip.Prefix, error) {
	nodes, err := c.scanChildren(ctx, paths.IPAMBlocks(v))
	if err != nil {
		return nil, err
	}
	var blocks []netip.Prefix
	for _, node := range nodes {
		block, err := paths.ParsePoolKey(path.Base(node.Key))
		if err != nil {
			return nil, corrupt(node.Key, err)
		}
		if slices.ContainsFunc(pools, func(pool netip.Prefix) bool { return prefixContains(pool, block) }) {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

func shuffleBlocks(blocks []netip.Prefix, seed string) {
	h := fnv.New64a()
	h.Write([]byte(seed))
	rnd := rand.New(rand.NewPCG(h.Sum64(), 1))
	rnd.Shuffle(len(blocks), func(i, j int) { blocks[i], blocks[j] = blocks[j], blocks[i] })
}

// autoAssignInBlock assigns up to num addresses out of block. The handle is
// counted up before the block is written and back down if the write loses
// a race, so a handle never undercounts its addresses.
func (c *Client) autoAssignInBlock(ctx context.Context, block netip.Prefix, num int, args AutoAssignArgs, host string, affinityCheck bool) ([]netip.Addr, error) {
	for range ipamRetries {
		b, err := c.readBlock(ctx, block)
		if err != nil {
			return nil, err
		}
		addrs, err := b.AutoAssign(num, args.HandleID, args.Attrs, host, affinityCheck)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			return nil, nil
		}

		if args.HandleID != "" {
			if err := c.incrementHandle(ctx, args.HandleID, block, len(addrs)); err != nil {
				return nil, err
			}
		}
		err = c.compareAndSwapBlock(ctx, b)
		if errors.Is(err, errCASFailed) {
			if args.HandleID != "" {
				if err := c.decrementHandle(ctx, args.HandleID, block, len(addrs)); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		metrics.IPAMAddressesAssigned.WithLabelValues("ipv" + paths.VersionOf(block.Addr()).String()).Add(float64(len(addrs)))
		return addrs, nil
	}
	return nil, retriesExhausted("block " + block.String())
}

// AssignIP assigns a specific address. The address's block is created and
// claimed for the host when it does not exist, provided an enabled IPAM pool
// covers it.
func (c *Client) AssignIP(ctx context.Context, args AssignIPArgs) (err error) {
	defer c.finish("assign_ip", metrics.NewTimer(), &err)

	if !args.IP.IsValid() {
		return &types.ValidationError{Field: "ip", Reason: "missing"}
	}
	if err := validateHandleID(args.HandleID); err != nil {
		return err
	}
	addr := args.IP.Unmap()
	host := c.hostOrDefault(args.Hostname)
	block := types.BlockFor(addr)

	var cfg *types.IPAMConfig
	for range ipamRetries {
		b, err := c.readBlock(ctx, block)
		if errors.Is(err, errNoBlock) {
			in, err := c.cidrInPools(ctx, block)
			if err != nil {
				return err
			}
			if !in {
				return notFound("IP pool containing", addr.String())
			}
			if cfg == nil {
				loaded, err := c.ipamConfig(ctx)
				if err != nil {
					return err
				}
				cfg = &loaded
			}
			err = c.claimBlockAffinity(ctx, host, block, *cfg)
			if err != nil && !errors.Is(err, ErrAffinityClaimed) {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		if err := b.Assign(addr, args.HandleID, args.Attrs, host); err != nil {
			return err
		}
		if args.HandleID != "" {
			if err := c.incrementHandle(ctx, args.HandleID, block, 1); err != nil {
				return err
			}
		}
		err = c.compareAndSwapBlock(ctx, b)
		if errors.Is(err, errCASFailed) {
			if args.HandleID != "" {
				if err := c.decrementHandle(ctx, args.HandleID, block, 1); err != nil {
					return err
				}
			}
			continue
		}
		if err != nil {
			return err
		}
		metrics.IPAMAddressesAssigned.WithLabelValues("ipv" + paths.VersionOf(addr).String()).Inc()
		c.logger().Info().Str("ip", addr.String()).Str("host", host).Msg("Address assigned")
		return nil
	}
	return retriesExhausted("block " + block.String())
}

// ReleaseIPs frees addrs, which may mix versions, and returns those that
// were not assigned. A block left empty with no host affinity is deleted.
func (c *Client) ReleaseIPs(ctx context.Context, addrs []netip.Addr) (unallocated []netip.Addr, err error) {
	defer c.finish("release_ips", metrics.NewTimer(), &err)

	byBlock := map[netip.Prefix][]netip.Addr{}
	for _, addr := range addrs {
		if !addr.IsValid() {
			return nil, &types.ValidationError{Field: "ip", Reason: "missing"}
		}
		addr = addr.Unmap()
		block := types.BlockFor(addr)
		byBlock[block] = append(byBlock[block], addr)
	}

	blocks := slices.SortedFunc(maps.Keys(byBlock), comparePrefixes)
	for _, block := range blocks {
		unalloc, err := c.releaseFromBlock(ctx, block, byBlock[block])
		if err != nil {
			return unallocated, err
		}
		unallocated = append(unallocated, unalloc...)
	}
	c.logger().Info().Int("requested", len(addrs)).Int("unallocated", len(unallocated)).Msg("Addresses released")
	return unallocated, nil
}

func (c *Client) releaseFromBlock(ctx context.Context, block netip.Prefix, addrs []netip.Addr) ([]netip.Addr, error) {
	for range ipamRetries {
		b, err := c.readBlock(ctx, block)
		if errors.Is(err, errNoBlock) {
			return addrs, nil
		}
		if err != nil {
			return nil, err
		}

		unallocated, handles := b.Release(addrs)
		if len(handles) == 0 {
			return unallocated, nil
		}
		if b.IsEmpty() && b.Affinity == "" {
			err = c.deleteBlock(ctx, b)
		} else {
			err = c.compareAndSwapBlock(ctx, b)
		}
		if errors.Is(err, errCASFailed) {
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, handleID := range slices.Sorted(maps.Keys(handles)) {
			if handleID == "" {
				continue
			}
			if err := c.decrementHandle(ctx, handleID, block, handles[handleID]); err != nil {
				return nil, err
			}
		}
		return unallocated, nil
	}
	return nil, retriesExhausted("block " + block.String())
}

func comparePrefixes(a, b netip.Prefix) int {
	if n := a.Addr().Compare(b.Addr()); n != 0 {
		return n
	}
	return a.Bits() - b.Bits()
}

// GetAssignmentsByHandle lists the addresses assigned under handleID
func (c *Client) GetAssignmentsByHandle(ctx context.Context, handleID string) (addrs []netip.Addr, err error) {
	defer c.finish("get_assignments_by_handle", metrics.NewTimer(), &err)

	h, err := c.handleOrNotFound(ctx, handleID)
	if err != nil {
		return nil, err
	}
	for _, block := range slices.SortedFunc(maps.Keys(h.Blocks), comparePrefixes) {
		b, err := c.readBlock(ctx, block)
		if errors.Is(err, errNoBlock) {
			c.logger().Warn().Str("handle", handleID).Str("block", block.String()).Msg("Handle refers to a missing block")
			continue
		}
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, b.IPsByHandle(handleID)...)
	}
	return addrs, nil
}

// ReleaseByHandle frees every address assigned under handleID
func (c *Client) ReleaseByHandle(ctx context.Context, handleID string) (err error) {
	defer c.finish("release_by_handle", metrics.NewTimer(), &err)

	h, err := c.handleOrNotFound(ctx, handleID)
	if err != nil {
		return err
	}
	for _, block := range slices.SortedFunc(maps.Keys(h.Blocks), comparePrefixes) {
		if err := c.releaseHandleInBlock(ctx, handleID, block); err != nil {
			return err
		}
	}
	c.logger().Info().Str("handle", handleID).Msg("Handle released")
	return nil
}

func (c *Client) handleOrNotFound(ctx context.Context, handleID string) (*storedHandle, error) {
	if handleID == "" {
		return nil, &types.ValidationError{Field: "handle", Reason: "missing"}
	}
	if err := validateHandleID(handleID); err != nil {
		return nil, err
	}
	h, err := c.readHandle(ctx, handleID)
	if storage.IsKeyNotFound(err) {
		return nil, notFound("handle", handleID)
	}
	return h, err
}

// releaseHandleInBlock tolerates a block that holds fewer addresses than
// the handle counts; the handle may run ahead of the block while an assign
// is in flight.
func (c *Client) releaseHandleInBlock(ctx context.Context, handleID string, block netip.Prefix) error {
	for range ipamRetries {
		b, err := c.readBlock(ctx, block)
		if errors.Is(err, errNoBlock) {
			return nil
		}
		if err != nil {
			return err
		}
		n := b.ReleaseByHandle(handleID)
		if n == 0 {
			return nil
		}
		err = c.compareAndSwapBlock(ctx, b)
		if errors.Is(err, errCASFailed) {
			continue
		}
		if err != nil {
			return err
		}
		return c.decrementHandle(ctx, handleID, block, n)
	}
	return retriesExhausted("block " + block.String())
}

// GetAssignmentAttributes returns the handle and attributes addr was
// assigned with
func (c *Client) GetAssignmentAttributes(ctx context.Context, addr netip.Addr) (attrs types.AllocationAttribute, err error) {
	defer c.finish("get_assignment_attributes", metrics.NewTimer(), &err)

	if !addr.IsValid() {
		return attrs, &types.ValidationError{Field: "ip", Reason: "missing"}
	}
	addr = addr.Unmap()
	b, err := c.readBlock(ctx, types.BlockFor(addr))
	if errors.Is(err, errNoBlock) {
		return attrs, notFound("assignment", addr.String())
	}
	if err != nil {
		return attrs, err
	}
	attrs, err = b.AttributesFor(addr)
	var notAssigned *types.AddressNotAssignedError
	if errors.As(err, &notAssigned) {
		return attrs, notFound("assignment", addr.String())
	}
	return attrs, err
}

// affinityBlocks validates cidr for an affinity operation and splits it
// into blocks
func affinityBlocks(cidr netip.Prefix) ([]netip.Prefix, error) {
	if !cidr.IsValid() {
		return nil, &types.ValidationError{Field: "cidr", Reason: "missing"}
	}
	cidr = paths.CanonicalPrefix(cidr)
	if err := types.ValidateBlockRange(cidr); err != nil {
		return nil, err
	}
	blockBits := cidr.Addr().BitLen() - types.BlockBits
	if blockBits-cidr.Bits() > maxAffinityBits {
		return nil, &types.ValidationError{Field: "cidr", Value: cidr.String(), Reason: "covers too many blocks"}
	}
	return subnets(cidr, blockBits), nil
}

// ClaimAffinity claims host affinity to every block in cidr. Blocks another
// host already owns are returned as failed; the remaining blocks are still
// claimed.
func (c *Client) ClaimAffinity(ctx context.Context, cidr netip.Prefix, host string) (claimed, failed []netip.Prefix, err error) {
	defer c.finish("claim_affinity", metrics.NewTimer(), &err)

	blocks, err := affinityBlocks(cidr)
	if err != nil {
		return nil, nil, err
	}
	host = c.hostOrDefault(host)
	cidr = paths.CanonicalPrefix(cidr)
	in, err := c.cidrInPools(ctx, cidr)
	if err != nil {
		return nil, nil, err
	}
	if !in {
		return nil, nil, notFound("IP pool containing", cidr.String())
	}
	cfg, err := c.ipamConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	for _, block := range blocks {
		err := c.claimBlockAffinity(ctx, host, block, cfg)
		if errors.Is(err, ErrAffinityClaimed) {
			failed = append(failed, block)
			continue
		}
		if err != nil {
			return claimed, failed, err
		}
		claimed = append(claimed, block)
	}
	c.logger().Info().Str("cidr", cidr.String()).Str("host", host).Int("claimed", len(claimed)).Int("failed", len(failed)).Msg("Affinity claimed")
	return claimed, failed, nil
}

// ReleaseAffinity releases host's affinity to every block in cidr. Empty
// blocks are deleted; blocks still holding addresses lose their owner.
func (c *Client) ReleaseAffinity(ctx context.Context, cidr netip.Prefix, host string) (out AffinityRelease, err error) {
	defer c.finish("release_affinity", metrics.NewTimer(), &err)

	blocks, err := affinityBlocks(cidr)
	if err != nil {
		return out, err
	}
	host = c.hostOrDefault(host)
	for _, block := range blocks {
		err := c.releaseBlockAffinity(ctx, host, block)
		switch {
		case errors.Is(err, ErrAffinityClaimed):
			out.ClaimedByOther = append(out.ClaimedByOther, block)
		case errors.Is(err, errNoBlock):
			out.NotClaimed = append(out.NotClaimed, block)
		case err != nil:
			return out, err
		default:
			out.Released = append(out.Released, block)
		}
	}
	return out, nil
}

// ReleaseHostAffinities releases every block host lists as its own. Blocks
// that turn out to belong to another host are skipped, and stale entries
// for missing blocks are dropped.
func (c *Client) ReleaseHostAffinities(ctx context.Context, host string) (err error) {
	defer c.finish("release_host_affinities", metrics.NewTimer(), &err)
	return c.releaseHostAffinities(ctx, c.hostOrDefault(host))
}

func (c *Client) releaseHostAffinities(ctx context.Context, host string) error {
	for _, v := range paths.Versions {
		blocks, err := c.affineBlocks(ctx, host, v, netip.Prefix{})
		if err != nil {
			return err
		}
		for _, block := range blocks {
			err := c.releaseBlockAffinity(ctx, host, block)
			switch {
			case errors.Is(err, ErrAffinityClaimed):
				c.logger().Info().Str("block", block.String()).Str("host", host).Msg("Block not owned by host, skipping")
			case errors.Is(err, errNoBlock):
				if err := ignoreNotFound(c.remove(ctx, paths.IPAMHostBlock(host, block))); err != nil {
					return err
				}
			case err != nil:
				return err
			}
		}
	}
	return nil
}

// ReleasePoolAffinities releases every host affinity inside pool. Host keys
// of missing blocks are dropped. Blocks owned by a host other than the one
// listing them are retried in a few passes over the pool.
func (c *Client) ReleasePoolAffinities(ctx context.Context, pool netip.Prefix) (err error) {
	defer c.finish("release_pool_affinities", metrics.NewTimer(), &err)

	if !pool.IsValid() {
		return &types.ValidationError{Field: "pool", Reason: "missing"}
	}
	pool = paths.CanonicalPrefix(pool)
	var last error
	for range missingBlockRetries {
		pairs, err := c.hostBlockPairs(ctx, pool)
		if err != nil {
			return err
		}
		last = nil
		for _, pair := range pairs {
			err := c.releaseBlockAffinity(ctx, pair.host, pair.block)
			switch {
			case errors.Is(err, ErrAffinityClaimed):
				last = err
			case errors.Is(err, errNoBlock):
				if err := ignoreNotFound(c.remove(ctx, paths.IPAMHostBlock(pair.host, pair.block))); err != nil {
					return err
				}
			case err != nil:
				return err
			}
		}
		if last == nil {
			return nil
		}
	}
	return last
}

// RemoveIPAMHost releases host's block affinities and deletes its IPAM
// tree. Addresses the host assigned stay assigned.
func (c *Client) RemoveIPAMHost(ctx context.Context, host string) (err error) {
	defer c.finish("remove_ipam_host", metrics.NewTimer(), &err)

	host = c.hostOrDefault(host)
	if err := c.releaseHostAffinities(ctx, host); err != nil {
		return err
	}
	if err := ignoreNotFound(c.removeTree(ctx, paths.IPAMHost(host))); err != nil {
		return err
	}
	c.logger().Info().Str("host", host).Msg("IPAM host removed")
	return nil
}

func (c *Client) ipamConfig(ctx context.Context) (types.IPAMConfig, error) {
	key := paths.IPAMConfig()
	value, ok, err := c.optionalValue(ctx, key)
	if err != nil {
		return types.IPAMConfig{}, err
	}
	if !ok {
		return types.DefaultIPAMConfig(), nil
	}
	cfg, err := types.ParseIPAMConfig(value)
	if err != nil {
		return types.IPAMConfig{}, corrupt(key, err)
	}
	return cfg, nil
}

// GetIPAMConfig returns the stored allocation settings, or the defaults
func (c *Client) GetIPAMConfig(ctx context.Context) (cfg types.IPAMConfig, err error) {
	defer c.finish("get_ipam_config", metrics.NewTimer(), &err)
	return c.ipamConfig(ctx)
}

// SetIPAMConfig stores cfg. The config cannot change while any allocation
// block exists.
func (c *Client) SetIPAMConfig(ctx context.Context, cfg types.IPAMConfig) (err error) {
	defer c.finish("set_ipam_config", metrics.NewTimer(), &err)

	current, err := c.ipamConfig(ctx)
	if err != nil {
		return err
	}
	if current == cfg {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, v := range paths.Versions {
		blocks, err := c.scanChildren(ctx, paths.IPAMBlocks(v))
		if err != nil {
			return err
		}
		if len(blocks) > 0 {
			c.logger().Warn().Msg("Cannot change IPAM config while allocations exist")
			return ErrAllocationsExist
		}
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.write(ctx, paths.IPAMConfig(), string(data))
}
