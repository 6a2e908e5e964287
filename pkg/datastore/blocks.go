package datastore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math/bits"
	"math/rand/v2"
	"net/netip"
	"slices"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
)

const (
	// ipamRetries bounds every compare-and-swap loop
	ipamRetries = 100

	// missingBlockRetries bounds how often an affine block that does not
	// exist yet is requeued. Another client on the host may be creating it.
	missingBlockRetries = 3

	// maxWalkBits caps the number of subnets a walk visits per pool at
	// 2^maxWalkBits
	maxWalkBits = 62
)

var (
	errCASFailed    = errors.New("compare and swap failed")
	errNoBlock      = errors.New("allocation block does not exist")
	errNoFreeBlocks = errors.New("no unclaimed blocks left")
)

func retriesExhausted(what string) error {
	return fmt.Errorf("%w: %s", ErrRetriesExhausted, what)
}

// storedBlock is a block together with the value it was read at. prev is
// empty for a block that has not been written yet.
type storedBlock struct {
	*types.AllocationBlock
	prev string
}

// storedHandle is the handle equivalent of storedBlock
type storedHandle struct {
	*types.AllocationHandle
	prev string
}

func isCASFailure(err error) bool {
	return storage.IsTestFailed(err) || storage.IsNodeExist(err) || storage.IsKeyNotFound(err)
}

func (c *Client) readBlock(ctx context.Context, cidr netip.Prefix) (*storedBlock, error) {
	key := paths.IPAMBlock(cidr)
	value, err := c.readValue(ctx, key)
	if storage.IsKeyNotFound(err) {
		return nil, fmt.Errorf("%w: %s", errNoBlock, cidr)
	}
	if err != nil {
		return nil, err
	}
	block, err := types.ParseAllocationBlock(value)
	if err != nil {
		return nil, corrupt(key, err)
	}
	return &storedBlock{AllocationBlock: block, prev: value}, nil
}

// compareAndSwapBlock creates b, or replaces it if the stored value is
// still the one b was read at
func (c *Client) compareAndSwapBlock(ctx context.Context, b *storedBlock) error {
	data, err := b.JSON()
	if err != nil {
		return err
	}
	key := paths.IPAMBlock(b.CIDR)
	if b.prev == "" {
		err = c.create(ctx, key, data)
	} else {
		err = c.writeIfUnchanged(ctx, key, data, b.prev)
	}
	if isCASFailure(err) {
		metrics.IPAMCompareAndSwapRetries.WithLabelValues("block").Inc()
		return fmt.Errorf("%w: block %s", errCASFailed, b.CIDR)
	}
	return err
}

func (c *Client) deleteBlock(ctx context.Context, b *storedBlock) error {
	err := c.removeIfUnchanged(ctx, paths.IPAMBlock(b.CIDR), b.prev)
	if isCASFailure(err) {
		metrics.IPAMCompareAndSwapRetries.WithLabelValues("block").Inc()
		return fmt.Errorf("%w: block %s", errCASFailed, b.CIDR)
	}
	return err
}

// readHandle returns the storage error unchanged when the handle is missing
func (c *Client) readHandle(ctx context.Context, handleID string) (*storedHandle, error) {
	key := paths.IPAMHandle(handleID)
	value, err := c.readValue(ctx, key)
	if err != nil {
		return nil, err
	}
	handle, err := types.ParseAllocationHandle(value)
	if err != nil {
		return nil, corrupt(key, err)
	}
	return &storedHandle{AllocationHandle: handle, prev: value}, nil
}

// compareAndSwapHandle writes h like compareAndSwapBlock, deleting it once
// it counts no addresses
func (c *Client) compareAndSwapHandle(ctx context.Context, h *storedHandle) error {
	key := paths.IPAMHandle(h.ID)
	var err error
	if h.prev != "" && h.IsEmpty() {
		err = c.removeIfUnchanged(ctx, key, h.prev)
	} else {
		var data string
		if data, err = h.JSON(); err != nil {
			return err
		}
		if h.prev == "" {
			err = c.create(ctx, key, data)
		} else {
			err = c.writeIfUnchanged(ctx, key, data, h.prev)
		}
	}
	if isCASFailure(err) {
		metrics.IPAMCompareAndSwapRetries.WithLabelValues("handle").Inc()
		return fmt.Errorf("%w: handle %s", errCASFailed, h.ID)
	}
	return err
}

func (c *Client) incrementHandle(ctx context.Context, handleID string, block netip.Prefix, n int) error {
	for range ipamRetries {
		h, err := c.readHandle(ctx, handleID)
		if storage.IsKeyNotFound(err) {
			h, err = &storedHandle{AllocationHandle: types.NewAllocationHandle(handleID)}, nil
		}
		if err != nil {
			return err
		}
		h.Increment(block, n)
		if err := c.compareAndSwapHandle(ctx, h); !errors.Is(err, errCASFailed) {
			return err
		}
	}
	return retriesExhausted("handle " + handleID)
}

// decrementHandle fails if the handle does not count n addresses in block;
// the handle and the block then disagree
func (c *Client) decrementHandle(ctx context.Context, handleID string, block netip.Prefix, n int) error {
	key := paths.IPAMHandle(handleID)
	for range ipamRetries {
		h, err := c.readHandle(ctx, handleID)
		if storage.IsKeyNotFound(err) {
			c.logger().Error().Str("handle", handleID).Str("block", block.String()).Msg("cannot decrement missing handle")
			return corrupt(key, err)
		}
		if err != nil {
			return err
		}
		if _, err := h.Decrement(block, n); err != nil {
			c.logger().Error().Err(err).Msg("handle count too low")
			return corrupt(key, err)
		}
		if err := c.compareAndSwapHandle(ctx, h); !errors.Is(err, errCASFailed) {
			return err
		}
	}
	return retriesExhausted("handle " + handleID)
}

// affineBlocks lists the blocks host has affinity to, optionally limited to
// those inside pool
func (c *Client) affineBlocks(ctx context.Context, host string, v paths.IPVersion, pool netip.Prefix) ([]netip.Prefix, error) {
	nodes, err := c.scanChildren(ctx, paths.IPAMHostBlocks(host, v))
	if err != nil {
		return nil, err
	}
	var blocks []netip.Prefix
	for _, node := range nodes {
		_, block, ok := paths.ParseIPAMHostBlock(node.Key)
		if !ok {
			continue
		}
		if pool.IsValid() && !prefixContains(pool, block) {
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

type hostBlock struct {
	host  string
	block netip.Prefix
}

// hostBlockPairs lists every host affinity inside pool
func (c *Client) hostBlockPairs(ctx context.Context, pool netip.Prefix) ([]hostBlock, error) {
	leaves, err := c.scanLeaves(ctx, paths.IPAMHosts())
	if err != nil {
		return nil, err
	}
	var pairs []hostBlock
	for _, leaf := range leaves {
		host, block, ok := paths.ParseIPAMHostBlock(leaf.Key)
		if ok && prefixContains(pool, block) {
			pairs = append(pairs, hostBlock{host: host, block: block})
		}
	}
	return pairs, nil
}

// claimBlockAffinity records host's affinity to block and creates the
// block. Losing the create to another client on the same host still counts
// as a claim; losing it to another host undoes the affinity key and returns
// an AffinityClaimedError.
func (c *Client) claimBlockAffinity(ctx context.Context, host string, block netip.Prefix, cfg types.IPAMConfig) error {
	key := paths.IPAMHostBlock(host, block)
	if err := c.write(ctx, key, ""); err != nil {
		return err
	}

	fresh, err := types.NewAllocationBlock(block, host, cfg.StrictAffinity)
	if err != nil {
		return err
	}
	err = c.compareAndSwapBlock(ctx, &storedBlock{AllocationBlock: fresh})
	if !errors.Is(err, errCASFailed) {
		return err
	}

	existing, err := c.readBlock(ctx, block)
	if err != nil {
		return err
	}
	if existing.Affinity == host {
		c.logger().Debug().Str("block", block.String()).Msg("block already claimed by this host")
		return nil
	}
	if err := ignoreNotFound(c.remove(ctx, key)); err != nil {
		return err
	}
	return &AffinityClaimedError{Block: block, Owner: existing.Affinity}
}

// releaseBlockAffinity drops host's affinity to block. An empty block is
// deleted; one with assignments is kept without an owner.
func (c *Client) releaseBlockAffinity(ctx context.Context, host string, block netip.Prefix) error {
	for range ipamRetries {
		b, err := c.readBlock(ctx, block)
		if err != nil {
			return err
		}
		if b.Affinity != host {
			return &AffinityClaimedError{Block: block, Owner: b.Affinity}
		}

		if b.IsEmpty() {
			err = c.deleteBlock(ctx, b)
		} else {
			b.Affinity = ""
			err = c.compareAndSwapBlock(ctx, b)
		}
		if errors.Is(err, errCASFailed) {
			continue
		}
		if err != nil {
			return err
		}
		return ignoreNotFound(c.remove(ctx, paths.IPAMHostBlock(host, block)))
	}
	return retriesExhausted("block " + block.String())
}

// ipamPools returns the CIDRs of the enabled IPAM pools of version v
func (c *Client) ipamPools(ctx context.Context, v paths.IPVersion) ([]netip.Prefix, error) {
	ipam := true
	pools, err := c.getIPPools(ctx, v, PoolFilter{IPAM: &ipam, ExcludeDisabled: true})
	if err != nil {
		return nil, err
	}
	cidrs := make([]netip.Prefix, 0, len(pools))
	for _, pool := range pools {
		cidrs = append(cidrs, pool.CIDR)
	}
	return cidrs, nil
}

// cidrInPools reports whether an enabled IPAM pool covers all of cidr
func (c *Client) cidrInPools(ctx context.Context, cidr netip.Prefix) (bool, error) {
	pools, err := c.ipamPools(ctx, paths.VersionOf(cidr.Addr()))
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(pools, func(pool netip.Prefix) bool {
		return prefixContains(pool, cidr)
	}), nil
}

// randomBlocks walks the blocks of the enabled IPAM pools, or of pool
// alone, seeded by seed
func (c *Client) randomBlocks(ctx context.Context, v paths.IPVersion, pool netip.Prefix, seed string) (*blockWalk, error) {
	cidrs, err := c.ipamPools(ctx, v)
	if err != nil {
		return nil, err
	}
	if pool.IsValid() {
		pool = paths.CanonicalPrefix(pool)
		if !slices.Contains(cidrs, pool) {
			return nil, notFound("IP pool", pool.String())
		}
		cidrs = []netip.Prefix{pool}
	}
	return newBlockWalk(cidrs, v.BitLen()-types.BlockBits, seed), nil
}

// newAffineBlock claims a block no client has created yet
func (c *Client) newAffineBlock(ctx context.Context, host string, v paths.IPVersion, pool netip.Prefix, cfg types.IPAMConfig) (netip.Prefix, error) {
	walk, err := c.randomBlocks(ctx, v, pool, host)
	if err != nil {
		return netip.Prefix{}, err
	}
	for block, ok := walk.next(); ok; block, ok = walk.next() {
		taken, err := c.exists(ctx, paths.IPAMBlock(block))
		if err != nil {
			return netip.Prefix{}, err
		}
		if taken {
			continue
		}
		err = c.claimBlockAffinity(ctx, host, block, cfg)
		if errors.Is(err, ErrAffinityClaimed) {
			c.logger().Debug().Str("block", block.String()).Msg("lost race for block")
			continue
		}
		if err != nil {
			return netip.Prefix{}, err
		}
		return block, nil
	}
	return netip.Prefix{}, errNoFreeBlocks
}

func prefixContains(outer, inner netip.Prefix) bool {
	return outer.Bits() <= inner.Bits() && outer.Contains(inner.Addr())
}

// subnets returns every /bits subnet of cidr in address order
func subnets(cidr netip.Prefix, bits int) []netip.Prefix {
	cidr = cidr.Masked()
	if bits < cidr.Bits() {
		return nil
	}
	count := uint64(1) << (bits - cidr.Bits())
	out := make([]netip.Prefix, 0, count)
	for n := range count {
		out = append(out, nthSubnet(cidr.Addr(), bits, n))
	}
	return out
}

// nthSubnet returns the n-th /bits subnet counting from base
func nthSubnet(base netip.Addr, prefixBits int, n uint64) netip.Prefix {
	shift := base.BitLen() - prefixBits
	b := base.As16()
	hi := binary.BigEndian.Uint64(b[:8])
	lo := binary.BigEndian.Uint64(b[8:])

	var offHi, offLo uint64
	if shift >= 64 {
		offHi = n << (shift - 64)
	} else {
		offLo = n << shift
		offHi = n >> (64 - shift)
	}
	lo, carry := bits.Add64(lo, offLo, 0)
	hi, _ = bits.Add64(hi, offHi, carry)

	binary.BigEndian.PutUint64(b[:8], hi)
	binary.BigEndian.PutUint64(b[8:], lo)
	addr := netip.AddrFrom16(b)
	if base.Is4() {
		addr = addr.Unmap()
	}
	return netip.PrefixFrom(addr, prefixBits)
}

// walkSteps are coprime to every power of two, so stepping through 2^k
// positions modulo 2^k visits each exactly once
var walkSteps = []uint64{1, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59}

// subnetWalk visits the subnets of one pool from a random start with a
// random stride
type subnetWalk struct {
	base     netip.Addr
	bits     int
	count    uint64
	step     uint64
	position uint64
	returned uint64
}

func newSubnetWalk(cidr netip.Prefix, prefixBits int, rnd *rand.Rand) *subnetWalk {
	cidr = cidr.Masked()
	if prefixBits < cidr.Bits() || prefixBits > cidr.Addr().BitLen() {
		return &subnetWalk{}
	}
	count := uint64(1) << min(prefixBits-cidr.Bits(), maxWalkBits)
	return &subnetWalk{
		base:     cidr.Addr(),
		bits:     prefixBits,
		count:    count,
		step:     walkSteps[rnd.IntN(len(walkSteps))],
		position: rnd.Uint64N(count),
	}
}

func (w *subnetWalk) next() (netip.Prefix, bool) {
	if w.returned >= w.count {
		return netip.Prefix{}, false
	}
	subnet := nthSubnet(w.base, w.bits, w.position)
	w.returned++
	w.position = (w.position + w.step) % w.count
	return subnet, true
}

// blockWalk interleaves the subnet walks of several pools so that blocks
// are spread evenly between them. The order only depends on the seed, so
// concurrent clients on one host contend for the same blocks instead of
// scattering claims across the pools.
type blockWalk struct {
	rnd       *rand.Rand
	walks     []*subnetWalk
	generated int
}

func newBlockWalk(cidrs []netip.Prefix, prefixBits int, seed string) *blockWalk {
	h := fnv.New64a()
	h.Write([]byte(seed))
	rnd := rand.New(rand.NewPCG(h.Sum64(), 0))

	w := &blockWalk{rnd: rnd}
	for _, cidr := range cidrs {
		w.walks = append(w.walks, newSubnetWalk(cidr, prefixBits, rnd))
	}
	return w
}

func (w *blockWalk) next() (netip.Prefix, bool) {
	for len(w.walks) > 0 {
		if w.generated%len(w.walks) == 0 {
			w.rnd.Shuffle(len(w.walks), func(i, j int) {
				w.walks[i], w.walks[j] = w.walks[j], w.walks[i]
			})
		}
		walk := w.walks[0]
		w.walks = w.walks[1:]
		subnet, ok := walk.next()
		if !ok {
			continue
		}
		w.walks = append(w.walks, walk)
		w.generated++
		return subnet, true
	}
	return netip.Prefix{}, false
}
