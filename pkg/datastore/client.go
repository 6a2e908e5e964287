package datastore

import (
	"context"
	"errors"
	"os"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Client reads and writes the burrow schema through a storage.Store. It
// holds no cached state: every method is a fresh sequence of store round
// trips, and concurrent use is safe as far as the store is.
type Client struct {
	store    storage.Store
	hostname string
	ifPrefix string
	override *zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHostname sets the hostname used for host scoped bootstrap keys.
// Defaults to os.Hostname.
func WithHostname(hostname string) Option {
	return func(c *Client) {
		c.hostname = hostname
	}
}

// WithLogger replaces the component logger. Without it the client logs
// through the global logger as it stands at each call, so log.Init may run
// before or after New.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.override = &logger
	}
}

// WithInterfacePrefix fixes the prefix of new endpoint interface names
// instead of reading it from global config.
func WithInterfacePrefix(prefix string) Option {
	return func(c *Client) {
		c.ifPrefix = prefix
	}
}

// New returns a client over store
func New(store storage.Store, opts ...Option) *Client {
	c := &Client{store: store}
	if hostname, err := os.Hostname(); err == nil {
		c.hostname = hostname
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hostname returns the hostname the client bootstraps for
func (c *Client) Hostname() string {
	return c.hostname
}

func (c *Client) logger() *zerolog.Logger {
	if c.override != nil {
		return c.override
	}
	l := log.WithComponent("datastore")
	return &l
}

// Close closes the underlying store
func (c *Client) Close() error {
	return c.store.Close()
}

// finish records metrics for op and folds unclassified failures into a
// StoreError. Call it deferred with the named error result.
func (c *Client) finish(op string, timer *metrics.Timer, errp *error) {
	result := metrics.ResultSuccess
	if err := *errp; err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			result = metrics.ResultNotFound
		case errors.Is(err, ErrUpdateConflict):
			result = metrics.ResultConflict
			metrics.DatastoreUpdateConflicts.Inc()
		case errors.Is(err, ErrAffinityClaimed):
			result = metrics.ResultConflict
		case isCallerError(err) && !isStoreError(err):
			result = metrics.ResultInvalid
		default:
			result = metrics.ResultError
			var storeErr *StoreError
			if !errors.As(err, &storeErr) {
				*errp = &StoreError{Op: op, Err: err}
			}
			c.logger().Debug().Err(err).Str("operation", op).Msg("datastore operation failed")
		}
	}
	timer.ObserveDurationVec(metrics.DatastoreOperationDuration, op)
	metrics.DatastoreOperationsTotal.WithLabelValues(op, result).Inc()
}

// isStoreError reports failures that came out of the store, including
// stored values that fail validation on decode
func isStoreError(err error) bool {
	var (
		storeErr   *StoreError
		corruptErr *CorruptValueError
	)
	return errors.As(err, &storeErr) || errors.As(err, &corruptErr)
}

func isCallerError(err error) bool {
	var (
		validation *types.ValidationError
		already    *types.ProfileAlreadyInEndpointError
		notIn      *types.ProfileNotInEndpointError
		assigned   *types.AlreadyAssignedError
		noAffinity *types.NoHostAffinityError
	)
	return errors.Is(err, ErrMultipleEndpoints) ||
		errors.Is(err, ErrAllocationsExist) ||
		errors.As(err, &validation) ||
		errors.As(err, &already) ||
		errors.As(err, &notIn) ||
		errors.As(err, &assigned) ||
		errors.As(err, &noAffinity)
}

// Store helpers. Writes are logged at debug level with their key.

func (c *Client) read(ctx context.Context, key string, recursive bool) (*storage.Node, error) {
	return c.store.Get(ctx, key, &storage.GetOptions{Recursive: recursive})
}

func (c *Client) readValue(ctx context.Context, key string) (string, error) {
	node, err := c.store.Get(ctx, key, nil)
	if err != nil {
		return "", err
	}
	return node.Value, nil
}

func (c *Client) write(ctx context.Context, key, value string) error {
	c.logger().Debug().Str("key", key).Msg("write")
	return c.store.Set(ctx, key, value, nil)
}

func (c *Client) writeIfUnchanged(ctx context.Context, key, value, prev string) error {
	c.logger().Debug().Str("key", key).Msg("compare and swap")
	return c.store.Set(ctx, key, value, &storage.SetOptions{PrevValue: prev})
}

func (c *Client) create(ctx context.Context, key, value string) error {
	c.logger().Debug().Str("key", key).Msg("create")
	return c.store.Set(ctx, key, value, &storage.SetOptions{Create: true})
}

func (c *Client) writeDir(ctx context.Context, key string) error {
	c.logger().Debug().Str("key", key).Msg("create directory")
	return c.store.Set(ctx, key, "", &storage.SetOptions{Dir: true})
}

func (c *Client) remove(ctx context.Context, key string) error {
	c.logger().Debug().Str("key", key).Msg("delete")
	return c.store.Delete(ctx, key, nil)
}

func (c *Client) removeIfUnchanged(ctx context.Context, key, prev string) error {
	c.logger().Debug().Str("key", key).Msg("compare and delete")
	return c.store.Delete(ctx, key, &storage.DeleteOptions{PrevValue: prev})
}

func (c *Client) removeTree(ctx context.Context, key string) error {
	c.logger().Debug().Str("key", key).Msg("delete recursive")
	return c.store.Delete(ctx, key, &storage.DeleteOptions{Dir: true, Recursive: true})
}

// scanLeaves reads root recursively and returns its value leaves. A missing
// root yields no leaves. Directories are dropped, which also removes the
// store's report of an empty directory as its own leaf.
func (c *Client) scanLeaves(ctx context.Context, root string) ([]*storage.Node, error) {
	node, err := c.read(ctx, root, true)
	if storage.IsKeyNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return values(node.Leaves()), nil
}

// scanChildren is scanLeaves for the immediate children of root
func (c *Client) scanChildren(ctx context.Context, root string) ([]*storage.Node, error) {
	node, err := c.read(ctx, root, false)
	if storage.IsKeyNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return values(node.Children()), nil
}

func values(nodes []*storage.Node) []*storage.Node {
	out := make([]*storage.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Dir {
			continue
		}
		out = append(out, n)
	}
	return out
}

// ignoreNotFound maps a missing key to success
func ignoreNotFound(err error) error {
	if storage.IsKeyNotFound(err) {
		return nil
	}
	return err
}
