package client

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/datastore"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/security"
	"github.com/cuemby/burrow/pkg/storage"
)

// Backend selects the store implementation
type Backend string

const (
	BackendEtcd   Backend = "etcd"
	BackendBolt   Backend = "bolt"
	BackendMemory Backend = "memory"
)

// DefaultRequestTimeout bounds the wait for response headers from etcd
const DefaultRequestTimeout = 10 * time.Second

// Options tune how the store is opened
type Options struct {
	// Backend defaults to BackendEtcd
	Backend Backend

	// DataDir holds the database file of BackendBolt
	DataDir string

	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

// OpenStore opens the store selected by opts. For etcd the TLS material in
// cfg is loaded first; no request is made until the store is used.
func OpenStore(cfg *config.Config, opts Options) (storage.Store, error) {
	logger := log.WithComponent("client")

	switch opts.Backend {
	case BackendEtcd, "":
		transport, err := security.ClientTransport(cfg.TLS, opts.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS configuration: %w", err)
		}

		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}

		store, err := storage.NewEtcdStore(storage.EtcdConfig{
			Endpoints:               cfg.Endpoints(),
			Transport:               transport,
			HeaderTimeoutPerRequest: timeout,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug().Strs("endpoints", cfg.Endpoints()).Msg("using etcd store")
		return store, nil

	case BackendBolt:
		if opts.DataDir == "" {
			return nil, fmt.Errorf("bolt backend requires a data directory")
		}
		if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := storage.NewBoltStore(opts.DataDir)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("data_dir", opts.DataDir).Msg("using bolt store")
		return store, nil

	case BackendMemory:
		return storage.NewMemoryStore()

	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}
}

// NewClient opens the store and returns a datastore client over it. The
// hostname from cfg, when set, takes precedence over os.Hostname.
func NewClient(cfg *config.Config, opts Options, dsOpts ...datastore.Option) (*datastore.Client, error) {
	store, err := OpenStore(cfg, opts)
	if err != nil {
		return nil, err
	}

	if cfg.Hostname != "" {
		dsOpts = append([]datastore.Option{datastore.WithHostname(cfg.Hostname)}, dsOpts...)
	}
	return datastore.New(store, dsOpts...), nil
}

// NewClientFromEnv is NewClient with configuration read from the environment
func NewClientFromEnv(opts Options, dsOpts ...datastore.Option) (*datastore.Client, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, opts, dsOpts...)
}
