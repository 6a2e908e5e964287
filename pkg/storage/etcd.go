package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/etcd/client/v2"
)

// EtcdConfig describes how to reach an etcd cluster over the v2 keys API
type EtcdConfig struct {
	// Endpoints are full URLs, e.g. "https://10.0.0.1:2379".
	Endpoints []string

	// Transport is used for every request. client.DefaultTransport is used
	// when nil.
	Transport client.CancelableTransport

	// HeaderTimeoutPerRequest bounds the wait for response headers.
	HeaderTimeoutPerRequest time.Duration
}

// EtcdStore implements Store on the etcd v2 keys API
type EtcdStore struct {
	keys client.KeysAPI
}

// NewEtcdStore creates a store backed by an etcd cluster. No connection is
// made until the first request.
func NewEtcdStore(cfg EtcdConfig) (*EtcdStore, error) {
	transport := cfg.Transport
	if transport == nil {
		transport = client.DefaultTransport
	}

	c, err := client.New(client.Config{
		Endpoints:               cfg.Endpoints,
		Transport:               transport,
		HeaderTimeoutPerRequest: cfg.HeaderTimeoutPerRequest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return &EtcdStore{keys: client.NewKeysAPI(c)}, nil
}

// Close releases nothing; the v2 client holds no persistent resources
func (s *EtcdStore) Close() error {
	return nil
}

func (s *EtcdStore) Get(ctx context.Context, key string, opts *GetOptions) (*Node, error) {
	if opts == nil {
		opts = &GetOptions{}
	}
	resp, err := s.keys.Get(ctx, key, &client.GetOptions{
		Recursive: opts.Recursive,
		Sort:      true,
	})
	if err != nil {
		return nil, mapEtcdError(err, key)
	}
	return convertNode(resp.Node), nil
}

func (s *EtcdStore) Set(ctx context.Context, key, value string, opts *SetOptions) error {
	if opts == nil {
		opts = &SetOptions{}
	}
	setOpts := &client.SetOptions{
		PrevValue: opts.PrevValue,
		Dir:       opts.Dir,
	}
	if opts.Create {
		setOpts.PrevExist = client.PrevNoExist
	}
	_, err := s.keys.Set(ctx, key, value, setOpts)
	return mapEtcdError(err, key)
}

func (s *EtcdStore) Delete(ctx context.Context, key string, opts *DeleteOptions) error {
	if opts == nil {
		opts = &DeleteOptions{}
	}
	_, err := s.keys.Delete(ctx, key, &client.DeleteOptions{
		Dir:       opts.Dir,
		Recursive: opts.Recursive,
		PrevValue: opts.PrevValue,
	})
	return mapEtcdError(err, key)
}

// mapEtcdError translates etcd error codes into the package sentinels.
// Anything else, including transport failures, is returned wrapped.
func mapEtcdError(err error, key string) error {
	if err == nil {
		return nil
	}

	var etcdErr client.Error
	if !errors.As(err, &etcdErr) {
		return fmt.Errorf("etcd request for %s failed: %w", key, err)
	}

	switch etcdErr.Code {
	case client.ErrorCodeKeyNotFound:
		return keyError(ErrKeyNotFound, key)
	case client.ErrorCodeTestFailed:
		return keyError(ErrTestFailed, key)
	case client.ErrorCodeNotFile:
		return keyError(ErrNotFile, key)
	case client.ErrorCodeNotDir:
		return keyError(ErrNotDir, key)
	case client.ErrorCodeNodeExist:
		return keyError(ErrNodeExist, key)
	case client.ErrorCodeDirNotEmpty:
		return keyError(ErrDirNotEmpty, key)
	default:
		return fmt.Errorf("etcd request for %s failed: %w", key, err)
	}
}

func convertNode(n *client.Node) *Node {
	if n == nil {
		return nil
	}
	node := &Node{
		Key:   n.Key,
		Value: n.Value,
		Dir:   n.Dir,
	}
	for _, child := range n.Nodes {
		node.Nodes = append(node.Nodes, convertNode(child))
	}
	return node
}
