package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/datastore"
	"github.com/cuemby/burrow/pkg/security"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(func(string) string { return "" })
	require.NoError(t, err)
	return cfg
}

func TestOpenStoreBackends(t *testing.T) {
	cfg := defaultConfig(t)

	etcd, err := OpenStore(cfg, Options{})
	require.NoError(t, err)
	assert.IsType(t, &storage.EtcdStore{}, etcd)

	mem, err := OpenStore(cfg, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, mem)
	require.NoError(t, mem.Close())

	dir := filepath.Join(t.TempDir(), "nested")
	bolt, err := OpenStore(cfg, Options{Backend: BackendBolt, DataDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &storage.BoltStore{}, bolt)
	require.NoError(t, bolt.Close())
	_, err = os.Stat(filepath.Join(dir, "burrow.db"))
	assert.NoError(t, err)

	_, err = OpenStore(cfg, Options{Backend: BackendBolt})
	assert.Error(t, err)

	_, err = OpenStore(cfg, Options{Backend: "zk"})
	assert.Error(t, err)
}

func TestOpenStoreBadTLS(t *testing.T) {
	dir := t.TempDir()
	ca := filepath.Join(dir, "ca.crt")
	require.NoError(t, os.WriteFile(ca, []byte("not a certificate"), 0644))

	cfg := defaultConfig(t)
	cfg.Scheme = "https"
	cfg.TLS = security.TLSFiles{CAFile: ca}

	_, err := OpenStore(cfg, Options{})
	assert.Error(t, err)
}

func TestNewClientHostname(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Hostname = "node-7"

	c, err := NewClient(cfg, Options{Backend: BackendMemory})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "node-7", c.Hostname())

	c2, err := NewClient(cfg, Options{Backend: BackendMemory}, datastore.WithHostname("override"))
	require.NoError(t, err)
	defer c2.Close()
	assert.Equal(t, "override", c2.Hostname())
}

func TestNewClientBoltPersists(t *testing.T) {
	ctx := context.Background()
	cfg := defaultConfig(t)
	cfg.Hostname = "node-1"
	opts := Options{Backend: BackendBolt, DataDir: t.TempDir()}

	c, err := NewClient(cfg, opts)
	require.NoError(t, err)
	require.NoError(t, c.EnsureGlobalConfig(ctx))
	require.NoError(t, c.Close())

	c, err = NewClient(cfg, opts)
	require.NoError(t, err)
	defer c.Close()
	value, ok, err := c.GetGlobalConfig(ctx, datastore.ConfigInterfacePrefix)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cali", value)
}
