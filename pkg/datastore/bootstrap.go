package datastore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/paths"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
)

// Global config parameters written by EnsureGlobalConfig
const (
	ConfigInterfacePrefix   = "InterfacePrefix"
	ConfigLogSeverityFile   = "LogSeverityFile"
	ConfigLogSeverityScreen = "LogSeverityScreen"
	ConfigLogFilePath       = "LogFilePath"
	ConfigIPInIPEnabled     = "IpInIpEnabled"
	ConfigReportingInterval = "ReportingIntervalSecs"
)

type configDefault struct {
	key   string
	value string
}

// loggingDefaults follow the BGP defaults in bootstrap order
var loggingDefaults = []configDefault{
	{paths.Config(ConfigLogSeverityFile), "none"},
	{paths.Config(ConfigLogSeverityScreen), "info"},
	{paths.Config(ConfigLogFilePath), "none"},
	{paths.Config(ConfigIPInIPEnabled), "false"},
	{paths.Config(ConfigReportingInterval), "0"},
}

// EnsureGlobalConfig writes a default for every global setting that is not
// yet present, creates the IPAM directories for this host and both IP
// versions, and marks the datastore ready. Existing values are never
// overwritten, so the call is idempotent.
func (c *Client) EnsureGlobalConfig(ctx context.Context) (err error) {
	defer c.finish("ensure_global_config", metrics.NewTimer(), &err)

	c.logger().Info().Str("hostname", c.hostname).Msg("Ensuring global configuration")

	if err := c.writeDefault(ctx, paths.Config(ConfigInterfacePrefix), types.DefaultInterfacePrefix); err != nil {
		return err
	}

	for _, v := range paths.Versions {
		if err := c.ensureDir(ctx, paths.IPAMHostBlocks(c.hostname, v)); err != nil {
			return err
		}
		if err := c.ensureDir(ctx, paths.IPPools(v)); err != nil {
			return err
		}
	}

	mesh, err := json.Marshal(types.NodeMesh{Enabled: true})
	if err != nil {
		return fmt.Errorf("failed to encode node mesh: %w", err)
	}
	defaults := append([]configDefault{
		{paths.BGPDefaultAS(), types.DefaultASNumber.String()},
		{paths.BGPNodeMesh(), string(mesh)},
	}, loggingDefaults...)
	for _, d := range defaults {
		if err := c.writeDefault(ctx, d.key, d.value); err != nil {
			return err
		}
	}

	if err := c.write(ctx, paths.Ready(), "true"); err != nil {
		return err
	}

	c.logger().Info().Msg("Global configuration ready")
	return nil
}

// writeDefault writes value to key only when key is absent. A key that
// exists as a directory counts as present.
func (c *Client) writeDefault(ctx context.Context, key, value string) error {
	_, err := c.read(ctx, key, false)
	if err == nil {
		return nil
	}
	if !storage.IsKeyNotFound(err) {
		return err
	}
	return c.write(ctx, key, value)
}

// ensureDir creates key as a directory unless something already exists there
func (c *Client) ensureDir(ctx context.Context, key string) error {
	err := c.writeDir(ctx, key)
	if storage.IsNotFile(err) {
		return nil
	}
	return err
}

// GetGlobalConfig returns a raw global config value. The second result is
// false when the parameter is unset.
func (c *Client) GetGlobalConfig(ctx context.Context, param string) (value string, ok bool, err error) {
	defer c.finish("get_global_config", metrics.NewTimer(), &err)

	value, err = c.readValue(ctx, paths.Config(param))
	if storage.IsKeyNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetGlobalConfig writes a raw global config value
func (c *Client) SetGlobalConfig(ctx context.Context, param, value string) (err error) {
	defer c.finish("set_global_config", metrics.NewTimer(), &err)
	return c.write(ctx, paths.Config(param), value)
}
