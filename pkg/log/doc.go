/*
Package log provides structured logging for burrow using zerolog.

The package wraps a single global zerolog.Logger with helpers that attach the
identifiers the datastore works with (hostname, endpoint identity, profile
name), so that every store write and provisioning step can be traced back to
the entity it touched.

# Initialization

Until Init is called the global logger discards everything, which keeps
library consumers (and tests) quiet by default:

	log.Init(log.Config{
		Level:      log.ParseLevel("debug"),
		JSONOutput: false,
		Output:     os.Stderr,
	})

JSON output is intended for agents whose logs are shipped elsewhere; the
console writer with RFC3339 timestamps is the default for burrowctl.

# Context Loggers

	dsLog := log.WithComponent("datastore")
	dsLog.Debug().Str("key", key).Msg("writing key")

	epLog := log.WithEndpoint(host, "docker", workloadID, endpointID)
	epLog.Info().Msg("endpoint provisioned")

# Levels

  - Debug: every store round trip and namespace operation
  - Info: bootstrap progress, entity creation and removal
  - Warn: tolerated anomalies such as a client certificate close to expiry
  - Error: operation failures surfaced to the caller
*/
package log
