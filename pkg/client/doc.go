/*
Package client wires configuration, TLS material and a store backend into a
ready datastore.Client.

	┌──────────── CONNECTION FACTORY ────────────┐
	│                                             │
	│  config.Config ──┐                          │
	│  Options ────────┼──► OpenStore             │
	│                  │      │ etcd  (default)   │
	│                  │      │   security.ClientTransport
	│                  │      │   storage.NewEtcdStore
	│                  │      │ bolt  (DataDir)   │
	│                  │      │ memory            │
	│                  ▼      ▼                   │
	│              NewClient ──► datastore.New    │
	└─────────────────────────────────────────────┘

Agents and burrowctl normally call NewClientFromEnv; tests and embedded use
pass a Config built in code and BackendMemory.

	c, err := client.NewClientFromEnv(client.Options{})
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.EnsureGlobalConfig(ctx); err != nil {
		return err
	}

The bolt backend keeps the whole key space in one local file,
<DataDir>/burrow.db, for single host setups without an etcd cluster.
*/
package client
