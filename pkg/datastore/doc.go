/*
Package datastore is the burrow control-plane client: it maps hosts,
endpoints, profiles, IP pools, BGP settings and policy tiers onto keys of a
hierarchical key-value store and back.

The client owns no state of its own. Every method is a synchronous sequence
of store round trips through a storage.Store, so the same Client value can be
shared by goroutines and across the lifetime of an agent.

# Architecture

	┌──────────────────── DATASTORE CLIENT ─────────────────────┐
	│                                                             │
	│   caller (agent, burrowctl)                                 │
	│        │                                                    │
	│        ▼                                                    │
	│  ┌──────────────┐   paths.*     ┌─────────────────────┐    │
	│  │   Client     │──────────────►│ key schema          │    │
	│  │              │   types.*     │ /calico/v1/...      │    │
	│  │  read/write  │──────────────►│ /calico/bgp/v1/...  │    │
	│  │  CAS, scans  │               │ /calico/ipam/v2/... │    │
	│  └──────┬───────┘               └─────────────────────┘    │
	│         │ storage.Store                                     │
	│         ▼                                                   │
	│  ┌──────────────┬──────────────┬──────────────┐            │
	│  │  EtcdStore   │  BoltStore   │ MemoryStore  │            │
	│  └──────────────┴──────────────┴──────────────┘            │
	└─────────────────────────────────────────────────────────────┘

# Key Schema

	/calico/v1/config/<param>                         global config
	/calico/v1/Ready                                  bootstrap marker
	/calico/v1/host/<h>/bird_ip
	/calico/v1/host/<h>/config/<param>                per-host config
	/calico/v1/host/<h>/workload/<o>/<w>/endpoint/<e> endpoint JSON
	/calico/v1/policy/profile/<p>/{tags,labels,rules}
	/calico/v1/policy/tier/<t>/metadata
	/calico/v1/policy/tier/<t>/policy/<p>
	/calico/v1/ipam/v{4,6}/pool/<cidr-with-dash>      pool JSON
	/calico/ipam/v2/host/<h>/ipv{4,6}/block/          block affinity dirs
	/calico/bgp/v1/global/{as_num,node_mesh,peer_v{4,6}/<ip>}
	/calico/bgp/v1/host/<h>/{ip_addr_v4,ip_addr_v6,as_num,peer_v{4,6}/<ip>}

# Optimistic Concurrency

The store only offers single key compare-and-swap, and endpoints are the only
entities written conditionally. Reads return a VersionedEndpoint carrying the
exact stored JSON; UpdateEndpoint writes with that JSON as the expected
previous value:

	vep, err := client.GetEndpoint(ctx, paths.EndpointFilter{EndpointID: id})
	if err != nil {
		return err
	}
	vep.Endpoint.Labels["role"] = "db"
	if err := client.UpdateEndpoint(ctx, vep); errors.Is(err, datastore.ErrUpdateConflict) {
		// someone else wrote first: re-read and reapply
	}

The client never retries a conflict. The profile membership helpers
(AppendProfilesToEndpoint, SetProfilesOnEndpoint, RemoveProfilesFromEndpoint)
are a read followed by UpdateEndpoint and surface conflicts the same way.

Every other write is last writer wins. A profile's tags, labels and rules are
separate keys written one after the other, so readers can see a profile
whose parts disagree for a moment.

# Scans

Listing operations read one recursive snapshot and classify the returned
keys:

  - GetEndpoints reads the narrowest subtree the filter allows, decodes
    every endpoint key in it and keeps those matching the filter
  - GetProfileMembers scans every endpoint
  - GetHostsData and GetHostnamesFromIPs match BGP host keys against the
    templates in package paths

A missing root yields an empty result. The store reports an empty directory
as a single child carrying the directory's own key; scans drop directories
so that artifact never reaches callers.

# Error Handling

  - NotFoundError (matches ErrNotFound): the requested entity is absent
  - ErrMultipleEndpoints: GetEndpoint matched more than one endpoint
  - ErrUpdateConflict: UpdateEndpoint lost a compare-and-swap
  - *types.ValidationError, *types.ProfileAlreadyInEndpointError,
    *types.ProfileNotInEndpointError: rejected input, nothing written
  - *StoreError: any other store failure, with the client operation name

# Metrics

Every method records burrow_datastore_operations_total and
burrow_datastore_operation_duration_seconds under its operation name.
Lost compare-and-swaps also increment burrow_datastore_update_conflicts_total.
*/
package datastore
