/*
Package network attaches a container's network namespace to the host with a
veth pair, once its endpoint has been written to the datastore.

# Architecture

	┌──────────────────── ENDPOINT PROVISIONING ────────────────────┐
	│                                                                │
	│   datastore.CreateEndpoint ──► *types.Endpoint                 │
	│                                     │                          │
	│                                     ▼                          │
	│                       Provisioner.ProvisionVeth                │
	│                                     │ NamespaceOps             │
	│            ┌────────────────────────┼─────────────────┐       │
	│            ▼                        ▼                 ▼       │
	│       NetlinkOps (linux)      test doubles      other ops     │
	│            │                                                   │
	│   host ns  │               container ns (/proc/<pid>/ns/net)   │
	│   ┌────────▼──────┐  veth  ┌──────────────────────┐           │
	│   │ cali1234abcd  │◄──────►│ eth0                  │           │
	│   │ (up)          │        │ 10.0.0.2/32 fd00::2/128│          │
	│   └───────────────┘        │ default via 169.254.1.1│          │
	│                            └──────────────────────┘           │
	└────────────────────────────────────────────────────────────────┘

# Provisioning Steps

ProvisionVeth runs, in order:

 1. create_veth: host end named after the endpoint interface, the peer
    under a temporary "tmp" name in the host namespace
 2. move_into_namespace: the peer is moved, renamed and brought up
 3. assign_address: every IPv6 address, then every IPv4 address, as
    /128 and /32 host addresses
 4. add_default_route: via the host end
 5. read_mac: returned to the caller, who stores it on the endpoint

There is no rollback. A failure returns a *StepError naming the step, and
whatever earlier steps did is left in place for the caller to clean up,
typically with RemoveVeth on the host end.

# Routing

Inside the namespace the IPv4 default route points at 169.254.1.1 through
a connected route on the interface; the host proxies ARP for it. The IPv6
default route uses the link local address of the host end, and is skipped
when the host end has none.

# Metrics

Each step increments burrow_provision_steps_total{step, result}.
*/
package network
