/*
Package types defines burrow's data model: the values stored in the
datastore and their canonical JSON encodings.

# Values

  - Rule, RuleSet: firewall rules of a profile or tiered policy
  - Profile: tags plus a rule set, attached to endpoints by name
  - Endpoint: a container interface with its addresses and profiles
  - IPPool: an address block, optionally managed by IPAM
  - BGPPeer, ASNumber, NodeMesh: BGP peering configuration
  - Policy, TierMetadata: selector based policy in ordered tiers

Every type validates on construction and on decode; a value that fails
validation is never returned. Field names in the encodings are stable
because other components read the same keys:

	{"state": "active", "name": "cali1234567890a", "mac": "ee:ee:ee:ee:ee:ee",
	 "profile_ids": ["web"], "labels": {}, "ipv4_nets": ["10.0.0.5/32"],
	 "ipv6_nets": []}

# Rules

A Rule is decoded strictly: unknown fields are rejected along with any
invalid value. Ports are a number or a "lo:hi" range. Rule.String renders
a rule the way the CLI prints it:

	allow tcp from ports 80,8000:8080 tag web to cidr 10.0.0.0/8

# Equality and copies

Equal compares every field after normalizing representations (sorted
networks, unmapped addresses). Copy returns a deep copy that shares no
slices or maps with the original.
*/
package types
