/*
Package paths defines the key schema burrow stores its state under.

Every function is pure and total: it maps identifiers (hostname,
orchestrator, workload and endpoint ids, profile names, pool CIDRs, peer
addresses) to store keys without touching the store. Keys never carry a
trailing slash.

	/calico/v1/config/<param>
	/calico/v1/host/<host>/bird_ip
	/calico/v1/host/<host>/config/<param>
	/calico/v1/host/<host>/workload/<orch>/<workload>/endpoint/<endpoint>
	/calico/v1/policy/profile/<name>/{tags,rules,labels}
	/calico/v1/policy/tier/<tier>/{metadata,policy/<name>}
	/calico/v1/ipam/v{4,6}/pool/<network>-<prefixlen>
	/calico/bgp/v1/global/{as_num,node_mesh,peer_v{4,6}/<ip>}
	/calico/bgp/v1/host/<host>/{ip_addr_v4,ip_addr_v6,as_num,peer_v{4,6}/<ip>}
	/calico/ipam/v2/host/<host>/ipv{4,6}/block

Recursive scans return flat lists of keys. Template classifies those keys
by shape and extracts their identifiers:

	if caps, ok := paths.EndpointTemplate.Match(key); ok {
		host := caps["hostname"]
	}
*/
package paths
