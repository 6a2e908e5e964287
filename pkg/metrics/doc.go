/*
Package metrics provides Prometheus metrics for the burrow datastore client
and endpoint provisioner.

All collectors are package globals registered with the default Prometheus
registry at init. Long-running agents that embed the datastore client expose
them with Handler; short-lived commands such as burrowctl record them but do
not serve them.

# Architecture

	┌──────────────────── METRICS ─────────────────────────────┐
	│                                                            │
	│  datastore.Client ──► DatastoreOperationsTotal             │
	│        │              DatastoreOperationDuration           │
	│        │              DatastoreUpdateConflicts             │
	│        │                                                   │
	│  network.Provisioner ──► ProvisionStepsTotal               │
	│                                                            │
	│  ┌──────────────────────────────────────────────┐         │
	│  │   prometheus.DefaultRegisterer (init)         │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     ▼                                      │
	│               Handler() ── /metrics                        │
	└────────────────────────────────────────────────────────────┘

# Metrics Catalog

burrow_datastore_operations_total{operation, result}:
  - Type: Counter
  - Description: Datastore client calls by method and outcome
  - Results: success, not_found, conflict, invalid, error
  - Example: burrow_datastore_operations_total{operation="get_endpoint",result="success"} 12

burrow_datastore_operation_duration_seconds{operation}:
  - Type: Histogram
  - Description: Wall time of one datastore client call, all store round trips included

burrow_datastore_update_conflicts_total:
  - Type: Counter
  - Description: Endpoint updates rejected because the stored value changed
    since it was read. Callers re-read and retry; the client never does.

burrow_provision_steps_total{step, result}:
  - Type: Counter
  - Description: Namespace wiring steps by step name and outcome
  - Steps: create_veth, move_into_namespace, assign_address,
    add_default_route, read_mac

# Usage

Timing an operation:

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.DatastoreOperationDuration, "create_host")
	metrics.DatastoreOperationsTotal.WithLabelValues("create_host", metrics.ResultSuccess).Inc()

Exposing the endpoint from an agent:

	http.Handle("/metrics", metrics.Handler())

# Design Patterns

Label Discipline:
  - Operation and step labels are fixed method names
  - Hostnames, endpoint ids and keys never appear as labels
*/
package metrics
