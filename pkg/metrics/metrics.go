package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation results used as the "result" label.
const (
	ResultSuccess  = "success"
	ResultNotFound = "not_found"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

var (
	// Datastore metrics
	DatastoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_datastore_operations_total",
			Help: "Total number of datastore client operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	DatastoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_datastore_operation_duration_seconds",
			Help:    "Datastore client operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DatastoreUpdateConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_datastore_update_conflicts_total",
			Help: "Total number of endpoint updates rejected because the stored value changed",
		},
	)

	// IPAM metrics
	IPAMCompareAndSwapRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_ipam_cas_retries_total",
			Help: "Total number of IPAM writes retried because another writer changed the stored object",
		},
		[]string{"object"},
	)

	IPAMAddressesAssigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_ipam_addresses_assigned_total",
			Help: "Total number of addresses assigned by IP version",
		},
		[]string{"version"},
	)

	// Provisioning metrics
	ProvisionStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_provision_steps_total",
			Help: "Total number of namespace provisioning steps by step and result",
		},
		[]string{"step", "result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(DatastoreOperationsTotal)
	prometheus.MustRegister(DatastoreOperationDuration)
	prometheus.MustRegister(DatastoreUpdateConflicts)
	prometheus.MustRegister(IPAMCompareAndSwapRetries)
	prometheus.MustRegister(IPAMAddressesAssigned)
	prometheus.MustRegister(ProvisionStepsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
