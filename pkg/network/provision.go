package network

import (
	"fmt"
	"net/netip"
	"slices"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Provisioning steps, also used as metric labels
const (
	StepCreateVeth        = "create_veth"
	StepMoveIntoNamespace = "move_into_namespace"
	StepAssignAddress     = "assign_address"
	StepAddDefaultRoute   = "add_default_route"
	StepReadMAC           = "read_mac"
	StepSetMAC            = "set_mac"
	StepRemoveAddress     = "remove_address"
	StepIncrementMetrics  = "increment_route_metrics"
)

// maxRouteMetric is the largest route priority the kernel accepts
const maxRouteMetric = 0xFFFFFFFF

// maxInterfaceName is IFNAMSIZ without the terminating NUL
const maxInterfaceName = 15

// Namespace is a network namespace reachable through a file path
type Namespace struct {
	Path string
}

// PidNamespace returns the network namespace of a process
func PidNamespace(pid int) Namespace {
	return Namespace{Path: fmt.Sprintf("/proc/%d/ns/net", pid)}
}

func (n Namespace) String() string {
	return n.Path
}

// NamespaceOps are the link level primitives the provisioner is built on
type NamespaceOps interface {
	// CreateVeth creates a veth pair in the host namespace and brings the
	// host end up
	CreateVeth(hostSide, nsSide string) error

	// MoveIntoNamespace moves a host namespace link into ns, renames it
	// to newName and brings it up
	MoveIntoNamespace(ns Namespace, hostSide, newName string) error

	// AssignAddress adds ip as a host address on ifName inside ns
	AssignAddress(ns Namespace, ip netip.Addr, ifName string) error

	// AddDefaultRoute routes all traffic in ns out of ifName, towards
	// gatewayIfName on the host
	AddDefaultRoute(ns Namespace, gatewayIfName, ifName string) error

	// ReadMAC returns the hardware address of ifName inside ns
	ReadMAC(ns Namespace, ifName string) (string, error)

	// SetVethMAC sets the hardware address of a host namespace link
	SetVethMAC(hostSide, mac string) error

	// RemoveAddress deletes the host address ip from ifName inside ns
	RemoveAddress(ns Namespace, ip netip.Addr, ifName string) error

	// NamespaceVethExists reports whether ifName exists inside ns
	NamespaceVethExists(ns Namespace, ifName string) (bool, error)

	// DefaultRouteMetrics lists the distinct metrics of the IPv4 default
	// routes inside ns
	DefaultRouteMetrics(ns Namespace) ([]uint32, error)

	// SetDefaultRouteMetric replaces the default routes with metric from
	// by identical routes with metric to
	SetDefaultRouteMetric(ns Namespace, from, to uint32) error
}

// StepError reports the provisioning step that failed. Every earlier step
// stays committed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Provisioner attaches endpoints to container namespaces
type Provisioner struct {
	ops NamespaceOps
}

// NewProvisioner creates a provisioner over ops
func NewProvisioner(ops NamespaceOps) *Provisioner {
	return &Provisioner{ops: ops}
}

// ProvisionVeth wires ep into ns and returns the MAC address of the
// namespace side interface, named nsIfName. Addresses are assigned IPv6
// first. Nothing is undone on failure; the returned *StepError says how
// far provisioning got.
func (p *Provisioner) ProvisionVeth(ep *types.Endpoint, ns Namespace, nsIfName string) (string, error) {
	logger := log.WithEndpoint(ep.Hostname, ep.OrchestratorID, ep.WorkloadID, ep.EndpointID).With().
		Str("component", "provisioner").
		Str("interface", ep.Name).
		Str("namespace", ns.Path).
		Logger()

	tempName := TempInterfaceName(ep.Name)

	if err := p.step(logger, StepCreateVeth, func() error {
		return p.ops.CreateVeth(ep.Name, tempName)
	}); err != nil {
		return "", err
	}

	if err := p.step(logger, StepMoveIntoNamespace, func() error {
		return p.ops.MoveIntoNamespace(ns, tempName, nsIfName)
	}); err != nil {
		return "", err
	}

	nets := append(append([]types.Net{}, ep.IPv6Nets...), ep.IPv4Nets...)
	for _, n := range nets {
		addr := n.Addr()
		if err := p.step(logger, StepAssignAddress, func() error {
			return p.ops.AssignAddress(ns, addr, nsIfName)
		}); err != nil {
			return "", err
		}
	}

	if err := p.step(logger, StepAddDefaultRoute, func() error {
		return p.ops.AddDefaultRoute(ns, ep.Name, nsIfName)
	}); err != nil {
		return "", err
	}

	var mac string
	if err := p.step(logger, StepReadMAC, func() error {
		var err error
		mac, err = p.ops.ReadMAC(ns, nsIfName)
		return err
	}); err != nil {
		return "", err
	}

	logger.Info().Str("mac", mac).Msg("endpoint provisioned")
	return mac, nil
}

// SetVethMAC overrides the MAC address of the host side of an endpoint
func (p *Provisioner) SetVethMAC(hostSide, mac string) error {
	logger := log.WithComponent("provisioner").With().Str("interface", hostSide).Logger()
	return p.step(logger, StepSetMAC, func() error {
		return p.ops.SetVethMAC(hostSide, mac)
	})
}

// RemoveAddress takes ip off the namespace side interface ifName
func (p *Provisioner) RemoveAddress(ns Namespace, ip netip.Addr, ifName string) error {
	logger := log.WithComponent("provisioner").With().
		Str("interface", ifName).
		Str("namespace", ns.Path).
		Stringer("ip", ip).
		Logger()
	return p.step(logger, StepRemoveAddress, func() error {
		return p.ops.RemoveAddress(ns, ip, ifName)
	})
}

// NamespaceVethExists reports whether ns already holds an interface named
// ifName
func (p *Provisioner) NamespaceVethExists(ns Namespace, ifName string) (bool, error) {
	return p.ops.NamespaceVethExists(ns, ifName)
}

// IncrementRouteMetrics makes room for a new metric 0 default route in ns.
// When a default route with metric 0 exists, every default route moves up
// by one, highest metric first, unless that would reach the maximum metric
// or collide with a metric already taken. Nothing changes otherwise.
func (p *Provisioner) IncrementRouteMetrics(ns Namespace) error {
	logger := log.WithComponent("provisioner").With().Str("namespace", ns.Path).Logger()
	return p.step(logger, StepIncrementMetrics, func() error {
		current, err := p.ops.DefaultRouteMetrics(ns)
		if err != nil {
			return err
		}
		for _, change := range metricIncrements(current) {
			if err := p.ops.SetDefaultRouteMetric(ns, change.from, change.to); err != nil {
				return err
			}
			logger.Debug().Uint32("from", change.from).Uint32("to", change.to).Msg("default route metric raised")
		}
		return nil
	})
}

type metricChange struct {
	from, to uint32
}

func metricIncrements(current []uint32) []metricChange {
	if !slices.Contains(current, 0) {
		return nil
	}
	desc := slices.Clone(current)
	slices.Sort(desc)
	desc = slices.Compact(desc)
	slices.Reverse(desc)

	taken := make(map[uint32]bool, len(desc))
	var changes []metricChange
	for _, m := range desc {
		if uint64(m)+1 >= maxRouteMetric || taken[m+1] {
			taken[m] = true
			continue
		}
		changes = append(changes, metricChange{from: m, to: m + 1})
		taken[m+1] = true
	}
	return changes
}

func (p *Provisioner) step(logger zerolog.Logger, name string, fn func() error) error {
	if err := fn(); err != nil {
		metrics.ProvisionStepsTotal.WithLabelValues(name, metrics.ResultError).Inc()
		logger.Error().Err(err).Str("step", name).Msg("provisioning step failed")
		return &StepError{Step: name, Err: err}
	}
	metrics.ProvisionStepsTotal.WithLabelValues(name, metrics.ResultSuccess).Inc()
	logger.Debug().Str("step", name).Msg("provisioning step done")
	return nil
}

// TempInterfaceName is the host namespace name of the namespace side of a
// veth before it is moved, derived from the host side name
func TempInterfaceName(hostSide string) string {
	const prefix = "tmp"
	name := hostSide
	if keep := maxInterfaceName - len(prefix); len(name) > keep {
		name = name[len(name)-keep:]
	}
	return prefix + name
}
