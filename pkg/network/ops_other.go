//go:build !linux

package network

import (
	"errors"
	"net/netip"
)

// ErrUnsupported is returned by every NetlinkOps method off Linux
var ErrUnsupported = errors.New("network namespaces are only supported on linux")

// NetlinkOps is unavailable on this platform
type NetlinkOps struct{}

func NewNetlinkOps() *NetlinkOps {
	return &NetlinkOps{}
}

func (NetlinkOps) CreateVeth(hostSide, nsSide string) error { return ErrUnsupported }

func (NetlinkOps) MoveIntoNamespace(ns Namespace, hostSide, newName string) error {
	return ErrUnsupported
}

func (NetlinkOps) AssignAddress(ns Namespace, ip netip.Addr, ifName string) error {
	return ErrUnsupported
}

func (NetlinkOps) AddDefaultRoute(ns Namespace, gatewayIfName, ifName string) error {
	return ErrUnsupported
}

func (NetlinkOps) ReadMAC(ns Namespace, ifName string) (string, error) {
	return "", ErrUnsupported
}

func (NetlinkOps) VethExists(hostSide string) bool { return false }

func (NetlinkOps) RemoveVeth(hostSide string) (bool, error) { return false, ErrUnsupported }

func (NetlinkOps) SetVethMAC(hostSide, mac string) error { return ErrUnsupported }

func (NetlinkOps) RemoveAddress(ns Namespace, ip netip.Addr, ifName string) error {
	return ErrUnsupported
}

func (NetlinkOps) NamespaceVethExists(ns Namespace, ifName string) (bool, error) {
	return false, ErrUnsupported
}

func (NetlinkOps) DefaultRouteMetrics(ns Namespace) ([]uint32, error) {
	return nil, ErrUnsupported
}

func (NetlinkOps) SetDefaultRouteMetric(ns Namespace, from, to uint32) error {
	return ErrUnsupported
}
