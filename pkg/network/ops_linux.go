package network

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// ipv4NextHop is the link local address used as the IPv4 gateway inside
// every namespace. The host answers ARP for it on the veth.
var ipv4NextHop = net.IPv4(169, 254, 1, 1)

// NetlinkOps implements NamespaceOps with netlink, entering namespaces by
// file handle instead of switching the calling thread
type NetlinkOps struct{}

// NewNetlinkOps returns the netlink backed NamespaceOps
func NewNetlinkOps() *NetlinkOps {
	return &NetlinkOps{}
}

func (NetlinkOps) CreateVeth(hostSide, nsSide string) error {
	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: hostSide},
		PeerName:  nsSide,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return fmt.Errorf("failed to create veth %s: %w", hostSide, err)
	}
	link, err := netlink.LinkByName(hostSide)
	if err != nil {
		return err
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", hostSide, err)
	}
	return nil
}

func (NetlinkOps) MoveIntoNamespace(ns Namespace, hostSide, newName string) error {
	link, err := netlink.LinkByName(hostSide)
	if err != nil {
		return err
	}

	nsHandle, err := netns.GetFromPath(ns.Path)
	if err != nil {
		return fmt.Errorf("failed to open namespace %s: %w", ns.Path, err)
	}
	defer nsHandle.Close()

	if err := netlink.LinkSetNsFd(link, int(nsHandle)); err != nil {
		return fmt.Errorf("failed to move %s into %s: %w", hostSide, ns.Path, err)
	}

	return inNamespace(ns, func(h *netlink.Handle) error {
		link, err := h.LinkByName(hostSide)
		if err != nil {
			return err
		}
		if err := h.LinkSetName(link, newName); err != nil {
			return fmt.Errorf("failed to rename %s to %s: %w", hostSide, newName, err)
		}
		link, err = h.LinkByName(newName)
		if err != nil {
			return err
		}
		return h.LinkSetUp(link)
	})
}

func (NetlinkOps) AssignAddress(ns Namespace, ip netip.Addr, ifName string) error {
	return inNamespace(ns, func(h *netlink.Handle) error {
		link, err := h.LinkByName(ifName)
		if err != nil {
			return err
		}
		if err := h.AddrAdd(link, hostAddr(ip)); err != nil {
			return fmt.Errorf("failed to add %s to %s: %w", ip, ifName, err)
		}
		return nil
	})
}

// AddDefaultRoute installs a connected route to 169.254.1.1 and an IPv4
// default route through it. The IPv6 default route goes via the link local
// address of the host side and is skipped when that has none.
func (NetlinkOps) AddDefaultRoute(ns Namespace, gatewayIfName, ifName string) error {
	var nextHop6 net.IP
	if host, err := netlink.LinkByName(gatewayIfName); err == nil {
		addrs, err := netlink.AddrList(host, netlink.FAMILY_V6)
		if err == nil {
			for _, a := range addrs {
				if a.IP.IsLinkLocalUnicast() {
					nextHop6 = a.IP
					break
				}
			}
		}
	}

	return inNamespace(ns, func(h *netlink.Handle) error {
		link, err := h.LinkByName(ifName)
		if err != nil {
			return err
		}
		index := link.Attrs().Index

		connected := &netlink.Route{
			LinkIndex: index,
			Scope:     netlink.SCOPE_LINK,
			Dst:       &net.IPNet{IP: ipv4NextHop, Mask: net.CIDRMask(32, 32)},
		}
		if err := h.RouteReplace(connected); err != nil {
			return fmt.Errorf("failed to add route to %s: %w", ipv4NextHop, err)
		}
		if err := h.RouteReplace(&netlink.Route{LinkIndex: index, Gw: ipv4NextHop}); err != nil {
			return fmt.Errorf("failed to add IPv4 default route: %w", err)
		}

		if nextHop6 != nil {
			if err := h.RouteReplace(&netlink.Route{LinkIndex: index, Gw: nextHop6}); err != nil {
				return fmt.Errorf("failed to add IPv6 default route: %w", err)
			}
		}
		return nil
	})
}

func (NetlinkOps) ReadMAC(ns Namespace, ifName string) (string, error) {
	var mac string
	err := inNamespace(ns, func(h *netlink.Handle) error {
		link, err := h.LinkByName(ifName)
		if err != nil {
			return err
		}
		mac = link.Attrs().HardwareAddr.String()
		return nil
	})
	return mac, err
}

func (NetlinkOps) SetVethMAC(hostSide, mac string) error {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return fmt.Errorf("invalid MAC address %q: %w", mac, err)
	}
	link, err := netlink.LinkByName(hostSide)
	if err != nil {
		return err
	}
	if err := netlink.LinkSetHardwareAddr(link, hw); err != nil {
		return fmt.Errorf("failed to set MAC of %s: %w", hostSide, err)
	}
	return nil
}

func (NetlinkOps) RemoveAddress(ns Namespace, ip netip.Addr, ifName string) error {
	return inNamespace(ns, func(h *netlink.Handle) error {
		link, err := h.LinkByName(ifName)
		if err != nil {
			return err
		}
		if err := h.AddrDel(link, hostAddr(ip)); err != nil {
			return fmt.Errorf("failed to remove %s from %s: %w", ip, ifName, err)
		}
		return nil
	})
}

func (NetlinkOps) NamespaceVethExists(ns Namespace, ifName string) (bool, error) {
	exists := false
	err := inNamespace(ns, func(h *netlink.Handle) error {
		_, err := h.LinkByName(ifName)
		exists = err == nil
		return nil
	})
	return exists, err
}

func (NetlinkOps) DefaultRouteMetrics(ns Namespace) ([]uint32, error) {
	var metrics []uint32
	err := inNamespace(ns, func(h *netlink.Handle) error {
		routes, err := h.RouteList(nil, netlink.FAMILY_V4)
		if err != nil {
			return fmt.Errorf("failed to list routes: %w", err)
		}
		for _, r := range routes {
			if r.Dst == nil {
				metrics = append(metrics, uint32(r.Priority))
			}
		}
		return nil
	})
	return metrics, err
}

// SetDefaultRouteMetric adds the raised route before deleting the old one
// so the namespace never loses its default route.
func (NetlinkOps) SetDefaultRouteMetric(ns Namespace, from, to uint32) error {
	return inNamespace(ns, func(h *netlink.Handle) error {
		routes, err := h.RouteList(nil, netlink.FAMILY_V4)
		if err != nil {
			return fmt.Errorf("failed to list routes: %w", err)
		}
		for _, r := range routes {
			if r.Dst != nil || uint32(r.Priority) != from {
				continue
			}
			raised := r
			raised.Priority = int(to)
			if err := h.RouteAdd(&raised); err != nil {
				return fmt.Errorf("failed to add default route via %s metric %d: %w", r.Gw, to, err)
			}
			if err := h.RouteDel(&r); err != nil {
				return fmt.Errorf("failed to delete default route via %s metric %d: %w", r.Gw, from, err)
			}
		}
		return nil
	})
}

// VethExists reports whether a link named hostSide exists on the host
func (NetlinkOps) VethExists(hostSide string) bool {
	_, err := netlink.LinkByName(hostSide)
	return err == nil
}

// RemoveVeth deletes the pair hostSide belongs to. It returns false when
// there is no such link.
func (NetlinkOps) RemoveVeth(hostSide string) (bool, error) {
	link, err := netlink.LinkByName(hostSide)
	if err != nil {
		return false, nil
	}
	if err := netlink.LinkDel(link); err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", hostSide, err)
	}
	return true, nil
}

// hostAddr is ip as a /32 or /128
func hostAddr(ip netip.Addr) *netlink.Addr {
	return &netlink.Addr{IPNet: &net.IPNet{
		IP:   net.IP(ip.AsSlice()),
		Mask: net.CIDRMask(ip.BitLen(), ip.BitLen()),
	}}
}

func inNamespace(ns Namespace, fn func(*netlink.Handle) error) error {
	nsHandle, err := netns.GetFromPath(ns.Path)
	if err != nil {
		return fmt.Errorf("failed to open namespace %s: %w", ns.Path, err)
	}
	defer nsHandle.Close()

	h, err := netlink.NewHandleAt(nsHandle)
	if err != nil {
		return fmt.Errorf("failed to open netlink handle in %s: %w", ns.Path, err)
	}
	defer h.Delete()

	return fn(h)
}
