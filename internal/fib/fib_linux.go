//go:build linux

package fib

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// linuxPlatform backs Platform with github.com/vishvananda/netlink,
// following the route-add/replace/del and link/addr dump shape of
// ttsubo-goplane's netlink-dataplane.go Dataplane.modRib and Serve.
type linuxPlatform struct {
	sharedGroups bool
}

// NewLinux creates the Linux rtnetlink-backed Platform. sharedGroups is
// what NexthopGroups reports (spec.md §4.1); zebrad's run command turns
// it on by default (--shared-nexthop-groups). Routes are always
// programmed with their nexthops inline by toRoute.
func NewLinux(sharedGroups bool) Platform {
	return &linuxPlatform{sharedGroups: sharedGroups}
}

func (p *linuxPlatform) NexthopGroups() bool { return p.sharedGroups }

func toIPNet(prefix types.Prefix) *net.IPNet {
	n := prefix.Net()
	ones := n.Bits()
	bits := 32
	if n.Addr().Is6() {
		bits = 128
	}
	return &net.IPNet{IP: n.Addr().AsSlice(), Mask: net.CIDRMask(ones, bits)}
}

func toRoute(route types.Route, nhs []types.Nexthop) *netlink.Route {
	r := &netlink.Route{Dst: toIPNet(route.Prefix), Protocol: netlink.RouteProtocol(zebraRouteProtocol)}
	if len(nhs) == 1 && nhs[0].Kind != types.NexthopGroup {
		nh := nhs[0]
		if nh.Addr.IsValid() {
			r.Gw = nh.Addr.AsSlice()
		}
		r.LinkIndex = nh.Ifindex
		return r
	}
	mp := make([]*netlink.NexthopInfo, 0, len(nhs))
	for _, nh := range nhs {
		info := &netlink.NexthopInfo{LinkIndex: nh.Ifindex}
		if nh.Addr.IsValid() {
			info.Gw = nh.Addr.AsSlice()
		}
		mp = append(mp, info)
	}
	r.MultiPath = mp
	return r
}

func (p *linuxPlatform) RouteAdd(route types.Route, nhs []types.Nexthop) error {
	return netlink.RouteAdd(toRoute(route, nhs))
}

func (p *linuxPlatform) RouteReplace(route types.Route, nhs []types.Nexthop) error {
	return netlink.RouteReplace(toRoute(route, nhs))
}

func (p *linuxPlatform) RouteDel(route types.Route) error {
	return netlink.RouteDel(&netlink.Route{Dst: toIPNet(route.Prefix)})
}

func (p *linuxPlatform) AddrAdd(ifindex int, addr string) error {
	link, err := netlink.LinkByIndex(ifindex)
	if err != nil {
		return err
	}
	a, err := netlink.ParseAddr(addr)
	if err != nil {
		return err
	}
	return netlink.AddrAdd(link, a)
}

func (p *linuxPlatform) AddrDel(ifindex int, addr string) error {
	link, err := netlink.LinkByIndex(ifindex)
	if err != nil {
		return err
	}
	a, err := netlink.ParseAddr(addr)
	if err != nil {
		return err
	}
	return netlink.AddrDel(link, a)
}

func toTypesLink(l netlink.Link) types.Link {
	attrs := l.Attrs()
	return types.Link{
		Ifindex: attrs.Index,
		Name:    attrs.Name,
		MTU:     attrs.MTU,
		HWAddr:  []byte(attrs.HardwareAddr),
		Up:      attrs.Flags&net.FlagUp != 0,
	}
}

func (p *linuxPlatform) Dump(ctx context.Context) ([]types.Link, []bus.AddrEvent, []types.Route, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fib: link dump: %w", err)
	}

	var outLinks []types.Link
	var outAddrs []bus.AddrEvent
	for _, l := range links {
		tl := toTypesLink(l)
		outLinks = append(outLinks, tl)

		addrs, err := netlink.AddrList(l, netlink.FAMILY_ALL)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			outAddrs = append(outAddrs, bus.AddrEvent{Kind: bus.AddrAdd, Ifindex: tl.Ifindex, Addr: a.IPNet.String()})
		}
	}

	routes, err := netlink.RouteList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return outLinks, outAddrs, nil, fmt.Errorf("fib: route dump: %w", err)
	}
	var outRoutes []types.Route
	for _, r := range routes {
		if r.Protocol == netlink.RouteProtocol(zebraRouteProtocol) {
			// Routes this daemon itself installed; the resync diffs
			// against already-selected RIB state, not its own echoes.
			continue
		}
		if r.Dst == nil {
			continue
		}
		pfx, ok := netip.AddrFromSlice(r.Dst.IP)
		if !ok {
			continue
		}
		ones, _ := r.Dst.Mask.Size()
		tp, err := types.NewPrefix(pfx, ones)
		if err != nil {
			continue
		}
		outRoutes = append(outRoutes, types.Route{
			Prefix:   tp,
			Source:   types.SourceKernel,
			Distance: types.SourceKernel.DefaultDistance(),
			Nexthops: []types.Nexthop{{Kind: types.NexthopDirect, Ifindex: r.LinkIndex}},
		})
	}
	return outLinks, outAddrs, outRoutes, nil
}

// zebraRouteProtocol tags routes this daemon installs so a resync dump
// does not reimport its own state as a kernel-sourced route.
const zebraRouteProtocol = 186 // RTPROT_ZEBRA, reused by convention

func (p *linuxPlatform) Subscribe(ctx context.Context, links chan<- bus.LinkEvent, addrs chan<- bus.AddrEvent, routes chan<- bus.KernelRouteEvent) error {
	linkUpdates := make(chan netlink.LinkUpdate, 64)
	if err := netlink.LinkSubscribe(linkUpdates, ctx.Done()); err != nil {
		return fmt.Errorf("fib: link subscribe: %w", err)
	}
	addrUpdates := make(chan netlink.AddrUpdate, 64)
	if err := netlink.AddrSubscribe(addrUpdates, ctx.Done()); err != nil {
		return fmt.Errorf("fib: addr subscribe: %w", err)
	}
	routeUpdates := make(chan netlink.RouteUpdate, 256)
	if err := netlink.RouteSubscribe(routeUpdates, ctx.Done()); err != nil {
		return fmt.Errorf("fib: route subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-linkUpdates:
			if !ok {
				return fmt.Errorf("fib: link subscription closed")
			}
			kind := bus.LinkChange
			if u.Header.Type == 16 { // RTM_NEWLINK
				kind = bus.LinkAdd
			} else if u.Header.Type == 17 { // RTM_DELLINK
				kind = bus.LinkDelete
			}
			links <- bus.LinkEvent{Kind: kind, Link: toTypesLink(u.Link)}
		case u, ok := <-addrUpdates:
			if !ok {
				return fmt.Errorf("fib: addr subscription closed")
			}
			kind := bus.AddrAdd
			if !u.NewAddr {
				kind = bus.AddrDelete
			}
			addrs <- bus.AddrEvent{Kind: kind, Ifindex: u.LinkIndex, Addr: u.LinkAddress.String()}
		case u, ok := <-routeUpdates:
			if !ok {
				return fmt.Errorf("fib: route subscription closed")
			}
			if u.Route.Dst == nil {
				continue
			}
			addr, ok := netip.AddrFromSlice(u.Route.Dst.IP)
			if !ok {
				continue
			}
			ones, _ := u.Route.Dst.Mask.Size()
			tp, err := types.NewPrefix(addr, ones)
			if err != nil {
				continue
			}
			routes <- bus.KernelRouteEvent{
				Route: types.Route{
					Prefix:   tp,
					Source:   types.SourceKernel,
					Distance: types.SourceKernel.DefaultDistance(),
					Nexthops: []types.Nexthop{{Kind: types.NexthopDirect, Ifindex: u.Route.LinkIndex}},
				},
				Delete: u.Type == 25, // RTM_DELROUTE
			}
		}
	}
}
