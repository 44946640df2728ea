// Package fib implements the bidirectional, asynchronous bridge between
// the RIB and the kernel's routing subsystem (spec.md C1). Platform is
// the only OS-specific surface; fib_linux.go backs it with
// github.com/vishvananda/netlink the way ttsubo/goplane's
// netlink-dataplane.go bridges a BGP RIB to the kernel, and
// fib_unsupported.go gives every other GOOS a placeholder that reports
// ErrUnsupported rather than failing to build.
package fib

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// ErrUnsupported is returned by a Platform that has no real kernel
// backing on this GOOS (spec.md §6's macOS route-sockets fallback is not
// implemented here, just contracted for).
var ErrUnsupported = errors.New("fib: platform not supported")

// Platform is the OS-specific half of the FIB shim: translating resolved
// RIB routes into kernel operations and dumping/subscribing to kernel
// state. NexthopGroups reports whether the platform exposes shared
// kernel nexthop objects (spec.md §4.1); when false, routes carry their
// nexthops inline.
type Platform interface {
	NexthopGroups() bool

	RouteAdd(types.Route, []types.Nexthop) error
	RouteReplace(types.Route, []types.Nexthop) error
	RouteDel(types.Route) error

	AddrAdd(ifindex int, addr string) error
	AddrDel(ifindex int, addr string) error

	// Dump reports the full initial (or resynced) kernel state: links,
	// addresses, and routes owned by other agents.
	Dump(ctx context.Context) (links []types.Link, addrs []bus.AddrEvent, routes []types.Route, err error)

	// Subscribe streams ongoing kernel notifications until ctx is done
	// or the underlying socket is lost (in which case it returns an
	// error so Fib.Run can trigger a resync).
	Subscribe(ctx context.Context, links chan<- bus.LinkEvent, addrs chan<- bus.AddrEvent, routes chan<- bus.KernelRouteEvent) error
}

// Fib is the platform-independent shim logic: it drains bus.FIBOut
// toward Platform, and demuxes Platform's kernel notifications onto the
// bus, assigning each a monotonic sequence (spec.md §4.1).
type Fib struct {
	platform Platform
	bus      *bus.Bus
	log      *zap.SugaredLogger
	seq      uint64
}

func New(platform Platform, b *bus.Bus, log *zap.SugaredLogger) *Fib {
	return &Fib{platform: platform, bus: b, log: log}
}

// Run drives both directions until ctx is cancelled. Loss of the kernel
// socket triggers a resync that re-dumps links, addresses and kernel
// routes onto the bus (retried with backoff); it does not diff that dump
// against RIB state or replay the RIB's own installs.
func (f *Fib) Run(ctx context.Context) error {
	if err := f.resync(ctx); err != nil {
		return err
	}

	links := make(chan bus.LinkEvent, 64)
	addrs := make(chan bus.AddrEvent, 64)
	routes := make(chan bus.KernelRouteEvent, 256)

	subErrCh := make(chan error, 1)
	go func() { subErrCh <- f.platform.Subscribe(ctx, links, addrs, routes) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case delta := <-f.bus.FIBOut.C:
			f.apply(delta.Body)
		case ev := <-links:
			f.seq++
			f.bus.Links.Send("fib", ev)
		case ev := <-addrs:
			f.seq++
			f.bus.Addrs.Send("fib", ev)
		case ev := <-routes:
			f.seq++
			f.bus.Kernel.Send("fib", ev)
		case err := <-subErrCh:
			if err == nil {
				return nil
			}
			f.log.Errorw("netlink subscription lost, resyncing", "error", err)
			if err := f.backoffResync(ctx); err != nil {
				return err
			}
			go func() { subErrCh <- f.platform.Subscribe(ctx, links, addrs, routes) }()
		}
	}
}

func (f *Fib) backoffResync(ctx context.Context) error {
	delay := 500 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		if err := f.resync(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
	}
	return f.resync(ctx)
}

func (f *Fib) resync(ctx context.Context) error {
	links, addrs, routes, err := f.platform.Dump(ctx)
	if err != nil {
		return err
	}
	for _, l := range links {
		f.bus.Links.Send("fib", bus.LinkEvent{Kind: bus.LinkAdd, Link: l})
	}
	for _, a := range addrs {
		f.bus.Addrs.Send("fib", a)
	}
	for _, r := range routes {
		f.bus.Kernel.Send("fib", bus.KernelRouteEvent{Route: r})
	}
	return nil
}

// apply installs, replaces, or deletes one RIB-selected route in the
// kernel, reporting the outcome back to the RIB so it can mark a failed
// route not-fib-installed without losing "selected" (spec.md §7).
func (f *Fib) apply(delta bus.RouteDelta) {
	route := delta.Route
	var err error
	switch {
	case route.Withdraw:
		err = f.platform.RouteDel(route)
	default:
		nhs := f.expandGroup(route)
		err = f.platform.RouteReplace(route, nhs)
	}

	res := bus.FIBResult{Prefix: route.Prefix, OK: err == nil}
	if err != nil {
		res.Err = err.Error()
		f.log.Warnw("fib operation failed", "prefix", route.Prefix, "error", err)
	}
	f.bus.FIBAcks.Send("fib", res)
}

func (f *Fib) expandGroup(route types.Route) []types.Nexthop {
	if len(route.Nexthops) != 1 || route.Nexthops[0].Kind != types.NexthopGroup {
		return route.Nexthops
	}
	return route.Nexthops[0].Children
}
