package fib

import (
	"context"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// unsupportedPlatform is used on any GOOS without a dedicated backing
// (spec.md §6 notes a macOS route-sockets path as future work). It is
// compiled on every GOOS so callers can name it unconditionally. Every
// route and address operation fails with ErrUnsupported; Dump reports an
// empty kernel state and Subscribe blocks until ctx is done, so the rest
// of the stack (config, CLI, protocol engines) stays runnable anywhere.
type unsupportedPlatform struct{}

// NewUnsupported returns the placeholder Platform for this GOOS.
func NewUnsupported() Platform { return unsupportedPlatform{} }

func (unsupportedPlatform) NexthopGroups() bool { return false }

func (unsupportedPlatform) RouteAdd(types.Route, []types.Nexthop) error     { return ErrUnsupported }
func (unsupportedPlatform) RouteReplace(types.Route, []types.Nexthop) error { return ErrUnsupported }
func (unsupportedPlatform) RouteDel(types.Route) error                     { return ErrUnsupported }

func (unsupportedPlatform) AddrAdd(int, string) error { return ErrUnsupported }
func (unsupportedPlatform) AddrDel(int, string) error { return ErrUnsupported }

func (unsupportedPlatform) Dump(ctx context.Context) ([]types.Link, []bus.AddrEvent, []types.Route, error) {
	return nil, nil, nil, nil
}

func (unsupportedPlatform) Subscribe(ctx context.Context, links chan<- bus.LinkEvent, addrs chan<- bus.AddrEvent, routes chan<- bus.KernelRouteEvent) error {
	<-ctx.Done()
	return nil
}
