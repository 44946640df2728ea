package fib

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// fakePlatform is a minimal in-memory Platform stand-in, grounded on the
// same interface fib_linux.go satisfies for real, so Fib.Run's demux and
// retry logic can be exercised without a kernel.
type fakePlatform struct {
	installed map[string][]types.Nexthop
	deleted   []string
	failNext  bool

	subCh chan error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{installed: map[string][]types.Nexthop{}, subCh: make(chan error, 1)}
}

func (f *fakePlatform) NexthopGroups() bool { return false }

func (f *fakePlatform) RouteAdd(route types.Route, nhs []types.Nexthop) error {
	return f.RouteReplace(route, nhs)
}

func (f *fakePlatform) RouteReplace(route types.Route, nhs []types.Nexthop) error {
	if f.failNext {
		f.failNext = false
		return errInstall
	}
	f.installed[route.Prefix.String()] = nhs
	return nil
}

func (f *fakePlatform) RouteDel(route types.Route) error {
	delete(f.installed, route.Prefix.String())
	f.deleted = append(f.deleted, route.Prefix.String())
	return nil
}

func (f *fakePlatform) AddrAdd(int, string) error { return nil }
func (f *fakePlatform) AddrDel(int, string) error { return nil }

func (f *fakePlatform) Dump(ctx context.Context) ([]types.Link, []bus.AddrEvent, []types.Route, error) {
	return nil, nil, nil, nil
}

func (f *fakePlatform) Subscribe(ctx context.Context, links chan<- bus.LinkEvent, addrs chan<- bus.AddrEvent, routes chan<- bus.KernelRouteEvent) error {
	select {
	case err := <-f.subCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

type installError struct{ s string }

func (e *installError) Error() string { return e.s }

var errInstall = &installError{"install failed"}

func TestFibApplyInstallAndWithdraw(t *testing.T) {
	b := bus.New()
	platform := newFakePlatform()
	f := New(platform, b, zap.NewNop().Sugar())

	route := types.Route{
		Prefix:   types.MustPrefix("10.0.0.0/24"),
		Nexthops: []types.Nexthop{{Kind: types.NexthopUnicast, Ifindex: 1}},
	}
	f.apply(bus.RouteDelta{Route: route})
	if _, ok := platform.installed["10.0.0.0/24"]; !ok {
		t.Fatalf("expected route installed")
	}

	select {
	case env := <-b.FIBAcks.C:
		if !env.Body.OK {
			t.Fatalf("expected ack OK, got %+v", env.Body)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a FIB ack")
	}

	wd := route
	wd.Withdraw = true
	f.apply(bus.RouteDelta{Route: wd})
	if _, ok := platform.installed["10.0.0.0/24"]; ok {
		t.Fatalf("expected route removed after withdraw")
	}
}

func TestFibApplyReportsFailure(t *testing.T) {
	b := bus.New()
	platform := newFakePlatform()
	platform.failNext = true
	f := New(platform, b, zap.NewNop().Sugar())

	route := types.Route{
		Prefix:   types.MustPrefix("10.0.1.0/24"),
		Nexthops: []types.Nexthop{{Kind: types.NexthopUnicast, Ifindex: 1}},
	}
	f.apply(bus.RouteDelta{Route: route})

	select {
	case env := <-b.FIBAcks.C:
		if env.Body.OK {
			t.Fatalf("expected ack failure")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a FIB ack")
	}
}

func TestExpandGroup(t *testing.T) {
	b := bus.New()
	f := New(newFakePlatform(), b, zap.NewNop().Sugar())

	children := []types.Nexthop{{Kind: types.NexthopUnicast, Ifindex: 1}, {Kind: types.NexthopUnicast, Ifindex: 2}}
	route := types.Route{
		Prefix:   types.MustPrefix("10.0.2.0/24"),
		Nexthops: []types.Nexthop{{Kind: types.NexthopGroup, GroupID: 7, Children: children}},
	}
	got := f.expandGroup(route)
	if len(got) != 2 {
		t.Fatalf("expected group expansion to 2 children, got %d", len(got))
	}
}
