package rib

import (
	"net/netip"
	"testing"

	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

func testRIB() (*RIB, *bus.Channel[bus.RouteDelta]) {
	ch := bus.NewChannel[bus.RouteDelta](16)
	return New(ch, zap.NewNop().Sugar()), ch
}

func connectedRoute(cidr string, ifindex int) types.Route {
	return types.Route{
		Prefix:   types.MustPrefix(cidr),
		Source:   types.SourceConnected,
		Distance: types.SourceConnected.DefaultDistance(),
		Nexthops: []types.Nexthop{{Kind: types.NexthopDirect, Ifindex: ifindex}},
	}
}

// TestStaticInstall mirrors spec.md §8 scenario 1: a directly reachable
// static nexthop resolves immediately to its connected interface.
func TestStaticInstall(t *testing.T) {
	r, fibOut := testRIB()

	r.Update(connectedRoute("192.0.2.0/24", 1))

	static := types.Route{
		Prefix:   types.MustPrefix("10.0.0.0/24"),
		Source:   types.SourceStatic,
		Distance: types.SourceStatic.DefaultDistance(),
		Nexthops: []types.Nexthop{{Kind: types.NexthopUnicast, Addr: netip.MustParseAddr("192.0.2.1")}},
	}
	r.Update(static)

	e, ok := r.table(types.FamilyIPv4).Get(static.Prefix.Net())
	if !ok || len(e.Selected) != 1 {
		t.Fatalf("expected static route selected, got %+v", e)
	}
	if !e.Selected[0].Flags.Resolved {
		t.Fatalf("expected static route to resolve via connected nexthop")
	}

	select {
	case env := <-fibOut.C:
		if env.Body.Route.Withdraw {
			t.Fatalf("expected an install, got a withdraw")
		}
	default:
		t.Fatalf("expected a FIB delta to be emitted")
	}
}

// TestRecursiveResolution mirrors spec.md §8 scenario 2.
func TestRecursiveResolution(t *testing.T) {
	r, fibOut := testRIB()

	connected := connectedRoute("198.51.100.0/24", 2)
	r.Update(connected)

	static := types.Route{
		Prefix:   types.MustPrefix("10.0.0.0/24"),
		Source:   types.SourceStatic,
		Distance: types.SourceStatic.DefaultDistance(),
		Nexthops: []types.Nexthop{{Kind: types.NexthopRecursive, Addr: netip.MustParseAddr("198.51.100.1")}},
	}
	r.Update(static)
	drain(fibOut)

	e, _ := r.table(types.FamilyIPv4).Get(static.Prefix.Net())
	if !e.Selected[0].Flags.Resolved {
		t.Fatalf("expected recursive static route to resolve")
	}

	// Withdraw the connected prefix: the static route should become
	// unresolved and a withdraw should be emitted.
	wd := connected
	wd.Withdraw = true
	r.Update(wd)

	e, _ = r.table(types.FamilyIPv4).Get(static.Prefix.Net())
	if e.Selected[0].Flags.Resolved {
		t.Fatalf("expected static route to become unresolved after connected withdraw")
	}

	var sawWithdraw bool
	for {
		select {
		case env := <-fibOut.C:
			if env.Body.Route.Withdraw {
				sawWithdraw = true
			}
		default:
			goto done
		}
	}
done:
	if !sawWithdraw {
		t.Fatalf("expected a FIB withdraw after connected prefix removal")
	}
}

// TestISISECMP mirrors spec.md §8 scenario 3: two equal-metric IS-IS
// paths merge into one RIB entry with both nexthops.
func TestISISECMP(t *testing.T) {
	r, fibOut := testRIB()
	r.Update(connectedRoute("192.0.2.0/30", 1))
	r.Update(connectedRoute("192.0.2.4/30", 2))

	prefix := types.MustPrefix("203.0.113.0/24")
	r.Update(types.Route{
		Prefix: prefix, Source: types.SourceISIS, Distance: types.SourceISIS.DefaultDistance(), Metric: 10,
		Nexthops: []types.Nexthop{{Kind: types.NexthopUnicast, Addr: netip.MustParseAddr("192.0.2.1")}},
	})
	r.Update(types.Route{
		Prefix: prefix, Source: types.SourceISIS, Distance: types.SourceISIS.DefaultDistance(), Metric: 10,
		Nexthops: []types.Nexthop{{Kind: types.NexthopUnicast, Addr: netip.MustParseAddr("192.0.2.5")}},
	})

	e, ok := r.table(types.FamilyIPv4).Get(prefix.Net())
	if !ok || len(e.Selected) != 1 {
		t.Fatalf("expected a single merged ECMP entry, got %+v", e)
	}
	gid := e.Selected[0].Nexthops[0].GroupID
	nhs, refcount, ok := r.resolver.groups.Lookup(gid)
	if !ok || len(nhs) != 2 || refcount != 1 {
		t.Fatalf("expected one group with 2 children refcount 1, got %d children refcount %d", len(nhs), refcount)
	}
	drain(fibOut)
}

// TestConnectedDistinctInterfacesCoexist covers the spec.md §3/§8
// boundary behavior: identical prefixes on different interfaces never
// shadow each other.
func TestConnectedDistinctInterfacesCoexist(t *testing.T) {
	r, fibOut := testRIB()
	r.Update(connectedRoute("192.0.2.0/30", 1))
	r.Update(connectedRoute("192.0.2.0/30", 2))

	e, ok := r.table(types.FamilyIPv4).Get(types.MustPrefix("192.0.2.0/30").Net())
	if !ok || len(e.Selected) != 2 {
		t.Fatalf("expected both connected candidates selected, got %+v", e)
	}
	drain(fibOut)
}

func drain(ch *bus.Channel[bus.RouteDelta]) {
	for {
		select {
		case <-ch.C:
		default:
			return
		}
	}
}
