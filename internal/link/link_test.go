package link

import (
	"net/netip"
	"testing"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

func drainRIBIn(t *testing.T, ribIn *bus.Channel[bus.RouteDelta]) []bus.RouteDelta {
	t.Helper()
	var out []bus.RouteDelta
	for {
		select {
		case env := <-ribIn.C:
			out = append(out, env.Body)
		default:
			return out
		}
	}
}

func TestUpsertAndByIndexByName(t *testing.T) {
	ribIn := bus.NewChannel[bus.RouteDelta](8)
	tbl := New(ribIn)

	tbl.Upsert(types.Link{Ifindex: 1, Name: "eth0", MTU: 1500, Up: true})
	l, ok := tbl.ByIndex(1)
	if !ok || l.Name != "eth0" {
		t.Fatalf("expected eth0 at ifindex 1, got %+v ok=%v", l, ok)
	}
	l, ok = tbl.ByName("eth0")
	if !ok || l.Ifindex != 1 {
		t.Fatalf("expected ifindex 1 for eth0, got %+v ok=%v", l, ok)
	}

	// Renaming must drop the stale name -> ifindex mapping.
	tbl.Upsert(types.Link{Ifindex: 1, Name: "eth1", MTU: 1500, Up: true})
	if _, ok := tbl.ByName("eth0"); ok {
		t.Fatalf("stale name eth0 should no longer resolve after rename")
	}
	if _, ok := tbl.ByName("eth1"); !ok {
		t.Fatalf("renamed link should resolve under eth1")
	}
}

func TestAddAddrRejectsDuplicate(t *testing.T) {
	ribIn := bus.NewChannel[bus.RouteDelta](8)
	tbl := New(ribIn)
	tbl.Upsert(types.Link{Ifindex: 1, Name: "eth0"})

	p := netip.MustParsePrefix("192.0.2.1/24")
	if err := tbl.AddAddr(1, p); err != nil {
		t.Fatalf("first add should succeed: %v", err)
	}
	if err := tbl.AddAddr(1, p); err == nil {
		t.Fatalf("duplicate add must be rejected")
	}

	deltas := drainRIBIn(t, ribIn)
	if len(deltas) != 1 {
		t.Fatalf("expected exactly one connected-route delta, got %d", len(deltas))
	}
	if deltas[0].Route.Source != types.SourceConnected || deltas[0].Route.Withdraw {
		t.Fatalf("expected a non-withdraw connected route, got %+v", deltas[0].Route)
	}
}

func TestAddAddrUnknownIfindex(t *testing.T) {
	ribIn := bus.NewChannel[bus.RouteDelta](8)
	tbl := New(ribIn)
	if err := tbl.AddAddr(99, netip.MustParsePrefix("192.0.2.1/24")); err == nil {
		t.Fatalf("expected an error adding an address to a nonexistent ifindex")
	}
}

func TestDelAddrWithdrawsConnectedRoute(t *testing.T) {
	ribIn := bus.NewChannel[bus.RouteDelta](8)
	tbl := New(ribIn)
	tbl.Upsert(types.Link{Ifindex: 1, Name: "eth0"})
	p := netip.MustParsePrefix("192.0.2.1/24")
	if err := tbl.AddAddr(1, p); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	drainRIBIn(t, ribIn)

	if err := tbl.DelAddr(1, p); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	deltas := drainRIBIn(t, ribIn)
	if len(deltas) != 1 || !deltas[0].Route.Withdraw {
		t.Fatalf("expected one withdraw delta, got %+v", deltas)
	}
}

func TestDeleteLinkWithdrawsAllConnectedRoutes(t *testing.T) {
	ribIn := bus.NewChannel[bus.RouteDelta](8)
	tbl := New(ribIn)
	tbl.Upsert(types.Link{Ifindex: 1, Name: "eth0"})
	if err := tbl.AddAddr(1, netip.MustParsePrefix("192.0.2.1/24")); err != nil {
		t.Fatalf("add v4 failed: %v", err)
	}
	if err := tbl.AddAddr(1, netip.MustParsePrefix("2001:db8::1/64")); err != nil {
		t.Fatalf("add v6 failed: %v", err)
	}
	drainRIBIn(t, ribIn)

	tbl.Delete(1)
	if _, ok := tbl.ByIndex(1); ok {
		t.Fatalf("link should be gone after Delete")
	}
	deltas := drainRIBIn(t, ribIn)
	if len(deltas) != 2 {
		t.Fatalf("expected withdraws for both the v4 and v6 connected routes, got %d", len(deltas))
	}
	for _, d := range deltas {
		if !d.Route.Withdraw {
			t.Fatalf("expected only withdraw deltas, got %+v", d.Route)
		}
	}
}

func TestShowReturnsAllLinks(t *testing.T) {
	ribIn := bus.NewChannel[bus.RouteDelta](8)
	tbl := New(ribIn)
	tbl.Upsert(types.Link{Ifindex: 1, Name: "eth0"})
	tbl.Upsert(types.Link{Ifindex: 2, Name: "eth1"})
	links := tbl.Show()
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
}
