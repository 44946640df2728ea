package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "zebrad.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesStaticRoutes(t *testing.T) {
	path := writeTOML(t, `
[static]
routes = [
  { prefix = "10.0.0.0/24", nexthop = "192.0.2.1", metric = 1, weight = 1 },
]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Static.Routes) != 1 || cfg.Static.Routes[0].Prefix != "10.0.0.0/24" {
		t.Fatalf("unexpected static routes: %+v", cfg.Static.Routes)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/zebrad.toml"); err == nil {
		t.Fatalf("expected an error loading a nonexistent file")
	}
}

func TestDiffNilOldIsInitialLoad(t *testing.T) {
	next := &Config{}
	next.Static.Routes = []StaticRoute{{Prefix: "10.0.0.0/24", Nexthop: "192.0.2.1"}}
	deltas := Diff(nil, next)
	if len(deltas) != 1 || deltas[0].Kind != "static-route" {
		t.Fatalf("expected one static-route add delta against a nil prior generation, got %+v", deltas)
	}
}

func TestDiffStaticRouteAddAndWithdraw(t *testing.T) {
	old := &Config{}
	old.Static.Routes = []StaticRoute{{Prefix: "10.0.0.0/24", Nexthop: "192.0.2.1"}}
	next := &Config{}
	next.Static.Routes = []StaticRoute{{Prefix: "10.0.1.0/24", Nexthop: "192.0.2.1"}}

	deltas := Diff(old, next)
	if len(deltas) != 2 {
		t.Fatalf("expected one add and one withdraw delta, got %d: %+v", len(deltas), deltas)
	}
	var sawAdd, sawWithdraw bool
	for _, d := range deltas {
		switch d.Kind {
		case "static-route":
			sawAdd = true
		case "static-route-withdraw":
			sawWithdraw = true
		}
	}
	if !sawAdd || !sawWithdraw {
		t.Fatalf("expected both an add and a withdraw delta, got %+v", deltas)
	}
}

func TestDiffUnchangedStaticRouteProducesNoDelta(t *testing.T) {
	route := StaticRoute{Prefix: "10.0.0.0/24", Nexthop: "192.0.2.1", Metric: 1}
	old := &Config{}
	old.Static.Routes = []StaticRoute{route}
	next := &Config{}
	next.Static.Routes = []StaticRoute{route}
	if deltas := Diff(old, next); len(deltas) != 0 {
		t.Fatalf("expected no deltas for an unchanged config, got %+v", deltas)
	}
}

func TestDiffISISInterfaceChange(t *testing.T) {
	old := &Config{}
	old.ISIS.Interfaces = []ISISInterface{{Name: "eth0", Metric: 10}}
	next := &Config{}
	next.ISIS.Interfaces = []ISISInterface{{Name: "eth0", Metric: 20}}

	deltas := Diff(old, next)
	if len(deltas) != 1 || deltas[0].Kind != "isis-interface" {
		t.Fatalf("expected one isis-interface delta for the metric change, got %+v", deltas)
	}
}

func TestDiffBGPNeighborAddAndWithdraw(t *testing.T) {
	old := &Config{}
	old.BGP.AS = 65001
	old.BGP.Neighbors = []BGPNeighbor{{Address: "192.0.2.2", PeerAS: 65002}}
	next := &Config{}
	next.BGP.AS = 65001
	next.BGP.Neighbors = []BGPNeighbor{{Address: "192.0.2.3", PeerAS: 65003}}

	deltas := Diff(old, next)
	var sawAdd, sawWithdraw bool
	for _, d := range deltas {
		switch d.Kind {
		case "bgp-neighbor":
			sawAdd = true
		case "bgp-neighbor-withdraw":
			sawWithdraw = true
		}
	}
	if !sawAdd || !sawWithdraw {
		t.Fatalf("expected both a bgp-neighbor add and withdraw delta, got %+v", deltas)
	}
}

func TestParseNexthopAddrRejectsGarbage(t *testing.T) {
	if _, err := ParseNexthopAddr("not-an-address"); err == nil {
		t.Fatalf("expected an error parsing a malformed nexthop address")
	}
	addr, err := ParseNexthopAddr("192.0.2.1")
	if err != nil || addr.String() != "192.0.2.1" {
		t.Fatalf("expected 192.0.2.1 to parse cleanly, got %v err=%v", addr, err)
	}
}
