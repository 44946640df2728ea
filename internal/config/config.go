// Package config is the minimal stand-in for the excluded YANG-driven
// candidate/running configuration layer (spec.md §1 "out of scope...
// specified only by the contracts the core consumes"). It is not a
// commit/rollback engine: it parses a TOML running-configuration tree,
// diffs each new generation against the previous one, and emits the
// typed deltas spec.md §6 says the core consumes — following
// jsimonetti-hodos's config-struct-driven server wiring, but with
// go-toml/v2 in place of hodos's own YAML loader.
package config

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/zebra-rs/zebra-rs/internal/bus"
)

// StaticRoute mirrors spec.md §6's `ipv4 route <prefix> nexthop <addr>
// [metric] [weight]` schema.
type StaticRoute struct {
	Prefix  string `toml:"prefix"`
	Nexthop string `toml:"nexthop"`
	Metric  uint32 `toml:"metric"`
	Weight  int    `toml:"weight"`
}

// InterfaceAddr mirrors `/interface/.../ipv{4,6}/address`.
type InterfaceAddr struct {
	Name string   `toml:"name"`
	IPv4 []string `toml:"ipv4"`
	IPv6 []string `toml:"ipv6"`
}

// ISISInterface mirrors spec.md §6's per-interface IS-IS container.
type ISISInterface struct {
	Name        string `toml:"name"`
	CircuitType string `toml:"circuit-type"` // "level-1", "level-2", "level-1-2"
	LinkType    string `toml:"link-type"`    // "lan" or "point-to-point"
	Priority    int    `toml:"priority"`
	Metric      uint32 `toml:"metric"`
	IPv4Enable  bool   `toml:"ipv4-enable"`
	IPv6Enable  bool   `toml:"ipv6-enable"`
}

// ISIS mirrors `router isis net <NET>`.
type ISIS struct {
	NET        string          `toml:"net"`
	Hostname   string          `toml:"hostname"`
	Distance   uint8           `toml:"distance"`
	Interfaces []ISISInterface `toml:"interfaces"`
}

// BGPNeighbor mirrors `neighbors neighbor <addr> peer-as`.
type BGPNeighbor struct {
	Address string `toml:"address"`
	PeerAS  uint32 `toml:"peer-as"`
}

// BGP mirrors `global as` / `global identifier`.
type BGP struct {
	AS         uint32        `toml:"as"`
	Identifier string        `toml:"identifier"`
	Multipath  bool          `toml:"multipath"`
	Neighbors  []BGPNeighbor `toml:"neighbors"`
}

// Config is the full running-configuration tree this stand-in parses.
type Config struct {
	Interfaces []InterfaceAddr `toml:"interfaces"`
	Static     struct {
		Routes []StaticRoute `toml:"routes"`
	} `toml:"static"`
	ISIS ISIS `toml:"isis"`
	BGP  BGP  `toml:"bgp"`
}

// Load parses a TOML running-configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &c, nil
}

// Diff compares two generations of Config and returns the ConfigDelta
// set to feed onto bus.Config: added/changed stanzas as non-withdrawing
// deltas, removed ones tagged for withdrawal by the consumer keyed on
// Path. Nil old is treated as an empty prior generation (initial load).
func Diff(old, next *Config) []bus.ConfigDelta {
	var deltas []bus.ConfigDelta
	if old == nil {
		old = &Config{}
	}

	deltas = append(deltas, diffStaticRoutes(old.Static.Routes, next.Static.Routes)...)
	deltas = append(deltas, diffISISInterfaces(old.ISIS.Interfaces, next.ISIS.Interfaces)...)
	if old.ISIS.NET != next.ISIS.NET && next.ISIS.NET != "" {
		deltas = append(deltas, bus.ConfigDelta{Kind: "isis-instance", Path: "/routing/isis/net", Value: next.ISIS})
	}
	if old.BGP.AS != next.BGP.AS && next.BGP.AS != 0 {
		deltas = append(deltas, bus.ConfigDelta{Kind: "bgp-instance", Path: "/routing/bgp/global", Value: next.BGP})
	}
	deltas = append(deltas, diffBGPNeighbors(old.BGP.Neighbors, next.BGP.Neighbors)...)

	return deltas
}

func diffStaticRoutes(oldR, newR []StaticRoute) []bus.ConfigDelta {
	var deltas []bus.ConfigDelta
	oldSet := map[string]StaticRoute{}
	for _, r := range oldR {
		oldSet[r.Prefix+"/"+r.Nexthop] = r
	}
	newSet := map[string]StaticRoute{}
	for _, r := range newR {
		key := r.Prefix + "/" + r.Nexthop
		newSet[key] = r
		if prev, ok := oldSet[key]; !ok || prev != r {
			deltas = append(deltas, bus.ConfigDelta{Kind: "static-route", Path: "/routing/static/ipv4/route/" + r.Prefix, Value: r})
		}
	}
	for key, r := range oldSet {
		if _, ok := newSet[key]; !ok {
			withdrawn := r
			deltas = append(deltas, bus.ConfigDelta{Kind: "static-route-withdraw", Path: "/routing/static/ipv4/route/" + r.Prefix, Value: withdrawn})
		}
	}
	return deltas
}

func diffISISInterfaces(oldI, newI []ISISInterface) []bus.ConfigDelta {
	var deltas []bus.ConfigDelta
	oldSet := map[string]ISISInterface{}
	for _, i := range oldI {
		oldSet[i.Name] = i
	}
	for _, i := range newI {
		if prev, ok := oldSet[i.Name]; !ok || prev != i {
			deltas = append(deltas, bus.ConfigDelta{Kind: "isis-interface", Path: "/routing/isis/interface/" + i.Name, Value: i})
		}
		delete(oldSet, i.Name)
	}
	for name, i := range oldSet {
		deltas = append(deltas, bus.ConfigDelta{Kind: "isis-interface-withdraw", Path: "/routing/isis/interface/" + name, Value: i})
	}
	return deltas
}

func diffBGPNeighbors(oldN, newN []BGPNeighbor) []bus.ConfigDelta {
	var deltas []bus.ConfigDelta
	oldSet := map[string]BGPNeighbor{}
	for _, n := range oldN {
		oldSet[n.Address] = n
	}
	for _, n := range newN {
		if prev, ok := oldSet[n.Address]; !ok || prev != n {
			deltas = append(deltas, bus.ConfigDelta{Kind: "bgp-neighbor", Path: "/routing/bgp/neighbors/neighbor/" + n.Address, Value: n})
		}
		delete(oldSet, n.Address)
	}
	for addr, n := range oldSet {
		deltas = append(deltas, bus.ConfigDelta{Kind: "bgp-neighbor-withdraw", Path: "/routing/bgp/neighbors/neighbor/" + addr, Value: n})
	}
	return deltas
}

// ParseNexthopAddr validates a static route's nexthop literal at config
// commit time (spec.md §7 "Configuration rejection... invalid address").
func ParseNexthopAddr(s string) (netip.Addr, error) {
	return netip.ParseAddr(s)
}
