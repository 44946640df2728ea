// Package types holds the data model shared across every core subsystem
// (spec.md §3): prefixes, nexthops, routes and links. It exists as its
// own package, rather than living inside internal/rib, purely to avoid
// import cycles — internal/bus, internal/rib, internal/fib, internal/bgp
// and internal/isis all need the same vocabulary to talk to each other
// over the bus.
package types

import (
	"fmt"
	"net/netip"
	"sort"
)

// Family distinguishes the two address families the RIB keeps separate
// tables for.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

func (f Family) String() string {
	if f == FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Source identifies who contributed a route candidate. Order here is the
// deterministic source-priority tie-break spec.md §3 and §9 describe for
// distinct-source candidates of equal distance ("first-seen wins
// deterministically by source order").
type Source int

const (
	SourceConnected Source = iota
	SourceStatic
	SourceBGP
	SourceISIS
	SourceOSPF
	SourceKernel
	SourceSystem
)

var sourceNames = [...]string{"connected", "static", "bgp", "isis", "ospf", "kernel", "system"}

func (s Source) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return "unknown"
}

// DefaultDistance gives the administrative distance a source contributes
// when the protocol instance doesn't override it explicitly.
func (s Source) DefaultDistance() uint8 {
	switch s {
	case SourceConnected:
		return 0
	case SourceStatic:
		return 1
	case SourceKernel, SourceSystem:
		return 5
	case SourceISIS:
		return 115
	case SourceBGP:
		return 20 // eBGP default; instance overrides to 200 for iBGP
	case SourceOSPF:
		return 110
	}
	return 255
}

// Multipath reports whether a source supports ECMP merging of equal-cost
// candidates from itself (spec.md §4.3 step 2).
func (s Source) Multipath() bool {
	switch s {
	case SourceISIS, SourceBGP:
		return true
	default:
		return false
	}
}

// Prefix is a canonicalized (family, network, length) triple. Canonical
// means host bits are cleared on construction (spec.md §3's "Prefixes
// are canonicalized... on ingress").
type Prefix struct {
	p netip.Prefix
}

// NewPrefix canonicalizes addr/length into a Prefix, clearing host bits.
func NewPrefix(addr netip.Addr, length int) (Prefix, error) {
	p, err := addr.Prefix(length)
	if err != nil {
		return Prefix{}, err
	}
	return Prefix{p: p.Masked()}, nil
}

// MustPrefix parses a CIDR string and canonicalizes it; panics on a
// malformed literal, intended for tests and constant tables only.
func MustPrefix(s string) Prefix {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return Prefix{p: p.Masked()}
}

func (p Prefix) Addr() netip.Addr  { return p.p.Addr() }
func (p Prefix) Bits() int         { return p.p.Bits() }
func (p Prefix) Net() netip.Prefix { return p.p }
func (p Prefix) IsValid() bool     { return p.p.IsValid() }

func (p Prefix) Family() Family {
	if p.p.Addr().Is4() {
		return FamilyIPv4
	}
	return FamilyIPv6
}

func (p Prefix) String() string { return p.p.String() }

func (p Prefix) Equal(o Prefix) bool { return p.p == o.p }

// NexthopKind discriminates the four nexthop shapes spec.md §3 defines.
type NexthopKind int

const (
	NexthopDirect NexthopKind = iota
	NexthopUnicast
	NexthopGroup
	NexthopRecursive
)

// Nexthop is the discriminated union spec.md §3 describes. Only the
// fields relevant to Kind are meaningful; the zero value of the others is
// ignored.
type Nexthop struct {
	Kind NexthopKind

	// Direct
	Ifindex  int
	LinkLocal netip.Addr

	// Unicast / Recursive
	Addr   netip.Addr
	Weight int
	Labels []uint32

	// Group
	Children []Nexthop
	GroupID  uint32

	// Recursive resolution state
	Resolved     bool
	ResolvedGID  uint32
}

// normalizeKey returns a value usable for content-addressing a resolved
// child nexthop within a group: (addr, ifindex, weight, label stack).
func (n Nexthop) normalizeKey() string {
	w := n.Weight
	if w == 0 {
		w = 1
	}
	return fmt.Sprintf("%s|%d|%d|%v", n.Addr, n.Ifindex, w, n.Labels)
}

// Flags are the per-route boolean state spec.md §3's Route tuple names.
type Flags struct {
	Selected     bool
	FIBInstalled bool
	Resolved     bool
}

// Route is one candidate in a RIB entry's candidate set (spec.md §3).
type Route struct {
	Prefix   Prefix
	Source   Source
	Distance uint8
	Metric   uint32
	Nexthops []Nexthop // >1 only for an already-merged ECMP candidate
	Flags    Flags

	// Withdraw marks a delta that removes the candidate with this route's
	// Key. Generation is carried but not read by the RIB: a source's stale
	// candidates leave the RIB only through explicit Withdraw deltas.
	Generation uint64
	Withdraw   bool
}

// Key identifies a candidate within a prefix's candidate set: a prefix
// can hold one candidate per (source, originator) pair, where originator
// disambiguates e.g. two connected routes via different interfaces, or
// two BGP peers advertising the same prefix.
type Key struct {
	Source     Source
	Originator string
}

func (r Route) Key() Key {
	return Key{Source: r.Source, Originator: r.originator()}
}

func (r Route) originator() string {
	if len(r.Nexthops) == 0 {
		return ""
	}
	nh := r.Nexthops[0]
	switch nh.Kind {
	case NexthopDirect:
		return fmt.Sprintf("if%d", nh.Ifindex)
	default:
		return nh.Addr.String()
	}
}

// SortNexthops returns a sorted, deduplicated copy of nexthops suitable
// for content-addressing a nexthop group (spec.md §3: "Content-addressed
// by the sorted, normalized list of... child entries").
func SortNexthops(nhs []Nexthop) []Nexthop {
	out := make([]Nexthop, len(nhs))
	copy(out, nhs)
	sort.Slice(out, func(i, j int) bool {
		return out[i].normalizeKey() < out[j].normalizeKey()
	})
	dedup := out[:0]
	var last string
	for i, nh := range out {
		k := nh.normalizeKey()
		if i == 0 || k != last {
			dedup = append(dedup, nh)
		}
		last = k
	}
	return dedup
}

// GroupKey content-addresses a nexthop group by its normalized children.
func GroupKey(nhs []Nexthop) string {
	sorted := SortNexthops(nhs)
	s := ""
	for _, nh := range sorted {
		s += nh.normalizeKey() + ";"
	}
	return s
}

// Link is the canonical interface record spec.md §3 describes.
type Link struct {
	Ifindex int
	Name    string
	MTU     int
	HWAddr  []byte
	Up      bool
	V4Addrs []netip.Prefix
	V6Addrs []netip.Prefix
}
