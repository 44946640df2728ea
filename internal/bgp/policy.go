// Policy grounds on the teacher's speaker/policy.go Policer interface
// (Apply(*NLRI) bool, default deny), generalized into the first-match-
// wins prefix-list/community-list permit/deny chain SPEC_FULL.md §4.6
// requires instead of a single boolean gate.
package bgp

import (
	"net/netip"

	"github.com/zebra-rs/zebra-rs/internal/bgpproto"
)

type Action int

const (
	Deny Action = iota
	Permit
)

// PrefixMatch is one prefix-list entry: a CIDR plus an optional
// ge/le range, matched the way Cisco/Juniper prefix-lists do.
type PrefixMatch struct {
	CIDR string
	GE   int
	LE   int
}

// PolicyStatement is one first-match-wins rule in an inbound or
// outbound policy chain.
type PolicyStatement struct {
	Prefixes   []PrefixMatch
	Communities []uint32
	Action     Action
}

// Apply runs path through the statement chain in order and returns the
// first match's action; an empty chain (no statements configured)
// permits everything, matching the teacher's Policer default only when
// explicitly set to deny-all via PolicyInOption/PolicyOutOption.
func Apply(chain []PolicyStatement, path PathInfo) Action {
	if len(chain) == 0 {
		return Permit
	}
	for _, stmt := range chain {
		if stmt.matches(path) {
			return stmt.Action
		}
	}
	return Deny
}

func (s PolicyStatement) matches(path PathInfo) bool {
	if len(s.Prefixes) > 0 && !matchesAnyPrefix(s.Prefixes, path) {
		return false
	}
	if len(s.Communities) > 0 && !matchesAnyCommunity(s.Communities, path) {
		return false
	}
	return true
}

func matchesAnyPrefix(prefixes []PrefixMatch, path PathInfo) bool {
	for _, pm := range prefixes {
		if pm.matches(path) {
			return true
		}
	}
	return false
}

// matches reports whether path.Prefix falls within pm's CIDR and,
// if set, within its ge/le length range (a configured entry with
// neither bound matches the exact prefix length only).
func (pm PrefixMatch) matches(path PathInfo) bool {
	base, err := netip.ParsePrefix(pm.CIDR)
	if err != nil {
		return false
	}
	if !base.Contains(path.Prefix.Addr()) {
		return false
	}
	lo, hi := base.Bits(), base.Bits()
	if pm.GE > 0 {
		lo = pm.GE
	}
	if pm.LE > 0 {
		hi = pm.LE
	}
	return path.Prefix.Bits() >= lo && path.Prefix.Bits() <= hi
}

func matchesAnyCommunity(want []uint32, path PathInfo) bool {
	for _, a := range path.Attributes {
		if a.Type != bgpproto.AttrCommunities {
			continue
		}
		have, err := bgpproto.DecodeCommunities(a)
		if err != nil {
			continue
		}
		for _, w := range want {
			for _, h := range have {
				if w == h {
					return true
				}
			}
		}
	}
	return false
}
