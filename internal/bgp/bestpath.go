package bgp

import (
	"net/netip"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/bgpproto"
	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// candidate is one peer's PathInfo for a prefix, tagged with the
// originating peer so LocRIB can attribute and withdraw by peer. peer is
// nil for a locally originated/redistributed path (see Originate), which
// has no session to attribute or withdraw against.
type candidate struct {
	peer        *Peer
	path        PathInfo
	eBGP        bool
	localOrigin bool
}

// LocRIB holds this speaker's best path per prefix, chosen from every
// peer's Adj-RIB-In by the nine-step tie-break SPEC_FULL.md §4.6 lists
// (RFC 4271 §9.1.2.2):
//
//  1. highest LOCAL_PREF
//  2. prefer a locally originated/redistributed path over a peer-learned one
//  3. shortest AS_PATH (AS_SET counts once)
//  4. lowest ORIGIN (IGP < EGP < Incomplete)
//  5. lowest MED, only compared between paths from the same neighboring AS
//  6. eBGP-learned over iBGP-learned
//  7. lowest IGP metric to NEXT_HOP (not compared here: the metric lives
//     in the RIB's nexthop resolver, so this step never separates two
//     candidates)
//  8. lowest BGP Identifier of the originating peer
//  9. lowest peer address, as a final tie-break
//
// Ties that survive step 1-6 merge into one ECMP nexthop set when
// multipath is enabled, per spec.md §4.6.
type LocRIB struct {
	mu        sync.Mutex
	byPfx     map[netip.Prefix][]candidate
	multipath bool
	log       *zap.SugaredLogger
}

func NewLocRIB(log *zap.SugaredLogger) *LocRIB {
	return &LocRIB{byPfx: map[netip.Prefix][]candidate{}, log: log}
}

// SetMultipath toggles whether tied candidates (spec.md §4.6 steps 1-6)
// merge into an ECMP nexthop set instead of only the single best
// surviving the deterministic step 7/8 tie-break.
func (l *LocRIB) SetMultipath(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.multipath = on
}

// Originate installs a locally originated or redistributed path (see
// Speaker.Advertise) as this prefix's local candidate, so it out-ranks
// any peer-learned copy per step 2 above instead of merely competing on
// LOCAL_PREF/AS_PATH like a received route would.
func (l *LocRIB) Originate(path PathInfo, ribIn *bus.Channel[bus.RouteDelta]) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cands := l.byPfx[path.Prefix]
	found := false
	for i, c := range cands {
		if c.peer == nil {
			cands[i] = candidate{path: path, localOrigin: true}
			found = true
			break
		}
	}
	if !found {
		cands = append(cands, candidate{path: path, localOrigin: true})
	}
	l.byPfx[path.Prefix] = cands
	l.reselect(path.Prefix, ribIn)
}

// Update applies one peer's PathInfo (add or replace) and re-runs
// selection for that prefix, emitting the winner to ribIn if it changed.
func (l *LocRIB) Update(peer *Peer, path PathInfo, ribIn *bus.Channel[bus.RouteDelta]) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cands := l.byPfx[path.Prefix]
	found := false
	for i, c := range cands {
		if c.peer == peer {
			cands[i] = candidate{peer: peer, path: path, eBGP: peer.cfg.RemoteAS != peer.cfg.LocalAS}
			found = true
			break
		}
	}
	if !found {
		cands = append(cands, candidate{peer: peer, path: path, eBGP: peer.cfg.RemoteAS != peer.cfg.LocalAS})
	}
	l.byPfx[path.Prefix] = cands
	l.reselect(path.Prefix, ribIn)
}

// Withdraw removes one peer's candidate for a prefix and re-runs
// selection, emitting a RIB withdraw if nothing remains.
func (l *LocRIB) Withdraw(peer *Peer, pfx netip.Prefix, ribIn *bus.Channel[bus.RouteDelta]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cands := l.byPfx[pfx]
	for i, c := range cands {
		if c.peer == peer {
			cands = append(cands[:i], cands[i+1:]...)
			break
		}
	}
	if len(cands) == 0 {
		delete(l.byPfx, pfx)
		l.emitWithdraw(pfx, ribIn)
		return
	}
	l.byPfx[pfx] = cands
	l.reselect(pfx, ribIn)
}

// WithdrawAllFrom removes every candidate sourced from peer (session
// reset/teardown) and re-runs selection for each affected prefix.
func (l *LocRIB) WithdrawAllFrom(peer *Peer, ribIn *bus.Channel[bus.RouteDelta]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for pfx, cands := range l.byPfx {
		kept := cands[:0]
		changed := false
		for _, c := range cands {
			if c.peer == peer {
				changed = true
				continue
			}
			kept = append(kept, c)
		}
		if !changed {
			continue
		}
		if len(kept) == 0 {
			delete(l.byPfx, pfx)
			l.emitWithdraw(pfx, ribIn)
			continue
		}
		l.byPfx[pfx] = kept
		l.reselect(pfx, ribIn)
	}
}

func (l *LocRIB) reselect(pfx netip.Prefix, ribIn *bus.Channel[bus.RouteDelta]) {
	cands := l.byPfx[pfx]
	if len(cands) == 0 {
		l.emitWithdraw(pfx, ribIn)
		return
	}
	sort.Slice(cands, func(i, j int) bool { return better(cands[i], cands[j]) })
	best := cands[0]

	tp, err := types.NewPrefix(pfx.Addr(), pfx.Bits())
	if err != nil {
		return
	}

	winners := cands[:1]
	if l.multipath {
		for _, c := range cands[1:] {
			if !tiedForMultipath(best, c) {
				break
			}
			winners = append(winners, c)
		}
	}
	nhs := make([]types.Nexthop, 0, len(winners))
	for _, c := range winners {
		nh := types.Nexthop{Kind: types.NexthopRecursive, Addr: c.path.NextHop}
		if !c.path.NextHop.IsValid() {
			nh = types.Nexthop{Kind: types.NexthopUnicast, Addr: c.path.NextHop}
		}
		nhs = append(nhs, nh)
	}
	nhs = types.SortNexthops(nhs)

	route := types.Route{
		Prefix:   tp,
		Source:   types.SourceBGP,
		Distance: distanceFor(best.eBGP),
		Metric:   best.path.MED,
		Nexthops: nhs,
	}
	ribIn.Send("bgp", bus.RouteDelta{Route: route})
}

func (l *LocRIB) emitWithdraw(pfx netip.Prefix, ribIn *bus.Channel[bus.RouteDelta]) {
	tp, err := types.NewPrefix(pfx.Addr(), pfx.Bits())
	if err != nil {
		return
	}
	ribIn.Send("bgp", bus.RouteDelta{Route: types.Route{Prefix: tp, Source: types.SourceBGP, Withdraw: true}})
}

// distanceFor returns the administrative distance for an eBGP- vs
// iBGP-learned route: eBGP 20, iBGP 200.
func distanceFor(eBGP bool) uint8 {
	if eBGP {
		return 20
	}
	return 200
}

// better implements the ordered tie-break: true if a should sort before b.
func better(a, b candidate) bool {
	if a.path.LocalPref != b.path.LocalPref {
		return a.path.LocalPref > b.path.LocalPref
	}
	if a.localOrigin != b.localOrigin {
		return a.localOrigin
	}
	al, bl := bgpproto.ASPathLength(a.path.ASPath), bgpproto.ASPathLength(b.path.ASPath)
	if al != bl {
		return al < bl
	}
	if a.path.Origin != b.path.Origin {
		return a.path.Origin < b.path.Origin
	}
	sameNeighborAS := len(a.path.ASPath) > 0 && len(b.path.ASPath) > 0 &&
		neighborAS(a.path.ASPath) == neighborAS(b.path.ASPath)
	if sameNeighborAS && a.path.MED != b.path.MED {
		return a.path.MED < b.path.MED
	}
	if a.eBGP != b.eBGP {
		return a.eBGP
	}
	if a.peer == nil || b.peer == nil {
		// Only a locally originated candidate has a nil peer, and step 2
		// above already sorts those ahead of/behind every peer-learned
		// one, so this compares two local candidates: stable as equal.
		return false
	}
	if a.peer.identifier != b.peer.identifier {
		return a.peer.identifier < b.peer.identifier
	}
	aAddr, errA := netip.ParseAddr(a.peer.cfg.RemoteAddr)
	bAddr, errB := netip.ParseAddr(b.peer.cfg.RemoteAddr)
	if errA != nil || errB != nil {
		return false
	}
	return aAddr.Less(bAddr)
}

// tiedForMultipath reports whether a and b are equally preferred through
// every criterion better() uses to pick a winner (steps 1-6), i.e. they
// differ only in the final, non-ECMP-eligible identifier/address tie-breaks.
// Pre-sorted by better, so a is never worse than b.
func tiedForMultipath(a, b candidate) bool {
	if a.path.LocalPref != b.path.LocalPref || a.localOrigin != b.localOrigin {
		return false
	}
	if bgpproto.ASPathLength(a.path.ASPath) != bgpproto.ASPathLength(b.path.ASPath) {
		return false
	}
	if a.path.Origin != b.path.Origin {
		return false
	}
	sameNeighborAS := len(a.path.ASPath) > 0 && len(b.path.ASPath) > 0 &&
		neighborAS(a.path.ASPath) == neighborAS(b.path.ASPath)
	if sameNeighborAS && a.path.MED != b.path.MED {
		return false
	}
	return a.eBGP == b.eBGP
}

func neighborAS(segs []bgpproto.ASPathSegment) uint32 {
	for _, s := range segs {
		if len(s.AS) > 0 {
			return s.AS[0]
		}
	}
	return 0
}
