package bgp

import (
	"net/netip"
	"testing"

	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/bgpproto"
	"github.com/zebra-rs/zebra-rs/internal/bus"
)

func testPeer(remoteAS uint32, id uint32) *Peer {
	locRIB := NewLocRIB(zap.NewNop().Sugar())
	ch := bus.NewChannel[bus.RouteDelta](16)
	p := NewPeer(Config{LocalAS: 65000, RemoteAS: remoteAS}, locRIB, ch, zap.NewNop().Sugar())
	p.identifier = id
	return p
}

func TestBestPathPrefersHigherLocalPref(t *testing.T) {
	log := zap.NewNop().Sugar()
	locRIB := NewLocRIB(log)
	ch := bus.NewChannel[bus.RouteDelta](16)
	pfx := netip.MustParsePrefix("203.0.113.0/24")

	peerA := testPeer(65001, 1)
	peerB := testPeer(65002, 2)

	locRIB.Update(peerA, PathInfo{Prefix: pfx, LocalPref: 100, ASPath: []bgpproto.ASPathSegment{{Type: bgpproto.ASSequence, AS: []uint32{65001}}}}, ch)
	locRIB.Update(peerB, PathInfo{Prefix: pfx, LocalPref: 200, ASPath: []bgpproto.ASPathSegment{{Type: bgpproto.ASSequence, AS: []uint32{65002}}}}, ch)

	cands := locRIB.byPfx[pfx]
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if !better(candFor(cands, peerB), candFor(cands, peerA)) {
		t.Errorf("expected higher local-pref path to win")
	}
}

func TestBestPathShorterASPathWins(t *testing.T) {
	peerA := testPeer(65001, 1)
	peerB := testPeer(65002, 2)
	a := candidate{peer: peerA, path: PathInfo{LocalPref: 100, ASPath: []bgpproto.ASPathSegment{{Type: bgpproto.ASSequence, AS: []uint32{65001, 65003}}}}}
	b := candidate{peer: peerB, path: PathInfo{LocalPref: 100, ASPath: []bgpproto.ASPathSegment{{Type: bgpproto.ASSequence, AS: []uint32{65002}}}}}
	if !better(b, a) {
		t.Errorf("expected shorter AS_PATH to win when local-pref ties")
	}
}

func TestBestPathEBGPOverIBGP(t *testing.T) {
	eBGPPeer := testPeer(65001, 1) // RemoteAS != LocalAS(65000) => eBGP
	iBGPPeer := testPeer(65000, 2) // RemoteAS == LocalAS => iBGP
	a := candidate{peer: eBGPPeer, path: PathInfo{LocalPref: 100}, eBGP: true}
	b := candidate{peer: iBGPPeer, path: PathInfo{LocalPref: 100}, eBGP: false}
	if !better(a, b) {
		t.Errorf("expected eBGP-learned path to win over iBGP when all else ties")
	}
}

func TestBestPathIdentifierTiebreak(t *testing.T) {
	peerLow := testPeer(65001, 1)
	peerHigh := testPeer(65001, 2)
	a := candidate{peer: peerLow, path: PathInfo{LocalPref: 100}, eBGP: true}
	b := candidate{peer: peerHigh, path: PathInfo{LocalPref: 100}, eBGP: true}
	if !better(a, b) {
		t.Errorf("expected lowest BGP identifier to win as final tie-break")
	}
}

func TestBestPathPrefersLocalOrigin(t *testing.T) {
	peer := testPeer(65001, 1)
	a := candidate{localOrigin: true, path: PathInfo{LocalPref: 100}}
	b := candidate{peer: peer, path: PathInfo{LocalPref: 100}}
	if !better(a, b) {
		t.Errorf("expected locally originated path to win over a peer-learned one at equal local-pref")
	}
}

func TestBestPathMultipathMergesTiedNexthops(t *testing.T) {
	log := zap.NewNop().Sugar()
	locRIB := NewLocRIB(log)
	locRIB.SetMultipath(true)
	ch := bus.NewChannel[bus.RouteDelta](16)
	pfx := netip.MustParsePrefix("203.0.113.0/24")

	peerA := testPeer(65001, 1)
	peerB := testPeer(65002, 2)
	nhA := netip.MustParseAddr("192.0.2.1")
	nhB := netip.MustParseAddr("192.0.2.2")

	locRIB.Update(peerA, PathInfo{Prefix: pfx, LocalPref: 100, NextHop: nhA,
		ASPath: []bgpproto.ASPathSegment{{Type: bgpproto.ASSequence, AS: []uint32{65001}}}}, ch)
	locRIB.Update(peerB, PathInfo{Prefix: pfx, LocalPref: 100, NextHop: nhB,
		ASPath: []bgpproto.ASPathSegment{{Type: bgpproto.ASSequence, AS: []uint32{65002}}}}, ch)

	for {
		select {
		case env := <-ch.C:
			if len(env.Body.Route.Nexthops) == 2 {
				return
			}
		default:
			t.Fatalf("expected a 2-nexthop ECMP route once both equally preferred paths are installed")
		}
	}
}

func candFor(cands []candidate, p *Peer) candidate {
	for _, c := range cands {
		if c.peer == p {
			return c
		}
	}
	return candidate{}
}

func TestPolicyPermitsWhenNoStatements(t *testing.T) {
	if Apply(nil, PathInfo{}) != Permit {
		t.Errorf("expected an empty policy chain to permit")
	}
}

func TestPolicyPrefixListDeny(t *testing.T) {
	chain := []PolicyStatement{
		{Prefixes: []PrefixMatch{{CIDR: "10.0.0.0/8", LE: 32}}, Action: Deny},
	}
	denied := PathInfo{Prefix: netip.MustParsePrefix("10.1.2.0/24")}
	allowed := PathInfo{Prefix: netip.MustParsePrefix("192.0.2.0/24")}
	if Apply(chain, denied) != Deny {
		t.Errorf("expected 10.1.2.0/24 to be denied by the 10.0.0.0/8 prefix-list entry")
	}
	if Apply(chain, allowed) != Deny {
		t.Errorf("expected no-match to fall through to deny when statements exist")
	}
}

func TestPolicyCommunityMatch(t *testing.T) {
	chain := []PolicyStatement{
		{Communities: []uint32{0xfde90001}, Action: Permit},
	}
	path := PathInfo{Attributes: []bgpproto.Attribute{bgpproto.NewCommunities([]uint32{0xfde90001})}}
	if Apply(chain, path) != Permit {
		t.Errorf("expected community match to permit")
	}
}
