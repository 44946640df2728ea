package bgp

import (
	"net"
	"net/netip"
	"sync"

	"github.com/zebra-rs/zebra-rs/internal/bgpproto"
)

// PathInfo is one NLRI's attributes as received from (or about to be
// sent to) a single peer — the unit Adj-RIB-In/Adj-RIB-Out store.
type PathInfo struct {
	Prefix     netip.Prefix
	Attributes []bgpproto.Attribute
	NextHop    netip.Addr
	ASPath     []bgpproto.ASPathSegment
	LocalPref  uint32
	MED        uint32
	Origin     bgpproto.Origin
}

// AdjRIBIn holds every route a peer has advertised to us, keyed by
// prefix, prior to policy and best-path selection (RFC 4271 §3.2).
type AdjRIBIn struct {
	mu     sync.RWMutex
	routes map[netip.Prefix]PathInfo
}

func NewAdjRIBIn() *AdjRIBIn { return &AdjRIBIn{routes: map[netip.Prefix]PathInfo{}} }

func (a *AdjRIBIn) Add(p PathInfo)          { a.mu.Lock(); a.routes[p.Prefix] = p; a.mu.Unlock() }
func (a *AdjRIBIn) Remove(pfx netip.Prefix) { a.mu.Lock(); delete(a.routes, pfx); a.mu.Unlock() }
func (a *AdjRIBIn) Clear()                  { a.mu.Lock(); a.routes = map[netip.Prefix]PathInfo{}; a.mu.Unlock() }

func (a *AdjRIBIn) All() []PathInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]PathInfo, 0, len(a.routes))
	for _, p := range a.routes {
		out = append(out, p)
	}
	return out
}

func (a *AdjRIBIn) Prefixes() []netip.Prefix {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]netip.Prefix, 0, len(a.routes))
	for pfx := range a.routes {
		out = append(out, pfx)
	}
	return out
}

// AdjRIBOut holds the routes this speaker has advertised (or intends
// to advertise) to one peer, post-policy (RFC 4271 §3.2).
type AdjRIBOut struct {
	mu     sync.RWMutex
	routes map[netip.Prefix]PathInfo
}

func NewAdjRIBOut() *AdjRIBOut { return &AdjRIBOut{routes: map[netip.Prefix]PathInfo{}} }

func (a *AdjRIBOut) Set(p PathInfo)           { a.mu.Lock(); a.routes[p.Prefix] = p; a.mu.Unlock() }
func (a *AdjRIBOut) Remove(pfx netip.Prefix)  { a.mu.Lock(); delete(a.routes, pfx); a.mu.Unlock() }
func (a *AdjRIBOut) Has(pfx netip.Prefix) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.routes[pfx]
	return ok
}

// Replay re-encodes and writes every currently advertised path to conn,
// for RFC 2918 ROUTE-REFRESH handling. A nil conn (session not yet
// established) is a no-op.
func (a *AdjRIBOut) Replay(conn net.Conn) {
	if conn == nil {
		return
	}
	a.mu.RLock()
	paths := make([]PathInfo, 0, len(a.routes))
	for _, p := range a.routes {
		paths = append(paths, p)
	}
	a.mu.RUnlock()

	for _, p := range paths {
		raw := bgpproto.EncodeUpdate(bgpproto.Update{
			PathAttributes: p.Attributes,
			NLRI:           []bgpproto.NLRI{{Prefix: p.Prefix}},
		})
		conn.Write(raw)
	}
}
