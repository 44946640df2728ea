package bgp

import (
	"context"
	"net"
	"net/netip"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zebra-rs/zebra-rs/internal/bgpproto"
	"github.com/zebra-rs/zebra-rs/internal/bus"
)

// Speaker owns every configured neighbor and the shared Loc-RIB,
// grounded on the teacher's root-level speaker.go/jbgp.Speaker (an AS,
// an address, and a peer list) but generalized to supervise peers with
// golang.org/x/sync/errgroup the way cmd/zebrad supervises its other
// long-running tasks, instead of a single Start() accept loop.
type Speaker struct {
	as     uint32
	id     uint32
	log    *zap.SugaredLogger
	locRIB *LocRIB
	ribIn  *bus.Channel[bus.RouteDelta]

	mu    sync.Mutex
	peers map[string]*Peer
}

func NewSpeaker(as uint32, id uint32, ribIn *bus.Channel[bus.RouteDelta], log *zap.SugaredLogger) *Speaker {
	return &Speaker{
		as:     as,
		id:     id,
		log:    log,
		locRIB: NewLocRIB(log),
		ribIn:  ribIn,
		peers:  map[string]*Peer{},
	}
}

// AddPeer configures a new neighbor; its FSM only starts running once
// Run's errgroup picks it up, matching the teacher's "configure first,
// dial on Start" split between Speaker.Peer and Speaker.Start.
func (s *Speaker) AddPeer(cfg Config) *Peer {
	cfg.LocalAS = s.as
	cfg.LocalID = s.id
	p := NewPeer(cfg, s.locRIB, s.ribIn, s.log)
	s.mu.Lock()
	s.peers[cfg.RemoteAddr] = p
	s.mu.Unlock()
	return p
}

// SetMultipath toggles BGP ECMP (spec.md §4.6): when on, tied best-path
// candidates (LocRIB's steps 1-6) install as one multi-nexthop route
// instead of only the single deterministic winner.
func (s *Speaker) SetMultipath(on bool) {
	s.locRIB.SetMultipath(on)
}

// RemovePeer forgets a configured neighbor by dropping it from the peer
// table. It does not stop that peer's running FSM or close its session.
func (s *Speaker) RemovePeer(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, addr)
}

// Peers returns a snapshot for the `show bgp summary` CLI surface.
func (s *Speaker) Peers() []*Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Run drives every configured peer's FSM concurrently until ctx is
// cancelled or a peer's Run returns a non-nil error (which, since Run
// only returns nil on graceful shutdown, signals a bug rather than a
// recoverable session failure — the FSM itself retries forever).
func (s *Speaker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	s.mu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		p := p
		g.Go(func() error { return p.Run(ctx) })
	}
	return g.Wait()
}

// Listen runs the shared inbound TCP listener BGP's well-known port 179
// needs (spec.md §6's CAP_NET_BIND_SERVICE capability), dispatching each
// accepted connection to the configured peer matching its remote
// address. A connection from an address with no matching configured
// neighbor is closed immediately. Run this alongside Run under the same
// errgroup; it only needs to exist for peers that accept inbound
// sessions (any non-Passive peer may also receive one — see
// Peer.awaitConnection).
func (s *Speaker) Listen(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warnw("bgp: accept failed", "error", err)
			continue
		}
		host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
		if err != nil {
			conn.Close()
			continue
		}
		s.mu.Lock()
		p, ok := s.peers[host]
		s.mu.Unlock()
		if !ok {
			s.log.Warnw("bgp: rejecting inbound connection from unconfigured neighbor", "remote", host)
			conn.Close()
			continue
		}
		p.AcceptInbound(conn)
	}
}

// Advertise installs a locally originated or redistributed route into
// Loc-RIB (so it wins best-path selection per §4.6 step 2) and pushes it
// to the Adj-RIB-Out of every Established peer, subject to that peer's
// outbound policy (RFC 4271 §9.1.3's "Loc-RIB -> Adj-RIB-Out"
// dissemination phase). Peers not yet Established are skipped.
func (s *Speaker) Advertise(prefix netip.Prefix, attrs []bgpproto.Attribute) {
	path := PathInfo{Prefix: prefix, Attributes: attrs}
	s.locRIB.Originate(path, s.ribIn)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		if p.state != Established {
			continue
		}
		if Apply(p.cfg.Out, path) == Deny {
			p.adjRIBOut.Remove(prefix)
			continue
		}
		p.adjRIBOut.Set(path)
		raw := bgpproto.EncodeUpdate(bgpproto.Update{
			PathAttributes: attrs,
			NLRI:           []bgpproto.NLRI{{Prefix: prefix}},
		})
		if p.conn != nil {
			p.conn.Write(raw)
		}
	}
}

// Withdraw removes a prefix from every peer's Adj-RIB-Out and sends an
// explicit withdrawal to any Established peer it had previously been
// advertised to, and
// removes the matching locally originated Loc-RIB candidate added by
// Advertise.
func (s *Speaker) Withdraw(prefix netip.Prefix) {
	s.locRIB.Withdraw(nil, prefix, s.ribIn)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.peers {
		if !p.adjRIBOut.Has(prefix) {
			continue
		}
		p.adjRIBOut.Remove(prefix)
		if p.state != Established || p.conn == nil {
			continue
		}
		raw := bgpproto.EncodeUpdate(bgpproto.Update{WithdrawnRoutes: []bgpproto.NLRI{{Prefix: prefix}}})
		p.conn.Write(raw)
	}
}
