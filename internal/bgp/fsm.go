// Package bgp implements the BGP-4 peer Finite State Machine (RFC 4271
// §8), Adj-RIB-In/Loc-RIB/Adj-RIB-Out, best-path selection, and policy
// filtering described in SPEC_FULL.md §4.6.
//
// The FSM's shape is grounded on transitorykris-kbgp's fsm/fsm.go and
// root-level fsm.go/timers.go: named states Idle through Established,
// one timer per RFC 4271 §10 mandatory timer built on internal/timer
// (itself adapted from the teacher's timer/timer.go), and jittered
// timer intervals per §10's 0.75-1.0 randomization rule. The wire
// encode/decode the teacher's fsm handed off to message/ is handled
// here by internal/bgpproto instead.
package bgp

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/bgpproto"
	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/timer"
)

// State is one of the six BGP FSM states (RFC 4271 §8.2.2). Connect and
// Active are defined but never entered: Run folds them into the single
// Idle case that either dials out or accepts an inbound connection
// (awaitConnection), since one goroutine per peer only ever tracks one
// in-flight TCP attempt at a time.
type State int

const (
	Idle State = iota
	Connect
	Active
	OpenSent
	OpenConfirm
	Established
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Connect:
		return "Connect"
	case Active:
		return "Active"
	case OpenSent:
		return "OpenSent"
	case OpenConfirm:
		return "OpenConfirm"
	case Established:
		return "Established"
	default:
		return "Unknown"
	}
}

const (
	defaultConnectRetryTime = 120 * time.Second
	defaultHoldTime         = 90 * time.Second
	defaultKeepaliveTime    = defaultHoldTime / 3
	largeHoldTime           = 4 * time.Minute
	jitterFraction          = 0.25 // timer fires in [0.75, 1.0] x interval, per RFC 4271 §10
)

// Config is one neighbor's static configuration (SPEC_FULL.md §4.6).
type Config struct {
	LocalAS              uint32
	RemoteAS             uint32
	RemoteAddr           netAddr
	LocalID              uint32
	HoldTime             time.Duration
	Passive              bool
	Multihop             bool
	RouteReflectorClient bool
	In                   []PolicyStatement
	Out                  []PolicyStatement
}

// netAddr avoids importing net/netip purely for a struct tag; Peer
// dials with it directly.
type netAddr = string

// Peer drives one neighbor's FSM. Each Peer owns its own Adj-RIB-In
// and Adj-RIB-Out; LocRIB is shared (one per AFI/SAFI) so best-path
// selection can compare candidates across peers.
type Peer struct {
	cfg    Config
	log    *zap.SugaredLogger
	locRIB *LocRIB
	ribIn  *bus.Channel[bus.RouteDelta]

	state              State
	conn               net.Conn
	identifier         uint32
	negotiatedHoldTime time.Duration
	fourOctetAS        bool
	mpAFISAFI          map[afiSafi]bool

	connectRetryCounter int
	connectRetryTimer   *timer.Timer
	holdTimer           *timer.Timer
	keepaliveTimer      *timer.Timer

	adjRIBIn  *AdjRIBIn
	adjRIBOut *AdjRIBOut

	debug Category

	events  chan event
	done    chan struct{}
	inbound chan net.Conn
}

type afiSafi struct {
	afi  uint16
	safi byte
}

type event struct {
	kind string
	data any
}

// NewPeer creates a Peer in the Idle state, wired to emit selected
// routes toward the RIB on ribIn.
func NewPeer(cfg Config, locRIB *LocRIB, ribIn *bus.Channel[bus.RouteDelta], log *zap.SugaredLogger) *Peer {
	p := &Peer{
		cfg:       cfg,
		log:       log,
		locRIB:    locRIB,
		ribIn:     ribIn,
		state:     Idle,
		adjRIBIn:  NewAdjRIBIn(),
		adjRIBOut: NewAdjRIBOut(),
		mpAFISAFI: map[afiSafi]bool{},
		events:    make(chan event, 64),
		done:      make(chan struct{}),
		inbound:   make(chan net.Conn, 1),
	}
	if cfg.HoldTime > 0 {
		p.negotiatedHoldTime = cfg.HoldTime
	} else {
		p.negotiatedHoldTime = defaultHoldTime
	}
	return p
}

// State reports the peer's current FSM state, for `show bgp summary`.
func (p *Peer) State() State { return p.state }

// Run drives the peer's FSM until ctx is cancelled: dial, negotiate,
// exchange UPDATEs, and automatically retry on any failure (RFC 4271
// §8.2.1's AutomaticStart/ConnectRetry behavior — this daemon always
// runs with AllowAutomaticStart/Stop enabled).
func (p *Peer) Run(ctx context.Context) error {
	defer close(p.done)
	// timer.NewJittered scales symmetrically around its base; centring the
	// base at (1 - jitterFraction/2) x interval yields [1-jitterFraction, 1].
	retryBase := time.Duration(float64(defaultConnectRetryTime) * (1 - jitterFraction/2))
	p.connectRetryTimer = timer.NewJittered(retryBase, (jitterFraction/2)/(1-jitterFraction/2), func() {
		p.events <- event{kind: "connectRetryExpire"}
	})

	for {
		select {
		case <-ctx.Done():
			p.transitionTo(Idle, "shutdown")
			if p.conn != nil {
				p.conn.Close()
			}
			return nil
		default:
		}

		switch p.state {
		case Idle:
			p.connectRetryCounter = 0
			conn, err := p.awaitConnection(ctx)
			if err != nil {
				p.log.Debugw("bgp dial failed, retrying", "peer", p.cfg.RemoteAddr, "error", err)
				p.connectRetryCounter++
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(defaultConnectRetryTime):
				}
				continue
			}
			p.conn = conn
			p.transitionTo(OpenSent, "tcp connected")
			if err := p.sendOpen(); err != nil {
				p.resetToIdle("send OPEN failed: " + err.Error())
				continue
			}
		case OpenSent:
			if err := p.awaitOpen(ctx); err != nil {
				p.resetToIdle(err.Error())
				continue
			}
			p.transitionTo(OpenConfirm, "OPEN negotiated")
			p.startSessionTimers()
		case OpenConfirm:
			if err := p.awaitKeepalive(ctx); err != nil {
				p.resetToIdle(err.Error())
				continue
			}
			p.transitionTo(Established, "KEEPALIVE received")
			p.adjRIBIn.Clear()
		case Established:
			if err := p.serve(ctx); err != nil {
				p.resetToIdle(err.Error())
				continue
			}
		default:
			p.state = Idle
		}
	}
}

func (p *Peer) transitionTo(s State, reason string) {
	if p.debug&CategoryFSM != 0 {
		p.log.Infow("bgp fsm transition", "peer", p.cfg.RemoteAddr, "from", p.state, "to", s, "reason", reason)
	}
	p.state = s
}

func (p *Peer) resetToIdle(reason string) {
	p.log.Warnw("bgp session reset", "peer", p.cfg.RemoteAddr, "reason", reason)
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	if p.holdTimer != nil {
		p.holdTimer.Stop()
	}
	if p.keepaliveTimer != nil {
		p.keepaliveTimer.Stop()
	}
	p.locRIB.WithdrawAllFrom(p, p.ribIn)
	p.transitionTo(Idle, reason)
}

// AcceptInbound hands a TCP connection the shared listener accepted for
// this peer's remote address into the FSM through a one-slot queue: the
// first connection delivered while the peer isn't waiting in Idle is held
// until awaitConnection next runs, and any further connection arriving
// while that slot is occupied is closed, since at most one in-flight
// attempt per peer is tracked.
func (p *Peer) AcceptInbound(conn net.Conn) {
	select {
	case p.inbound <- conn:
	default:
		conn.Close()
	}
}

// awaitConnection obtains the TCP connection this peer's session will
// run over. A Passive peer (spec.md §4.6) only ever accepts; an active
// peer races its own dial against an inbound connection the shared
// listener might deliver for the same remote address, since the remote
// speaker may open toward us before we finish connecting toward it.
//
// Collision resolution here is a deliberate simplification of RFC
// 4271 §6.8's bidirectional-Identifier comparison: because this FSM
// tracks only one connection attempt at a time, an inbound connection
// that arrives while a dial is already in flight is treated as having
// won the race outright (the in-flight dial is abandoned and its
// socket closed once it resolves) rather than waiting to compare BGP
// Identifiers from both sides' OPEN messages. The choice is still
// deterministic — whichever connection is accepted first always wins —
// it just isn't Identifier-based.
func (p *Peer) awaitConnection(ctx context.Context) (net.Conn, error) {
	if p.cfg.Passive {
		select {
		case conn := <-p.inbound:
			return conn, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	dialCh := make(chan dialResult, 1)
	go func() {
		d := net.Dialer{Timeout: 30 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.cfg.RemoteAddr, "179"))
		dialCh <- dialResult{conn, err}
	}()

	select {
	case conn := <-p.inbound:
		go func() {
			if r := <-dialCh; r.conn != nil {
				r.conn.Close()
			}
		}()
		return conn, nil
	case r := <-dialCh:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Peer) sendOpen() error {
	caps := []bgpproto.Capability{
		{Code: bgpproto.CapFourOctetAS, Value: fourOctetASValue(p.cfg.LocalAS)},
		{Code: bgpproto.CapMultiprotocol, Value: bgpproto.MultiprotocolValue(bgpproto.AFIIPv4, bgpproto.SAFIUnicast)},
		{Code: bgpproto.CapMultiprotocol, Value: bgpproto.MultiprotocolValue(bgpproto.AFIIPv6, bgpproto.SAFIUnicast)},
		{Code: bgpproto.CapRouteRefresh},
	}
	myAS := uint16(p.cfg.LocalAS)
	if p.cfg.LocalAS > 0xffff {
		myAS = 23456 // AS_TRANS
	}
	open := bgpproto.Open{
		MyAS:         myAS,
		HoldTime:     uint16(p.negotiatedHoldTime / time.Second),
		Identifier:   p.cfg.LocalID,
		Capabilities: caps,
	}
	raw, err := bgpproto.EncodeOpen(open)
	if err != nil {
		return err
	}
	_, err = p.conn.Write(raw)
	return err
}

func fourOctetASValue(as uint32) []byte {
	return []byte{byte(as >> 24), byte(as >> 16), byte(as >> 8), byte(as)}
}
