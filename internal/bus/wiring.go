package bus

import "github.com/zebra-rs/zebra-rs/internal/types"

// RouteDelta is emitted by a protocol instance (IS-IS, BGP, static config)
// toward the RIB, or by the RIB toward the FIB shim, carrying either an
// add/replace (Withdraw=false) or a removal (Withdraw=true).
type RouteDelta struct {
	Route types.Route
}

// LinkEvent and AddrEvent are the FIB shim's demultiplexed kernel
// notifications (spec.md §4.1 "Inbound events").
type LinkEventKind int

const (
	LinkAdd LinkEventKind = iota
	LinkDelete
	LinkChange
)

type LinkEvent struct {
	Kind LinkEventKind
	Link types.Link
}

type AddrEventKind int

const (
	AddrAdd AddrEventKind = iota
	AddrDelete
)

type AddrEvent struct {
	Kind    AddrEventKind
	Ifindex int
	Addr    string // CIDR text; parsed by the consumer
}

// KernelRouteEvent carries a route the FIB shim observed some other
// agent install or remove, attributed to types.SourceKernel.
type KernelRouteEvent struct {
	Route  types.Route
	Delete bool
}

// FIBResult reports whether an outbound FIB operation succeeded, so the
// RIB can mark a route not-fib-installed on kernel rejection (spec.md §7).
type FIBResult struct {
	Prefix types.Prefix
	OK     bool
	Err    string
}

// ConfigDelta is one parsed change from the running configuration,
// fed to the owning protocol/static-route consumer (spec.md §6).
type ConfigDelta struct {
	Kind  string // e.g. "static-route", "isis-interface", "bgp-neighbor"
	Path  string
	Value any
}

// Bus is the full set of typed channels wiring the daemon together
// (spec.md C7). Each field is owned by its consuming task; only that
// task may range over the channel or call Close.
type Bus struct {
	// protocols/static config -> RIB
	RIBIn *Channel[RouteDelta]
	// RIB -> FIB shim
	FIBOut *Channel[RouteDelta]
	// FIB shim -> RIB (kernel async notifications)
	Links   *Channel[LinkEvent]
	Addrs   *Channel[AddrEvent]
	Kernel  *Channel[KernelRouteEvent]
	FIBAcks *Channel[FIBResult]
	// config layer -> protocols
	Config *Channel[ConfigDelta]
}

// New creates a Bus with reasonable buffer depths: small for control
// events, deeper for route churn bursts (e.g. a BGP session's initial
// table dump, or full IS-IS SPF recompute).
func New() *Bus {
	return &Bus{
		RIBIn:   NewChannel[RouteDelta](256),
		FIBOut:  NewChannel[RouteDelta](256),
		Links:   NewChannel[LinkEvent](64),
		Addrs:   NewChannel[AddrEvent](64),
		Kernel:  NewChannel[KernelRouteEvent](256),
		FIBAcks: NewChannel[FIBResult](64),
		Config:  NewChannel[ConfigDelta](64),
	}
}

// Shutdown drains and closes every channel, per spec.md §5's shutdown
// sequence ("drains inbound channels, closes sockets, then exits").
func (b *Bus) Shutdown() {
	b.RIBIn.Drain()
	b.RIBIn.Close()
	b.FIBOut.Drain()
	b.FIBOut.Close()
	b.Links.Drain()
	b.Links.Close()
	b.Addrs.Drain()
	b.Addrs.Close()
	b.Kernel.Drain()
	b.Kernel.Close()
	b.FIBAcks.Drain()
	b.FIBAcks.Close()
	b.Config.Drain()
	b.Config.Close()
}
