package isis

import "fmt"

// Frame is one received link-layer frame carrying an IS-IS PDU, along
// with the sending adjacency's SNPA (subnetwork point of attachment —
// its MAC address on broadcast media, or simply the circuit's source
// identity on point-to-point).
type Frame struct {
	PDU  []byte
	SNPA [6]byte
}

// Transport is the per-circuit link-layer send/receive surface. The
// real implementation (transport_linux.go) frames PDUs under the IS-IS
// LLC/SNAP header spec.md §4.1 calls for and sends them over an
// AF_PACKET raw socket bound to the circuit's interface; on other
// platforms NewTransport returns ErrUnsupported and there is no transport.
type Transport interface {
	Send(pdu []byte) error
	Recv() <-chan Frame
	LocalSNPA() [6]byte
	Close() error
}

// ErrUnsupported is returned by the non-Linux transport; IS-IS raw
// sockets have no portable cross-platform equivalent in this module
// (spec.md §4.1 calls out a macOS route-socket fallback for the FIB
// shim only, not for link-layer IS-IS framing).
var ErrUnsupported = fmt.Errorf("isis: raw-socket transport unsupported on this platform")

// fakeTransport is an in-memory Transport for driving the protocol
// engine without a kernel socket. Nothing in this package, its tests
// included, constructs one.
type fakeTransport struct {
	snpa [6]byte
	out  chan []byte
	in   chan Frame
}

func newFakeTransport(snpa [6]byte) *fakeTransport {
	return &fakeTransport{snpa: snpa, out: make(chan []byte, 64), in: make(chan Frame, 64)}
}

func (f *fakeTransport) Send(pdu []byte) error {
	cp := append([]byte(nil), pdu...)
	select {
	case f.out <- cp:
	default:
	}
	return nil
}

func (f *fakeTransport) Recv() <-chan Frame   { return f.in }
func (f *fakeTransport) LocalSNPA() [6]byte   { return f.snpa }
func (f *fakeTransport) Close() error         { close(f.in); return nil }

func (f *fakeTransport) deliver(pdu []byte, snpa [6]byte) {
	f.in <- Frame{PDU: append([]byte(nil), pdu...), SNPA: snpa}
}
