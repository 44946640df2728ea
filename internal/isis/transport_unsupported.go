//go:build !linux

package isis

// NewTransport has no non-Linux implementation; spec.md §4.1's macOS
// fallback is scoped to the FIB shim's route sockets, not IS-IS
// link-layer framing.
func NewTransport(ifindex int, snpa [6]byte) (Transport, error) {
	return nil, ErrUnsupported
}
