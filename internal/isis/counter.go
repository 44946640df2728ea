package isis

// Counter is a monotonic 64-bit counter, adapted from the teacher's
// counter.Counter for the per-circuit PDU accounting spec.md §4.5's
// failure semantics require (malformed-PDU and auth-mismatch counts).
type Counter struct {
	count uint64
}

func (c *Counter) Increment() { c.count++ }
func (c *Counter) Value() uint64 { return c.count }

// Counters is the set of per-circuit PDU counters.
type Counters struct {
	IIHRx       Counter
	LSPRx       Counter
	CSNPRx      Counter
	PSNPRx      Counter
	Malformed   Counter
	AuthMismatch Counter
}
