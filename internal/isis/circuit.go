package isis

import (
	"net/netip"
	"sync"

	"github.com/zebra-rs/zebra-rs/internal/isisproto"
)

// Circuit is one IS-IS-enabled interface: its IFSM state per level,
// transport, neighbors, DIS state, and flooding flags (spec.md §4.5).
type Circuit struct {
	mu sync.Mutex

	Name        string
	Ifindex     int
	circuitType CircuitType
	linkType    LinkType
	Metric      uint32
	priority    byte
	localSNPA   [6]byte
	LocalAddr   netip.Addr // IPv4 interface address, carried in our IIH/LSP TLV 132

	transport Transport
	counters  Counters

	ifsm      [3]IFSMState // index by level (1, 2); index 0 unused
	neighbors map[string]*Neighbor

	isDIS    [3]bool
	disLANID [3][7]byte

	srm [3]map[string]bool // level -> lsp-id string -> pending send
	ssn [3]map[string]bool // level -> lsp-id string -> pending PSNP

	onAdjacencyLost func(level int, circuitEmpty bool)
}

// NewCircuit constructs a circuit with no transport attached; the
// daemon wires a real Transport separately via Attach.
func NewCircuit(name string, ifindex int, ct CircuitType, lt LinkType, metric uint32, priority byte, snpa [6]byte) *Circuit {
	c := &Circuit{
		Name:        name,
		Ifindex:     ifindex,
		circuitType: ct,
		linkType:    lt,
		Metric:      metric,
		priority:    priority,
		localSNPA:   snpa,
		neighbors:   map[string]*Neighbor{},
	}
	for lvl := 1; lvl <= 2; lvl++ {
		c.srm[lvl] = map[string]bool{}
		c.ssn[lvl] = map[string]bool{}
	}
	return c
}

// Attach binds the circuit to a live Transport and brings its IFSM up
// for every level it's configured for.
func (c *Circuit) Attach(t Transport) {
	c.mu.Lock()
	c.transport = t
	for lvl := 1; lvl <= 2; lvl++ {
		if c.circuitType.hasLevel(lvl) {
			c.ifsm[lvl] = IFSMInit
		}
	}
	c.mu.Unlock()
}

// markSRM/markSSN/clearSRM/clearSSN implement the per-(LSP,circuit)
// flooding flags spec.md §4.5's Flooding rules describe.
func (c *Circuit) markSRM(level int, lspKey string) {
	c.mu.Lock()
	c.srm[level][lspKey] = true
	c.mu.Unlock()
}

func (c *Circuit) clearSRM(level int, lspKey string) {
	c.mu.Lock()
	delete(c.srm[level], lspKey)
	c.mu.Unlock()
}

func (c *Circuit) markSSN(level int, lspKey string) {
	c.mu.Lock()
	c.ssn[level][lspKey] = true
	c.mu.Unlock()
}

func (c *Circuit) clearSSN(level int, lspKey string) {
	c.mu.Lock()
	delete(c.ssn[level], lspKey)
	c.mu.Unlock()
}

func (c *Circuit) pendingSRM(level int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.srm[level]))
	for k := range c.srm[level] {
		out = append(out, k)
	}
	return out
}

func (c *Circuit) pendingSSN(level int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.ssn[level]))
	for k := range c.ssn[level] {
		out = append(out, k)
	}
	return out
}

// send frames and transmits a PDU if the circuit has a transport;
// a circuit with no transport (configured but not yet interface-bound)
// silently drops, matching an interface that is administratively up
// but not yet attached at the kernel level.
func (c *Circuit) send(pdu []byte) {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return
	}
	_ = t.Send(pdu)
}

func (c *Circuit) buildIIH(level int, systemID isisproto.SystemID, areas [][]byte, holdTime uint16) []byte {
	tlvs := []isisproto.TLV{isisproto.EncodeAreaAddresses(areas)}

	var neighborTLV []isisproto.ISNeighbor
	for _, n := range c.UpNeighbors(level) {
		var nb [7]byte
		copy(nb[:6], n.SystemID[:])
		neighborTLV = append(neighborTLV, isisproto.ISNeighbor{Metric: 10, Neighbor: nb})
	}
	if len(neighborTLV) > 0 {
		tlvs = append(tlvs, isisproto.EncodeISNeighbors(neighborTLV))
	}
	if c.LocalAddr.Is4() {
		tlvs = append(tlvs, isisproto.EncodeIPInterfaceAddrs([][4]byte{c.LocalAddr.As4()}))
	}
	tlvs = append(tlvs, isisproto.EncodePadding(8))

	ct := byte(1)
	if level == 2 {
		ct = 2
	}
	if c.circuitType == CircuitL1L2 {
		ct = 3
	}

	iih := isisproto.IIH{
		P2P:         c.linkType == LinkPointToPoint,
		CircuitType: ct,
		Source:      systemID,
		HoldTime:    holdTime,
		LANPriority: c.priority,
		TLVs:        tlvs,
	}
	c.mu.Lock()
	iih.DIS = c.disLANID[level]
	c.mu.Unlock()
	return isisproto.EncodeIIH(iih)
}
