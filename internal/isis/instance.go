package isis

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/isisproto"
)

// Instance is the single IS-IS protocol instance (spec.md C5): it
// drives every attached circuit's IFSM/NFSM, owns the per-level LSDBs,
// and feeds SPF results to the RIB.
type Instance struct {
	SystemID      isisproto.SystemID
	Hostname      string
	AreaAddresses [][]byte
	Distance      uint8

	log    *zap.SugaredLogger
	ribOut *bus.Channel[bus.RouteDelta]

	mu         sync.Mutex
	circuits   map[string]*Circuit
	lastRoutes [3]map[string]bool

	lsdbL1 *LSDB
	lsdbL2 *LSDB
	seq    [3]uint32

	spfQueued [3]bool
}

func NewInstance(systemID isisproto.SystemID, hostname string, areas [][]byte, distance uint8, ribOut *bus.Channel[bus.RouteDelta], log *zap.SugaredLogger) *Instance {
	return &Instance{
		SystemID:      systemID,
		Hostname:      hostname,
		AreaAddresses: areas,
		Distance:      distance,
		log:           log,
		ribOut:        ribOut,
		circuits:      map[string]*Circuit{},
		lsdbL1:        NewLSDB(1),
		lsdbL2:        NewLSDB(2),
		lastRoutes:    [3]map[string]bool{1: {}, 2: {}},
	}
}

func (inst *Instance) lsdbFor(level int) *LSDB {
	if level == 1 {
		return inst.lsdbL1
	}
	return inst.lsdbL2
}

func (inst *Instance) AddCircuit(c *Circuit) {
	c.onAdjacencyLost = inst.onAdjacencyLost
	inst.mu.Lock()
	inst.circuits[c.Name] = c
	inst.mu.Unlock()
}

func (inst *Instance) circuitsForLevel(level int) []*Circuit {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	var out []*Circuit
	for _, c := range inst.circuits {
		if c.circuitType.hasLevel(level) {
			out = append(out, c)
		}
	}
	return out
}

// Run drives every attached circuit's hello/CSNP/flood timers, the
// LSDB ageing tick, and SPF recomputation until ctx is cancelled
// (spec.md §5's cooperative task-supervision model).
func (inst *Instance) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	inst.mu.Lock()
	circuits := make([]*Circuit, 0, len(inst.circuits))
	for _, c := range inst.circuits {
		circuits = append(circuits, c)
	}
	inst.mu.Unlock()

	for _, c := range circuits {
		c := c
		g.Go(func() error { return inst.runCircuit(ctx, c) })
	}
	g.Go(func() error { return inst.runAging(ctx) })

	for lvl := 1; lvl <= 2; lvl++ {
		inst.originate(lvl)
	}

	return g.Wait()
}

func (inst *Instance) runCircuit(ctx context.Context, c *Circuit) error {
	helloCh := make(chan struct{})
	go runJittered(ctx, DefaultHelloInterval, HelloJitter, helloCh)

	floodTick := time.NewTicker(500 * time.Millisecond)
	csnpTick := time.NewTicker(DefaultCSNPInterval)
	defer floodTick.Stop()
	defer csnpTick.Stop()

	// A circuit with no transport never receives; a nil channel blocks.
	var recv <-chan Frame
	c.mu.Lock()
	if c.transport != nil {
		recv = c.transport.Recv()
	}
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-helloCh:
			for lvl := 1; lvl <= 2; lvl++ {
				if c.circuitType.hasLevel(lvl) {
					pdu := c.buildIIH(lvl, inst.SystemID, inst.AreaAddresses, uint16(DefaultHelloInterval.Seconds())*DefaultHoldMultiplier)
					c.send(pdu)
					if changed, selfIsDIS := c.runDISElection(lvl, c.priority); changed {
						inst.onDISChange(lvl, c, selfIsDIS)
					}
				}
			}
		case <-floodTick.C:
			for lvl := 1; lvl <= 2; lvl++ {
				if c.circuitType.hasLevel(lvl) {
					inst.floodTick(lvl, c)
				}
			}
		case <-csnpTick.C:
			for lvl := 1; lvl <= 2; lvl++ {
				c.mu.Lock()
				isDIS := c.isDIS[lvl]
				c.mu.Unlock()
				if c.circuitType.hasLevel(lvl) && c.linkType == LinkBroadcast && isDIS {
					inst.sendCSNP(lvl, c)
				}
			}
		case frame, ok := <-recv:
			if !ok {
				return nil
			}
			inst.handleFrame(c, frame)
		}
	}
}

// runJittered fires on ch at d scaled by a fresh uniform factor in
// [1-jitter, 1+jitter] each round, the IS-IS hello cadence spec.md §4.5
// calls for ("jittered +/-25%"); it re-derives the jittered delay itself
// since timer.Timer's periodic mode doesn't combine with its jitter mode.
func runJittered(ctx context.Context, d time.Duration, jitter float64, ch chan<- struct{}) {
	for {
		factor := 1 - jitter + 2*jitter*rand.Float64()
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(float64(d) * factor)):
		}
		select {
		case <-ctx.Done():
			return
		case ch <- struct{}{}:
		}
	}
}

func (inst *Instance) runAging(ctx context.Context) error {
	ticker := time.NewTicker(AgeTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for lvl := 1; lvl <= 2; lvl++ {
				lsdb := inst.lsdbFor(lvl)
				purged, removed := lsdb.AgeTick()
				for _, key := range purged {
					for _, c := range inst.circuitsForLevel(lvl) {
						c.markSRM(lvl, key)
					}
				}
				if len(purged) > 0 || len(removed) > 0 {
					inst.scheduleSPFLevel(lvl)
				}
			}
		}
	}
}

func (inst *Instance) handleFrame(c *Circuit, f Frame) {
	typ, body, err := isisproto.DecodePDU(f.PDU)
	if err != nil {
		c.counters.Malformed.Increment()
		return
	}
	level := typ.Level()
	if level == 0 || !c.circuitType.hasLevel(level) {
		return
	}

	switch typ {
	case isisproto.PDUL1LANHello, isisproto.PDUL2LANHello, isisproto.PDUP2PHello:
		c.counters.IIHRx.Increment()
		iih, err := isisproto.DecodeIIH(body, typ == isisproto.PDUP2PHello)
		if err != nil {
			c.counters.Malformed.Increment()
			return
		}
		c.handleIIH(iih, f.SNPA, func(lvl int) {
			if changed, selfIsDIS := c.runDISElection(lvl, c.priority); changed {
				inst.onDISChange(lvl, c, selfIsDIS)
			}
			inst.originate(lvl)
		})
	case isisproto.PDUL1LSP, isisproto.PDUL2LSP:
		c.counters.LSPRx.Increment()
		lsp, err := isisproto.DecodeLSP(body, level)
		if err != nil {
			c.counters.Malformed.Increment()
			return
		}
		inst.handleReceivedLSP(level, c, lsp, f.PDU)
	case isisproto.PDUL1CSNP, isisproto.PDUL2CSNP:
		c.counters.CSNPRx.Increment()
		snp, err := isisproto.DecodeSNP(body, level, false)
		if err != nil {
			c.counters.Malformed.Increment()
			return
		}
		inst.handleCSNP(level, c, snp)
	case isisproto.PDUL1PSNP, isisproto.PDUL2PSNP:
		c.counters.PSNPRx.Increment()
		snp, err := isisproto.DecodeSNP(body, level, true)
		if err != nil {
			c.counters.Malformed.Increment()
			return
		}
		inst.handlePSNP(level, c, snp)
	}
}

func (inst *Instance) onDISChange(level int, c *Circuit, selfIsDIS bool) {
	if inst.log != nil {
		inst.log.Infow("dis change", "circuit", c.Name, "level", level, "self_is_dis", selfIsDIS)
	}
	inst.originate(level) // re-originates the level's own LSP; no pseudonode LSP is built
}

// onAdjacencyLost implements spec.md §4.5's "loss of all adjacencies on
// a circuit purges that circuit's contribution to self-originated LSPs":
// re-originate without that circuit's IS-neighbor entry.
func (inst *Instance) onAdjacencyLost(level int, circuitEmpty bool) {
	if circuitEmpty {
		inst.originate(level)
	}
}

// originate (re)builds and installs the self-originated LSP for level
// from every circuit's current up-adjacencies, area addresses, IP
// interface addresses and hostname (spec.md §4.5 LSP origination).
func (inst *Instance) originate(level int) {
	inst.mu.Lock()
	inst.seq[level]++
	seq := inst.seq[level]
	inst.mu.Unlock()

	var tlvs []isisproto.TLV
	tlvs = append(tlvs, isisproto.EncodeAreaAddresses(inst.AreaAddresses))
	tlvs = append(tlvs, isisproto.EncodeDynamicHostname(inst.Hostname))

	var neighbors []isisproto.ISNeighbor
	var ipAddrs [][4]byte
	for _, c := range inst.circuitsForLevel(level) {
		if c.LocalAddr.Is4() {
			ipAddrs = append(ipAddrs, c.LocalAddr.As4())
		}
		for _, n := range c.UpNeighbors(level) {
			var nb [7]byte
			copy(nb[:6], n.SystemID[:])
			neighbors = append(neighbors, isisproto.ISNeighbor{Metric: byte(c.Metric), Neighbor: nb})
		}
	}
	if len(neighbors) > 0 {
		tlvs = append(tlvs, isisproto.EncodeISNeighbors(neighbors))
		var extReach []isisproto.ExtendedISReach
		for _, n := range neighbors {
			extReach = append(extReach, isisproto.ExtendedISReach{Neighbor: n.Neighbor, Metric: uint32(n.Metric)})
		}
		tlvs = append(tlvs, isisproto.EncodeExtendedISReach(extReach))
	}
	if len(ipAddrs) > 0 {
		tlvs = append(tlvs, isisproto.EncodeIPInterfaceAddrs(ipAddrs))
	}

	lsp := isisproto.LSP{
		Level:             level,
		RemainingLifetime: MaxAge,
		ID:                isisproto.LSPID{System: inst.SystemID},
		Sequence:          seq,
		TypeBits:          3,
		TLVs:              tlvs,
	}
	raw := isisproto.EncodeLSP(lsp)
	lsdb := inst.lsdbFor(level)
	lsdb.Install(lsp, raw)

	for _, c := range inst.circuitsForLevel(level) {
		c.markSRM(level, lsp.ID.String())
	}
	inst.scheduleSPFLevel(level)
}

// scheduleSPF recomputes both levels; scheduleSPFLevel debounces a
// single level behind SPFHoldDown (spec.md §4.5: "Triggered... with a
// hold-down... on LSDB change").
func (inst *Instance) scheduleSPF() {
	inst.scheduleSPFLevel(1)
	inst.scheduleSPFLevel(2)
}

func (inst *Instance) scheduleSPFLevel(level int) {
	inst.mu.Lock()
	if inst.spfQueued[level] {
		inst.mu.Unlock()
		return
	}
	inst.spfQueued[level] = true
	inst.mu.Unlock()

	time.AfterFunc(SPFHoldDown, func() {
		inst.mu.Lock()
		inst.spfQueued[level] = false
		inst.mu.Unlock()
		results := inst.runSPF(level)
		inst.emitRoutes(level, results)
	})
}
