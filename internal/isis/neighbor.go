package isis

import (
	"net/netip"
	"time"

	"github.com/zebra-rs/zebra-rs/internal/isisproto"
	"github.com/zebra-rs/zebra-rs/internal/timer"
)

// Neighbor is one adjacency's NFSM state (spec.md §3's "IS-IS adjacency"
// tuple, plus the resolved IP address used as an SPF nexthop).
type Neighbor struct {
	SystemID  isisproto.SystemID
	SNPA      [6]byte
	Level     int
	State     NFSMState
	Priority  byte
	IPAddr    netip.Addr
	LastHello time.Time
	holdTimer *timer.Timer
}

func (c *Circuit) neighborKey(sysID isisproto.SystemID) string { return sysID.String() }

// handleIIH processes a received Hello on this circuit: creates or
// updates the Neighbor, applies the broadcast two-way check, and resets
// the hold timer (spec.md §4.5 Neighbor FSM).
func (c *Circuit) handleIIH(iih isisproto.IIH, snpa [6]byte, onUp func(level int)) {
	level := 1
	if iih.CircuitType == 2 {
		level = 2
	}
	if !c.circuitType.hasLevel(level) {
		return
	}

	var sysID isisproto.SystemID
	sysID = iih.Source

	c.mu.Lock()
	key := c.neighborKey(sysID)
	n, ok := c.neighbors[key]
	if !ok {
		n = &Neighbor{SystemID: sysID, SNPA: snpa, Level: level, State: NFSMDown}
		c.neighbors[key] = n
	}
	n.SNPA = snpa
	n.LastHello = time.Now()
	if !iih.P2P {
		n.Priority = iih.LANPriority
	}

	for _, tlv := range iisIPAddrTLVs(iih) {
		addrs, err := isisproto.DecodeIPInterfaceAddrs(tlv)
		if err == nil && len(addrs) > 0 {
			n.IPAddr = netip.AddrFrom4(addrs[0])
		}
	}

	twoWay := iih.P2P || c.sawOwnSNPA(iih)
	wasUp := n.State == NFSMUp
	if twoWay {
		n.State = NFSMUp
	} else if n.State != NFSMUp {
		n.State = NFSMInit
	}

	hold := time.Duration(iih.HoldTime) * time.Second
	if n.holdTimer == nil {
		n.holdTimer = timer.New(hold, func() { c.expireNeighbor(key) })
	} else {
		n.holdTimer.ResetTo(hold)
	}
	becameUp := twoWay && !wasUp
	c.mu.Unlock()

	if becameUp && onUp != nil {
		onUp(level)
	}
}

func iisIPAddrTLVs(iih isisproto.IIH) []isisproto.TLV {
	var out []isisproto.TLV
	for _, t := range iih.TLVs {
		if t.Type == isisproto.TLVIPInterfaceAddr {
			out = append(out, t)
		}
	}
	return out
}

// sawOwnSNPA implements the broadcast two-way check: our SNPA must
// appear in the neighbor's advertised "IS Neighbors" TLV.
func (c *Circuit) sawOwnSNPA(iih isisproto.IIH) bool {
	for _, tlv := range iih.TLVs {
		if tlv.Type != isisproto.TLVISNeighbors {
			continue
		}
		neighbors, err := isisproto.DecodeISNeighbors(tlv)
		if err != nil {
			continue
		}
		for _, n := range neighbors {
			if [6]byte{n.Neighbor[0], n.Neighbor[1], n.Neighbor[2], n.Neighbor[3], n.Neighbor[4], n.Neighbor[5]} == c.localSNPA {
				return true
			}
		}
	}
	return false
}

func (c *Circuit) expireNeighbor(key string) {
	c.mu.Lock()
	n, ok := c.neighbors[key]
	if ok {
		n.State = NFSMDown
		delete(c.neighbors, key)
	}
	allGone := len(c.neighbors) == 0
	level := 0
	if ok {
		level = n.Level
	}
	c.mu.Unlock()

	if c.onAdjacencyLost != nil {
		c.onAdjacencyLost(level, allGone)
	}
}

// UpNeighbors returns the level's established neighbors, used by DIS
// election and LSP origination.
func (c *Circuit) UpNeighbors(level int) []*Neighbor {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Neighbor
	for _, n := range c.neighbors {
		if n.Level == level && n.State == NFSMUp {
			out = append(out, n)
		}
	}
	return out
}
