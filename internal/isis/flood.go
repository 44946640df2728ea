package isis

import (
	"sort"

	"github.com/zebra-rs/zebra-rs/internal/isisproto"
)

// handleReceivedLSP applies spec.md §4.5's Flooding rules: install a
// newer copy and reflood it on every circuit but the receiving one,
// setting SSN there; on a same-or-older copy, just clear SRM on the
// receiving circuit (and set SSN if strictly older, so the sender gets
// caught up via PSNP).
func (inst *Instance) handleReceivedLSP(level int, recv *Circuit, lsp isisproto.LSP, raw []byte) {
	lsdb := inst.lsdbFor(level)
	key := lsp.ID.String()

	if lsp.RemainingLifetime == 0 {
		lsdb.MarkPurge(key)
		inst.floodExcept(level, recv, key)
		recv.clearSRM(level, key)
		inst.scheduleSPF()
		return
	}

	installed, newer := lsdb.Install(lsp, raw)
	if installed && newer {
		inst.floodExcept(level, recv, key)
		recv.clearSRM(level, key)
		inst.scheduleSPF()
		return
	}

	// same-or-older copy
	recv.clearSRM(level, key)
	existing, _, ok := lsdb.Get(key)
	if ok && lsp.Sequence < existing.Sequence {
		recv.markSSN(level, key)
	}
}

func (inst *Instance) floodExcept(level int, recv *Circuit, lspKey string) {
	for _, c := range inst.circuitsForLevel(level) {
		if c == recv {
			c.markSSN(level, lspKey)
			continue
		}
		c.markSRM(level, lspKey)
	}
}

// floodTick is called periodically per circuit: it transmits every LSP
// pending SRM and, on point-to-point circuits, coalesces every LSP
// pending SSN into a single PSNP PDU (point-to-point circuits use PSNP
// for explicit ack/request; broadcast circuits rely on periodic CSNP
// instead, so SSN there just marks "request via next received CSNP
// round").
func (inst *Instance) floodTick(level int, c *Circuit) {
	lsdb := inst.lsdbFor(level)
	for _, key := range c.pendingSRM(level) {
		_, raw, ok := lsdb.Get(key)
		if !ok {
			c.clearSRM(level, key)
			continue
		}
		c.send(raw)
		if c.linkType == LinkPointToPoint {
			// Point-to-point retransmits until explicitly acked by PSNP;
			// broadcast sends once and clears SRM, leaving recovery to CSNP.
		} else {
			c.clearSRM(level, key)
		}
	}

	if c.linkType == LinkPointToPoint {
		pending := c.pendingSSN(level)
		if len(pending) == 0 {
			return
		}
		var entries []isisproto.LSPEntry
		for _, key := range pending {
			lsp, _, ok := lsdb.Get(key)
			if !ok {
				continue
			}
			entries = append(entries, isisproto.LSPEntry{
				RemainingLifetime: lsp.RemainingLifetime,
				ID:                lsp.ID,
				Sequence:          lsp.Sequence,
				Checksum:          lsp.Checksum,
			})
			c.clearSSN(level, key)
		}
		if len(entries) == 0 {
			return
		}
		pdu := isisproto.EncodeSNP(isisproto.SNP{Level: level, PSNP: true, Source: inst.SystemID, Entries: entries})
		c.send(pdu)
	}
}

// sendCSNP emits a complete-sequence-number PDU covering the whole
// level LSDB, split at 15 entries per TLV; only the DIS on a broadcast
// circuit calls this (spec.md §4.5 CSNP/PSNP).
func (inst *Instance) sendCSNP(level int, c *Circuit) {
	lsdb := inst.lsdbFor(level)
	lsps := lsdb.All()
	sort.Slice(lsps, func(i, j int) bool { return lsps[i].ID.String() < lsps[j].ID.String() })

	entries := make([]isisproto.LSPEntry, 0, len(lsps))
	for _, lsp := range lsps {
		entries = append(entries, isisproto.LSPEntry{
			RemainingLifetime: lsp.RemainingLifetime,
			ID:                lsp.ID,
			Sequence:          lsp.Sequence,
			Checksum:          lsp.Checksum,
		})
	}
	snp := isisproto.SNP{Level: level, PSNP: false, Source: inst.SystemID, Entries: entries}
	if len(lsps) > 0 {
		snp.RangeLo = lsps[0].ID
		snp.RangeHi = lsps[len(lsps)-1].ID
	}
	c.send(isisproto.EncodeSNP(snp))
}

// handleCSNP implements the receiving side: set SSN for any advertised
// LSP we lack or hold an older copy of; clear SRM for any LSP we already
// hold with equal-or-newer sequence (spec.md §4.5 CSNP/PSNP).
func (inst *Instance) handleCSNP(level int, recv *Circuit, snp isisproto.SNP) {
	lsdb := inst.lsdbFor(level)
	seen := map[string]bool{}
	for _, e := range snp.Entries {
		key := e.ID.String()
		seen[key] = true
		existing, _, ok := lsdb.Get(key)
		switch {
		case !ok:
			recv.markSSN(level, key)
		case e.Sequence > existing.Sequence:
			recv.markSSN(level, key)
		default:
			recv.clearSRM(level, key)
		}
	}
	// Anything we hold but absent from the CSNP is something the peer
	// lacks: mark SRM so it gets flooded. The CSNP's LSP-ID range is not
	// consulted; every LSDB entry not listed is marked.
	for _, lsp := range lsdb.All() {
		key := lsp.ID.String()
		if seen[key] {
			continue
		}
		recv.markSRM(level, key)
	}
}

// handlePSNP acknowledges or requests specific LSPs: any entry the peer
// lacks (older or absent) is resent from our cached copy.
func (inst *Instance) handlePSNP(level int, recv *Circuit, snp isisproto.SNP) {
	lsdb := inst.lsdbFor(level)
	for _, e := range snp.Entries {
		key := e.ID.String()
		existing, raw, ok := lsdb.Get(key)
		if !ok {
			continue
		}
		if e.Sequence < existing.Sequence {
			recv.send(raw)
		} else {
			recv.clearSRM(level, key)
		}
	}
}
