package isis

import "bytes"

// disCandidate is one voter in a LAN-level's DIS election.
type disCandidate struct {
	priority byte
	snpa     [6]byte
}

// electDIS applies spec.md §4.5's rule: highest (priority, MAC) wins;
// ties broken by lexicographic SNPA. Returns the winning SNPA.
func electDIS(self disCandidate, neighbors []disCandidate) [6]byte {
	best := self
	for _, n := range neighbors {
		if betterDIS(n, best) {
			best = n
		}
	}
	return best.snpa
}

func betterDIS(a, b disCandidate) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return bytes.Compare(a.snpa[:], b.snpa[:]) > 0
}

// runDISElection re-elects the DIS for level on a broadcast circuit,
// reporting whether the result changed and whether we are now DIS.
func (c *Circuit) runDISElection(level int, selfPriority byte) (changed bool, selfIsDIS bool) {
	if c.linkType != LinkBroadcast {
		return false, false
	}
	var cands []disCandidate
	for _, n := range c.UpNeighbors(level) {
		cands = append(cands, disCandidate{priority: n.Priority, snpa: n.SNPA})
	}
	winner := electDIS(disCandidate{priority: selfPriority, snpa: c.localSNPA}, cands)

	c.mu.Lock()
	wasDIS := c.isDIS[level]
	var prevWinner [7]byte
	copy(prevWinner[:], c.disLANID[level][:])
	selfIsDIS = winner == c.localSNPA
	c.isDIS[level] = selfIsDIS
	var newLANID [7]byte
	copy(newLANID[:6], winner[:])
	c.disLANID[level] = newLANID
	c.mu.Unlock()

	changed = wasDIS != selfIsDIS || prevWinner != newLANID
	return changed, selfIsDIS
}
