package isis

import "testing"

func neighborUp(sys byte, priority byte, level int) *Neighbor {
	return &Neighbor{SystemID: sysID(sys), SNPA: snpa(sys), Priority: priority, State: NFSMUp, Level: level}
}

// TestRunDISElectionOnCircuit exercises runDISElection end to end on a
// broadcast circuit with two up neighbors, reproducing the priority
// ordering half of spec.md §8 seed test 5.
func TestRunDISElectionOnCircuit(t *testing.T) {
	c := NewCircuit("eth0", 2, CircuitL2, LinkBroadcast, 10, 64, snpa(0x01))
	c.neighbors["a"] = neighborUp(0x02, 64, 2)
	c.neighbors["b"] = neighborUp(0x03, 100, 2)

	changed, selfIsDIS := c.runDISElection(2, 64)
	if !changed {
		t.Fatalf("expected first election to report a change")
	}
	if selfIsDIS {
		t.Fatalf("self (priority 64) must not win against a priority-100 neighbor")
	}

	// Re-running with the same neighbor set must report no further change.
	changed, _ = c.runDISElection(2, 64)
	if changed {
		t.Fatalf("expected stable re-election to report no change")
	}

	// Withdraw the priority-100 neighbor; self (snpa 0x01) now loses the
	// tie-break to the remaining neighbor (snpa 0x02, numerically higher).
	delete(c.neighbors, "b")
	changed, selfIsDIS = c.runDISElection(2, 64)
	if !changed {
		t.Fatalf("expected election to change after the DIS neighbor left")
	}
	if selfIsDIS {
		t.Fatalf("self (snpa 0x01) must lose the priority tie to snpa 0x02")
	}
}

// TestRunDISElectionSkipsPointToPoint confirms spec.md §4.5's rule that
// DIS election only applies to broadcast circuits.
func TestRunDISElectionSkipsPointToPoint(t *testing.T) {
	c := NewCircuit("eth1", 3, CircuitL2, LinkPointToPoint, 10, 64, snpa(0x01))
	changed, selfIsDIS := c.runDISElection(2, 64)
	if changed || selfIsDIS {
		t.Fatalf("point-to-point circuits must never run DIS election")
	}
}
