package isis

import "testing"

func snpa(b byte) [6]byte { return [6]byte{0, 0, 0, 0, 0, b} }

// TestElectDISPriority mirrors spec.md §8 seed test 5: three routers with
// priorities {64, 64, 100} on a LAN elect the priority-100 router DIS
// regardless of SNPA ordering.
func TestElectDISPriority(t *testing.T) {
	self := disCandidate{priority: 64, snpa: snpa(0x01)}
	neighbors := []disCandidate{
		{priority: 64, snpa: snpa(0x02)},
		{priority: 100, snpa: snpa(0x03)},
	}
	winner := electDIS(self, neighbors)
	if winner != snpa(0x03) {
		t.Fatalf("expected priority-100 candidate to win, got snpa %v", winner)
	}
}

// TestElectDISTieBreak mirrors the second half of seed test 5: once the
// priority-100 router is withdrawn, the remaining two candidates (both
// priority 64) resolve by lexicographic SNPA, with the numerically higher
// SNPA winning.
func TestElectDISTieBreak(t *testing.T) {
	self := disCandidate{priority: 64, snpa: snpa(0x01)}
	neighbors := []disCandidate{
		{priority: 64, snpa: snpa(0x02)},
	}
	winner := electDIS(self, neighbors)
	if winner != snpa(0x02) {
		t.Fatalf("expected the higher SNPA (0x02) to win the priority tie, got %v", winner)
	}
}

func TestBetterDISPriorityDominates(t *testing.T) {
	higherPriorityLowerSNPA := disCandidate{priority: 100, snpa: snpa(0x01)}
	lowerPriorityHigherSNPA := disCandidate{priority: 64, snpa: snpa(0xff)}
	if !betterDIS(higherPriorityLowerSNPA, lowerPriorityHigherSNPA) {
		t.Fatalf("priority must dominate SNPA in DIS comparison")
	}
	if betterDIS(lowerPriorityHigherSNPA, higherPriorityLowerSNPA) {
		t.Fatalf("lower priority candidate must never beat a higher priority one")
	}
}
