package isis

import "github.com/zebra-rs/zebra-rs/internal/isisproto"

// CircuitSummary is one row of `show isis interface` / `show isis
// summary` (spec.md §6 CLI surface); Show APIs never error (spec.md §7),
// so an instance with no circuits just returns an empty slice.
type CircuitSummary struct {
	Name       string
	Level      CircuitType
	LinkType   LinkType
	IsDISL1    bool
	IsDISL2    bool
	AdjUpL1    int
	AdjUpL2    int
	Malformed  uint64
}

// Circuits returns a snapshot of every attached circuit for show output.
func (inst *Instance) Circuits() []CircuitSummary {
	inst.mu.Lock()
	cs := make([]*Circuit, 0, len(inst.circuits))
	for _, c := range inst.circuits {
		cs = append(cs, c)
	}
	inst.mu.Unlock()

	out := make([]CircuitSummary, 0, len(cs))
	for _, c := range cs {
		c.mu.Lock()
		s := CircuitSummary{
			Name:      c.Name,
			Level:     c.circuitType,
			LinkType:  c.linkType,
			IsDISL1:   c.isDIS[1],
			IsDISL2:   c.isDIS[2],
			Malformed: c.counters.Malformed.Value(),
		}
		c.mu.Unlock()
		s.AdjUpL1 = len(c.UpNeighbors(1))
		s.AdjUpL2 = len(c.UpNeighbors(2))
		out = append(out, s)
	}
	return out
}

// AdjacencyCount reports the total number of Up neighbors at a level,
// across every circuit, for the metrics gauge and `show isis summary`.
func (inst *Instance) AdjacencyCount(level int) int {
	n := 0
	for _, c := range inst.circuitsForLevel(level) {
		n += len(c.UpNeighbors(level))
	}
	return n
}

// LSDBEntries returns every stored LSP at a level for `show isis
// database`.
func (inst *Instance) LSDBEntries(level int) []isisproto.LSP {
	return inst.lsdbFor(level).All()
}

// LSDBSize reports the LSDB entry count at a level for the metrics gauge.
func (inst *Instance) LSDBSize(level int) int {
	return len(inst.lsdbFor(level).All())
}
