package isis

import (
	"net/netip"
	"testing"

	"github.com/zebra-rs/zebra-rs/internal/isisproto"
)

func sysID(b byte) isisproto.SystemID { return isisproto.SystemID{0, 0, 0, 0, 0, b} }

func installLSP(t *testing.T, inst *Instance, originator isisproto.SystemID, neighbors []isisproto.ExtendedISReach, prefixes []isisproto.ExtendedIPReach) {
	t.Helper()
	var tlvs []isisproto.TLV
	if len(neighbors) > 0 {
		tlvs = append(tlvs, isisproto.EncodeExtendedISReach(neighbors))
	}
	if len(prefixes) > 0 {
		tlvs = append(tlvs, isisproto.EncodeExtendedIPReach(prefixes))
	}
	lsp := isisproto.LSP{
		Level:             2,
		RemainingLifetime: 1200,
		ID:                isisproto.LSPID{System: originator},
		Sequence:          1,
		TypeBits:          3,
		TLVs:              tlvs,
	}
	raw := isisproto.EncodeLSP(lsp)
	inst.lsdbL2.Install(lsp, raw)
}

func neighborEntry(sys isisproto.SystemID, metric uint32) isisproto.ExtendedISReach {
	var nb [7]byte
	copy(nb[:6], sys[:])
	return isisproto.ExtendedISReach{Neighbor: nb, Metric: metric}
}

// TestSPFECMP mirrors spec.md §8 seed test 3: two L2 neighbors advertise
// equal-metric paths to the same prefix, so SPF must merge them into one
// result carrying both first hops (the seed for one RIB entry installed
// as a single ECMP nexthop-group once resolved into interfaces).
func TestSPFECMP(t *testing.T) {
	self := sysID(0x01)
	peerA := sysID(0x02)
	peerB := sysID(0x03)

	inst := NewInstance(self, "root", nil, 115, nil, nil)

	installLSP(t, inst, self, []isisproto.ExtendedISReach{
		neighborEntry(peerA, 10),
		neighborEntry(peerB, 10),
	}, nil)
	installLSP(t, inst, peerA, nil, []isisproto.ExtendedIPReach{
		{Metric: 5, Prefix: [4]byte{203, 0, 113, 0}, Length: 24},
	})
	installLSP(t, inst, peerB, nil, []isisproto.ExtendedIPReach{
		{Metric: 5, Prefix: [4]byte{203, 0, 113, 0}, Length: 24},
	})

	results := inst.runSPF(2)
	want := netip.MustParsePrefix("203.0.113.0/24").String()
	res, ok := results[want]
	if !ok {
		t.Fatalf("expected SPF result for %s, got %+v", want, results)
	}
	if res.metric != 15 {
		t.Fatalf("expected merged metric 15 (10+5 via either neighbor), got %d", res.metric)
	}
	if len(res.firstHop) != 2 {
		t.Fatalf("expected ECMP over both neighbors, got %d first hops: %+v", len(res.firstHop), res.firstHop)
	}
}

// TestSPFSelfExcluded checks the root node never appears in its own SPF
// result set (spec.md §4.5: "Self-path is excluded from the result").
func TestSPFSelfExcluded(t *testing.T) {
	self := sysID(0x01)
	inst := NewInstance(self, "root", nil, 115, nil, nil)
	installLSP(t, inst, self, nil, []isisproto.ExtendedIPReach{
		{Metric: 0, Prefix: [4]byte{10, 0, 0, 0}, Length: 24},
	})
	results := inst.runSPF(2)
	if _, ok := results[netip.MustParsePrefix("10.0.0.0/24").String()]; ok {
		t.Fatalf("self-originated prefix with no remote reachability should not appear via another node's SPF distance")
	}
}
