package isisproto

import "testing"

func sysID(b byte) SystemID { return SystemID{0, 0, 0, 0, 0, b} }

func TestIIHRoundTripLAN(t *testing.T) {
	iih := IIH{
		CircuitType: 2,
		Source:      sysID(1),
		HoldTime:    30,
		LANPriority: 64,
		DIS:         [7]byte{0, 0, 0, 0, 0, 1, 0},
		TLVs: []TLV{
			EncodeAreaAddresses([][]byte{{0x49, 0x00, 0x01}}),
			EncodePadding(10),
			EncodeDynamicHostname("r1"),
		},
	}
	raw := EncodeIIH(iih)
	typ, body, err := DecodePDU(raw)
	if err != nil {
		t.Fatalf("DecodePDU: %v", err)
	}
	if typ != PDUL2LANHello {
		t.Fatalf("expected L2 LAN hello, got %s", typ)
	}
	got, err := DecodeIIH(body, false)
	if err != nil {
		t.Fatalf("DecodeIIH: %v", err)
	}
	if got.Source != iih.Source || got.HoldTime != iih.HoldTime || got.LANPriority != iih.LANPriority {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	areas, err := DecodeAreaAddresses(findTLVs(got.TLVs, TLVAreaAddresses)[0])
	if err != nil || len(areas) != 1 || len(areas[0]) != 3 {
		t.Errorf("expected one 3-byte area address, got %+v err=%v", areas, err)
	}
	hostTLVs := findTLVs(got.TLVs, TLVDynamicHostname)
	if len(hostTLVs) != 1 || DecodeDynamicHostname(hostTLVs[0]) != "r1" {
		t.Errorf("expected hostname r1 preserved")
	}
}

func TestIIHRoundTripP2P(t *testing.T) {
	iih := IIH{P2P: true, CircuitType: 2, Source: sysID(2), HoldTime: 9}
	raw := EncodeIIH(iih)
	typ, body, err := DecodePDU(raw)
	if err != nil {
		t.Fatalf("DecodePDU: %v", err)
	}
	if typ != PDUP2PHello {
		t.Fatalf("expected P2P hello, got %s", typ)
	}
	got, err := DecodeIIH(body, true)
	if err != nil {
		t.Fatalf("DecodeIIH: %v", err)
	}
	if got.Source != iih.Source || got.HoldTime != iih.HoldTime {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestLSPRoundTrip(t *testing.T) {
	lsp := LSP{
		Level:             2,
		RemainingLifetime: 1200,
		ID:                LSPID{System: sysID(1), Pseudonode: 0, Fragment: 0},
		Sequence:          5,
		Checksum:          0xabcd,
		AttachedBit:       true,
		TypeBits:          3,
		TLVs: []TLV{
			EncodeExtendedISReach([]ExtendedISReach{{Neighbor: [7]byte{0, 0, 0, 0, 0, 2, 0}, Metric: 10}}),
			EncodeExtendedIPReach([]ExtendedIPReach{{Metric: 10, Prefix: [4]byte{203, 0, 113, 0}, Length: 24}}),
		},
	}
	raw := EncodeLSP(lsp)
	typ, body, err := DecodePDU(raw)
	if err != nil {
		t.Fatalf("DecodePDU: %v", err)
	}
	if typ != PDUL2LSP {
		t.Fatalf("expected L2 LSP, got %s", typ)
	}
	got, err := DecodeLSP(body, 2)
	if err != nil {
		t.Fatalf("DecodeLSP: %v", err)
	}
	if got.Sequence != lsp.Sequence || got.ID != lsp.ID || !got.AttachedBit {
		t.Errorf("round trip mismatch: got %+v", got)
	}

	isTLV := findTLVs(got.TLVs, TLVExtendedISReach)[0]
	reach, err := DecodeExtendedISReach(isTLV)
	if err != nil || len(reach) != 1 || reach[0].Metric != 10 {
		t.Errorf("expected IS reach preserved, got %+v err=%v", reach, err)
	}

	ipTLV := findTLVs(got.TLVs, TLVExtendedIPReach)[0]
	ipReach, err := DecodeExtendedIPReach(ipTLV)
	if err != nil || len(ipReach) != 1 || ipReach[0].Length != 24 {
		t.Errorf("expected IP reach preserved, got %+v err=%v", ipReach, err)
	}
}

func TestLSPEntriesSplitAt15(t *testing.T) {
	entries := make([]LSPEntry, 32)
	for i := range entries {
		entries[i] = LSPEntry{RemainingLifetime: 1200, ID: LSPID{System: sysID(byte(i))}, Sequence: uint32(i)}
	}
	tlvs := EncodeLSPEntries(entries)
	if len(tlvs) != 3 {
		t.Fatalf("expected 32 entries to split into 3 TLVs of <=15, got %d", len(tlvs))
	}
	for i, tlv := range tlvs {
		n := len(tlv.Value) / 16
		if i < 2 && n != MaxLSPEntriesPerTLV {
			t.Errorf("expected TLV %d to carry %d entries, got %d", i, MaxLSPEntriesPerTLV, n)
		}
	}
	decoded, err := DecodeLSPEntries(tlvs)
	if err != nil || len(decoded) != 32 {
		t.Fatalf("expected 32 entries round-tripped, got %d err=%v", len(decoded), err)
	}
}

func TestCSNPRoundTrip(t *testing.T) {
	snp := SNP{
		Level:  1,
		Source: sysID(1),
		RangeLo: LSPID{},
		RangeHi: LSPID{System: SystemID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Pseudonode: 0xff, Fragment: 0xff},
		Entries: []LSPEntry{
			{RemainingLifetime: 1000, ID: LSPID{System: sysID(3)}, Sequence: 1, Checksum: 0x1234},
		},
	}
	raw := EncodeSNP(snp)
	typ, body, err := DecodePDU(raw)
	if err != nil {
		t.Fatalf("DecodePDU: %v", err)
	}
	if typ != PDUL1CSNP {
		t.Fatalf("expected L1 CSNP, got %s", typ)
	}
	got, err := DecodeSNP(body, 1, false)
	if err != nil {
		t.Fatalf("DecodeSNP: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].Sequence != 1 {
		t.Errorf("expected one entry preserved, got %+v", got.Entries)
	}
}

func TestPSNPRoundTrip(t *testing.T) {
	snp := SNP{
		Level:  2,
		PSNP:   true,
		Source: sysID(4),
		Entries: []LSPEntry{
			{RemainingLifetime: 500, ID: LSPID{System: sysID(5)}, Sequence: 2},
		},
	}
	raw := EncodeSNP(snp)
	typ, body, err := DecodePDU(raw)
	if err != nil {
		t.Fatalf("DecodePDU: %v", err)
	}
	if typ != PDUL2PSNP {
		t.Fatalf("expected L2 PSNP, got %s", typ)
	}
	got, err := DecodeSNP(body, 2, true)
	if err != nil {
		t.Fatalf("DecodeSNP: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].ID.System != sysID(5) {
		t.Errorf("expected entry preserved, got %+v", got.Entries)
	}
}
