package isisproto

import (
	"bytes"
	"fmt"
)

// PDUType is the IS-IS common header's PDU Type field (ISO/IEC 10589 §9.4).
type PDUType byte

const (
	PDUL1LANHello PDUType = 15
	PDUL2LANHello PDUType = 16
	PDUP2PHello   PDUType = 17
	PDUL1LSP      PDUType = 18
	PDUL2LSP      PDUType = 20
	PDUL1CSNP     PDUType = 24
	PDUL2CSNP     PDUType = 25
	PDUL1PSNP     PDUType = 26
	PDUL2PSNP     PDUType = 27
)

func (t PDUType) String() string {
	switch t {
	case PDUL1LANHello:
		return "L1-IIH"
	case PDUL2LANHello:
		return "L2-IIH"
	case PDUP2PHello:
		return "P2P-IIH"
	case PDUL1LSP:
		return "L1-LSP"
	case PDUL2LSP:
		return "L2-LSP"
	case PDUL1CSNP:
		return "L1-CSNP"
	case PDUL2CSNP:
		return "L2-CSNP"
	case PDUL1PSNP:
		return "L1-PSNP"
	case PDUL2PSNP:
		return "L2-PSNP"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// Level reports whether a PDU type belongs to level-1 or level-2.
func (t PDUType) Level() int {
	switch t {
	case PDUL1LANHello, PDUL1LSP, PDUL1CSNP, PDUL1PSNP:
		return 1
	case PDUL2LANHello, PDUL2LSP, PDUL2CSNP, PDUL2PSNP:
		return 2
	default:
		return 0
	}
}

const (
	irpdDiscriminator = 0x83 // Intradomain Routing Protocol Discriminator
	commonHeaderLength = 8
)

// CommonHeader is the 8-octet fixed header every IS-IS PDU carries
// before its PDU-specific fixed fields and TLVs.
type CommonHeader struct {
	Type           PDUType
	MaxAreaAddrs   byte // 0 means "3", per ISO/IEC 10589 §9.5
}

func decodeCommonHeader(buf *bytes.Buffer) (CommonHeader, error) {
	disc, err := readByte(buf)
	if err != nil {
		return CommonHeader{}, err
	}
	if disc != irpdDiscriminator {
		return CommonHeader{}, fmt.Errorf("isisproto: bad discriminator 0x%02x", disc)
	}
	if _, err := readByte(buf); err != nil { // header length indicator, not validated
		return CommonHeader{}, err
	}
	if _, err := readByte(buf); err != nil { // version/protocol ID extension, fixed at 1
		return CommonHeader{}, err
	}
	if _, err := readByte(buf); err != nil { // ID length, 0 means "6" (default), not validated
		return CommonHeader{}, err
	}
	typeAndReserved, err := readByte(buf)
	if err != nil {
		return CommonHeader{}, err
	}
	if _, err := readByte(buf); err != nil { // version, fixed at 1
		return CommonHeader{}, err
	}
	if _, err := readByte(buf); err != nil { // reserved
		return CommonHeader{}, err
	}
	maxArea, err := readByte(buf)
	if err != nil {
		return CommonHeader{}, err
	}
	return CommonHeader{Type: PDUType(typeAndReserved &^ 0x80), MaxAreaAddrs: maxArea}, nil
}

func encodeCommonHeader(h CommonHeader) []byte {
	buf := bytes.NewBuffer(nil)
	buf.WriteByte(irpdDiscriminator)
	buf.WriteByte(commonHeaderLength)
	buf.WriteByte(1) // version/protocol ID extension
	buf.WriteByte(0) // ID length: default (6)
	buf.WriteByte(byte(h.Type))
	buf.WriteByte(1) // version
	buf.WriteByte(0) // reserved
	buf.WriteByte(h.MaxAreaAddrs)
	return buf.Bytes()
}

// DecodePDU strips and validates the common header, returning the PDU
// type and the remainder (PDU-specific fixed fields + TLVs) for the
// type-specific decoder to continue parsing.
func DecodePDU(raw []byte) (PDUType, []byte, error) {
	buf := bytes.NewBuffer(raw)
	h, err := decodeCommonHeader(buf)
	if err != nil {
		return 0, nil, err
	}
	return h.Type, buf.Bytes(), nil
}

// IIH is a decoded Hello PDU, LAN or point-to-point (ISO/IEC 10589
// §9.6/9.7). CircuitType/P2P distinguish which fixed fields were present.
type IIH struct {
	P2P          bool
	CircuitType  byte // 1=L1, 2=L2, 3=L1L2
	Source       SystemID
	HoldTime     uint16
	LANPriority  byte    // LAN Hellos only
	DIS          [7]byte // LAN Hellos only: the current DIS's LAN ID
	TLVs         []TLV
}

func DecodeIIH(body []byte, p2p bool) (IIH, error) {
	buf := bytes.NewBuffer(body)
	circuitType, err := readByte(buf)
	if err != nil {
		return IIH{}, err
	}
	srcBytes, err := readBytes(buf, 6)
	if err != nil {
		return IIH{}, err
	}
	hold, err := readUint16(buf)
	if err != nil {
		return IIH{}, err
	}
	if _, err := readUint16(buf); err != nil { // PDU length, not validated (caller already framed it)
		return IIH{}, err
	}
	iih := IIH{P2P: p2p, CircuitType: circuitType, HoldTime: hold}
	copy(iih.Source[:], srcBytes)

	if p2p {
		if _, err := readByte(buf); err != nil { // local circuit ID
			return IIH{}, err
		}
	} else {
		priority, err := readByte(buf)
		if err != nil {
			return IIH{}, err
		}
		iih.LANPriority = priority & 0x7f
		disBytes, err := readBytes(buf, 7)
		if err != nil {
			return IIH{}, err
		}
		copy(iih.DIS[:], disBytes)
	}

	tlvs, err := decodeTLVs(buf.Bytes())
	if err != nil {
		return IIH{}, err
	}
	iih.TLVs = tlvs
	return iih, nil
}

func EncodeIIH(iih IIH) []byte {
	body := bytes.NewBuffer(nil)
	body.WriteByte(iih.CircuitType)
	body.Write(iih.Source[:])
	putUint16(body, iih.HoldTime)

	tlvBytes := encodeTLVs(iih.TLVs)
	pduType := PDUP2PHello
	if !iih.P2P {
		pduType = PDUL1LANHello
		if iih.CircuitType == 2 {
			pduType = PDUL2LANHello
		}
	}

	totalLen := commonHeaderLength + 1 + 6 + 2 + 2 + len(tlvBytes)
	if iih.P2P {
		totalLen++
	} else {
		totalLen += 1 + 7
	}
	putUint16(body, uint16(totalLen))

	if iih.P2P {
		body.WriteByte(0) // local circuit ID
	} else {
		body.WriteByte(iih.LANPriority)
		body.Write(iih.DIS[:])
	}
	body.Write(tlvBytes)

	out := encodeCommonHeader(CommonHeader{Type: pduType, MaxAreaAddrs: 0})
	out = append(out, body.Bytes()...)
	return out
}

// LSP is a decoded Link State PDU (ISO/IEC 10589 §9.9).
type LSP struct {
	Level             int
	RemainingLifetime uint16
	ID                LSPID
	Sequence          uint32
	Checksum          uint16
	PartitionRepair   bool
	AttachedBit       bool
	OverloadBit       bool
	TypeBits          byte // IS Type: 1=L1, 3=L1L2
	TLVs              []TLV
}

func DecodeLSP(body []byte, level int) (LSP, error) {
	buf := bytes.NewBuffer(body)
	if _, err := readUint16(buf); err != nil { // PDU length, not validated
		return LSP{}, err
	}
	lifetime, err := readUint16(buf)
	if err != nil {
		return LSP{}, err
	}
	idBytes, err := readBytes(buf, 8)
	if err != nil {
		return LSP{}, err
	}
	id, err := decodeLSPID(idBytes)
	if err != nil {
		return LSP{}, err
	}
	seq, err := readUint32(buf)
	if err != nil {
		return LSP{}, err
	}
	checksum, err := readUint16(buf)
	if err != nil {
		return LSP{}, err
	}
	flags, err := readByte(buf)
	if err != nil {
		return LSP{}, err
	}
	lsp := LSP{
		Level:             level,
		RemainingLifetime: lifetime,
		ID:                id,
		Sequence:          seq,
		Checksum:          checksum,
		PartitionRepair:   flags&0x80 != 0,
		AttachedBit:       flags&0x08 != 0,
		OverloadBit:       flags&0x04 != 0,
		TypeBits:          flags & 0x03,
	}
	tlvs, err := decodeTLVs(buf.Bytes())
	if err != nil {
		return LSP{}, err
	}
	lsp.TLVs = tlvs
	return lsp, nil
}

func EncodeLSP(lsp LSP) []byte {
	body := bytes.NewBuffer(nil)
	tlvBytes := encodeTLVs(lsp.TLVs)
	totalLen := commonHeaderLength + 2 + 2 + 8 + 4 + 2 + 1 + len(tlvBytes)
	putUint16(body, uint16(totalLen))
	putUint16(body, lsp.RemainingLifetime)
	body.Write(encodeLSPID(lsp.ID))
	putUint32(body, lsp.Sequence)
	putUint16(body, lsp.Checksum)
	flags := lsp.TypeBits & 0x03
	if lsp.PartitionRepair {
		flags |= 0x80
	}
	if lsp.AttachedBit {
		flags |= 0x08
	}
	if lsp.OverloadBit {
		flags |= 0x04
	}
	body.WriteByte(flags)
	body.Write(tlvBytes)

	pduType := PDUL1LSP
	if lsp.Level == 2 {
		pduType = PDUL2LSP
	}
	out := encodeCommonHeader(CommonHeader{Type: pduType, MaxAreaAddrs: 0})
	out = append(out, body.Bytes()...)
	return out
}

// SNP is the shared shape of CSNP and PSNP PDUs: a source ID, (for
// CSNP) a start/end LSP-ID range, and a set of LSP-Entries TLVs.
type SNP struct {
	Level   int
	PSNP    bool
	Source  SystemID
	RangeLo LSPID // CSNP only
	RangeHi LSPID // CSNP only
	Entries []LSPEntry
}

func DecodeSNP(body []byte, level int, psnp bool) (SNP, error) {
	buf := bytes.NewBuffer(body)
	if _, err := readUint16(buf); err != nil { // PDU length, not validated
		return SNP{}, err
	}
	srcBytes, err := readBytes(buf, 6)
	if err != nil {
		return SNP{}, err
	}
	snp := SNP{Level: level, PSNP: psnp}
	copy(snp.Source[:], srcBytes)

	if !psnp {
		loBytes, err := readBytes(buf, 8)
		if err != nil {
			return SNP{}, err
		}
		hiBytes, err := readBytes(buf, 8)
		if err != nil {
			return SNP{}, err
		}
		snp.RangeLo, err = decodeLSPID(loBytes)
		if err != nil {
			return SNP{}, err
		}
		snp.RangeHi, err = decodeLSPID(hiBytes)
		if err != nil {
			return SNP{}, err
		}
	}

	tlvs, err := decodeTLVs(buf.Bytes())
	if err != nil {
		return SNP{}, err
	}
	entries, err := DecodeLSPEntries(tlvs)
	if err != nil {
		return SNP{}, err
	}
	snp.Entries = entries
	return snp, nil
}

func EncodeSNP(snp SNP) []byte {
	body := bytes.NewBuffer(nil)
	tlvs := EncodeLSPEntries(snp.Entries)
	tlvBytes := encodeTLVs(tlvs)

	headerFields := 6
	if !snp.PSNP {
		headerFields += 16
	}
	totalLen := commonHeaderLength + 2 + headerFields + len(tlvBytes)
	putUint16(body, uint16(totalLen))
	body.Write(snp.Source[:])
	if !snp.PSNP {
		body.Write(encodeLSPID(snp.RangeLo))
		body.Write(encodeLSPID(snp.RangeHi))
	}
	body.Write(tlvBytes)

	var pduType PDUType
	switch {
	case snp.PSNP && snp.Level == 1:
		pduType = PDUL1PSNP
	case snp.PSNP && snp.Level == 2:
		pduType = PDUL2PSNP
	case !snp.PSNP && snp.Level == 1:
		pduType = PDUL1CSNP
	default:
		pduType = PDUL2CSNP
	}
	out := encodeCommonHeader(CommonHeader{Type: pduType, MaxAreaAddrs: 0})
	out = append(out, body.Bytes()...)
	return out
}
