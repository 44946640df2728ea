package bgpproto

import (
	"bytes"
	"fmt"
)

const Version = 4

// CapabilityCode identifies an optional-parameter capability TLV carried
// inside an OPEN message's optional parameters (RFC 5492, plus the
// pre-standard route-refresh code legacy peers still send).
type CapabilityCode byte

const (
	CapMultiprotocol      CapabilityCode = 1
	CapRouteRefresh       CapabilityCode = 2
	CapGracefulRestart    CapabilityCode = 64
	CapFourOctetAS        CapabilityCode = 65
	CapAddPath            CapabilityCode = 69
	CapRouteRefreshCisco  CapabilityCode = 128 // pre-standard code some legacy peers still send
)

const optionalParamCapability = 2 // RFC 3392 parameter type for "Capabilities"

// Capability is one decoded optional-parameter capability.
type Capability struct {
	Code  CapabilityCode
	Value []byte
}

// MultiprotocolValue encodes a CapMultiprotocol value: AFI(2)/reserved(1)/SAFI(1).
func MultiprotocolValue(afi uint16, safi byte) []byte {
	buf := bytes.NewBuffer(nil)
	putUint16(buf, afi)
	buf.WriteByte(0)
	buf.WriteByte(safi)
	return buf.Bytes()
}

func ParseMultiprotocol(v []byte) (afi uint16, safi byte, err error) {
	if len(v) != 4 {
		return 0, 0, fmt.Errorf("bgpproto: bad multiprotocol capability length %d", len(v))
	}
	return uint16(v[0])<<8 | uint16(v[1]), v[3], nil
}

// Open is a decoded OPEN message (RFC 4271 §4.2).
type Open struct {
	Version       byte
	MyAS          uint16 // low 16 bits of the AS; Capabilities carries the full 4-octet AS when CapFourOctetAS is present
	HoldTime      uint16
	Identifier    uint32
	Capabilities  []Capability
}

// HasCapability reports whether code is present among o.Capabilities.
func (o Open) HasCapability(code CapabilityCode) bool {
	for _, c := range o.Capabilities {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Capability returns the first capability matching code, if any.
func (o Open) Capability(code CapabilityCode) (Capability, bool) {
	for _, c := range o.Capabilities {
		if c.Code == code {
			return c, true
		}
	}
	return Capability{}, false
}

// DecodeOpen parses an OPEN message body (the Header has already been
// stripped by SplitMessage).
func DecodeOpen(body []byte) (Open, error) {
	buf := bytes.NewBuffer(body)
	version, err := readByte(buf)
	if err != nil {
		return Open{}, err
	}
	myAS, err := readUint16(buf)
	if err != nil {
		return Open{}, err
	}
	holdTime, err := readUint16(buf)
	if err != nil {
		return Open{}, err
	}
	id, err := readUint32(buf)
	if err != nil {
		return Open{}, err
	}
	optLen, err := readByte(buf)
	if err != nil {
		return Open{}, err
	}
	opts, err := readBytes(buf, int(optLen))
	if err != nil {
		return Open{}, err
	}
	caps, err := decodeCapabilities(opts)
	if err != nil {
		return Open{}, err
	}
	return Open{Version: version, MyAS: myAS, HoldTime: holdTime, Identifier: id, Capabilities: caps}, nil
}

func decodeCapabilities(opts []byte) ([]Capability, error) {
	buf := bytes.NewBuffer(opts)
	var caps []Capability
	for buf.Len() > 0 {
		parmType, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		parmLen, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		parmValue, err := readBytes(buf, int(parmLen))
		if err != nil {
			return nil, err
		}
		if parmType != optionalParamCapability {
			continue // unrecognized optional parameter type; ignore rather than reject
		}
		cbuf := bytes.NewBuffer(parmValue)
		for cbuf.Len() > 0 {
			code, err := readByte(cbuf)
			if err != nil {
				return nil, err
			}
			length, err := readByte(cbuf)
			if err != nil {
				return nil, err
			}
			value, err := readBytes(cbuf, int(length))
			if err != nil {
				return nil, err
			}
			caps = append(caps, Capability{Code: CapabilityCode(code), Value: value})
		}
	}
	return caps, nil
}

// EncodeOpen serializes o into a framed OPEN message.
func EncodeOpen(o Open) ([]byte, error) {
	body := bytes.NewBuffer(nil)
	body.WriteByte(Version)
	putUint16(body, o.MyAS)
	putUint16(body, o.HoldTime)
	putUint32(body, o.Identifier)

	capBuf := bytes.NewBuffer(nil)
	for _, c := range o.Capabilities {
		if len(c.Value) > 255 {
			return nil, fmt.Errorf("bgpproto: capability %d value too long", c.Code)
		}
		capBuf.WriteByte(byte(c.Code))
		capBuf.WriteByte(byte(len(c.Value)))
		capBuf.Write(c.Value)
	}
	if capBuf.Len() > 253 { // parameter header (type+len) costs 2 more octets
		return nil, fmt.Errorf("bgpproto: capabilities too long to fit one optional parameter")
	}
	opts := bytes.NewBuffer(nil)
	if capBuf.Len() > 0 {
		opts.WriteByte(optionalParamCapability)
		opts.WriteByte(byte(capBuf.Len()))
		opts.Write(capBuf.Bytes())
	}
	body.WriteByte(byte(opts.Len()))
	body.Write(opts.Bytes())

	return frame(TypeOpen, body.Bytes()), nil
}

// EncodeKeepalive returns a framed, bodyless KEEPALIVE message.
func EncodeKeepalive() []byte { return frame(TypeKeepalive, nil) }
