package bgp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zebra-rs/zebra-rs/internal/bgpproto"
	"github.com/zebra-rs/zebra-rs/internal/timer"
)

// readMessage blocks until one full framed BGP message is available on
// conn, using bgpproto.SplitMessage to find the boundary once enough
// bytes have accumulated. It adapts the teacher's stream.Read
// "keep reading until you have enough bytes" loop, but against a
// length-prefixed protocol instead of a fixed count.
func readMessage(conn io.Reader, buf *bytes.Buffer) (bgpproto.Header, []byte, error) {
	hdr := make([]byte, bgpproto.HeaderLength)
	for buf.Len() < bgpproto.HeaderLength {
		chunk := make([]byte, 4096)
		n, err := conn.Read(chunk)
		if err != nil {
			return bgpproto.Header{}, nil, err
		}
		buf.Write(chunk[:n])
	}
	copy(hdr, buf.Bytes()[:bgpproto.HeaderLength])
	length := int(hdr[16])<<8 | int(hdr[17])
	for buf.Len() < length {
		chunk := make([]byte, 4096)
		n, err := conn.Read(chunk)
		if err != nil {
			return bgpproto.Header{}, nil, err
		}
		buf.Write(chunk[:n])
	}
	h, body, consumed, err := bgpproto.SplitMessage(buf.Bytes())
	if err != nil {
		return bgpproto.Header{}, nil, err
	}
	buf.Next(consumed)
	return h, body, nil
}

func (p *Peer) awaitOpen(ctx context.Context) error {
	p.conn.SetReadDeadline(time.Now().Add(largeHoldTime))
	buf := &bytes.Buffer{}
	hdr, body, err := readMessage(p.conn, buf)
	if err != nil {
		return fmt.Errorf("bgp: awaiting OPEN: %w", err)
	}
	if hdr.Type == bgpproto.TypeNotification {
		n, _ := bgpproto.DecodeNotification(body)
		return fmt.Errorf("bgp: peer sent NOTIFICATION: %s", n.Code)
	}
	if hdr.Type != bgpproto.TypeOpen {
		return fmt.Errorf("bgp: expected OPEN, got %s", hdr.Type)
	}
	open, err := bgpproto.DecodeOpen(body)
	if err != nil {
		return fmt.Errorf("bgp: malformed OPEN: %w", err)
	}
	if remoteHold := time.Duration(open.HoldTime) * time.Second; remoteHold < p.negotiatedHoldTime {
		p.negotiatedHoldTime = remoteHold
	}
	if cap4, ok := open.Capability(bgpproto.CapFourOctetAS); ok && len(cap4.Value) == 4 {
		p.fourOctetAS = true
		remoteAS := uint32(cap4.Value[0])<<24 | uint32(cap4.Value[1])<<16 | uint32(cap4.Value[2])<<8 | uint32(cap4.Value[3])
		if remoteAS != p.cfg.RemoteAS {
			return fmt.Errorf("bgp: peer AS %d does not match configured %d", remoteAS, p.cfg.RemoteAS)
		}
	}
	for _, c := range open.Capabilities {
		if c.Code == bgpproto.CapMultiprotocol {
			afi, safi, err := bgpproto.ParseMultiprotocol(c.Value)
			if err == nil {
				p.mpAFISAFI[afiSafi{afi, safi}] = true
			}
		}
	}
	p.identifier = open.Identifier

	raw := bgpproto.EncodeKeepalive()
	if _, err := p.conn.Write(raw); err != nil {
		return fmt.Errorf("bgp: send KEEPALIVE confirming OPEN: %w", err)
	}
	return nil
}

func (p *Peer) startSessionTimers() {
	keepaliveTime := p.negotiatedHoldTime / 3
	if p.negotiatedHoldTime == 0 {
		// HoldTime negotiated to zero disables both timers (RFC 4271 §4.2).
		return
	}
	p.holdTimer = timer.NewJittered(p.negotiatedHoldTime, 0, func() {})
	p.keepaliveTimer = timer.NewPeriodic(keepaliveTime, func() {
		if p.conn != nil {
			p.conn.Write(bgpproto.EncodeKeepalive())
		}
	})
}

func (p *Peer) awaitKeepalive(ctx context.Context) error {
	p.conn.SetReadDeadline(time.Now().Add(p.negotiatedHoldTime))
	buf := &bytes.Buffer{}
	hdr, body, err := readMessage(p.conn, buf)
	if err != nil {
		return fmt.Errorf("bgp: awaiting KEEPALIVE: %w", err)
	}
	if hdr.Type == bgpproto.TypeNotification {
		n, _ := bgpproto.DecodeNotification(body)
		return fmt.Errorf("bgp: peer sent NOTIFICATION in OpenConfirm: %s", n.Code)
	}
	if hdr.Type != bgpproto.TypeKeepalive {
		return fmt.Errorf("bgp: expected KEEPALIVE confirming OPEN, got %s", hdr.Type)
	}
	return nil
}

// serve is the Established-state read loop: every inbound UPDATE feeds
// the Adj-RIB-In and triggers a LocRIB recompute; KEEPALIVE resets the
// hold timer; NOTIFICATION or a read error tears the session down.
func (p *Peer) serve(ctx context.Context) error {
	buf := &bytes.Buffer{}
	errCh := make(chan error, 1)
	msgCh := make(chan struct {
		hdr  bgpproto.Header
		body []byte
	}, 16)

	go func() {
		for {
			p.conn.SetReadDeadline(time.Now().Add(p.negotiatedHoldTime))
			hdr, body, err := readMessage(p.conn, buf)
			if err != nil {
				errCh <- err
				return
			}
			msgCh <- struct {
				hdr  bgpproto.Header
				body []byte
			}{hdr, body}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case m := <-msgCh:
			switch m.hdr.Type {
			case bgpproto.TypeKeepalive:
				// hold timer touched implicitly by the next read deadline reset
			case bgpproto.TypeUpdate:
				upd, err := bgpproto.DecodeUpdate(m.body)
				if err != nil {
					return fmt.Errorf("bgp: malformed UPDATE: %w", err)
				}
				p.handleUpdate(upd)
			case bgpproto.TypeNotification:
				n, _ := bgpproto.DecodeNotification(m.body)
				return fmt.Errorf("bgp: peer sent NOTIFICATION: %s", n.Code)
			case bgpproto.TypeRouteRefresh:
				rr, err := bgpproto.DecodeRouteRefresh(m.body)
				if err == nil {
					p.handleRouteRefresh(rr)
				}
			}
		}
	}
}
