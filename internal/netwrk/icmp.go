package netwrk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"

	"icmpong/internal/logging"
)

// ProtocolICMPv6 is the IANA protocol number for ICMPv6.
const ProtocolICMPv6 = 58

// echoFieldsLen is the identifier and sequence number at the start of an
// echo body. A frame is laid over these fields so the peer reads the magic
// marker right after the ICMPv6 checksum.
const echoFieldsLen = 4

const maxPacketSize = 1500

// ICMPTransport is a raw ICMPv6 socket. It needs CAP_NET_RAW or root.
type ICMPTransport struct {
	conn   *icmp.PacketConn
	logger *slog.Logger
}

// Listen opens a raw ICMPv6 socket bound to bind ("::" for all addresses).
// The kernel filter is narrowed to echo requests and replies where the
// platform supports it.
func Listen(bind string, logger *slog.Logger) (*ICMPTransport, error) {
	conn, err := icmp.ListenPacket("ip6:ipv6-icmp", bind)
	if err != nil {
		return nil, fmt.Errorf("unable to create IPv6 socket: %w", err)
	}

	logger = logger.With(slog.String(logging.KeyComponent, "netwrk"))

	var filter ipv6.ICMPFilter
	filter.SetAll(true)
	filter.Accept(ipv6.ICMPTypeEchoRequest)
	filter.Accept(ipv6.ICMPTypeEchoReply)
	if pc := conn.IPv6PacketConn(); pc != nil {
		if err := pc.SetICMPFilter(&filter); err != nil {
			logger.Debug("ICMPv6 filter not applied", slog.Any(logging.KeyError, err))
		}
	}

	logger.Debug("ICMPv6 socket open", slog.String("bind", bind))
	return &ICMPTransport{conn: conn, logger: logger}, nil
}

// Send writes frame as the body of one echo request.
func (t *ICMPTransport) Send(peer netip.Addr, frame []byte) error {
	b, err := marshalEcho(frame)
	if err != nil {
		return &SendError{Peer: peer, Err: err}
	}

	dst := &net.IPAddr{IP: net.IP(peer.AsSlice()), Zone: peer.Zone()}
	if _, err := t.conn.WriteTo(b, dst); err != nil {
		return &SendError{Peer: peer, Err: err}
	}
	return nil
}

// Receive blocks until the next ICMPv6 message arrives.
func (t *ICMPTransport) Receive() (Packet, error) {
	buf := make([]byte, maxPacketSize)
	n, addr, err := t.conn.ReadFrom(buf)
	if err != nil {
		return Packet{}, &ReceiveError{Err: err}
	}

	return Packet{
		Source:  addrFromNet(addr),
		Payload: echoPayload(buf[:n]),
	}, nil
}

// Close closes the socket.
func (t *ICMPTransport) Close() error {
	return t.conn.Close()
}

func marshalEcho(frame []byte) ([]byte, error) {
	if len(frame) < echoFieldsLen {
		return nil, errors.New("frame shorter than echo header fields")
	}

	msg := icmp.Message{
		Type: ipv6.ICMPTypeEchoRequest,
		Code: 0,
		Body: &icmp.Echo{
			ID:   int(binary.BigEndian.Uint16(frame[0:2])),
			Seq:  int(binary.BigEndian.Uint16(frame[2:4])),
			Data: frame[echoFieldsLen:],
		},
	}

	// A nil pseudo header leaves the checksum to the kernel, which always
	// computes it for ICMPv6 raw sockets.
	return msg.Marshal(nil)
}

// echoPayload returns the message bytes that follow the ICMPv6 checksum.
func echoPayload(b []byte) []byte {
	msg, err := icmp.ParseMessage(ProtocolICMPv6, b)
	if err == nil {
		if echo, ok := msg.Body.(*icmp.Echo); ok {
			out := make([]byte, echoFieldsLen+len(echo.Data))
			binary.BigEndian.PutUint16(out[0:2], uint16(echo.ID))
			binary.BigEndian.PutUint16(out[2:4], uint16(echo.Seq))
			copy(out[echoFieldsLen:], echo.Data)
			return out
		}
	}

	if len(b) < 4 {
		return nil
	}
	return append([]byte(nil), b[4:]...)
}
