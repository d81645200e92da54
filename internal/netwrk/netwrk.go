// Package netwrk carries ICMPong frames over ICMPv6 echo messages.
//
// A Transport does no filtering by address or session: raw ICMPv6 capture
// sees every echo on the interface, including the kernel's replies to our own
// requests. Callers decide what to keep.
package netwrk

import (
	"fmt"
	"net"
	"net/netip"
)

// Packet is one inbound ICMPv6 message.
type Packet struct {
	// Source is the address the message came from.
	Source netip.Addr

	// Payload is everything after the ICMPv6 type, code and checksum fields.
	// For echo messages this starts with the identifier and sequence number.
	Payload []byte
}

// Transport sends and receives raw ICMPong frames.
type Transport interface {
	// Send writes one encoded frame to peer as an echo request.
	Send(peer netip.Addr, frame []byte) error

	// Receive blocks until the next inbound ICMPv6 message.
	Receive() (Packet, error)

	// Close releases the socket and unblocks a pending Receive.
	Close() error
}

// SendError reports a socket-layer failure while sending.
type SendError struct {
	Peer netip.Addr
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Peer, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError reports a socket-layer failure while receiving.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("receive: %v", e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// ParsePeer parses an IPv6 peer address. Zones are kept for link-local
// peers; IPv4 and IPv4-mapped addresses are rejected.
func ParsePeer(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("unable to parse IPv6 address: %w", err)
	}
	if !addr.Is6() || addr.Is4In6() {
		return netip.Addr{}, fmt.Errorf("unable to parse IPv6 address: %s is not an IPv6 address", s)
	}
	return addr, nil
}

// SameHost reports whether two addresses name the same host, ignoring zones.
func SameHost(a, b netip.Addr) bool {
	return a.WithZone("").Unmap() == b.WithZone("").Unmap()
}

// LocalAddrFor returns the source address the kernel would use to reach
// peer. No packet is sent.
func LocalAddrFor(peer netip.Addr) (netip.Addr, error) {
	conn, err := net.DialUDP("udp6", nil, net.UDPAddrFromAddrPort(netip.AddrPortFrom(peer, 9)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolve local address: %w", err)
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).AddrPort().Addr(), nil
}

func addrFromNet(a net.Addr) netip.Addr {
	var (
		ip   net.IP
		zone string
	)
	switch addr := a.(type) {
	case *net.IPAddr:
		ip, zone = addr.IP, addr.Zone
	case *net.UDPAddr:
		ip, zone = addr.IP, addr.Zone
	default:
		return netip.Addr{}
	}
	out, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return out.WithZone(zone)
}
