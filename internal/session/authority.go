package session

import (
	"net/netip"

	"icmpong/internal/pong"
)

// Role is the authority a session holds over the shared game.
type Role uint8

const (
	// Guest integrates the ball and accepts the host's corrections.
	Guest Role = iota
	// Host owns collisions, scoring and round resets.
	Host
)

func (r Role) String() string {
	if r == Host {
		return "host"
	}
	return "guest"
}

// Side returns the paddle a role plays. The host is always on the left.
func (r Role) Side() pong.Side {
	if r == Host {
		return pong.Left
	}
	return pong.Right
}

// Identity is what each side knows about a participant once the handshake
// is done.
type Identity struct {
	SessionID uint32
	Addr      netip.Addr
}

// Resolve decides the local role. The larger session id hosts; equal ids
// fall back to comparing addresses so exactly one side hosts.
func Resolve(local, peer Identity) Role {
	switch {
	case local.SessionID > peer.SessionID:
		return Host
	case local.SessionID < peer.SessionID:
		return Guest
	}
	if local.Addr.Compare(peer.Addr) > 0 {
		return Host
	}
	return Guest
}
