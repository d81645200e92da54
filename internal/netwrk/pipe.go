package netwrk

import (
	"net"
	"net/netip"
	"sync"
)

const pipeBacklog = 1024

// PipeEnd is one side of an in-memory transport pair. It behaves like a raw
// socket: sends to unknown addresses vanish, a full receive queue drops, and
// with reflection enabled every send is also seen by the sender as an echo
// reply from the peer.
type PipeEnd struct {
	local   netip.Addr
	remote  *PipeEnd
	reflect bool

	inbox  chan Packet
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	sent [][]byte
}

// Pipe connects two in-memory transports addressed a and b.
func Pipe(a, b netip.Addr, reflect bool) (*PipeEnd, *PipeEnd) {
	ea := newPipeEnd(a, reflect)
	eb := newPipeEnd(b, reflect)
	ea.remote, eb.remote = eb, ea
	return ea, eb
}

func newPipeEnd(addr netip.Addr, reflect bool) *PipeEnd {
	return &PipeEnd{
		local:   addr,
		reflect: reflect,
		inbox:   make(chan Packet, pipeBacklog),
		closed:  make(chan struct{}),
	}
}

// Addr returns the address of this end.
func (p *PipeEnd) Addr() netip.Addr { return p.local }

// Send delivers frame to the other end when peer is its address.
func (p *PipeEnd) Send(peer netip.Addr, frame []byte) error {
	select {
	case <-p.closed:
		return &SendError{Peer: peer, Err: net.ErrClosed}
	default:
	}

	b := append([]byte(nil), frame...)
	p.mu.Lock()
	p.sent = append(p.sent, b)
	p.mu.Unlock()

	if !SameHost(peer, p.remote.local) {
		return nil
	}
	p.remote.Inject(Packet{Source: p.local, Payload: b})
	if p.reflect {
		p.Inject(Packet{Source: p.remote.local, Payload: b})
	}
	return nil
}

// Receive blocks until a packet is queued or the end is closed.
func (p *PipeEnd) Receive() (Packet, error) {
	select {
	case pkt := <-p.inbox:
		return pkt, nil
	case <-p.closed:
		return Packet{}, &ReceiveError{Err: net.ErrClosed}
	}
}

// Inject queues pkt as if it had arrived from the network.
func (p *PipeEnd) Inject(pkt Packet) {
	select {
	case <-p.closed:
	case p.inbox <- pkt:
	default:
	}
}

// Sent returns a copy of every frame written through this end.
func (p *PipeEnd) Sent() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([][]byte, len(p.sent))
	copy(out, p.sent)
	return out
}

// Close stops the end. Pending and future receives fail.
func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
