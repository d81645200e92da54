// Package session runs the peer-to-peer ICMPong session: the Ping/Ready
// handshake, host resolution and the dispatch loop feeding inbound frames
// into the shared game state.
package session

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/rand"

	"icmpong/internal/journal"
	"icmpong/internal/logging"
	"icmpong/internal/metrics"
	"icmpong/internal/netwrk"
	"icmpong/internal/protocol"
)

var (
	// ErrHandshakeTimeout is returned when the peer did not answer in time.
	ErrHandshakeTimeout = errors.New("timed out waiting for the other player")

	// ErrStopped is returned when the session ended before it was established.
	ErrStopped = errors.New("session stopped")
)

// Config holds the per-session settings.
type Config struct {
	// Peer is the other player's IPv6 address.
	Peer netip.Addr

	// LocalAddr is our own address, used only to break session id ties.
	LocalAddr netip.Addr

	// Name is sent to the peer in Ready frames.
	Name string

	// SessionID overrides the random session id when non-zero.
	SessionID uint32

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Journal *journal.Writer
}

// Session is one side of a game.
type Session struct {
	id        uint32
	peer      netip.Addr
	local     netip.Addr
	name      string
	transport netwrk.Transport
	logger    *slog.Logger
	metrics   *metrics.Metrics
	journal   *journal.Writer

	mu       sync.Mutex
	state    State
	pingedAt time.Time
	left     bool
	peerLeft bool

	established     chan struct{}
	establishedOnce sync.Once

	done   chan struct{}
	runErr error
}

// New creates a session over t. Nothing is sent until Ping.
func New(t netwrk.Transport, cfg Config) *Session {
	id := cfg.SessionID
	if id == 0 {
		id = NewRand().Uint32()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.With(
		slog.String(logging.KeyComponent, "session"),
		slog.Uint64(logging.KeySessionID, uint64(id)),
		slog.String(logging.KeyPeer, cfg.Peer.String()))

	m := cfg.Metrics
	if m == nil {
		m = metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	}

	return &Session{
		id:          id,
		peer:        cfg.Peer,
		local:       cfg.LocalAddr,
		name:        cfg.Name,
		transport:   t,
		logger:      logger,
		metrics:     m,
		journal:     cfg.Journal,
		state:       newState(),
		established: make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// NewRand returns a generator seeded from the operating system. Two
// processes started together must not draw the same session id.
func NewRand() *rand.Rand {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[:], uint64(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(binary.LittleEndian.Uint64(seed[:])))
}

// ID returns the local session id.
func (s *Session) ID() uint32 { return s.id }

// Peer returns the peer address.
func (s *Session) Peer() netip.Addr { return s.peer }

// Name returns the local display name.
func (s *Session) Name() string { return s.name }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Metrics returns the metrics the session records to.
func (s *Session) Metrics() *metrics.Metrics { return s.metrics }

// Snapshot returns a copy of the shared state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Update runs fn with the state locked. fn must not block.
func (s *Session) Update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Stopped reports whether the session was told to stop.
func (s *Session) Stopped() bool {
	return s.Snapshot().Stop
}

// Stop flags both loops to finish.
func (s *Session) Stop() {
	s.Update(func(st *State) { st.Stop = true })
}

// Leave stops the session and sends Disconnect to the peer, unless the peer
// disconnected first or Leave already ran. Stop is set before the send so
// the peer's acknowledgment is not answered.
func (s *Session) Leave() error {
	s.mu.Lock()
	notify := !s.left && !s.peerLeft
	s.left = true
	s.state.Stop = true
	s.mu.Unlock()

	if !notify {
		return nil
	}
	s.logger.Info("leaving session")
	return s.Send(protocol.Disconnect{})
}

// Send encodes msg and writes it to the peer.
func (s *Session) Send(msg protocol.Message) error {
	frame := protocol.NewFrame(s.id, msg)
	buf := frame.Encode()

	if err := s.transport.Send(s.peer, buf); err != nil {
		s.metrics.RecordSendError()
		s.logger.Error("send failed",
			slog.String(logging.KeyFrameType, frame.Type.String()),
			slog.Any(logging.KeyError, err))
		return err
	}

	s.metrics.RecordFrameSent(frame.Type.String())
	s.record(journal.Sent, buf)
	s.logger.Debug("frame sent", slog.String(logging.KeyFrameType, frame.Type.String()))
	return nil
}

// Ping opens the handshake.
func (s *Session) Ping() error {
	s.mu.Lock()
	if s.pingedAt.IsZero() {
		s.pingedAt = time.Now()
	}
	s.mu.Unlock()

	return s.Send(protocol.Ping{})
}

// WaitEstablished blocks until the handshake completed, the dispatch loop
// ended, ctx is done or timeout elapsed. A zero timeout waits without bound.
func (s *Session) WaitEstablished(ctx context.Context, timeout time.Duration) (State, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case <-s.established:
		return s.Snapshot(), nil
	case <-s.done:
		select {
		case <-s.established:
			return s.Snapshot(), nil
		default:
		}
		if err := s.Err(); err != nil {
			return State{}, err
		}
		return State{}, ErrStopped
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return State{}, ErrHandshakeTimeout
		}
		return State{}, ctx.Err()
	}
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error Run finished with, once Done is closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Close stops the session and closes the transport, which unblocks Run.
func (s *Session) Close() error {
	s.Stop()
	return s.transport.Close()
}

func (s *Session) establish(peerID uint32, name string) bool {
	s.mu.Lock()
	if s.state.Established {
		s.mu.Unlock()
		return false
	}
	s.state.Established = true
	s.state.PeerSessionID = peerID
	s.state.PeerName = name
	s.state.Role = Resolve(Identity{SessionID: s.id, Addr: s.local}, Identity{SessionID: peerID, Addr: s.peer})
	role := s.state.Role
	pingedAt := s.pingedAt
	s.mu.Unlock()

	s.establishedOnce.Do(func() { close(s.established) })

	var took time.Duration
	if !pingedAt.IsZero() {
		took = time.Since(pingedAt)
		s.metrics.RecordHandshake(took.Seconds())
	}
	s.logger.Info("session established",
		slog.Uint64(logging.KeyPeerID, uint64(peerID)),
		slog.Duration(logging.KeyDuration, took),
		slog.String("peer_name", name),
		slog.String("role", role.String()))
	return true
}

func (s *Session) record(dir journal.Direction, frame []byte) {
	if s.journal == nil {
		return
	}
	err := s.journal.Append(journal.Record{
		Time:      time.Now(),
		Direction: dir,
		Peer:      s.peer,
		Frame:     frame,
	})
	if err != nil {
		s.logger.Warn("journal append failed", slog.Any(logging.KeyError, err))
	}
}
