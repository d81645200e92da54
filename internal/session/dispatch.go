package session

import (
	"fmt"
	"log/slog"

	"icmpong/internal/journal"
	"icmpong/internal/logging"
	"icmpong/internal/metrics"
	"icmpong/internal/netwrk"
	"icmpong/internal/protocol"
)

// Run is the dispatch loop. It receives packets until the peer disconnects,
// a fatal error occurs or the transport is closed after Stop. It must be
// called once.
func (s *Session) Run() (err error) {
	defer func() {
		s.mu.Lock()
		s.runErr = err
		s.state.Stop = true
		s.mu.Unlock()
		close(s.done)
	}()

	for {
		pkt, err := s.transport.Receive()
		if err != nil {
			if s.Stopped() {
				return nil
			}
			s.logger.Error("receive failed", slog.Any(logging.KeyError, err))
			return err
		}

		done, err := s.handle(pkt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// handle processes one packet and reports whether the session is over.
func (s *Session) handle(pkt netwrk.Packet) (bool, error) {
	if !netwrk.SameHost(pkt.Source, s.peer) {
		s.discard(metrics.ReasonWrongSource)
		return false, nil
	}

	frame, err := protocol.Decode(pkt.Payload)
	if err != nil {
		if !protocol.IsFatal(err) {
			s.discard(metrics.ReasonNotICMPong)
			return false, nil
		}
		s.logger.Error("invalid frame from peer", slog.Any(logging.KeyError, err))
		return false, fmt.Errorf("frame from %s: %w", pkt.Source, err)
	}

	if frame.SessionID == s.id {
		s.discard(metrics.ReasonSelfEcho)
		return false, nil
	}

	msg, err := frame.Message()
	if err != nil {
		s.logger.Error("invalid payload from peer",
			slog.String(logging.KeyFrameType, frame.Type.String()),
			slog.Any(logging.KeyError, err))
		return false, fmt.Errorf("frame from %s: %w", pkt.Source, err)
	}

	s.metrics.RecordFrameReceived(frame.Type.String())
	s.record(journal.Received, pkt.Payload)
	s.logger.Debug("frame received", slog.String(logging.KeyFrameType, frame.Type.String()))

	switch m := msg.(type) {
	case protocol.Disconnect:
		s.disconnect()
		return true, nil
	case protocol.Ping:
		return false, s.Send(protocol.Ready{Name: s.name})
	case protocol.Ready:
		if !s.establish(frame.SessionID, m.Name) {
			s.discard(metrics.ReasonDuplicate)
			return false, nil
		}
		return false, s.Send(protocol.Ready{Name: s.name})
	case protocol.Start:
		s.apply(func(st *State) { st.PeerReady = true })
	case protocol.PaddlePosition:
		s.apply(func(st *State) {
			p := &st.Paddles[st.Remote()]
			p.X, p.Y = int(m.X), int(m.Y)
		})
	case protocol.BallUpdate:
		s.apply(func(st *State) {
			b := &st.Ball
			b.X, b.Y = int(m.X), int(m.Y)
			b.VX, b.VY = m.VX, m.VY
			b.XF, b.YF = m.XF, m.YF
		})
	case protocol.ScoreUpdate:
		s.apply(func(st *State) { st.Score = [2]uint32{m.Left, m.Right} })
	}
	return false, nil
}

// apply runs fn when the session is established and counts the frame as
// early otherwise.
func (s *Session) apply(fn func(*State)) {
	applied := false
	s.Update(func(st *State) {
		if !st.Established {
			return
		}
		fn(st)
		applied = true
	})
	if !applied {
		s.discard(metrics.ReasonEarly)
	}
}

// disconnect stops the session and acknowledges the peer's Disconnect,
// unless we were the side that asked to leave.
func (s *Session) disconnect() {
	s.mu.Lock()
	wasStopped := s.state.Stop
	s.state.Stop = true
	s.peerLeft = true
	s.mu.Unlock()
	s.logger.Info("peer disconnected")

	if wasStopped {
		return
	}
	if err := s.Send(protocol.Disconnect{}); err != nil {
		s.logger.Warn("disconnect acknowledgment failed", slog.Any(logging.KeyError, err))
	}
}

func (s *Session) discard(reason string) {
	s.metrics.RecordDiscard(reason)
	s.logger.Debug("frame discarded", slog.String(logging.KeyReason, reason))
}
