package session

import "icmpong/internal/pong"

// State is the game state shared by the dispatch loop and the game loop.
// It is always read and written as a whole under the session lock.
type State struct {
	Established   bool
	PeerSessionID uint32
	PeerName      string
	Role          Role

	// LocalReady and PeerReady record who pressed start.
	LocalReady bool
	PeerReady  bool

	Stop bool

	Score   pong.Score
	Ball    pong.Object
	Paddles [2]pong.Object
}

func newState() State {
	return State{
		Ball:    pong.NewBall(),
		Paddles: [2]pong.Object{pong.NewPaddle(pong.Left), pong.NewPaddle(pong.Right)},
	}
}

// Local is the side the local player controls.
func (s State) Local() pong.Side { return s.Role.Side() }

// Remote is the side the peer controls.
func (s State) Remote() pong.Side { return s.Role.Side().Other() }

// Started reports whether both players pressed start.
func (s State) Started() bool { return s.LocalReady && s.PeerReady }
