// Package client runs the presentation side of a session: the fixed-tick
// loop that reads keys, advances the ball and redraws the field.
package client

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/exp/rand"

	"icmpong/internal/logging"
	"icmpong/internal/pong"
	"icmpong/internal/protocol"
	"icmpong/internal/renderer"
	"icmpong/internal/session"
)

// Config holds the game loop settings.
type Config struct {
	// Tick bounds each input poll.
	Tick time.Duration

	// RedrawEvery redraws on every n-th tick.
	RedrawEvery int

	// BallVelocity is the serve speed in cells per tick.
	BallVelocity float32

	// DisconnectGrace is how long to wait for the peer's Disconnect
	// acknowledgment before closing the transport.
	DisconnectGrace time.Duration

	// Rand drives the serve. Nil seeds a new generator.
	Rand *rand.Rand
}

// DefaultConfig returns the standard game settings.
func DefaultConfig() Config {
	return Config{
		Tick:            15 * time.Millisecond,
		RedrawEvery:     2,
		BallVelocity:    0.6,
		DisconnectGrace: 500 * time.Millisecond,
	}
}

// Game is the game loop of one established session.
type Game struct {
	sess   *session.Session
	input  Input
	out    io.Writer
	cfg    Config
	engine *pong.Engine
	field  *renderer.Field
	logger *slog.Logger

	ticks   int
	started bool
}

// NewGame prepares a game loop. sess must be established.
func NewGame(sess *session.Session, input Input, out io.Writer, cfg Config) *Game {
	if cfg.RedrawEvery < 1 {
		cfg.RedrawEvery = 1
	}
	rng := cfg.Rand
	if rng == nil {
		rng = session.NewRand()
	}
	st := sess.Snapshot()

	return &Game{
		sess:   sess,
		input:  input,
		out:    out,
		cfg:    cfg,
		engine: pong.NewEngine(st.Role == session.Host, cfg.BallVelocity, rng),
		field:  renderer.NewField(),
		logger: sess.Logger().With(slog.String(logging.KeyComponent, "game")),
	}
}

// Play runs the game loop over an established session and shuts the
// session down afterwards. However the loop ended, the peer is sent a
// Disconnect unless it left first. It returns the first fatal error of
// either loop.
func Play(sess *session.Session, input Input, out io.Writer, cfg Config) error {
	err := NewGame(sess, input, out, cfg).Run()

	if lerr := sess.Leave(); lerr != nil {
		sess.Logger().Warn("disconnect failed", slog.Any(logging.KeyError, lerr))
	}
	select {
	case <-sess.Done():
	case <-time.After(cfg.DisconnectGrace):
	}
	sess.Close()
	<-sess.Done()

	if err != nil {
		return err
	}
	return sess.Err()
}

// Run loops until the local player quits or the session stops.
func (g *Game) Run() error {
	for {
		g.ticks++

		if g.sess.Stopped() {
			return nil
		}

		if action, ok := g.input.Poll(g.cfg.Tick); ok {
			quit, err := g.handleInput(action)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}

		if err := g.advance(); err != nil {
			return err
		}

		if g.ticks%g.cfg.RedrawEvery == 0 {
			g.draw()
		}
	}
}

// handleInput applies one key and reports whether the player quit.
func (g *Game) handleInput(action renderer.UiAction) (bool, error) {
	switch action {
	case renderer.Quit:
		if err := g.sess.Leave(); err != nil {
			g.logger.Warn("disconnect failed", slog.Any(logging.KeyError, err))
		}
		return true, nil

	case renderer.Start:
		if g.sess.Snapshot().Started() {
			return false, nil
		}
		g.sess.Update(func(st *session.State) { st.LocalReady = true })
		return false, g.sess.Send(protocol.Start{})
	}

	dir, ok := action.Direction()
	if !ok {
		return false, nil
	}

	var (
		moved  bool
		paddle pong.Object
	)
	g.sess.Update(func(st *session.State) {
		if !st.LocalReady {
			return
		}
		p := &st.Paddles[st.Local()]
		moved = pong.MovePaddle(p, dir)
		paddle = *p
	})
	if !moved {
		return false, nil
	}
	return false, g.sess.Send(protocol.PaddlePosition{X: uint16(paddle.X), Y: uint16(paddle.Y)})
}

// advance runs one simulation step once both players are ready.
func (g *Game) advance() error {
	if !g.started {
		if !g.sess.Snapshot().Started() {
			return nil
		}
		g.started = true
		g.logger.Info("game started", slog.Bool("host", g.engine.Host()))
		if !g.engine.Host() {
			return nil
		}
		var ball pong.Object
		g.sess.Update(func(st *session.State) {
			g.engine.Serve(&st.Ball)
			ball = st.Ball
		})
		return g.sess.Send(ballUpdate(ball))
	}

	var (
		r     pong.Result
		ball  pong.Object
		score pong.Score
	)
	g.sess.Update(func(st *session.State) {
		r = g.engine.Step(&st.Ball, st.Paddles[pong.Left], st.Paddles[pong.Right])
		if r.RoundOver {
			g.engine.EndRound(&st.Ball, &st.Score, r.Winner)
		}
		ball, score = st.Ball, st.Score
	})

	if r.RoundOver {
		g.sess.Metrics().RecordRound(r.Winner.String())
		g.logger.Info("round over",
			slog.String("winner", r.Winner.String()),
			slog.Any("score", score))
		if err := g.sess.Send(protocol.ScoreUpdate{Left: score[pong.Left], Right: score[pong.Right]}); err != nil {
			return err
		}
		return g.sess.Send(ballUpdate(ball))
	}
	if r.Sync {
		return g.sess.Send(ballUpdate(ball))
	}
	return nil
}

func (g *Game) draw() {
	st := g.sess.Snapshot()

	var names [2]string
	names[st.Local()] = g.sess.Name()
	names[st.Remote()] = st.PeerName

	renderer.Compose(g.field, renderer.View{
		Names:      names,
		Score:      st.Score,
		Ball:       st.Ball,
		Paddles:    st.Paddles,
		LocalReady: st.LocalReady,
		PeerReady:  st.PeerReady,
	})
	if err := renderer.Render(g.out, g.field); err != nil {
		g.logger.Warn("redraw failed", slog.Any(logging.KeyError, err))
	}
}

func ballUpdate(b pong.Object) protocol.BallUpdate {
	return protocol.BallUpdate{
		X:  uint16(b.X),
		Y:  uint16(b.Y),
		VX: b.VX,
		VY: b.VY,
		XF: b.XF,
		YF: b.YF,
	}
}
