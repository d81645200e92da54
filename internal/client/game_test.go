package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/exp/rand"

	"icmpong/internal/metrics"
	"icmpong/internal/netwrk"
	"icmpong/internal/pong"
	"icmpong/internal/protocol"
	"icmpong/internal/renderer"
	"icmpong/internal/session"
)

var (
	addrGuest = netip.MustParseAddr("2001:db8::a")
	addrHost  = netip.MustParseAddr("2001:db8::b")
)

type chanInput chan renderer.UiAction

func (c chanInput) Poll(timeout time.Duration) (renderer.UiAction, bool) {
	select {
	case a := <-c:
		return a, true
	case <-time.After(timeout):
		return renderer.Unknown, false
	}
}

// countingInput returns its action on the n-th poll and nothing before.
type countingInput struct {
	n      int
	action renderer.UiAction
	polls  int
}

func (c *countingInput) Poll(time.Duration) (renderer.UiAction, bool) {
	c.polls++
	if c.polls == c.n {
		return c.action, true
	}
	return renderer.Unknown, false
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Tick = time.Millisecond
	cfg.DisconnectGrace = time.Second
	cfg.Rand = rand.New(rand.NewSource(3))
	return cfg
}

func newSession(end *netwrk.PipeEnd, peer netip.Addr, id uint32, name string) *session.Session {
	return session.New(end, session.Config{
		Peer:      peer,
		LocalAddr: end.Addr(),
		Name:      name,
		SessionID: id,
		Metrics:   metrics.NewMetricsWithRegistry(prometheus.NewRegistry()),
	})
}

// establish returns a connected guest (id 100) and host (id 200) with
// their dispatch loops running.
func establish(t *testing.T) (guest, host *session.Session, guestEnd *netwrk.PipeEnd) {
	t.Helper()
	eg, eh := netwrk.Pipe(addrGuest, addrHost, true)
	guest = newSession(eg, addrHost, 100, "guest")
	host = newSession(eh, addrGuest, 200, "host")

	for _, s := range []*session.Session{guest, host} {
		s := s
		go s.Run()
		t.Cleanup(func() {
			s.Close()
			<-s.Done()
		})
	}

	if err := guest.Ping(); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	for _, s := range []*session.Session{guest, host} {
		if _, err := s.WaitEstablished(context.Background(), 2*time.Second); err != nil {
			t.Fatalf("WaitEstablished() error = %v", err)
		}
	}
	return guest, host, eg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPlay_QuitDisconnectsBothSides(t *testing.T) {
	guest, host, _ := establish(t)

	input := make(chanInput, 1)
	input <- renderer.Quit

	if err := Play(guest, input, io.Discard, testConfig()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	waitFor(t, "host stop", host.Stopped)
	select {
	case <-guest.Done():
	default:
		t.Error("Play() returned before the dispatch loop finished")
	}
	if err := guest.Err(); err != nil {
		t.Errorf("guest dispatch error = %v", err)
	}
}

func TestPlay_ExternalStopNotifiesPeer(t *testing.T) {
	guest, host, guestEnd := establish(t)

	done := make(chan error, 1)
	go func() { done <- Play(guest, make(chanInput), io.Discard, testConfig()) }()

	guest.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Play() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play() did not return after Stop")
	}

	disconnects := 0
	for _, b := range guestEnd.Sent() {
		if f, err := protocol.Decode(b); err == nil && f.Type == protocol.TypeDisconnect {
			disconnects++
		}
	}
	if disconnects != 1 {
		t.Errorf("guest sent %d Disconnect frames, want 1", disconnects)
	}
	waitFor(t, "host stop", host.Stopped)
}

func TestPlay_PeerDisconnectEndsLoop(t *testing.T) {
	guest, host, _ := establish(t)

	done := make(chan error, 1)
	go func() { done <- Play(guest, make(chanInput), io.Discard, testConfig()) }()

	if err := host.Send(protocol.Disconnect{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Play() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play() did not return after the peer disconnected")
	}
}

func TestPlay_FatalProtocolErrorSurfaced(t *testing.T) {
	guest, _, guestEnd := establish(t)

	done := make(chan error, 1)
	go func() { done <- Play(guest, make(chanInput), io.Discard, testConfig()) }()

	f := protocol.NewFrame(200, protocol.Ping{})
	f.Version = protocol.Version + 1
	guestEnd.Inject(netwrk.Packet{Source: addrHost, Payload: f.Encode()})

	select {
	case err := <-done:
		var verr *protocol.VersionError
		if !errors.As(err, &verr) {
			t.Errorf("Play() error = %v, want *protocol.VersionError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play() did not return after a fatal frame")
	}
}

func TestGame_HostServesWhenBothReady(t *testing.T) {
	guest, host, _ := establish(t)

	input := make(chanInput, 4)
	done := make(chan error, 1)
	go func() { done <- NewGame(host, input, io.Discard, testConfig()).Run() }()

	input <- renderer.Start
	if err := guest.Send(protocol.Start{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, "serve", func() bool { return guest.Snapshot().Ball.VX != 0 })

	ball := guest.Snapshot().Ball
	if v := ball.VX*ball.VX + ball.VY*ball.VY; v < 0.35 || v > 0.37 {
		t.Errorf("served speed squared = %v, want 0.36", v)
	}

	input <- renderer.Quit
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestGame_PaddleMovesOnlyAfterStart(t *testing.T) {
	guest, host, _ := establish(t)
	g := NewGame(guest, nil, io.Discard, testConfig())

	if _, err := g.handleInput(renderer.UpArrow); err != nil {
		t.Fatalf("handleInput() error = %v", err)
	}
	st := guest.Snapshot()
	if st.Paddles[st.Local()].Y != 11 {
		t.Fatalf("paddle moved before start: %d", st.Paddles[st.Local()].Y)
	}

	if _, err := g.handleInput(renderer.Start); err != nil {
		t.Fatalf("handleInput() error = %v", err)
	}
	waitFor(t, "peer ready", func() bool { return host.Snapshot().PeerReady })

	if _, err := g.handleInput(renderer.Up); err != nil {
		t.Fatalf("handleInput() error = %v", err)
	}
	st = guest.Snapshot()
	if st.Local() != pong.Right || st.Paddles[pong.Right].Y != 10 {
		t.Fatalf("guest paddle = %+v", st.Paddles[pong.Right])
	}

	waitFor(t, "paddle position", func() bool { return host.Snapshot().Paddles[pong.Right].Y == 10 })
	if host.Snapshot().Paddles[pong.Left].Y != 11 {
		t.Error("host's own paddle was overwritten")
	}
}

func TestGame_PaddleAtLimitNotSent(t *testing.T) {
	guest, _, guestEnd := establish(t)
	g := NewGame(guest, nil, io.Discard, testConfig())

	g.handleInput(renderer.Start)
	for i := 0; i < 20; i++ {
		g.handleInput(renderer.Down)
	}

	positions := 0
	for _, b := range guestEnd.Sent() {
		if f, err := protocol.Decode(b); err == nil && f.Type == protocol.TypePaddlePosition {
			positions++
		}
	}
	// from y=11 down to y+4 = YMax-1
	if want := (pong.YMax - 1 - pong.PaddleSize) - 11; positions != want {
		t.Errorf("sent %d paddle positions, want %d", positions, want)
	}
}

func TestGame_HostRoundOverSyncsScoreAndBall(t *testing.T) {
	guest, host, _ := establish(t)
	g := NewGame(host, nil, io.Discard, testConfig())
	g.started = true

	host.Update(func(st *session.State) {
		st.LocalReady, st.PeerReady = true, true
		st.Ball.XF, st.Ball.X = pong.XMax-0.5, pong.XMax-1
		st.Ball.VX, st.Ball.VY = 0.6, 0
	})

	if err := g.advance(); err != nil {
		t.Fatalf("advance() error = %v", err)
	}

	if got := host.Snapshot().Score; got != (pong.Score{1, 0}) {
		t.Errorf("host score = %v, want [1 0]", got)
	}
	waitFor(t, "score update", func() bool { return guest.Snapshot().Score == pong.Score{1, 0} })
	waitFor(t, "ball reset", func() bool {
		b := guest.Snapshot().Ball
		return b.X == pong.XMax/2 && b.Y == pong.YMax/2 && b.VX != 0
	})
	if got := testutil.ToFloat64(host.Metrics().Rounds.WithLabelValues("left")); got != 1 {
		t.Errorf("rounds{left} = %v, want 1", got)
	}
}

func TestGame_GuestNeverScores(t *testing.T) {
	guest, _, _ := establish(t)
	g := NewGame(guest, nil, io.Discard, testConfig())
	g.started = true

	guest.Update(func(st *session.State) {
		st.Ball.XF, st.Ball.X = pong.XMax-0.5, pong.XMax-1
		st.Ball.VX = 0.6
	})
	if err := g.advance(); err != nil {
		t.Fatalf("advance() error = %v", err)
	}
	if got := guest.Snapshot().Score; got != (pong.Score{}) {
		t.Errorf("guest scored locally: %v", got)
	}
}

func TestGame_RedrawEveryOtherTick(t *testing.T) {
	guest, _, _ := establish(t)
	out := &syncBuffer{}
	input := &countingInput{n: 5, action: renderer.Quit}

	if err := NewGame(guest, input, out, testConfig()).Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := strings.Count(out.String(), "\033[1;1H"); got != 2 {
		t.Errorf("redraws = %d, want 2 in 4 ticks", got)
	}
	if !strings.Contains(out.String(), renderer.StartMessage) {
		t.Error("start message not drawn")
	}
}

func TestKeyReader_Poll(t *testing.T) {
	r, w := io.Pipe()
	k := NewKeyReader(r)

	go w.Write([]byte("w\x1b[A"))

	want := []renderer.UiAction{renderer.Up, renderer.UpArrow}
	for _, a := range want {
		got, ok := k.Poll(time.Second)
		if !ok || got != a {
			t.Fatalf("Poll() = (%v, %v), want (%v, true)", got, ok, a)
		}
	}

	if _, ok := k.Poll(5 * time.Millisecond); ok {
		t.Error("Poll() returned an action with no input")
	}

	w.Close()
	start := time.Now()
	if _, ok := k.Poll(20 * time.Millisecond); ok {
		t.Error("Poll() returned an action after input closed")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("Poll() after close should still wait for the tick")
	}
}
