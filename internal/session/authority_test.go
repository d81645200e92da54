package session

import (
	"net/netip"
	"testing"

	"golang.org/x/exp/rand"

	"icmpong/internal/pong"
)

func TestResolve_LargerIDHosts(t *testing.T) {
	a := Identity{SessionID: 100, Addr: addrA}
	b := Identity{SessionID: 200, Addr: addrB}

	if Resolve(b, a) != Host {
		t.Error("200 vs 100 should host")
	}
	if Resolve(a, b) != Guest {
		t.Error("100 vs 200 should not host")
	}
}

func TestResolve_ExactlyOneHost(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		a := Identity{SessionID: rng.Uint32(), Addr: addrA}
		b := Identity{SessionID: rng.Uint32(), Addr: addrB}
		if a.SessionID == b.SessionID {
			continue
		}
		ab, ba := Resolve(a, b), Resolve(b, a)
		if (ab == Host) == (ba == Host) {
			t.Fatalf("ids (%d, %d): roles (%v, %v)", a.SessionID, b.SessionID, ab, ba)
		}
	}
}

func TestResolve_TieBreaksOnAddress(t *testing.T) {
	lo := Identity{SessionID: 7, Addr: netip.MustParseAddr("2001:db8::1")}
	hi := Identity{SessionID: 7, Addr: netip.MustParseAddr("2001:db8::2")}

	if Resolve(hi, lo) != Host || Resolve(lo, hi) != Guest {
		t.Errorf("tie-break = (%v, %v), want (host, guest)", Resolve(hi, lo), Resolve(lo, hi))
	}
}

func TestRole_Side(t *testing.T) {
	if Host.Side() != pong.Left || Guest.Side() != pong.Right {
		t.Error("host should play left and guest right")
	}
	if Host.String() != "host" || Guest.String() != "guest" {
		t.Error("unexpected role names")
	}
}

func TestState_Started(t *testing.T) {
	st := newState()
	if st.Started() {
		t.Error("fresh state should not be started")
	}
	st.LocalReady = true
	if st.Started() {
		t.Error("one ready side should not start the game")
	}
	st.PeerReady = true
	if !st.Started() {
		t.Error("both ready sides should start the game")
	}
}
