package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestReady_PayloadLayout(t *testing.T) {
	f := NewFrame(1, Ready{Name: "bob"})

	if f.Payload[0] != 3 {
		t.Fatalf("length byte = %d, want 3", f.Payload[0])
	}
	if string(f.Payload[1:4]) != "bob" {
		t.Errorf("name bytes = %q, want bob", f.Payload[1:4])
	}
	if f.Payload[4] != 0 {
		t.Errorf("byte after name = %d, want 0", f.Payload[4])
	}
}

func TestReady_LongNameIsCut(t *testing.T) {
	long := strings.Repeat("n", 40)
	msg, err := NewFrame(1, Ready{Name: long}).Message()
	if err != nil {
		t.Fatalf("Message() error = %v", err)
	}
	if got := msg.(Ready).Name; len(got) != MaxNameLength {
		t.Errorf("len(Name) = %d, want %d", len(got), MaxNameLength)
	}
}

func TestReady_MalformedPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload [PayloadSize]byte
	}{
		{"length overflows block", [PayloadSize]byte{32}},
		{"invalid utf8", [PayloadSize]byte{2, 0xff, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Frame{Version: Version, Type: TypeReady, Payload: tt.payload}
			if _, err := f.Message(); !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("Message() error = %v, want ErrMalformedPayload", err)
			}
		})
	}
}

func TestBallUpdate_PayloadLayout(t *testing.T) {
	f := NewFrame(1, BallUpdate{X: 0x0102, Y: 0x0304, VX: 1})

	want := []byte{1, 2, 3, 4, 0x3f, 0x80, 0, 0}
	for i, b := range want {
		if f.Payload[i] != b {
			t.Fatalf("payload[%d] = %#x, want %#x", i, f.Payload[i], b)
		}
	}
	for i := 20; i < PayloadSize; i++ {
		if f.Payload[i] != 0 {
			t.Fatalf("payload[%d] = %d, want zero padding", i, f.Payload[i])
		}
	}
}

func TestScoreUpdate_PayloadLayout(t *testing.T) {
	f := NewFrame(1, ScoreUpdate{Left: 1, Right: 258})

	want := []byte{0, 0, 0, 1, 0, 0, 1, 2}
	for i, b := range want {
		if f.Payload[i] != b {
			t.Fatalf("payload[%d] = %d, want %d", i, f.Payload[i], b)
		}
	}
}

func TestMessage_UnknownType(t *testing.T) {
	f := Frame{Type: FrameType(42)}
	if _, err := f.Message(); !errors.Is(err, ErrUnknownFrameType) {
		t.Errorf("Message() error = %v, want ErrUnknownFrameType", err)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", false},
		{"short", "carol", false},
		{"exactly max", strings.Repeat("a", MaxNameLength), false},
		{"too long", strings.Repeat("a", MaxNameLength+1), true},
		{"invalid utf8", string([]byte{0xff}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
