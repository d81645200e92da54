package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// MaxNameLength is the longest display name a Ready frame may carry.
const MaxNameLength = 30

// Message is the closed set of frame payloads. The unexported method keeps
// implementations inside this package so a type switch over Message is
// exhaustive.
type Message interface {
	Type() FrameType
	payload() [PayloadSize]byte
}

// Ping opens the handshake.
type Ping struct{}

// Ready answers a Ping and carries the sender's display name.
type Ready struct {
	Name string
}

// Start signals that the sender pressed start.
type Start struct{}

// PaddlePosition reports the sender's own paddle.
type PaddlePosition struct {
	X uint16
	Y uint16
}

// BallUpdate is an authoritative ball correction from the host.
type BallUpdate struct {
	X  uint16
	Y  uint16
	VX float32
	VY float32
	XF float32
	YF float32
}

// ScoreUpdate is an authoritative score from the host.
type ScoreUpdate struct {
	Left  uint32
	Right uint32
}

// Disconnect ends the session. It is also sent back as the acknowledgment.
type Disconnect struct{}

func (Ping) Type() FrameType           { return TypePing }
func (Ready) Type() FrameType          { return TypeReady }
func (Start) Type() FrameType          { return TypeStart }
func (PaddlePosition) Type() FrameType { return TypePaddlePosition }
func (BallUpdate) Type() FrameType     { return TypeBallUpdate }
func (ScoreUpdate) Type() FrameType    { return TypeScoreUpdate }
func (Disconnect) Type() FrameType     { return TypeDisconnect }

func (Ping) payload() (p [PayloadSize]byte)       { return }
func (Start) payload() (p [PayloadSize]byte)      { return }
func (Disconnect) payload() (p [PayloadSize]byte) { return }

// Layout: [len:1][name:len]. Names longer than MaxNameLength are cut.
func (r Ready) payload() (p [PayloadSize]byte) {
	name := r.Name
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}
	p[0] = uint8(len(name))
	copy(p[1:], name)
	return
}

// Layout: [x:2][y:2].
func (m PaddlePosition) payload() (p [PayloadSize]byte) {
	binary.BigEndian.PutUint16(p[0:2], m.X)
	binary.BigEndian.PutUint16(p[2:4], m.Y)
	return
}

// Layout: [x:2][y:2][vx:4][vy:4][xf:4][yf:4].
func (m BallUpdate) payload() (p [PayloadSize]byte) {
	binary.BigEndian.PutUint16(p[0:2], m.X)
	binary.BigEndian.PutUint16(p[2:4], m.Y)
	binary.BigEndian.PutUint32(p[4:8], math.Float32bits(m.VX))
	binary.BigEndian.PutUint32(p[8:12], math.Float32bits(m.VY))
	binary.BigEndian.PutUint32(p[12:16], math.Float32bits(m.XF))
	binary.BigEndian.PutUint32(p[16:20], math.Float32bits(m.YF))
	return
}

// Layout: [left:4][right:4].
func (m ScoreUpdate) payload() (p [PayloadSize]byte) {
	binary.BigEndian.PutUint32(p[0:4], m.Left)
	binary.BigEndian.PutUint32(p[4:8], m.Right)
	return
}

// ValidateName checks that a display name fits in a Ready frame.
func ValidateName(name string) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("your name must not be longer than %d characters", MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("your name must be valid UTF-8")
	}
	return nil
}

// Message interprets the frame payload according to its type.
func (f Frame) Message() (Message, error) {
	p := f.Payload
	switch f.Type {
	case TypePing:
		return Ping{}, nil
	case TypeReady:
		n := int(p[0])
		if n > PayloadSize-1 {
			return nil, fmt.Errorf("%w: name length %d", ErrMalformedPayload, n)
		}
		name := p[1 : 1+n]
		if !utf8.Valid(name) {
			return nil, fmt.Errorf("%w: name is not UTF-8", ErrMalformedPayload)
		}
		return Ready{Name: string(name)}, nil
	case TypeStart:
		return Start{}, nil
	case TypePaddlePosition:
		return PaddlePosition{
			X: binary.BigEndian.Uint16(p[0:2]),
			Y: binary.BigEndian.Uint16(p[2:4]),
		}, nil
	case TypeBallUpdate:
		return BallUpdate{
			X:  binary.BigEndian.Uint16(p[0:2]),
			Y:  binary.BigEndian.Uint16(p[2:4]),
			VX: math.Float32frombits(binary.BigEndian.Uint32(p[4:8])),
			VY: math.Float32frombits(binary.BigEndian.Uint32(p[8:12])),
			XF: math.Float32frombits(binary.BigEndian.Uint32(p[12:16])),
			YF: math.Float32frombits(binary.BigEndian.Uint32(p[16:20])),
		}, nil
	case TypeScoreUpdate:
		return ScoreUpdate{
			Left:  binary.BigEndian.Uint32(p[0:4]),
			Right: binary.BigEndian.Uint32(p[4:8]),
		}, nil
	case TypeDisconnect:
		return Disconnect{}, nil
	}
	return nil, fmt.Errorf("%w (%d)", ErrUnknownFrameType, uint8(f.Type))
}
