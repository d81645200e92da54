package protocol

import "fmt"

// FrameType identifies the payload carried by a frame.
type FrameType uint8

const (
	TypePing FrameType = iota
	TypeReady
	TypeStart
	TypePaddlePosition
	TypeBallUpdate
	TypeScoreUpdate
	TypeDisconnect
)

var frameTypeNames = [...]string{
	TypePing:           "Ping",
	TypeReady:          "Ready",
	TypeStart:          "Start",
	TypePaddlePosition: "PaddlePosition",
	TypeBallUpdate:     "BallUpdate",
	TypeScoreUpdate:    "ScoreUpdate",
	TypeDisconnect:     "Disconnect",
}

// FrameTypes lists every valid frame type in ordinal order.
func FrameTypes() []FrameType {
	types := make([]FrameType, len(frameTypeNames))
	for i := range frameTypeNames {
		types[i] = FrameType(i)
	}
	return types
}

// ParseFrameType maps a wire ordinal to a FrameType.
func ParseFrameType(b byte) (FrameType, error) {
	if int(b) >= len(frameTypeNames) {
		return 0, fmt.Errorf("%w (%d)", ErrUnknownFrameType, b)
	}
	return FrameType(b), nil
}

func (t FrameType) String() string {
	if int(t) < len(frameTypeNames) {
		return frameTypeNames[t]
	}
	return fmt.Sprintf("FrameType(%d)", uint8(t))
}
