// Package protocol implements the fixed-size ICMPong frame carried inside
// ICMPv6 echo payloads.
//
// Wire layout (45 bytes, integers big-endian):
//
//	Magic     [7 bytes]  - "ICMPong"
//	Version   [1 byte]   - protocol version
//	SessionID [4 bytes]  - sender session id
//	Type      [1 byte]   - frame type ordinal
//	Payload   [32 bytes] - type specific, zero padded
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic marks every ICMPong frame.
	Magic = "ICMPong"

	// Version is the protocol version spoken by this build.
	Version uint8 = 0

	// PayloadSize is the size of the opaque payload block.
	PayloadSize = 32

	// FrameSize is the exact encoded length of a frame.
	FrameSize = len(Magic) + 1 + 4 + 1 + PayloadSize

	versionOffset = len(Magic)
	sessionOffset = versionOffset + 1
	typeOffset    = sessionOffset + 4
	payloadOffset = typeOffset + 1
)

var (
	// ErrBadMagic is returned when a buffer does not start with Magic.
	// Such buffers are unrelated ICMPv6 traffic, not ICMPong frames.
	ErrBadMagic = errors.New("not an ICMPong frame")

	// ErrFrameLength is returned when a frame is not exactly FrameSize bytes.
	ErrFrameLength = errors.New("invalid frame length")

	// ErrVersionMismatch is returned when the peer speaks another protocol version.
	ErrVersionMismatch = errors.New("protocol version mismatch")

	// ErrUnknownFrameType is returned for unrecognized frame type ordinals.
	ErrUnknownFrameType = errors.New("unknown frame type")

	// ErrMalformedPayload is returned when a payload cannot be interpreted
	// for its frame type.
	ErrMalformedPayload = errors.New("malformed payload")
)

// VersionError reports both sides of a version mismatch.
type VersionError struct {
	Local  uint8
	Remote uint8
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("the other player is on a different version of ICMPong: you are v%d, they are v%d", e.Local, e.Remote)
}

func (e *VersionError) Unwrap() error { return ErrVersionMismatch }

// LengthError reports the expected and received frame length.
type LengthError struct {
	Expected int
	Got      int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("invalid frame size: expected %d, found %d", e.Expected, e.Got)
}

func (e *LengthError) Unwrap() error { return ErrFrameLength }

// IsFatal reports whether a decode error must end the session. Buffers
// without the magic marker are just foreign traffic and can be skipped.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrBadMagic)
}

// Frame is one decoded ICMPong message.
type Frame struct {
	Version   uint8
	SessionID uint32
	Type      FrameType
	Payload   [PayloadSize]byte
}

// NewFrame builds a frame for the current protocol version.
func NewFrame(sessionID uint32, msg Message) Frame {
	return Frame{
		Version:   Version,
		SessionID: sessionID,
		Type:      msg.Type(),
		Payload:   msg.payload(),
	}
}

// Encode serializes the frame to exactly FrameSize bytes.
func (f Frame) Encode() []byte {
	buf := make([]byte, FrameSize)
	copy(buf, Magic)
	buf[versionOffset] = f.Version
	binary.BigEndian.PutUint32(buf[sessionOffset:], f.SessionID)
	buf[typeOffset] = byte(f.Type)
	copy(buf[payloadOffset:], f.Payload[:])
	return buf
}

// Decode parses one frame. The checks run in wire order: marker, version,
// length, then frame type.
func Decode(buf []byte) (Frame, error) {
	if !bytes.HasPrefix(buf, []byte(Magic)) {
		return Frame{}, ErrBadMagic
	}
	if len(buf) <= versionOffset {
		return Frame{}, &LengthError{Expected: FrameSize, Got: len(buf)}
	}
	if v := buf[versionOffset]; v != Version {
		return Frame{}, &VersionError{Local: Version, Remote: v}
	}
	if len(buf) != FrameSize {
		return Frame{}, &LengthError{Expected: FrameSize, Got: len(buf)}
	}

	t, err := ParseFrameType(buf[typeOffset])
	if err != nil {
		return Frame{}, err
	}

	f := Frame{
		Version:   buf[versionOffset],
		SessionID: binary.BigEndian.Uint32(buf[sessionOffset:typeOffset]),
		Type:      t,
	}
	copy(f.Payload[:], buf[payloadOffset:])
	return f, nil
}

// String returns a debug representation of the frame.
func (f Frame) String() string {
	return fmt.Sprintf("Frame{Type=%s, Version=%d, SessionID=%d}", f.Type, f.Version, f.SessionID)
}
