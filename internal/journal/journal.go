// Package journal records the frames a session exchanged.
//
// A journal file is a stream of length-prefixed protobuf-encoded records.
// The first record is a Header; every following record is a Record.
package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Direction tells whether a frame was sent or received.
type Direction uint8

const (
	Sent Direction = iota + 1
	Received
)

func (d Direction) String() string {
	switch d {
	case Sent:
		return "sent"
	case Received:
		return "received"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Field numbers.
const (
	fieldTime      protowire.Number = 1
	fieldDirection protowire.Number = 2
	fieldPeer      protowire.Number = 3
	fieldFrame     protowire.Number = 4
	fieldRunID     protowire.Number = 5
	fieldSessionID protowire.Number = 6
)

// maxRecordSize bounds a single record read back from disk.
const maxRecordSize = 64 << 10

var (
	// ErrTruncated is returned when a record ends early.
	ErrTruncated = errors.New("journal: truncated record")

	// ErrRecordTooLarge is returned when a length prefix exceeds maxRecordSize.
	ErrRecordTooLarge = errors.New("journal: record too large")
)

// Header opens every journal.
type Header struct {
	RunID     string
	SessionID uint32
	Time      time.Time
}

// Record is one frame seen by the session.
type Record struct {
	Time      time.Time
	Direction Direction
	Peer      netip.Addr
	Frame     []byte
}

// Writer appends records. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	buf    []byte
}

// Create truncates or creates path and writes h.
func Create(path string, h Header) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	w, err := NewWriter(f, h)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes h to w and returns a Writer appending after it.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	jw := &Writer{w: w}

	var b []byte
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Time.UnixNano()))
	b = protowire.AppendTag(b, fieldRunID, protowire.BytesType)
	b = protowire.AppendString(b, h.RunID)
	b = protowire.AppendTag(b, fieldSessionID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.SessionID))

	if err := jw.write(b); err != nil {
		return nil, err
	}
	return jw, nil
}

// Append writes one record.
func (w *Writer) Append(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b := w.buf[:0]
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Time.UnixNano()))
	b = protowire.AppendTag(b, fieldDirection, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Direction))
	if r.Peer.IsValid() {
		b = protowire.AppendTag(b, fieldPeer, protowire.BytesType)
		b = protowire.AppendString(b, r.Peer.String())
	}
	b = protowire.AppendTag(b, fieldFrame, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Frame)
	w.buf = b

	return w.write(b)
}

func (w *Writer) write(msg []byte) error {
	out := protowire.AppendBytes(nil, msg)
	if _, err := w.w.Write(out); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// Close closes the underlying file when the Writer was made by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// Reader reads a journal back.
type Reader struct {
	r      *bufio.Reader
	header Header
}

// NewReader reads the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	jr := &Reader{r: bufio.NewReader(r)}

	msg, err := jr.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("journal: missing header: %w", ErrTruncated)
		}
		return nil, err
	}

	err = walk(msg, func(num protowire.Number, v uint64, b []byte) {
		switch num {
		case fieldTime:
			jr.header.Time = time.Unix(0, int64(v))
		case fieldRunID:
			jr.header.RunID = string(b)
		case fieldSessionID:
			jr.header.SessionID = uint32(v)
		}
	})
	if err != nil {
		return nil, err
	}
	return jr, nil
}

// Header returns the journal header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	msg, err := r.next()
	if err != nil {
		return Record{}, err
	}

	var (
		rec     Record
		peerErr error
	)
	err = walk(msg, func(num protowire.Number, v uint64, b []byte) {
		switch num {
		case fieldTime:
			rec.Time = time.Unix(0, int64(v))
		case fieldDirection:
			rec.Direction = Direction(v)
		case fieldPeer:
			rec.Peer, peerErr = netip.ParseAddr(string(b))
		case fieldFrame:
			rec.Frame = append([]byte(nil), b...)
		}
	})
	if err != nil {
		return Record{}, err
	}
	if peerErr != nil {
		return Record{}, fmt.Errorf("journal: peer address: %w", peerErr)
	}
	return rec, nil
}

func (r *Reader) next() ([]byte, error) {
	n, err := binary.ReadUvarint(r.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, ErrTruncated
	}
	if n > maxRecordSize {
		return nil, ErrRecordTooLarge
	}

	msg := make([]byte, n)
	if _, err := io.ReadFull(r.r, msg); err != nil {
		return nil, ErrTruncated
	}
	return msg, nil
}

// walk calls fn for every varint and bytes field in msg. Other wire types
// are skipped.
func walk(msg []byte, fn func(num protowire.Number, v uint64, b []byte)) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		msg = msg[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
			}
			fn(num, v, nil)
			msg = msg[n:]
		case protowire.BytesType:
			b, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
			}
			fn(num, 0, b)
			msg = msg[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
			}
			msg = msg[n:]
		}
	}
	return nil
}
