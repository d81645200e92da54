package client

import (
	"io"
	"sync"
	"time"

	"icmpong/internal/ansii"
	"icmpong/internal/renderer"
)

// Input yields at most one action per call, waiting no longer than timeout.
type Input interface {
	Poll(timeout time.Duration) (renderer.UiAction, bool)
}

// KeyReader turns raw terminal input into actions. A background goroutine
// reads r so Poll can bound its wait.
type KeyReader struct {
	chunks  chan []byte
	pending []renderer.UiAction
}

// NewKeyReader starts reading r. The goroutine ends when r returns an error.
func NewKeyReader(r io.Reader) *KeyReader {
	k := &KeyReader{chunks: make(chan []byte, 16)}

	go func() {
		defer close(k.chunks)
		buf := make([]byte, 16)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				k.chunks <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()

	return k
}

// Poll returns the next action, waiting up to timeout for one.
func (k *KeyReader) Poll(timeout time.Duration) (renderer.UiAction, bool) {
	if a, ok := k.pop(); ok {
		return a, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-k.chunks:
			if !ok {
				// input closed; keep the tick cadence
				k.chunks = nil
				continue
			}
			k.pending = append(k.pending, renderer.ParseKeys(chunk)...)
			if a, ok := k.pop(); ok {
				return a, true
			}
		case <-timer.C:
			return renderer.Unknown, false
		}
	}
}

func (k *KeyReader) pop() (renderer.UiAction, bool) {
	if len(k.pending) == 0 {
		return renderer.Unknown, false
	}
	a := k.pending[0]
	k.pending = k.pending[1:]
	return a, true
}

// Terminal switches the controlling terminal into game mode and back.
type Terminal struct {
	out     io.Writer
	once    sync.Once
	restore func() error
}

// OpenTerminal enables raw mode on stdin, hides the cursor and clears out.
func OpenTerminal(out io.Writer) (*Terminal, error) {
	prev, err := ansii.MakeTermRaw()
	if err != nil {
		return nil, err
	}

	io.WriteString(out, string(ansii.Screen.ClearScreen+ansii.Screen.HideCursor+ansii.Colors.BlackBg+ansii.Colors.White))

	return &Terminal{
		out:     out,
		restore: func() error { return ansii.RestoreTerm(prev) },
	}, nil
}

// Close restores the terminal. It is safe to call more than once.
func (t *Terminal) Close() error {
	var err error
	t.once.Do(func() {
		io.WriteString(t.out, string(ansii.Styles.Reset+ansii.Screen.ShowCursor+ansii.Screen.PlaceCursor(1, renderer.Height+1))+"\r\n")
		err = t.restore()
	})
	return err
}
