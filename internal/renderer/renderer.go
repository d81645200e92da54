// Package renderer composes the playfield and writes it to the terminal.
package renderer

import (
	"fmt"
	"io"
	"strings"

	"icmpong/internal/ansii"
	"icmpong/internal/pong"
)

const (
	Width  = pong.XMax - pong.XMin
	Height = pong.YMax - pong.YMin

	StartMessage   = "Press SPACE to start the game!"
	WaitingMessage = "Waiting for peer to press SPACE..."
)

// Field is the character grid for one frame.
type Field struct {
	cells [Height][Width]byte
}

// NewField returns a cleared field.
func NewField() *Field {
	f := &Field{}
	f.Clear()
	return f
}

// Clear draws the empty court: borders, side walls and the centre line.
func (f *Field) Clear() {
	for y := range Height {
		for x := range Width {
			var c byte
			switch {
			case y == pong.YMin || y == pong.YMax-1:
				c = '-'
			case x == (pong.XMax-pong.XMin)/2:
				c = '\''
			case x == pong.XMin || x == pong.XMax-1:
				c = '|'
			default:
				c = ' '
			}
			f.cells[y][x] = c
		}
	}
}

// Draw paints an object over the rows [Top, Bottom) of its column.
func (f *Field) Draw(o pong.Object) {
	if o.X < 0 || o.X >= Width {
		return
	}
	for y := o.Top(); y < o.Bottom(); y++ {
		if y < 0 || y >= Height {
			continue
		}
		f.cells[y][o.X] = o.Pixel
	}
}

// Write puts text on row y starting at column x. Text past the row is cut.
func (f *Field) Write(x, y int, text string) {
	if y < 0 || y >= Height {
		return
	}
	for i := 0; i < len(text); i++ {
		if cx := x + i; cx >= 0 && cx < Width {
			f.cells[y][cx] = text[i]
		}
	}
}

// Row returns row y as a string.
func (f *Field) Row(y int) string {
	return string(f.cells[y][:])
}

// View is everything a frame shows.
type View struct {
	// Names indexed by side.
	Names [2]string
	Score pong.Score

	Ball    pong.Object
	Paddles [2]pong.Object

	LocalReady bool
	PeerReady  bool
}

// Compose clears f and draws v on it.
func Compose(f *Field, v View) {
	f.Clear()

	f.Write(pong.XMax/2-5, pong.YMin, fmt.Sprintf(" %02d ", v.Score[pong.Left]))
	f.Write(pong.XMax/2+2, pong.YMin, fmt.Sprintf(" %02d ", v.Score[pong.Right]))
	f.Write(pong.XMin, pong.YMin, v.Names[pong.Left])
	f.Write(pong.XMax-len(v.Names[pong.Right]), pong.YMin, v.Names[pong.Right])

	f.Draw(v.Ball)
	f.Draw(v.Paddles[pong.Left])
	f.Draw(v.Paddles[pong.Right])

	switch {
	case !v.LocalReady:
		f.Write(pong.XMax/2-len(StartMessage)/2, pong.YMax-4, StartMessage)
	case !v.PeerReady:
		f.Write(pong.XMax/2-len(WaitingMessage)/2, pong.YMax-4, WaitingMessage)
	}
}

// Render writes f to w, one cursor-positioned row at a time.
func Render(w io.Writer, f *Field) error {
	var builder strings.Builder
	for y := range Height {
		builder.WriteString(string(ansii.Screen.PlaceCursor(1, y+1)))
		builder.WriteString(f.Row(y))
	}
	_, err := io.WriteString(w, builder.String())
	return err
}
