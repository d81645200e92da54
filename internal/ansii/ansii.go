package ansii

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

type ANSI string

const (
	reset       ANSI = "\033[0m"
	white       ANSI = "\033[37m"
	blackBg     ANSI = "\033[40m"
	clearScreen ANSI = "\033[2J"
	hideCursor  ANSI = "\033[?25l"
	showCursor  ANSI = "\033[?25h"
)

type style struct {
	Reset ANSI
}

type color struct {
	White   ANSI
	BlackBg ANSI
}

type screen struct {
	ClearScreen ANSI
	HideCursor  ANSI
	ShowCursor  ANSI
}

// GetTermSize returns the size of the terminal behind stdout.
func GetTermSize() (width int, height int, err error) {
	var fd int = int(os.Stdout.Fd())
	return term.GetSize(fd)
}

// IsTerminal reports whether stdin is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// MakeTermRaw puts stdin in raw mode so single key presses can be read.
func MakeTermRaw() (*term.State, error) {
	var fd int = int(os.Stdin.Fd())
	return term.MakeRaw(fd)
}

func RestoreTerm(prev *term.State) error {
	var fd int = int(os.Stdin.Fd())
	return term.Restore(fd, prev)
}

// PlaceCursor moves the cursor to column X, row Y, both starting at 1.
func (s screen) PlaceCursor(X, Y int) ANSI {
	return ANSI(fmt.Sprintf("\033[%d;%dH", Y, X))
}

var (
	Styles = style{Reset: reset}
	Colors = color{White: white, BlackBg: blackBg}
	Screen = screen{ClearScreen: clearScreen, HideCursor: hideCursor, ShowCursor: showCursor}
)
