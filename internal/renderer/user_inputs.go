package renderer

import "icmpong/internal/pong"

type UiAction rune

const (
	Unknown   UiAction = iota
	Quit      UiAction = 81 // 'Q'
	Start     UiAction = 32 // ' '
	Up        UiAction = 87 // 'W'
	Down      UiAction = 83 // 'S'
	UpArrow   UiAction = 8593
	DownArrow UiAction = 8595
)

const (
	ctrlC = 3
	esc   = 27
	csi   = '['
)

// ProcessInput maps a single key to an action.
func ProcessInput(rawInput rune) (action UiAction) {
	inputVal := int(rawInput)
	// Convert to UpperCase
	if inputVal >= 97 && inputVal <= 122 {
		inputVal = inputVal - 32
	}
	switch UiAction(inputVal) {
	case Quit, Start, Up, Down:
		return UiAction(inputVal)
	case esc, ctrlC:
		return Quit
	}
	return Unknown
}

// ParseKeys splits raw terminal input into actions. Arrow keys arrive as
// ESC [ A and ESC [ B; a lone ESC quits.
func ParseKeys(buf []byte) []UiAction {
	var actions []UiAction
	for i := 0; i < len(buf); i++ {
		if buf[i] == esc && i+2 < len(buf) && buf[i+1] == csi {
			switch buf[i+2] {
			case 'A':
				actions = append(actions, UpArrow)
			case 'B':
				actions = append(actions, DownArrow)
			}
			i += 2
			continue
		}
		if a := ProcessInput(rune(buf[i])); a != Unknown {
			actions = append(actions, a)
		}
	}
	return actions
}

// Direction reports whether a moves the paddle, and which way.
func (a UiAction) Direction() (pong.Direction, bool) {
	switch a {
	case Up, UpArrow:
		return pong.Up, true
	case Down, DownArrow:
		return pong.Down, true
	}
	return 0, false
}
