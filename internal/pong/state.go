package pong

// Playfield bounds in terminal cells. X runs [XMin, XMax), Y runs [YMin, YMax).
const (
	XMin = 0
	YMin = 0
	XMax = 79
	YMax = 24
)

const (
	BallSize    = 1
	PaddleSize  = 4
	BallPixel   = 'O'
	PaddlePixel = 'X'
)

// Side names a player. The host always plays Left.
type Side int

const (
	Left Side = iota
	Right
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == Left {
		return Right
	}
	return Left
}

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Object is the ball or a paddle. X and Y are display cells; XF and YF
// accumulate fractional movement and X, Y are their truncation.
type Object struct {
	X     int
	Y     int
	Size  int
	Pixel byte
	VX    float32
	VY    float32
	XF    float32
	YF    float32
}

// NewObject places an object at rest on (x, y).
func NewObject(x, y, size int, pixel byte) Object {
	return Object{
		X:     x,
		Y:     y,
		Size:  size,
		Pixel: pixel,
		XF:    float32(x),
		YF:    float32(y),
	}
}

// NewBall returns a motionless ball in the centre of the field.
func NewBall() Object {
	return NewObject(XMax/2, YMax/2, BallSize, BallPixel)
}

// NewPaddle returns the starting paddle for side.
func NewPaddle(side Side) Object {
	x := XMin + 3
	if side == Right {
		x = XMax - 4
	}
	return NewObject(x, (YMax-YMin)/2-1, PaddleSize, PaddlePixel)
}

// Top is the first row covered by the object.
func (o Object) Top() int { return o.Y }

// Bottom is Y plus Size; the vertical span is [Top, Bottom].
func (o Object) Bottom() int { return o.Y + o.Size }

// Score holds the round wins per side.
type Score [2]uint32

// Add credits one round to side.
func (s *Score) Add(side Side) { s[side]++ }

// Direction is a paddle move.
type Direction int

const (
	Up Direction = iota
	Down
)

// MovePaddle moves p one row, keeping it off the top and bottom borders.
// It reports whether the paddle moved.
func MovePaddle(p *Object, d Direction) bool {
	switch d {
	case Up:
		if p.Top() <= YMin+1 {
			return false
		}
		p.Y--
	case Down:
		if p.Bottom() >= YMax-1 {
			return false
		}
		p.Y++
	default:
		return false
	}
	p.YF = float32(p.Y)
	return true
}
