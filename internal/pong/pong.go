// Package pong holds the playfield objects and the ball physics.
package pong

import (
	"math"

	"golang.org/x/exp/rand"
)

const (
	// AccelerationFactor scales the ball velocity on every AccelerationEvery-th
	// wall bounce.
	AccelerationFactor = 1.1
	AccelerationEvery  = 5

	// LowSpeedThreshold caps acceleration: a ball whose |VY| is above it is
	// already steep enough and keeps its speed.
	LowSpeedThreshold = 1.0

	// ServeAngle is the widest serve in degrees either side of horizontal.
	ServeAngle = 45
)

// Result lists what a Step changed that the peer must hear about.
type Result struct {
	// Sync is set when the host bounced or clamped the ball.
	Sync bool

	// RoundOver is set when the ball left the field; Winner took the round.
	RoundOver bool
	Winner    Side
}

// Engine advances the ball. Only a host engine reflects, accelerates and
// scores; the other side integrates and waits for corrections.
type Engine struct {
	host    bool
	speed   float32
	bounces int
	rng     *rand.Rand
}

// NewEngine returns an engine serving at speed cells per tick.
func NewEngine(host bool, speed float32, rng *rand.Rand) *Engine {
	return &Engine{host: host, speed: speed, rng: rng}
}

// Host reports whether this engine is authoritative.
func (e *Engine) Host() bool { return e.host }

// Bounces returns the wall bounces counted in the current round.
func (e *Engine) Bounces() int { return e.bounces }

// Step moves the ball one tick and, on the host, applies boundary and
// paddle contacts.
func (e *Engine) Step(ball *Object, left, right Object) Result {
	ball.XF += ball.VX
	ball.YF += ball.VY
	ball.X = int(ball.XF)
	ball.Y = int(ball.YF)

	if !e.host {
		return Result{}
	}

	var r Result
	switch {
	case ball.X >= XMax:
		r.RoundOver, r.Winner = true, Left
	case ball.X <= XMin:
		r.RoundOver, r.Winner = true, Right
	}

	if (ball.Top() <= YMin && ball.VY < 0) || (ball.Bottom() >= YMax && ball.VY > 0) {
		ball.VY = -ball.VY
		e.bounces++
		if e.bounces%AccelerationEvery == 0 && math.Abs(float64(ball.VY)) <= LowSpeedThreshold {
			ball.VX *= AccelerationFactor
			ball.VY *= AccelerationFactor
		}
		r.Sync = true
	}

	if (touches(*ball, left) && ball.VX < 0) || (touches(*ball, right) && ball.VX > 0) {
		ball.VX = -ball.VX
		r.Sync = true
	}

	if ball.YF > YMax {
		ball.YF = YMax - 1
		ball.Y = YMax - 1
		r.Sync = true
	}

	return r
}

// Serve launches ball at a random angle within ServeAngle, towards a random
// side.
func (e *Engine) Serve(ball *Object) {
	angle := (e.rng.Float64()*2 - 1) * ServeAngle * math.Pi / 180
	dir := float64(e.rng.Intn(2)*2 - 1)

	ball.VX = float32(math.Cos(angle)*dir) * e.speed
	ball.VY = float32(math.Sin(angle)) * e.speed
}

// EndRound credits winner, recentres the ball and serves again.
func (e *Engine) EndRound(ball *Object, score *Score, winner Side) {
	score.Add(winner)
	*ball = NewBall()
	e.bounces = 0
	e.Serve(ball)
}

func touches(ball, paddle Object) bool {
	return ball.X == paddle.X && ball.Y >= paddle.Top() && ball.Y <= paddle.Bottom()
}
