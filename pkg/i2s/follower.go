package i2s

import (
	"log/slog"
	"runtime"
	"sync/atomic"
)

// InputPin is a single-bit input signal sampled by level.
type InputPin interface {
	Get() bool
}

// OutputPin is a single-bit output signal.
type OutputPin interface {
	Set(bool)
}

// Follower shifts frame bits onto the serial data pin in lock-step with an
// externally driven bit clock and word select. It is a slave: it never
// generates clocks, it only follows them.
//
// Per frame the machine cycles through four states: wait for word select
// low, shift the 16 left-channel bits, wait for word select high, shift the
// 16 right-channel bits. Each bit is presented on the bit clock's high
// level and held until after the following low level, most significant bit
// first, matching standard I2S framing. The exact word-select-to-first-bit
// offset must be verified against the master's datasheet; the machine
// follows the level protocol as the master drives it.
//
// Run busy-polls the pins and must own its goroutine (on hardware this is
// the dedicated clock-synchronous micro-program). It has no error channel:
// the only software-visible failure mode is starvation, which simply
// blocks the fifo Pop until a frame arrives.
type Follower struct {
	bck  InputPin
	ws   InputPin
	sd   OutputPin
	fifo *Fifo

	logger        *slog.Logger
	stopped       atomic.Bool
	framesShifted atomic.Uint64
}

// FollowerConfig wires a Follower to its pins and fifo.
type FollowerConfig struct {
	BCK    InputPin  // bit clock, input from master
	WS     InputPin  // word select, input from master
	SD     OutputPin // serial data, output to master
	Fifo   *Fifo
	Logger *slog.Logger
}

// NewFollower creates a follower. It does not start shifting until Run.
func NewFollower(cfg FollowerConfig) *Follower {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Follower{
		bck:    cfg.BCK,
		ws:     cfg.WS,
		sd:     cfg.SD,
		fifo:   cfg.Fifo,
		logger: cfg.Logger,
	}
}

// Run shifts frames until Stop is called or the fifo is closed and
// drained. When the fifo is empty at a frame boundary, Run blocks in Pop;
// the master's clock cannot be paused, so that starvation is an audible
// glitch to minimize through buffering, not an error to report.
func (f *Follower) Run() {
	f.logger.Debug("bit clock follower running")

	for !f.stopped.Load() {
		frame, ok := f.fifo.Pop()
		if !ok {
			f.logger.Debug("fifo closed, follower stopping", "framesShifted", f.framesShifted.Load())
			return
		}
		word := frame.Word()

		if !f.waitLevel(f.ws, false) {
			return
		}
		if !f.shiftField(uint16(word >> 16)) {
			return
		}
		if !f.waitLevel(f.ws, true) {
			return
		}
		if !f.shiftField(uint16(word)) {
			return
		}

		f.framesShifted.Add(1)
	}
}

// shiftField shifts one 16-bit channel field, MSB first: present the bit
// on the clock's high level, advance after the clock returns low.
func (f *Follower) shiftField(field uint16) bool {
	for bit := 15; bit >= 0; bit-- {
		if !f.waitLevel(f.bck, true) {
			return false
		}
		f.sd.Set(field&(1<<uint(bit)) != 0)
		if !f.waitLevel(f.bck, false) {
			return false
		}
	}
	return true
}

// waitLevel busy-polls pin until it reads want. Returns false if Stop was
// called while waiting.
func (f *Follower) waitLevel(pin InputPin, want bool) bool {
	for pin.Get() != want {
		if f.stopped.Load() {
			return false
		}
		runtime.Gosched()
	}
	return true
}

// Stop makes Run return at the next pin wait or frame boundary. A Run
// blocked inside Pop is released by closing the fifo, not by Stop.
func (f *Follower) Stop() {
	f.stopped.Store(true)
}

// FramesShifted returns the number of complete frames shifted out.
func (f *Follower) FramesShifted() uint64 {
	return f.framesShifted.Load()
}
