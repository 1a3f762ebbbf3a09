package i2s

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

// SimPin is an in-memory pin for running the follower without hardware.
// It satisfies both InputPin and OutputPin and counts reads and writes so
// a simulated master can hand-shake with the polling follower instead of
// guessing at goroutine scheduling.
type SimPin struct {
	level  atomic.Bool
	reads  atomic.Uint64
	writes atomic.Uint64
}

// Get returns the pin level.
func (p *SimPin) Get() bool {
	p.reads.Add(1)
	return p.level.Load()
}

// Set drives the pin level.
func (p *SimPin) Set(v bool) {
	p.level.Store(v)
	p.writes.Add(1)
}

// SimMaster drives the bit clock and word select the way an external I2S
// master would, and samples the serial data line to reconstruct the frames
// the follower shifts out. It exists for tests and the receiver harness;
// on real hardware the master is a physical device.
//
// The master knows the follower presents a bit only after seeing the clock
// high, and advances only after seeing it low again, so it paces edges on
// the pin read/write counters rather than on wall-clock delays.
type SimMaster struct {
	BCK *SimPin
	WS  *SimPin
	SD  *SimPin

	// Timeout bounds each wait for the follower to react to an edge.
	// A timeout means the follower stopped or starved with no producer.
	Timeout time.Duration

	// Falling-edge observation deferred to the next rising edge, so the
	// last bit of a frame does not wait on a follower that is blocked in
	// Pop for the next frame.
	pendingReads    uint64
	pendingFallEdge bool
}

// NewSimMaster creates a master with idle lines: word select high, clock
// low. The follower's first state waits for word select to go low.
func NewSimMaster() *SimMaster {
	m := &SimMaster{
		BCK:     &SimPin{},
		WS:      &SimPin{},
		SD:      &SimPin{},
		Timeout: 2 * time.Second,
	}
	m.WS.Set(true)
	return m
}

// ClockFrame runs one full word select cycle (left field low, right field
// high) and returns the frame reconstructed from the sampled data bits.
func (m *SimMaster) ClockFrame() (Frame, error) {
	m.WS.Set(false)
	left, err := m.clockField()
	if err != nil {
		return Frame{}, fmt.Errorf("left field: %w", err)
	}

	m.WS.Set(true)
	right, err := m.clockField()
	if err != nil {
		return Frame{}, fmt.Errorf("right field: %w", err)
	}

	return Frame{Left: int16(left), Right: int16(right)}, nil
}

// ClockFrames clocks n frames and returns whatever was reconstructed
// before the first error, if any.
func (m *SimMaster) ClockFrames(n int) ([]Frame, error) {
	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		frame, err := m.ClockFrame()
		if err != nil {
			return frames, fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// clockField clocks 16 bits and reassembles them MSB first.
func (m *SimMaster) clockField() (uint16, error) {
	var field uint16
	for bit := 0; bit < 16; bit++ {
		// The follower must have observed the previous falling edge
		// before the next rising edge, or it can miss the low window
		// entirely and wait on a level that already passed.
		if m.pendingFallEdge {
			if err := m.waitFor(func() bool { return m.BCK.reads.Load() > m.pendingReads }); err != nil {
				return 0, fmt.Errorf("bit %d: falling edge not observed: %w", bit, err)
			}
			m.pendingFallEdge = false
		}

		prevWrites := m.SD.writes.Load()

		// Rising edge: the follower answers by presenting the data bit.
		m.BCK.Set(true)
		if err := m.waitFor(func() bool { return m.SD.writes.Load() > prevWrites }); err != nil {
			return 0, fmt.Errorf("bit %d: no data after rising edge: %w", bit, err)
		}

		field = field<<1 | boolBit(m.SD.Get())

		// Capture the read counter after driving low: a later read is
		// then guaranteed to have seen the low level.
		m.BCK.Set(false)
		m.pendingReads = m.BCK.reads.Load()
		m.pendingFallEdge = true
	}
	return field, nil
}

// waitFor polls cond until true or the timeout elapses.
func (m *SimMaster) waitFor(cond func() bool) error {
	deadline := time.Now().Add(m.Timeout)
	for !cond() {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s", m.Timeout)
		}
		runtime.Gosched()
	}
	return nil
}

func boolBit(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}
