package i2s

import "sync"

// DefaultFifoCapacity is sized for the small on-chip buffering the device
// offers between the host link and the shift register.
const DefaultFifoCapacity = 16

// Fifo is the bounded frame queue between the assembler (producer) and the
// bit shifter (consumer). Push blocks while full, Pop blocks while empty,
// and frames come out in exactly the order they went in. The fifo never
// times out on its own; a blocked Pop is released only by a frame arriving
// or by Close during session teardown.
type Fifo struct {
	frames chan Frame

	closeOnce sync.Once
	done      chan struct{}
}

// NewFifo creates a fifo holding at most capacity frames. A capacity of
// zero or less selects DefaultFifoCapacity.
func NewFifo(capacity int) *Fifo {
	if capacity <= 0 {
		capacity = DefaultFifoCapacity
	}
	return &Fifo{
		frames: make(chan Frame, capacity),
		done:   make(chan struct{}),
	}
}

// Push appends a frame, blocking while the fifo is full. It returns false
// once the fifo has been closed.
func (f *Fifo) Push(frame Frame) bool {
	select {
	case <-f.done:
		return false
	default:
	}

	select {
	case f.frames <- frame:
		return true
	case <-f.done:
		return false
	}
}

// Pop removes and returns the oldest frame, blocking while the fifo is
// empty. After Close, frames already pushed keep draining; once drained,
// Pop returns false.
func (f *Fifo) Pop() (Frame, bool) {
	select {
	case frame := <-f.frames:
		return frame, true
	case <-f.done:
		// Closed: drain whatever is still queued before reporting end.
		select {
		case frame := <-f.frames:
			return frame, true
		default:
			return Frame{}, false
		}
	}
}

// Len returns the number of queued frames. Advisory only; the value may be
// stale by the time it is read.
func (f *Fifo) Len() int {
	return len(f.frames)
}

// Cap returns the fifo capacity.
func (f *Fifo) Cap() int {
	return cap(f.frames)
}

// Close releases blocked producers and, once the queue drains, blocked
// consumers. It is the external teardown hook for the surrounding session;
// calling it more than once is harmless.
func (f *Fifo) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
	})
}
