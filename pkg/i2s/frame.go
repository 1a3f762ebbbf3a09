// Package i2s implements the device-side transmit core: stereo frames, the
// bounded fifo between the host link and the clocked shifter, the byte
// stream assembler, and the externally clocked bit shift state machine.
package i2s

// Frame is one stereo sample pair. It is immutable once constructed and
// consumed exactly once by the bit shifter.
type Frame struct {
	Left  int16
	Right int16
}

// Word packs the frame into the 32-bit transmit word: left channel in the
// upper 16 bits, right channel in the lower 16 bits.
func (f Frame) Word() uint32 {
	return uint32(uint16(f.Left))<<16 | uint32(uint16(f.Right))
}

// FrameFromWord unpacks a 32-bit transmit word back into a frame.
func FrameFromWord(w uint32) Frame {
	return Frame{
		Left:  int16(w >> 16),
		Right: int16(w),
	}
}
