package i2s

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// frameBytes is the wire size of one stereo frame: two little-endian
// signed 16-bit samples, left first.
const frameBytes = 4

// Assembler reassembles raw byte chunks from the host link into frames and
// pushes each completed frame into the fifo, blocking when the fifo is
// full. Chunks carry no alignment guarantee; a frame may straddle two
// chunks, so up to three trailing bytes are carried over between calls.
//
// Push only happens from the link context; the assembler is not safe for
// concurrent Write calls.
type Assembler struct {
	fifo   *Fifo
	logger *slog.Logger

	carry    [frameBytes]byte
	carryLen int

	framesAssembled atomic.Uint64
}

// NewAssembler creates an assembler pushing into fifo.
func NewAssembler(fifo *Fifo, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		fifo:   fifo,
		logger: logger,
	}
}

// Write consumes one chunk of host bytes, pushing every completed frame to
// the fifo in order. It blocks while the fifo is full (backpressure toward
// the host link) and returns an error only if the fifo was closed under it.
func (a *Assembler) Write(chunk []byte) error {
	// Complete a partial frame carried over from the previous chunk.
	if a.carryLen > 0 {
		n := copy(a.carry[a.carryLen:], chunk)
		a.carryLen += n
		chunk = chunk[n:]
		if a.carryLen < frameBytes {
			return nil
		}
		if err := a.pushFrame(a.carry[:]); err != nil {
			return err
		}
		a.carryLen = 0
	}

	for len(chunk) >= frameBytes {
		if err := a.pushFrame(chunk[:frameBytes]); err != nil {
			return err
		}
		chunk = chunk[frameBytes:]
	}

	a.carryLen = copy(a.carry[:], chunk)
	return nil
}

// pushFrame decodes one 4-byte group and pushes it.
func (a *Assembler) pushFrame(b []byte) error {
	frame := Frame{
		Left:  int16(binary.LittleEndian.Uint16(b[0:2])),
		Right: int16(binary.LittleEndian.Uint16(b[2:4])),
	}
	if !a.fifo.Push(frame) {
		return fmt.Errorf("fifo closed with %d frames assembled", a.framesAssembled.Load())
	}
	a.framesAssembled.Add(1)
	return nil
}

// Flush discards any partial frame left at end-of-stream and returns how
// many bytes were dropped. A stream ending mid-frame is accepted policy,
// not an error; there is no complete frame to emit.
func (a *Assembler) Flush() int {
	dropped := a.carryLen
	a.carryLen = 0
	if dropped > 0 {
		a.logger.Debug("discarding partial frame at end of stream", "bytes", dropped)
	}
	return dropped
}

// FramesAssembled returns the number of complete frames pushed so far.
func (a *Assembler) FramesAssembled() uint64 {
	return a.framesAssembled.Load()
}
