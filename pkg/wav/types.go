package wav

import (
	"errors"
	"fmt"
)

// FormatPCM is the audio format code for uncompressed PCM.
const FormatPCM = 1

// FormatDescriptor holds the format parameters decoded from a WAV header.
// It is produced once per stream and never mutated afterwards.
type FormatDescriptor struct {
	AudioFormat   uint16 // 1 = PCM
	Channels      uint16
	SampleRate    uint32 // Hz
	BitsPerSample uint16
	DataOffset    int // byte offset of the first raw sample byte
	DataLen       int // declared size of the data chunk payload in bytes
}

// IsStereo16 reports whether the stream is already in the 16-bit stereo
// layout the transmitter shifts out directly.
func (d *FormatDescriptor) IsStereo16() bool {
	return d.BitsPerSample == 16 && d.Channels == 2
}

func (d *FormatDescriptor) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %d-bit (format %d)",
		d.SampleRate, d.Channels, d.BitsPerSample, d.AudioFormat)
}

// FormatError indicates a malformed or unsupported WAV container.
// It is fatal to starting a transmission session.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "wav: " + e.Reason
}

// ErrNoDataChunk is returned by ParseHeader when the chunk walk ran off
// the end of the provided bytes without a fatal verdict: the data chunk
// lies beyond them, or a fmt payload straddles their end. The caller is
// expected to read more input and retry the chunk walk.
var ErrNoDataChunk = errors.New("wav: data chunk not found in available bytes")
