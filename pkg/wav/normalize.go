package wav

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Normalize reads a complete PCM WAV stream from r and rewrites it as
// 16-bit stereo little-endian PCM with a rebuilt 44-byte header, the only
// layout the device shifts out directly.
//
// Accepted inputs: 8-bit unsigned, 16-bit, 24-bit and 32-bit signed
// samples, mono or stereo. 8-bit samples are recentered to signed, wider
// samples are truncated down, and mono is duplicated into both channels.
// The returned descriptor describes the normalized stream.
func Normalize(r io.Reader) ([]byte, *FormatDescriptor, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading wav input: %w", err)
	}

	desc, err := ParseHeader(raw)
	if err != nil {
		if err == ErrNoDataChunk {
			return nil, nil, &FormatError{Reason: "no data chunk found"}
		}
		return nil, nil, err
	}

	if desc.AudioFormat != FormatPCM {
		return nil, nil, &FormatError{Reason: fmt.Sprintf("unsupported audio format %d (only PCM)", desc.AudioFormat)}
	}
	if desc.Channels != 1 && desc.Channels != 2 {
		return nil, nil, &FormatError{Reason: fmt.Sprintf("unsupported channel count %d", desc.Channels)}
	}

	// Honor the data chunk's declared length: encoders append metadata
	// chunks (LIST/INFO) after data, and those bytes are not audio.
	data := raw[desc.DataOffset:]
	if desc.DataLen < len(data) {
		data = data[:desc.DataLen]
	}

	samples, err := decodeSamples(data, desc.BitsPerSample)
	if err != nil {
		return nil, nil, err
	}

	if desc.Channels == 1 {
		samples = monoToStereo(samples)
	}

	pcm := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s))
	}

	out := EncodeHeader(desc.SampleRate, 2, 16, len(pcm))
	out = append(out, pcm...)

	normalized := &FormatDescriptor{
		AudioFormat:   FormatPCM,
		Channels:      2,
		SampleRate:    desc.SampleRate,
		BitsPerSample: 16,
		DataOffset:    HeaderSize,
		DataLen:       len(pcm),
	}

	return out, normalized, nil
}

// decodeSamples converts raw little-endian PCM bytes to 16-bit samples.
// Trailing bytes that do not fill a whole sample are dropped.
func decodeSamples(data []byte, bits uint16) ([]int16, error) {
	switch bits {
	case 8:
		// 8-bit WAV samples are unsigned.
		samples := make([]int16, len(data))
		for i, b := range data {
			samples[i] = (int16(b) - 128) * 256
		}
		return samples, nil

	case 16:
		samples := make([]int16, len(data)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
		return samples, nil

	case 24:
		samples := make([]int16, len(data)/3)
		for i := range samples {
			v := int32(data[i*3]) | int32(data[i*3+1])<<8 | int32(data[i*3+2])<<16
			// Sign-extend from 24 bits, then keep the top 16.
			v = v << 8 >> 8
			samples[i] = int16(v >> 8)
		}
		return samples, nil

	case 32:
		samples := make([]int16, len(data)/4)
		for i := range samples {
			v := int32(binary.LittleEndian.Uint32(data[i*4:]))
			samples[i] = int16(v >> 16)
		}
		return samples, nil

	default:
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported bit depth %d", bits)}
	}
}

// monoToStereo duplicates each sample into a left/right pair.
func monoToStereo(samples []int16) []int16 {
	out := make([]int16, 0, len(samples)*2)
	for _, s := range samples {
		out = append(out, s, s)
	}
	return out
}
