// Package wav parses and writes RIFF/WAVE containers for the streaming
// transmitter: header validation on the receiving side and normalization to
// 16-bit stereo PCM on the sending side.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderSize is the size of a canonical 44-byte WAV header
	// (RIFF header + 16-byte fmt chunk + data chunk header).
	HeaderSize = 44

	// maxHeaderBytes bounds how far ReadHeader will scan for the data
	// chunk before giving up. Real-world files put fmt and data within the
	// first few hundred bytes; 4 KiB leaves room for LIST/INFO chunks.
	maxHeaderBytes = 4096

	fmtChunkMinSize = 16
)

// ParseHeader validates the RIFF/WAVE signature in buf and walks the chunk
// list starting at offset 12, decoding the fmt chunk and locating the start
// of the data chunk payload.
//
// It returns a *FormatError when the magic is absent or no fmt chunk exists
// within buf. When the walk was cut short by the end of buf rather than by
// a malformed chunk (the data chunk lies beyond buf, or the fmt payload
// straddles its end) it returns ErrNoDataChunk; the caller should read more
// bytes and call ParseHeader again. Unknown chunk types are skipped by
// their declared length. The parse is pure; buf is not retained.
func ParseHeader(buf []byte) (*FormatDescriptor, error) {
	if len(buf) < 12 {
		return nil, &FormatError{Reason: fmt.Sprintf("header too short: %d bytes", len(buf))}
	}
	if !bytes.Equal(buf[0:4], []byte("RIFF")) || !bytes.Equal(buf[8:12], []byte("WAVE")) {
		return nil, &FormatError{Reason: "missing RIFF/WAVE signature"}
	}

	var desc *FormatDescriptor
	dataOffset := -1
	dataLen := 0

	pos := 12
	for pos+8 <= len(buf) {
		chunkID := buf[pos : pos+4]
		chunkSize := int(binary.LittleEndian.Uint32(buf[pos+4 : pos+8]))

		switch string(chunkID) {
		case "fmt ":
			if chunkSize < fmtChunkMinSize {
				return nil, &FormatError{Reason: "fmt chunk truncated"}
			}
			if pos+8+fmtChunkMinSize > len(buf) {
				// The fmt payload extends past the provided bytes; only
				// the window is too small, not the chunk.
				return nil, ErrNoDataChunk
			}
			fmtData := buf[pos+8:]
			desc = &FormatDescriptor{
				AudioFormat:   binary.LittleEndian.Uint16(fmtData[0:2]),
				Channels:      binary.LittleEndian.Uint16(fmtData[2:4]),
				SampleRate:    binary.LittleEndian.Uint32(fmtData[4:8]),
				BitsPerSample: binary.LittleEndian.Uint16(fmtData[14:16]),
			}
		case "data":
			dataOffset = pos + 8
			dataLen = chunkSize
		}

		if desc != nil && dataOffset >= 0 {
			desc.DataOffset = dataOffset
			desc.DataLen = dataLen
			return desc, nil
		}

		pos += 8 + chunkSize
	}

	if desc == nil {
		return nil, &FormatError{Reason: "no fmt chunk found"}
	}
	return nil, ErrNoDataChunk
}

// ReadHeader reads a WAV header from r, retrying the chunk walk with
// progressively more input until the data chunk is located.
//
// It returns the decoded descriptor along with any payload bytes that were
// read past the data offset; those belong to the sample stream and must be
// fed to the assembler before further reads from r.
func ReadHeader(r io.Reader) (*FormatDescriptor, []byte, error) {
	buf := make([]byte, 0, 2*HeaderSize)

	// The canonical header is 44 bytes; grow past that only while the
	// data chunk is still missing.
	n, err := grow(r, &buf, HeaderSize)
	if n == 0 && err != nil {
		return nil, nil, fmt.Errorf("reading wav header: %w", err)
	}

	for {
		desc, perr := ParseHeader(buf)
		if perr == nil {
			return desc, buf[desc.DataOffset:], nil
		}
		if perr != ErrNoDataChunk {
			return nil, nil, perr
		}
		if err != nil || len(buf) >= maxHeaderBytes {
			return nil, nil, &FormatError{Reason: "no data chunk found"}
		}
		_, err = grow(r, &buf, len(buf)+256)
	}
}

// grow reads from r until buf holds at least want bytes or r is exhausted.
func grow(r io.Reader, buf *[]byte, want int) (int, error) {
	total := 0
	for len(*buf) < want {
		chunk := make([]byte, want-len(*buf))
		n, err := r.Read(chunk)
		if n > 0 {
			*buf = append(*buf, chunk[:n]...)
			total += n
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}
