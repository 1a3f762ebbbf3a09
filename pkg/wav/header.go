package wav

import "encoding/binary"

// EncodeHeader builds a canonical 44-byte WAV header for a PCM stream with
// the given format followed by dataLen bytes of raw samples.
func EncodeHeader(sampleRate uint32, channels, bitsPerSample uint16, dataLen int) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * uint32(blockAlign)

	buf := make([]byte, 0, HeaderSize)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataLen))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, fmtChunkMinSize)
	buf = binary.LittleEndian.AppendUint16(buf, FormatPCM)
	buf = binary.LittleEndian.AppendUint16(buf, channels)
	buf = binary.LittleEndian.AppendUint32(buf, sampleRate)
	buf = binary.LittleEndian.AppendUint32(buf, byteRate)
	buf = binary.LittleEndian.AppendUint16(buf, blockAlign)
	buf = binary.LittleEndian.AppendUint16(buf, bitsPerSample)

	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataLen))

	return buf
}
