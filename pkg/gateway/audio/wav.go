// Package audio provides the canonical audio container used when handing
// accumulated capture windows to the transcription provider.
package audio

import "encoding/binary"

// Capture format negotiated with the browser clients. A 256,000-byte window
// at this format is roughly eight seconds of speech.
const (
	CaptureSampleRate    = 16000
	CaptureBitsPerSample = 16
	CaptureChannels      = 1
)

const headerSize = 44

// PCMToWAV wraps raw PCM samples in a minimal RIFF/WAVE container. The
// header layout is a byte-for-byte contract with the transcription provider;
// do not change field order or widths.
func PCMToWAV(pcm []byte, sampleRate, bitsPerSample, channels int) []byte {
	dataLen := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, headerSize)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen)) // total size - 8
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM format tag
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return append(header, pcm...)
}

// CaptureToWAV wraps a capture window using the negotiated capture format.
func CaptureToWAV(pcm []byte) []byte {
	return PCMToWAV(pcm, CaptureSampleRate, CaptureBitsPerSample, CaptureChannels)
}
