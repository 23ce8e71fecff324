// Package audio wraps raw synthesized PCM in a WAV container and
// persists generated clips on the local filesystem.
package audio

import "encoding/binary"

// Format describes raw PCM audio returned by a speech synthesizer.
type Format struct {
	SampleRate int // samples per second, e.g. 24000
	Channels   int // 1 for mono
	BitDepth   int // bits per sample, e.g. 16
}

// DefaultFormat matches the hosted speech endpoint's output:
// 24kHz mono 16-bit little-endian PCM.
var DefaultFormat = Format{SampleRate: 24000, Channels: 1, BitDepth: 16}

// WrapPCM prepends a 44-byte RIFF/WAVE header to raw PCM data so the
// result plays directly in a browser audio element.
func WrapPCM(pcm []byte, f Format) []byte {
	if f.SampleRate == 0 {
		f = DefaultFormat
	}

	blockAlign := f.Channels * f.BitDepth / 8
	byteRate := f.SampleRate * blockAlign

	out := make([]byte, 44+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitDepth))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)

	return out
}
