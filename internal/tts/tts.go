// Package tts converts short texts to synthesized speech through a
// hosted generative speech API.
package tts

import "context"

// Clip is one synthesized utterance as raw PCM.
type Clip struct {
	// PCM is 16-bit little-endian mono audio.
	PCM []byte

	// SampleRate is the audio sample rate in Hz.
	SampleRate int
}

// Synthesizer converts text to audio. Implementations wrap a specific
// hosted provider; callers treat synthesis as a slow, fallible call and
// must pass a context with an appropriate deadline.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Clip, error)
}
