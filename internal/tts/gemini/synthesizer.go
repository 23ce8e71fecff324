// Package gemini implements tts.Synthesizer against the Gemini
// generateContent speech endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxsheet/voxsheet/internal/tts"
)

// DefaultBaseURL is the hosted API root used when no override is configured.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// defaultTimeout bounds a single synthesis call when the caller's
// context carries no deadline of its own.
const defaultTimeout = 90 * time.Second

// Synthesizer calls the hosted speech endpoint over HTTP.
type Synthesizer struct {
	apiKey     string
	model      string
	voice      string
	baseURL    string
	sampleRate int
	client     *http.Client
}

// Option adjusts optional synthesizer settings.
type Option func(*Synthesizer)

// WithBaseURL overrides the API root, mainly for tests.
func WithBaseURL(u string) Option {
	return func(s *Synthesizer) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) { s.client = c }
}

// New creates a Synthesizer for the given model and voice.
func New(apiKey, model, voice string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tts api key is required")
	}
	s := &Synthesizer{
		apiKey:     apiKey,
		model:      model,
		voice:      voice,
		baseURL:    DefaultBaseURL,
		sampleRate: 24000,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Request/response shapes for the generateContent speech call.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 PCM
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Synthesize sends one text to the speech endpoint and returns the
// decoded PCM payload.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (*tts.Clip, error) {
	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoice{VoiceName: s.voice},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	reqCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", s.baseURL, s.model)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("speech api error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	data := firstInlineData(out)
	if data == "" {
		return nil, fmt.Errorf("speech response contained no audio data")
	}

	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}

	return &tts.Clip{PCM: pcm, SampleRate: s.sampleRate}, nil
}

// firstInlineData returns the first base64 audio part in the response.
func firstInlineData(r generateResponse) string {
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return p.InlineData.Data
			}
		}
	}
	return ""
}
