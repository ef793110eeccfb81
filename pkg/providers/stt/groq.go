// Package stt holds Transcription Service provider adapters. One file per
// vendor, each exposing a New<Vendor>STT(key, model) constructor and a
// Name() string method, mirroring the teacher's pkg/providers/stt layout
// byte-for-byte in shape.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dictationd/dictationd/pkg/audio"
)

// GroqSTT transcribes a completed utterance via Groq's OpenAI-compatible
// Whisper endpoint, adapted from the teacher's pkg/providers/stt/groq.go:
// same multipart-upload control flow, generalized to the
// dictation.Transcriber interface (no Language parameter — multi-language
// NLU is an explicit spec Non-goal) and wired through this module's own
// pkg/audio WAV framer instead of the teacher's.
type GroqSTT struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

// NewGroqSTT builds a client for the given API key and model. An empty
// model defaults to whisper-large-v3-turbo, as the teacher does.
func NewGroqSTT(apiKey, model string) *GroqSTT {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqSTT{
		apiKey:     apiKey,
		url:        "https://api.groq.com/openai/v1/audio/transcriptions",
		model:      model,
		sampleRate: 16000,
	}
}

// SetSampleRate overrides the WAV header's declared sample rate to match
// the Audio Source's actual capture rate (16kHz per SPEC_FULL.md §3,
// rather than the teacher's 44.1kHz voice-agent default).
func (s *GroqSTT) SetSampleRate(rate int) {
	s.sampleRate = rate
}

// Transcribe uploads pcm as a mono 16-bit WAV file and returns the text
// Groq's Whisper model returns for it.
func (s *GroqSTT) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	wavData := audio.NewWavBuffer(pcm, s.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", fmt.Errorf("groq stt: write model field: %w", err)
	}

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", fmt.Errorf("groq stt: create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return "", fmt.Errorf("groq stt: write audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("groq stt: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return "", fmt.Errorf("groq stt: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq stt: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("groq stt error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("groq stt: decode response: %w", err)
	}

	return result.Text, nil
}

// Name identifies the provider for MODELS:<json>/MODEL_SELECTED: messages.
func (s *GroqSTT) Name() string { return "groq-stt" }
