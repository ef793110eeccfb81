// Package audio holds small framing helpers shared by Transcription Service
// provider adapters (pkg/providers/stt): wrapping a raw mono PCM utterance
// buffer in a minimal WAV container so providers that expect a file upload
// (rather than a raw PCM stream) can be handed one.
package audio

import (
	"bytes"
	"encoding/binary"
)

// NewWavBuffer wraps mono 16-bit PCM samples in a canonical 44-byte WAV
// header at the given sample rate. Used to package a finalized
// UtteranceBuffer for providers whose API takes an audio file rather than
// raw bytes (e.g. GroqSTT's multipart upload).
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*numChannels*bitsPerSample/8))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels*bitsPerSample/8))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
