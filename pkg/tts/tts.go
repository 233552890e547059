// Package tts provides a unified interface for text-to-speech providers.
//
// Synthesized audio is handed to the telephony provider via the audio
// delivery cache, so providers return complete buffers rather than
// streams; MP3 is the default output since phone media fetchers play it
// directly. ElevenLabs and OpenAI are the bundled backends, Chain tries
// them in order, and Mock serves tests.
//
// Example usage:
//
//	provider, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    tts.WithVoice("your-voice-id"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello world")
//	// result.Audio contains the MP3 bytes
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
// All implementations must satisfy this interface for seamless provider
// switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified encoding.
	Audio []byte

	// Encoding describes the audio codec.
	Encoding Encoding

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round-trip time in milliseconds.
	LatencyMs int64
}

// Duration estimates playback length; only meaningful for PCM output.
func (r *AudioResult) Duration() time.Duration {
	rate := SampleRateFromEncoding(r.Encoding)
	if rate == 0 {
		return 0
	}
	seconds := float64(len(r.Audio)/2) / float64(rate)
	return time.Duration(seconds * float64(time.Second))
}

// Encoding represents audio encoding types.
type Encoding string

const (
	// EncodingMP3 is what the telephony provider's media fetcher plays.
	EncodingMP3 Encoding = "mp3_44100_128"

	// EncodingPCM22 is 22.05kHz mono PCM16.
	EncodingPCM22 Encoding = "pcm_22050"

	// EncodingULaw is 8kHz μ-law, the raw telephony codec.
	EncodingULaw Encoding = "ulaw_8000"
)

// SampleRateFromEncoding extracts the sample rate from an encoding type.
// Returns 0 for compressed encodings.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM22:
		return 22050
	case EncodingULaw:
		return 8000
	default:
		return 0
	}
}

// MIMEFromEncoding returns the Content-Type served for an encoding.
func MIMEFromEncoding(enc Encoding) string {
	switch enc {
	case EncodingPCM22:
		return "audio/pcm"
	case EncodingULaw:
		return "audio/basic"
	default:
		return "audio/mpeg"
	}
}
