// Package config provides configuration helpers for relay commands.
package config

import (
	"os"
	"strconv"
)

// Default service configuration.
const (
	DefaultPort         = "8080"
	DefaultMaxExchanges = 10
	DefaultLogLevel     = "info"
)

// Port returns the HTTP port from the PORT env var or the default.
func Port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// LogLevel returns the log level from LOG_LEVEL or the default.
func LogLevel() string {
	if l := os.Getenv("LOG_LEVEL"); l != "" {
		return l
	}
	return DefaultLogLevel
}

// PublicBaseURL returns the externally reachable base URL from
// PUBLIC_BASE_URL. The telephony provider fetches synthesized audio
// from this host, so it must be routable from the public internet.
func PublicBaseURL() string {
	if u := os.Getenv("PUBLIC_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:" + Port()
}

// MaxExchanges returns the per-call exchange budget from MAX_EXCHANGES.
// One exchange is a caller turn plus the agent's reply.
func MaxExchanges() int {
	if v := os.Getenv("MAX_EXCHANGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxExchanges
}

// OpenAIKey returns the OpenAI API key from OPENAI_API_KEY.
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// ElevenLabsKey returns the ElevenLabs API key from ELEVENLABS_API_KEY.
func ElevenLabsKey() string {
	return os.Getenv("ELEVENLABS_API_KEY")
}

// ElevenLabsVoice returns the voice ID from ELEVENLABS_VOICE_ID.
func ElevenLabsVoice() string {
	return os.Getenv("ELEVENLABS_VOICE_ID")
}
