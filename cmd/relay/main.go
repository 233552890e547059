// relay: telephony turn-taking service.
// Drives live phone calls as stateless webhook invocations, turning
// caller audio into a spoken agent reply.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/relayvoice/relay/internal/config"
	"github.com/relayvoice/relay/internal/log"
	"github.com/relayvoice/relay/pkg/audiocache"
	"github.com/relayvoice/relay/pkg/call"
	"github.com/relayvoice/relay/pkg/hub"
	"github.com/relayvoice/relay/pkg/llm"
	"github.com/relayvoice/relay/pkg/recording"
	"github.com/relayvoice/relay/pkg/server"
	"github.com/relayvoice/relay/pkg/stt"
	"github.com/relayvoice/relay/pkg/tts"
	"github.com/relayvoice/relay/pkg/turns"
)

var (
	port         = flag.String("port", config.Port(), "HTTP server port")
	baseURL      = flag.String("base-url", config.PublicBaseURL(), "public base URL for playback links")
	maxExchanges = flag.Int("max-exchanges", config.MaxExchanges(), "per-call exchange budget")
)

func main() {
	flag.Parse()
	log.Init(config.LogLevel())

	transcriber, err := stt.NewOpenAI(config.OpenAIKey())
	if err != nil {
		log.Error("transcription unavailable", "error", err)
		os.Exit(1)
	}

	responder, err := llm.NewOpenAI(config.OpenAIKey())
	if err != nil {
		log.Error("reply generation unavailable", "error", err)
		os.Exit(1)
	}

	synthesizer, err := buildSynthesizer()
	if err != nil {
		log.Error("speech synthesis unavailable", "error", err)
		os.Exit(1)
	}
	defer synthesizer.Close()

	store := turns.NewMemoryStore()
	seedAgent(store)

	cache := audiocache.New(audiocache.WithLogger(log.L()))
	cache.Start()
	defer cache.Stop()

	events := hub.New("events")

	orch := call.New(
		recording.NewDownloader(recording.WithLogger(log.L())),
		transcriber,
		responder,
		synthesizer,
		store, store, cache,
		*baseURL,
		call.WithMaxExchanges(*maxExchanges),
		call.WithEvents(events),
		call.WithLogger(log.L()),
	)

	srv := server.New(*port, orch, cache, events)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("relay started",
		"port", *port,
		"base_url", *baseURL,
		"max_exchanges", *maxExchanges,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

// buildSynthesizer prefers ElevenLabs and falls back to OpenAI when
// both are configured.
func buildSynthesizer() (tts.Provider, error) {
	var providers []tts.Provider

	if key := config.ElevenLabsKey(); key != "" {
		el, err := tts.NewElevenLabs(
			tts.WithAPIKey(key),
			tts.WithVoice(config.ElevenLabsVoice()),
			tts.WithLogger(log.L()),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, el)
	}

	if key := config.OpenAIKey(); key != "" {
		oa, err := tts.NewOpenAI(
			tts.WithAPIKey(key),
			tts.WithLogger(log.L()),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, oa)
	}

	return tts.NewChainWithLogger(log.L(), providers...)
}

// seedAgent registers the demo persona from the environment so the
// service answers calls out of the box.
func seedAgent(store *turns.MemoryStore) {
	name := os.Getenv("AGENT_NAME")
	if name == "" {
		name = "Ava"
	}
	instructions := os.Getenv("AGENT_INSTRUCTIONS")
	if instructions == "" {
		instructions = "You are a friendly receptionist. Answer questions briefly and offer to take a message."
	}
	id := os.Getenv("AGENT_ID")
	if id == "" {
		id = "default"
	}
	store.PutAgent(turns.Agent{ID: id, Name: name, Instructions: instructions})
	log.Info("agent registered", "agent_id", id, "name", name)
}
