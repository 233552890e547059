// Package call drives one webhook invocation of a live phone call: it
// rebuilds the call state from persisted turns, runs the caller's audio
// through transcription, reply generation, and speech synthesis, and
// answers with the instruction document for the provider's next step.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relayvoice/relay/pkg/audiocache"
	"github.com/relayvoice/relay/pkg/hub"
	"github.com/relayvoice/relay/pkg/llm"
	"github.com/relayvoice/relay/pkg/stt"
	"github.com/relayvoice/relay/pkg/tts"
	"github.com/relayvoice/relay/pkg/turns"
	"github.com/relayvoice/relay/pkg/twiml"
)

// Spoken prompts. The caller never hears internal error detail.
const (
	promptReprompt    = "Sorry, I didn't catch that. Could you say it again?"
	promptRetry       = "Sorry, something went wrong on my end. Please go ahead."
	promptFatal       = "We're sorry, an application error has occurred. Goodbye."
	promptGoodbye     = "Thanks for calling. Goodbye!"
	promptUnavailable = "The party you are trying to reach is unavailable. Goodbye."
	promptTimeout     = "It seems you've stepped away. Goodbye!"
)

// Recording verb parameters sent back to the provider.
const (
	recordMaxLengthSec = 30
	recordTimeoutSec   = 5
)

// Per-service deadlines. A hung upstream must not hold the
// telephony-facing request open.
const (
	downloadTimeout   = 15 * time.Second
	transcribeTimeout = 30 * time.Second
	generateTimeout   = 30 * time.Second
	synthesizeTimeout = 30 * time.Second
)

// Downloader fetches the caller's recording from the provider's storage.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// EventSink receives call lifecycle events. *hub.Hub satisfies it.
type EventSink interface {
	Publish(ev hub.Event)
}

// Webhook is one inbound invocation from the telephony provider.
type Webhook struct {
	CallID  string
	AgentID string

	// RecordingURL references the caller's new utterance. Empty for
	// provider status pings, which are acknowledged without side effects.
	RecordingURL string
}

// Orchestrator handles webhooks. It is stateless between invocations;
// all cross-request state lives in the turn store and the audio cache.
type Orchestrator struct {
	downloader  Downloader
	transcriber stt.Transcriber
	responder   llm.Responder
	synthesizer tts.Provider
	store       turns.Store
	agents      turns.AgentStore
	cache       *audiocache.Cache

	baseURL      string
	maxExchanges int
	events       EventSink
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEvents sets the sink for call lifecycle events.
func WithEvents(sink EventSink) Option {
	return func(o *Orchestrator) { o.events = sink }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger.With("component", "call") }
}

// WithMaxExchanges bounds the call at n caller/agent exchanges.
func WithMaxExchanges(n int) Option {
	return func(o *Orchestrator) { o.maxExchanges = n }
}

// New creates an orchestrator. baseURL is the public base used to build
// the playback URLs handed to the provider.
func New(
	downloader Downloader,
	transcriber stt.Transcriber,
	responder llm.Responder,
	synthesizer tts.Provider,
	store turns.Store,
	agents turns.AgentStore,
	cache *audiocache.Cache,
	baseURL string,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		downloader:   downloader,
		transcriber:  transcriber,
		responder:    responder,
		synthesizer:  synthesizer,
		store:        store,
		agents:       agents,
		cache:        cache,
		baseURL:      strings.TrimRight(baseURL, "/"),
		maxExchanges: 10,
		logger:       slog.Default().With("component", "call"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle processes one webhook and always returns an instruction
// document. Errors never escape: each failure mode maps to a spoken
// instruction per the error taxonomy.
func (o *Orchestrator) Handle(ctx context.Context, wh Webhook) *twiml.Response {
	logger := o.logger.With("call_id", wh.CallID, "agent_id", wh.AgentID)

	// Provider status pings carry no recording and are not turns.
	if wh.RecordingURL == "" {
		return twiml.Ack()
	}

	// The recording is gone if this fails; nothing to retry on.
	audio, err := o.download(ctx, wh.RecordingURL)
	if err != nil {
		logger.Error("recording download failed", "url", wh.RecordingURL, "error", err)
		o.publish(hub.Event{Kind: hub.KindCallError, CallID: wh.CallID, AgentID: wh.AgentID, Detail: "recording download failed"})
		return twiml.SayAndHangup(promptFatal)
	}

	transcript, err := o.transcribe(ctx, audio)
	if err != nil {
		logger.Error("transcription failed", "error", err)
		return o.recover(wh)
	}

	// Empty transcript: re-prompt without consuming the turn budget. The
	// timeout goodbye rides along; the provider picks the branch.
	if strings.TrimSpace(transcript) == "" {
		logger.Info("empty transcript, reprompting")
		return (&twiml.Response{}).Append(
			twiml.Say{Text: promptReprompt},
			o.recordVerb(wh),
			twiml.Say{Text: promptTimeout},
			twiml.Hangup{},
		)
	}

	history, err := o.store.List(ctx, wh.CallID)
	if err != nil {
		logger.Error("list turns failed", "error", err)
		return o.recover(wh)
	}
	order := len(history) + 1

	callerTurn := turns.Turn{
		CallID:    wh.CallID,
		Order:     order,
		Speaker:   turns.SpeakerCaller,
		Text:      transcript,
		AudioURL:  wh.RecordingURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.Append(ctx, callerTurn); err != nil {
		logger.Error("persist caller turn failed", "order", order, "error", err)
		return o.recover(wh)
	}
	o.publish(hub.Event{Kind: hub.KindCallerTurn, CallID: wh.CallID, AgentID: wh.AgentID, Order: order, Text: transcript})
	history = append(history, callerTurn)

	// Each exchange is one caller turn plus one agent turn; the derived
	// phase says whether the budget allows another.
	if turns.DerivePhase(history, o.maxExchanges) == turns.PhaseTerminated {
		logger.Info("exchange budget reached, closing call", "order", order)
		o.publish(hub.Event{Kind: hub.KindCallEnded, CallID: wh.CallID, AgentID: wh.AgentID, Detail: "exchange budget reached"})
		return twiml.SayAndHangup(promptGoodbye)
	}

	agent, err := o.agents.GetAgent(ctx, wh.AgentID)
	if err != nil {
		if errors.Is(err, turns.ErrAgentNotFound) {
			logger.Warn("agent not found")
			o.publish(hub.Event{Kind: hub.KindCallEnded, CallID: wh.CallID, AgentID: wh.AgentID, Detail: "agent not found"})
			return twiml.SayAndHangup(promptUnavailable)
		}
		logger.Error("agent lookup failed", "error", err)
		return o.recover(wh)
	}

	reply, err := o.generate(ctx, agent, history, transcript)
	if err != nil {
		logger.Error("reply generation failed", "error", err)
		return o.recover(wh)
	}

	agentTurn := turns.Turn{
		CallID:    wh.CallID,
		Order:     order + 1,
		Speaker:   turns.SpeakerAgent,
		Text:      reply,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.Append(ctx, agentTurn); err != nil {
		logger.Error("persist agent turn failed", "order", order+1, "error", err)
		return o.recover(wh)
	}
	o.publish(hub.Event{Kind: hub.KindAgentTurn, CallID: wh.CallID, AgentID: wh.AgentID, Order: order + 1, Text: reply})

	speech, err := o.synthesize(ctx, reply)
	if err != nil {
		logger.Error("speech synthesis failed", "error", err)
		return o.recover(wh)
	}

	assetID := uuid.NewString()
	o.cache.Store(assetID, speech)

	logger.Info("turn complete",
		"order", order,
		"transcript_chars", len(transcript),
		"reply_chars", len(reply),
		"audio_bytes", len(speech),
	)

	return twiml.PlayAndRecord(o.assetURL(assetID), o.recordVerb(wh))
}

// recover keeps the call alive after a transient failure: the caller
// hears an apology and gets recorded again under the same budget.
func (o *Orchestrator) recover(wh Webhook) *twiml.Response {
	o.publish(hub.Event{Kind: hub.KindCallError, CallID: wh.CallID, AgentID: wh.AgentID, Detail: "transient failure, retrying"})
	return twiml.SayAndRecord(promptRetry, o.recordVerb(wh))
}

func (o *Orchestrator) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	return o.downloader.Download(ctx, url)
}

func (o *Orchestrator) transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()
	return o.transcriber.Transcribe(ctx, audio)
}

func (o *Orchestrator) generate(ctx context.Context, agent turns.Agent, history []turns.Turn, utterance string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	return o.responder.Respond(ctx, llm.ReplyRequest{
		PersonaName:  agent.Name,
		Instructions: agent.Instructions,
		History:      history,
		Utterance:    utterance,
	})
}

func (o *Orchestrator) synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, synthesizeTimeout)
	defer cancel()
	result, err := o.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	return result.Audio, nil
}

// recordVerb builds the record instruction pointing back at the webhook.
func (o *Orchestrator) recordVerb(wh Webhook) twiml.Record {
	q := url.Values{"call": {wh.CallID}, "agent": {wh.AgentID}}
	return twiml.Record{
		Action:    fmt.Sprintf("%s/voice?%s", o.baseURL, q.Encode()),
		Method:    "POST",
		MaxLength: recordMaxLengthSec,
		Timeout:   recordTimeoutSec,
	}
}

// assetURL builds the playback URL for a cached asset.
func (o *Orchestrator) assetURL(id string) string {
	return fmt.Sprintf("%s/voice/audio/%s", o.baseURL, id)
}

func (o *Orchestrator) publish(ev hub.Event) {
	if o.events != nil {
		o.events.Publish(ev)
	}
}
