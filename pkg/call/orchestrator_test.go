package call_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/relayvoice/relay/pkg/audiocache"
	"github.com/relayvoice/relay/pkg/call"
	"github.com/relayvoice/relay/pkg/llm"
	"github.com/relayvoice/relay/pkg/stt"
	"github.com/relayvoice/relay/pkg/tts"
	"github.com/relayvoice/relay/pkg/turns"
)

type downloaderFunc func(ctx context.Context, url string) ([]byte, error)

func (f downloaderFunc) Download(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

var okDownloader = downloaderFunc(func(ctx context.Context, url string) ([]byte, error) {
	return []byte("caller audio"), nil
})

type fixture struct {
	orch  *call.Orchestrator
	store *turns.MemoryStore
	cache *audiocache.Cache
}

func newFixture(t *testing.T, opts ...func(*deps)) *fixture {
	t.Helper()

	d := &deps{
		downloader:  okDownloader,
		transcriber: stt.NewMock("hello, I need help with my order"),
		responder:   llm.NewMock("Happy to help! What's the order number?"),
		synthesizer: tts.NewMock([]byte("agent speech mp3")),
	}
	for _, opt := range opts {
		opt(d)
	}

	store := turns.NewMemoryStore()
	store.PutAgent(turns.Agent{ID: "agent-1", Name: "Ava", Instructions: "Be helpful."})
	cache := audiocache.New()

	orch := call.New(
		d.downloader, d.transcriber, d.responder, d.synthesizer,
		store, store, cache,
		"https://relay.example.com",
		call.WithMaxExchanges(3),
	)
	return &fixture{orch: orch, store: store, cache: cache}
}

type deps struct {
	downloader  call.Downloader
	transcriber stt.Transcriber
	responder   llm.Responder
	synthesizer tts.Provider
}

func render(t *testing.T, resp interface{ Render() (string, error) }) string {
	t.Helper()
	out, err := resp.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return out
}

func webhook() call.Webhook {
	return call.Webhook{
		CallID:       "call-1",
		AgentID:      "agent-1",
		RecordingURL: "https://media.example.com/rec-1.wav",
	}
}

func TestStatusPingAcknowledged(t *testing.T) {
	f := newFixture(t)

	wh := webhook()
	wh.RecordingURL = ""
	xml := render(t, f.orch.Handle(context.Background(), wh))

	if !strings.Contains(xml, "<Response></Response>") {
		t.Errorf("expected empty envelope, got %s", xml)
	}
	if n, _ := f.store.Count(context.Background(), "call-1"); n != 0 {
		t.Errorf("turns persisted = %d, want 0", n)
	}
}

func TestHappyPath(t *testing.T) {
	f := newFixture(t)

	xml := render(t, f.orch.Handle(context.Background(), webhook()))

	history, err := f.store.List(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("turns persisted = %d, want 2", len(history))
	}
	if history[0].Speaker != turns.SpeakerCaller || history[0].Order != 1 {
		t.Errorf("first turn = %+v", history[0])
	}
	if history[1].Speaker != turns.SpeakerAgent || history[1].Order != 2 {
		t.Errorf("second turn = %+v", history[1])
	}
	if history[0].Text != "hello, I need help with my order" {
		t.Errorf("caller text = %q", history[0].Text)
	}

	if f.cache.Len() != 1 {
		t.Fatalf("cached assets = %d, want 1", f.cache.Len())
	}

	playIdx := strings.Index(xml, "<Play>")
	recordIdx := strings.Index(xml, "<Record")
	if playIdx == -1 || recordIdx == -1 || playIdx > recordIdx {
		t.Fatalf("expected <Play> before <Record>, got %s", xml)
	}

	// The played URL must reference the cached asset id.
	start := strings.Index(xml, "/voice/audio/") + len("/voice/audio/")
	end := strings.Index(xml[start:], "<")
	assetID := xml[start : start+end]
	if buf, ok := f.cache.Take(assetID); !ok || string(buf) != "agent speech mp3" {
		t.Errorf("cached asset for id %q: ok=%v buf=%q", assetID, ok, buf)
	}
}

func TestDownloadFailureHangsUp(t *testing.T) {
	f := newFixture(t, func(d *deps) {
		d.downloader = downloaderFunc(func(ctx context.Context, url string) ([]byte, error) {
			return nil, fmt.Errorf("fetch %s: status 500", url)
		})
	})

	xml := render(t, f.orch.Handle(context.Background(), webhook()))

	if !strings.Contains(xml, "<Hangup") {
		t.Errorf("expected hangup, got %s", xml)
	}
	if strings.Contains(xml, "<Record") || strings.Contains(xml, "<Play>") {
		t.Errorf("fatal failure must not record or play, got %s", xml)
	}
	if n, _ := f.store.Count(context.Background(), "call-1"); n != 0 {
		t.Errorf("turns persisted = %d, want 0", n)
	}
}

func TestEmptyTranscriptReprompts(t *testing.T) {
	f := newFixture(t, func(d *deps) {
		d.transcriber = stt.NewMock("   ")
	})

	xml := render(t, f.orch.Handle(context.Background(), webhook()))

	if !strings.Contains(xml, "didn't catch that") {
		t.Errorf("expected reprompt, got %s", xml)
	}
	if !strings.Contains(xml, "<Record") {
		t.Errorf("reprompt must record again, got %s", xml)
	}
	if !strings.Contains(xml, "<Hangup") {
		t.Errorf("reprompt must carry the timeout hangup, got %s", xml)
	}
	if n, _ := f.store.Count(context.Background(), "call-1"); n != 0 {
		t.Errorf("empty transcript must not persist turns, got %d", n)
	}
}

func TestExchangeBudgetClosesCall(t *testing.T) {
	f := newFixture(t)

	// Seed 2*max - 1 turns; the next caller turn lands on the budget.
	for i := 1; i <= 5; i++ {
		speaker := turns.SpeakerCaller
		if i%2 == 0 {
			speaker = turns.SpeakerAgent
		}
		err := f.store.Append(context.Background(), turns.Turn{
			CallID: "call-1", Order: i, Speaker: speaker, Text: "x", CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("seed turn %d: %v", i, err)
		}
	}

	xml := render(t, f.orch.Handle(context.Background(), webhook()))

	if !strings.Contains(xml, "<Hangup") {
		t.Errorf("expected goodbye hangup, got %s", xml)
	}
	if strings.Contains(xml, "<Record") {
		t.Errorf("budget-exhausted call must never record, got %s", xml)
	}

	// The closing caller turn is still persisted.
	history, _ := f.store.List(context.Background(), "call-1")
	if len(history) != 6 {
		t.Errorf("turns = %d, want 6", len(history))
	}
	if last := history[len(history)-1]; last.Speaker != turns.SpeakerCaller {
		t.Errorf("last turn speaker = %q", last.Speaker)
	}
}

func TestUnknownAgentHangsUp(t *testing.T) {
	f := newFixture(t)

	wh := webhook()
	wh.AgentID = "agent-gone"
	xml := render(t, f.orch.Handle(context.Background(), wh))

	if !strings.Contains(xml, "unavailable") || !strings.Contains(xml, "<Hangup") {
		t.Errorf("expected unavailable hangup, got %s", xml)
	}
	if strings.Contains(xml, "<Record") {
		t.Errorf("unknown agent must not record, got %s", xml)
	}
}

func TestTranscriptionFailureRecovers(t *testing.T) {
	f := newFixture(t, func(d *deps) {
		d.transcriber = stt.WithError(errors.New("whisper: connection reset"))
	})

	xml := render(t, f.orch.Handle(context.Background(), webhook()))

	if !strings.Contains(xml, "<Say>") || !strings.Contains(xml, "<Record") {
		t.Errorf("recoverable failure must apologize and record again, got %s", xml)
	}
	if n, _ := f.store.Count(context.Background(), "call-1"); n != 0 {
		t.Errorf("turns persisted = %d, want 0", n)
	}
}

func TestSynthesisFailureRecovers(t *testing.T) {
	f := newFixture(t, func(d *deps) {
		d.synthesizer = tts.NewMockWithError(errors.New("tts down"))
	})

	xml := render(t, f.orch.Handle(context.Background(), webhook()))

	if !strings.Contains(xml, "<Record") {
		t.Errorf("recoverable failure must record again, got %s", xml)
	}
	if strings.Contains(xml, "<Play>") {
		t.Errorf("no audio to play on synthesis failure, got %s", xml)
	}

	// Both turns were persisted before synthesis failed.
	if n, _ := f.store.Count(context.Background(), "call-1"); n != 2 {
		t.Errorf("turns persisted = %d, want 2", n)
	}
	if f.cache.Len() != 0 {
		t.Errorf("cache should be empty, got %d", f.cache.Len())
	}
}

func TestDuplicateDeliveryRecovers(t *testing.T) {
	f := newFixture(t)

	// A turn already occupies order 1, as after a redelivered webhook.
	err := f.store.Append(context.Background(), turns.Turn{
		CallID: "call-1", Order: 1, Speaker: turns.SpeakerCaller, Text: "first", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Force the orchestrator to recompute order 1 by racing the history
	// read: a store whose List lags behind Append simulates the
	// redelivery.
	stale := &staleHistoryStore{MemoryStore: f.store}
	orch := call.New(
		okDownloader,
		stt.NewMock("again"),
		llm.NewMock("reply"),
		tts.NewMock([]byte("mp3")),
		stale, f.store, f.cache,
		"https://relay.example.com",
		call.WithMaxExchanges(3),
	)

	xml := render(t, orch.Handle(context.Background(), webhook()))

	if !strings.Contains(xml, "<Record") {
		t.Errorf("duplicate delivery should recover, got %s", xml)
	}
	if n, _ := f.store.Count(context.Background(), "call-1"); n != 1 {
		t.Errorf("turns = %d, want 1 (duplicate rejected)", n)
	}
}

// staleHistoryStore reports an empty history while delegating everything
// else, reproducing the window where a redelivered webhook re-derives an
// already-taken order index.
type staleHistoryStore struct {
	*turns.MemoryStore
}

func (s *staleHistoryStore) List(ctx context.Context, callID string) ([]turns.Turn, error) {
	return nil, nil
}

func TestRecordActionEscapesIDs(t *testing.T) {
	f := newFixture(t)

	wh := call.Webhook{
		CallID:       "call 1&order=9",
		AgentID:      "agent-1",
		RecordingURL: "https://media.example.com/rec-1.wav",
	}

	xml := render(t, f.orch.Handle(context.Background(), wh))

	if !strings.Contains(xml, "call=call+1%26order%3D9") {
		t.Errorf("call id not escaped in action URL: %s", xml)
	}
	if strings.Contains(xml, "call=call 1") {
		t.Errorf("raw call id leaked into action URL: %s", xml)
	}
}

// TestMultiTurnOrdering drives whole calls through the webhook pipeline
// and checks the contiguity and alternation invariant on the persisted
// history.
func TestMultiTurnOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 10; trial++ {
		maxExchanges := 1 + rng.Intn(5)

		store := turns.NewMemoryStore()
		store.PutAgent(turns.Agent{ID: "agent-1", Name: "Ava", Instructions: "Be helpful."})
		cache := audiocache.New()
		orch := call.New(
			okDownloader,
			stt.NewMock("caller says something"),
			llm.NewMock("agent replies"),
			tts.NewMock([]byte("mp3")),
			store, store, cache,
			"https://relay.example.com",
			call.WithMaxExchanges(maxExchanges),
		)

		// Every webhook inside the budget yields a full exchange.
		for i := 0; i < maxExchanges; i++ {
			xml := render(t, orch.Handle(context.Background(), webhook()))
			if !strings.Contains(xml, "<Play>") || !strings.Contains(xml, "<Record") {
				t.Fatalf("max=%d webhook %d: expected play+record, got %s", maxExchanges, i+1, xml)
			}
		}

		// The webhook after the budget closes the call.
		xml := render(t, orch.Handle(context.Background(), webhook()))
		if !strings.Contains(xml, "<Hangup") || strings.Contains(xml, "<Record") {
			t.Fatalf("max=%d: expected goodbye without record, got %s", maxExchanges, xml)
		}

		history, err := store.List(context.Background(), "call-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(history) != 2*maxExchanges+1 {
			t.Fatalf("max=%d: turns = %d, want %d", maxExchanges, len(history), 2*maxExchanges+1)
		}
		for i, turn := range history {
			if turn.Order != i+1 {
				t.Errorf("max=%d: turn %d has order %d", maxExchanges, i, turn.Order)
			}
			want := turns.SpeakerCaller
			if i%2 == 1 {
				want = turns.SpeakerAgent
			}
			if turn.Speaker != want {
				t.Errorf("max=%d: turn %d speaker = %q, want %q", maxExchanges, i+1, turn.Speaker, want)
			}
		}
	}
}
