package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/relayvoice/relay/pkg/llm"
	"github.com/relayvoice/relay/pkg/turns"
)

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := llm.NewOpenAI("")
	if !errors.Is(err, llm.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestRespond(t *testing.T) {
	ctx := context.Background()

	t.Run("maps persona and history onto chat messages", func(t *testing.T) {
		var captured struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"choices": [{"message": {"content": " Sure, I can help. "}}]}`))
		}))
		defer srv.Close()

		r, err := llm.NewOpenAI("test-key", llm.WithBaseURL(srv.URL))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		reply, err := r.Respond(ctx, llm.ReplyRequest{
			PersonaName:  "Ada",
			Instructions: "Answer billing questions.",
			History: []turns.Turn{
				{Order: 1, Speaker: turns.SpeakerCaller, Text: "Hi"},
				{Order: 2, Speaker: turns.SpeakerAgent, Text: "Hello!"},
				{Order: 3, Speaker: turns.SpeakerCaller, Text: "What's my balance?"},
			},
			Utterance: "What's my balance?",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply != "Sure, I can help." {
			t.Errorf("expected trimmed reply, got %q", reply)
		}

		msgs := captured.Messages
		if len(msgs) != 4 {
			t.Fatalf("expected 4 messages, got %d", len(msgs))
		}
		if msgs[0].Role != "system" {
			t.Errorf("expected system message first, got %s", msgs[0].Role)
		}
		if msgs[1].Role != "user" || msgs[2].Role != "assistant" || msgs[3].Role != "user" {
			t.Errorf("unexpected role sequence: %s %s %s", msgs[1].Role, msgs[2].Role, msgs[3].Role)
		}
		// The utterance is already the last history entry; it must not
		// appear twice.
		if msgs[3].Content != "What's my balance?" {
			t.Errorf("unexpected final message %q", msgs[3].Content)
		}
	})

	t.Run("appends utterance missing from history", func(t *testing.T) {
		var count int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			count = len(payload.Messages)
			w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
		}))
		defer srv.Close()

		r, _ := llm.NewOpenAI("test-key", llm.WithBaseURL(srv.URL))
		_, err := r.Respond(ctx, llm.ReplyRequest{Instructions: "x", Utterance: "hello"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 2 {
			t.Errorf("expected system + user, got %d messages", count)
		}
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}))
		defer srv.Close()

		r, _ := llm.NewOpenAI("test-key", llm.WithBaseURL(srv.URL))
		_, err := r.Respond(ctx, llm.ReplyRequest{Utterance: "hi"})
		if !errors.Is(err, llm.ErrEmptyReply) {
			t.Errorf("expected ErrEmptyReply, got %v", err)
		}
	})

	t.Run("rate limit surfaces as retryable APIError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "slow down"}}`))
		}))
		defer srv.Close()

		r, _ := llm.NewOpenAI("test-key", llm.WithBaseURL(srv.URL))
		_, err := r.Respond(ctx, llm.ReplyRequest{Utterance: "hi"})

		var apiErr *llm.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if !apiErr.IsRetryable() {
			t.Error("expected 429 to be retryable")
		}
	})
}

func TestMock(t *testing.T) {
	ctx := context.Background()

	m := llm.NewMock("canned reply")
	reply, err := m.Respond(ctx, llm.ReplyRequest{Utterance: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "canned reply" {
		t.Errorf("expected canned reply, got %q", reply)
	}
	if m.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", m.CallCount())
	}
	if got := m.Requests()[0].Utterance; got != "hi" {
		t.Errorf("expected recorded utterance, got %q", got)
	}
}
