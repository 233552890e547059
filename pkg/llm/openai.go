package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/relayvoice/relay/internal/httpc"
	"github.com/relayvoice/relay/pkg/turns"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	defaultModel  = "gpt-4o-mini"

	// Replies are spoken over the phone; keep them short.
	defaultMaxTokens   = 256
	defaultTemperature = 0.7
)

// OpenAI implements Responder using the chat completions API.
type OpenAI struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
	logger    *slog.Logger
}

// OpenAIOption configures the OpenAI responder.
type OpenAIOption func(*OpenAI)

// WithModel overrides the completion model.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		o.model = model
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(o *OpenAI) {
		o.baseURL = url
	}
}

// WithMaxTokens overrides the reply length cap.
func WithMaxTokens(n int) OpenAIOption {
	return func(o *OpenAI) {
		o.maxTokens = n
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(o *OpenAI) {
		o.client = client
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(o *OpenAI) {
		o.logger = logger
	}
}

// NewOpenAI creates a chat-completions-backed responder.
func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	o := &OpenAI{
		apiKey:    apiKey,
		model:     defaultModel,
		baseURL:   openAIBaseURL,
		maxTokens: defaultMaxTokens,
		client:    httpc.NewClient(30 * time.Second),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "llm.openai")
	return o, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Respond generates the agent's reply from persona and history.
func (o *OpenAI) Respond(ctx context.Context, req ReplyRequest) (string, error) {
	start := time.Now()

	payload := map[string]any{
		"model":       o.model,
		"messages":    buildMessages(req),
		"max_tokens":  o.maxTokens,
		"temperature": defaultTemperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, Message: parseAPIMessage(raw)}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}

	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}

	o.logger.Debug("generated reply",
		"history_turns", len(req.History),
		"chars", len(reply),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}

// buildMessages maps the persona and turn history onto the chat format.
// Caller turns become user messages, agent turns assistant messages; the
// newest caller utterance is already the last history entry, so it is
// not appended twice.
func buildMessages(req ReplyRequest) []chatMessage {
	system := req.Instructions
	if req.PersonaName != "" {
		system = fmt.Sprintf("You are %s, speaking with a caller on the phone. Keep replies brief and conversational.\n\n%s", req.PersonaName, req.Instructions)
	}

	messages := make([]chatMessage, 0, len(req.History)+2)
	messages = append(messages, chatMessage{Role: "system", Content: system})

	appended := false
	for _, turn := range req.History {
		role := "user"
		if turn.Speaker == turns.SpeakerAgent {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Text})
		if turn.Speaker == turns.SpeakerCaller && turn.Text == req.Utterance {
			appended = true
		}
	}
	if !appended && req.Utterance != "" {
		messages = append(messages, chatMessage{Role: "user", Content: req.Utterance})
	}
	return messages
}

// parseAPIMessage pulls the message out of an OpenAI error body.
func parseAPIMessage(raw []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &errResp) == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return string(raw)
}

// Verify OpenAI implements Responder at compile time.
var _ Responder = (*OpenAI)(nil)
