package twiml_test

import (
	"strings"
	"testing"

	"github.com/relayvoice/relay/pkg/twiml"
)

func TestRender(t *testing.T) {
	t.Run("empty ack", func(t *testing.T) {
		out, err := twiml.Ack().Render()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "<Response></Response>") {
			t.Errorf("expected empty envelope, got %s", out)
		}
		if !strings.HasPrefix(out, "<?xml") {
			t.Errorf("expected XML declaration, got %s", out)
		}
	})

	t.Run("play then record then hangup", func(t *testing.T) {
		resp := twiml.PlayAndRecord("https://example.com/audio/abc", twiml.Record{
			Action:    "https://example.com/voice?call=1",
			Method:    "POST",
			MaxLength: 30,
			Timeout:   5,
		})
		out, err := resp.Render()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		playIdx := strings.Index(out, "<Play>")
		recordIdx := strings.Index(out, "<Record")
		hangupIdx := strings.Index(out, "<Hangup")
		if playIdx < 0 || recordIdx < 0 || hangupIdx < 0 {
			t.Fatalf("missing verbs in %s", out)
		}
		if !(playIdx < recordIdx && recordIdx < hangupIdx) {
			t.Errorf("verbs out of order: %s", out)
		}
		if !strings.Contains(out, "https://example.com/audio/abc") {
			t.Errorf("missing audio URL: %s", out)
		}
		if !strings.Contains(out, `maxLength="30"`) {
			t.Errorf("missing maxLength attribute: %s", out)
		}
	})

	t.Run("say and hangup", func(t *testing.T) {
		out, err := twiml.SayAndHangup("Goodbye.").Render()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "<Say>Goodbye.</Say>") {
			t.Errorf("missing say verb: %s", out)
		}
		if !strings.Contains(out, "<Hangup") {
			t.Errorf("missing hangup verb: %s", out)
		}
	})

	t.Run("say escapes markup", func(t *testing.T) {
		out, err := twiml.SayAndHangup("a < b & c").Render()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "a &lt; b &amp; c") {
			t.Errorf("expected escaped text, got %s", out)
		}
	})
}
