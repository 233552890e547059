// Package twiml builds the XML instruction documents returned to the
// telephony provider after each webhook. A document tells the provider
// what to do next on the call leg: play or speak audio, record the next
// caller utterance, or hang up.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// Response is the root envelope of an instruction document. Verbs are
// executed by the provider in order.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say speaks text to the caller using the provider's built-in voice.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Play fetches and plays an audio URL to the caller.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Record records the caller's next utterance and posts the recording
// reference back to the action URL. If the caller stays silent past
// Timeout the provider falls through to the verbs after Record.
type Record struct {
	XMLName   xml.Name `xml:"Record"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	MaxLength int      `xml:"maxLength,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	PlayBeep  bool     `xml:"playBeep,attr"`
}

// Hangup terminates the call leg.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Append adds verbs to the response in execution order.
func (r *Response) Append(verbs ...any) *Response {
	r.Verbs = append(r.Verbs, verbs...)
	return r
}

// Render marshals the document with the standard XML declaration.
func (r *Response) Render() (string, error) {
	out, err := xml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("twiml: marshal response: %w", err)
	}
	return xml.Header + string(out), nil
}

// Ack returns an empty envelope, acknowledging a provider status ping
// without instructing anything.
func Ack() *Response {
	return &Response{}
}

// PlayAndRecord plays the given audio URL, then records the next caller
// utterance, then hangs up if nothing follows.
func PlayAndRecord(audioURL string, rec Record) *Response {
	return (&Response{}).Append(Play{URL: audioURL}, rec, Hangup{})
}

// SayAndRecord speaks a message, then records the next caller utterance,
// then hangs up if nothing follows.
func SayAndRecord(text string, rec Record) *Response {
	return (&Response{}).Append(Say{Text: text}, rec, Hangup{})
}

// SayAndHangup speaks a closing message and terminates the call.
func SayAndHangup(text string) *Response {
	return (&Response{}).Append(Say{Text: text}, Hangup{})
}
