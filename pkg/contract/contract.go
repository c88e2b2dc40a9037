// Package contract normalizes a provider's free-form reply into the
// structured response contract shared by every preset.
package contract

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Envelope is the structured wire shape every preset instructs the model to
// answer with. Success is a boolean in well-formed replies but models
// occasionally answer with a string, so it is kept loose.
type Envelope struct {
	Message *string `json:"message"`
	Result  any     `json:"result"`
	Success any     `json:"success"`
}

// String renders the envelope as compact JSON.
func (e Envelope) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(b)
}

func strPtr(s string) *string {
	return &s
}

// Acknowledgment is the fixed reply recorded as the answer to the handshake turn.
func Acknowledgment() Envelope {
	return Envelope{
		Message: strPtr("Okay i understood!"),
		Result:  "I am ready!",
		Success: true,
	}
}

// Rejection is the reply a model is instructed to produce when the input does
// not follow the requested format.
func Rejection() Envelope {
	return Envelope{
		Message: strPtr("Please provide your request in the specified JSON format!"),
		Result:  nil,
		Success: false,
	}
}

// Template is the envelope shown to the model as an example of the format.
func Template() Envelope {
	return Envelope{
		Message: strPtr("This area for you, use this area if you want to do comment or advice."),
		Result:  "This area most important use it for results, values etc.",
		Success: "return true only when if you understand what you will do and everything is okay otherwise this area must be false",
	}
}

// Reply is either a parsed JSON value or the raw text the model returned.
// The zero Reply is an empty raw reply.
type Reply struct {
	value      any
	raw        string
	structured bool
}

// Structured wraps an already decoded JSON value.
func Structured(v any) Reply {
	return Reply{value: v, structured: true}
}

// Raw wraps reply text that is passed through verbatim.
func Raw(text string) Reply {
	return Reply{raw: text}
}

// IsStructured reports whether the reply was parsed as JSON.
func (r Reply) IsStructured() bool {
	return r.structured
}

// Value returns the decoded JSON value, or the raw text for raw replies.
func (r Reply) Value() any {
	if r.structured {
		return r.value
	}
	return r.raw
}

// Text returns the raw text of a raw reply, or the compact JSON encoding of
// a structured one.
func (r Reply) Text() string {
	if !r.structured {
		return r.raw
	}
	b, err := json.Marshal(r.value)
	if err != nil {
		return ""
	}
	return string(b)
}

// MarshalJSON emits the structured value as is, or the raw text as a JSON string.
func (r Reply) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

const fence = "```"

// Resolve parses raw as JSON after stripping a surrounding markdown code
// fence. It never fails: text that is not valid JSON comes back as a Raw
// reply carrying the original, unstripped text.
func Resolve(raw string) Reply {
	body := StripFence(raw)

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return Raw(raw)
	}
	// Anything after the first value, even malformed, means the reply was
	// not a single JSON value.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Raw(raw)
	}

	return Structured(v)
}

// StripFence removes a leading ```json (or bare ```) opener and, when the
// text ends with one, the ``` closer. Text without an opener is returned
// trimmed.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, fence) {
		return s
	}

	s = strings.TrimPrefix(s, fence)
	// Drop the info string (e.g. "json") on the opener line.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		info := strings.TrimSpace(s[:nl])
		if info == "" || isInfoString(info) {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

func isInfoString(s string) bool {
	for _, c := range []byte(s) {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}
