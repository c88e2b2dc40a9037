package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SerializeQuestion renders a question payload as text. Strings are kept
// verbatim; any other value is encoded as compact JSON.
func SerializeQuestion(question any) (string, error) {
	switch q := question.(type) {
	case nil:
		return "", nil
	case string:
		return q, nil
	case json.RawMessage:
		return compact(q)
	case []byte:
		return compact(q)
	}

	return encode(question)
}

func compact(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw), nil //nolint:nilerr // not JSON, plain text
	}
	// A JSON string payload is the text it carries.
	if s, ok := v.(string); ok {
		return s, nil
	}
	return encode(v)
}

// encode marshals v without HTML escaping so markup skeletons reach the
// model as written.
func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("serializing question: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// IsEmpty reports whether a serialized question carries no content: blank
// text, or an empty JSON string, null, object or array.
func IsEmpty(serialized string) bool {
	s := strings.TrimSpace(serialized)
	switch s {
	case "", `""`, "null", "{}", "[]":
		return true
	}

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
