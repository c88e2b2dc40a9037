package orchestrator

import (
	"errors"
)

// Errors returned by the orchestrator. Callers match them with errors.Is and
// map them to stable kinds with Kind.
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrUnknownPreset          = errors.New("unknown preset")
	ErrUnsupportedModel       = errors.New("unsupported model")
	ErrInvalidConversationKey = errors.New("invalid conversation key")
	ErrValueRequired          = errors.New("value required")
	ErrProviderError          = errors.New("provider error")
	ErrProviderTimeout        = errors.New("provider timeout")
	ErrUnauthorized           = errors.New("unauthorized")
)

// Stable error kinds exposed on the wire.
const (
	KindUserNotFound           = "UserNotFound"
	KindUnknownPreset          = "UnknownPreset"
	KindUnsupportedModel       = "UnsupportedModel"
	KindInvalidConversationKey = "InvalidConversationKey"
	KindValueRequired          = "ValueRequired"
	KindProviderError          = "ProviderError"
	KindProviderTimeout        = "ProviderTimeout"
	KindUnauthorized           = "Unauthorized"
	KindInternal               = "Internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrUserNotFound, KindUserNotFound},
	{ErrUnknownPreset, KindUnknownPreset},
	{ErrUnsupportedModel, KindUnsupportedModel},
	{ErrInvalidConversationKey, KindInvalidConversationKey},
	{ErrValueRequired, KindValueRequired},
	{ErrProviderTimeout, KindProviderTimeout},
	{ErrProviderError, KindProviderError},
	{ErrUnauthorized, KindUnauthorized},
}

// Kind returns the stable kind of err, KindInternal for anything the
// orchestrator did not classify, and "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Message returns the public message for err: the text of its kind's
// sentinel, or "internal error". Wrapped detail is never included.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return "internal error"
}
