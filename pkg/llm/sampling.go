package llm

import (
	"fmt"
	"sort"
)

// Sampling holds the generation parameters sent along with every request to
// an adapter. Nil fields are left to the provider default.
type Sampling struct {
	Temperature      *float64 `json:"temperature,omitempty" toml:"temperature,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty" toml:"max_tokens,omitempty"`
	TopP             *float64 `json:"top_p,omitempty" toml:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" toml:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" toml:"presence_penalty,omitempty"`
}

// Named sampling profiles, tuned per kind of task.
const (
	ProfileCodingAndMath       = "coding_and_math"
	ProfileDataCleaning        = "data_cleaning_and_analysis"
	ProfileGeneralConversation = "general_conversation"
	ProfileTranslation         = "translation"
	ProfileCreativeWriting     = "creative_writing_poetry"
)

var profiles = map[string]Sampling{
	ProfileCodingAndMath:       newSampling(0.0, 200, 1, 0, 0),
	ProfileDataCleaning:        newSampling(1.0, 150, 1, 0.2, 0.2),
	ProfileGeneralConversation: newSampling(1.3, 100, 1, 0.3, 0.3),
	ProfileTranslation:         newSampling(1.3, 100, 1, 0, 0),
	ProfileCreativeWriting:     newSampling(1.5, 250, 0.9, 0.5, 0.5),
}

func newSampling(temperature float64, maxTokens int, topP, frequency, presence float64) Sampling {
	return Sampling{
		Temperature:      &temperature,
		MaxTokens:        &maxTokens,
		TopP:             &topP,
		FrequencyPenalty: &frequency,
		PresencePenalty:  &presence,
	}
}

// SamplingProfile returns the named sampling profile. An empty name yields
// the zero Sampling (provider defaults).
func SamplingProfile(name string) (Sampling, error) {
	if name == "" {
		return Sampling{}, nil
	}

	s, ok := profiles[name]
	if !ok {
		return Sampling{}, fmt.Errorf("unknown sampling profile: %q (supported: %v)", name, SamplingProfiles())
	}
	return s, nil
}

// SamplingProfiles returns the sorted list of profile names.
func SamplingProfiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
