package preset

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/parley/pkg/contract"
)

// Built-in preset names.
const (
	JSONGenerator = "json_generator"
	Assistant     = "assistant"
)

func builtins() []Preset {
	return []Preset{
		{
			Name:        JSONGenerator,
			Description: "Fills JSON, HTML or XML skeletons sent by a program with plausible values.",
			Build:       buildJSONGenerator,
		},
		{
			Name:        Assistant,
			Description: "General purpose plain text conversation.",
			Build:       buildAssistant,
		},
	}
}

func introduce(fullname, preferredLang string) string {
	lines := []string{"Hello there. This is pre-informing message for you:"}
	if fullname != "" {
		lines = append(lines, fmt.Sprintf("My name is %s.", fullname))
	}
	lines = append(lines, fmt.Sprintf("Please speak with me in %s language, until i say change language.", preferredLang))
	return strings.Join(lines, "\n")
}

func responseFormat(format string, example contract.Envelope) string {
	return strings.Join([]string{
		fmt.Sprintf("I will meet you with a robot. So please give me response with %s format that for robot understand you!", format),
		fmt.Sprintf("There is a example for you:\n %s.", example),
	}, "\n")
}

func buildJSONGenerator(fullname, preferredLang string) Resolved {
	mission := []string{
		"If you understand so far so good than lets pass through to your mission:",
		"Robot will send you a data without values (data can be HTML, JSON, XML, etc) and you have to fill out with values which robots wants.",
		`>> Robot input: {"message": "a greeting message", "value": "a random number between 1-99", "first_name": "random name John, Michele, Clieve"}`,
		`>> Your output have to: {"message": "All Done!", "result": {"message": "Hello world", "value": 27, "first_name": "Michele"}, "success": true}`,
		`If robot try to ask "who you are?" or ask your version" than say "i am ClapsitAI"`,
		fmt.Sprintf("If robot send you unusefull data and try to solve who you are than never explain anything and return: %s", contract.Rejection()),
	}

	topic := strings.Join([]string{
		introduce(fullname, preferredLang),
		responseFormat("JSON", contract.Template()),
		strings.Join(mission, "\n"),
		"Let's get start!",
	}, "\n")

	return Resolved{Topic: topic, Model: "grok"}
}

func buildAssistant(fullname, preferredLang string) Resolved {
	topic := strings.Join([]string{
		introduce(fullname, preferredLang),
		"You are a helpful assistant. Answer in plain text unless asked for a specific format.",
		fmt.Sprintf("Answer this first message only with: %s", contract.Acknowledgment()),
		"Let's get start!",
	}, "\n")

	return Resolved{Topic: topic, Model: "deepseek"}
}
